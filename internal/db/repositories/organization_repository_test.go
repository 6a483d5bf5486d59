package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var orgCols = []string{"id", "name", "slug_name", "default_template_id", "created_at", "updated_at"}
var orgCreateCols = []string{"id", "created_at", "updated_at"}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

func sampleOrgRow() *sqlmock.Rows {
	return sqlmock.NewRows(orgCols).
		AddRow("org-1", "Les Amis", "les-amis", nil, time.Now(), time.Now())
}

func emptyOrgRow() *sqlmock.Rows {
	return sqlmock.NewRows(orgCols)
}

func newOrgRepo(t *testing.T) (*OrganizationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewOrganizationRepository(db), mock
}

// ---------------------------------------------------------------------------
// GetByID / GetBySlugName
// ---------------------------------------------------------------------------

func TestOrgGetByID_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("(?s)SELECT.*FROM organizations.*WHERE id").
		WithArgs("org-1").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetByID(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org == nil {
		t.Fatal("expected org, got nil")
	}
	if org.SlugName != "les-amis" {
		t.Errorf("SlugName = %s, want les-amis", org.SlugName)
	}
}

func TestOrgGetByID_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("(?s)SELECT.*FROM organizations.*WHERE id").
		WillReturnRows(emptyOrgRow())

	org, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestOrgGetBySlugName_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("(?s)SELECT.*FROM organizations.*WHERE slug_name").
		WithArgs("les-amis").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetBySlugName(context.Background(), "les-amis")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org == nil {
		t.Fatal("expected org, got nil")
	}
}

// ---------------------------------------------------------------------------
// CreateWithFounder
// ---------------------------------------------------------------------------

func TestCreateWithFounder(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO organizations").
		WithArgs("Les Amis", "les-amis").
		WillReturnRows(sqlmock.NewRows(orgCreateCols).AddRow("org-1", time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO organization_members").
		WithArgs("org-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO permissions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	org := sampleOrg()
	if err := repo.CreateWithFounder(context.Background(), org, "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.ID != "org-1" {
		t.Errorf("ID = %s, want org-1", org.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateWithFounder_DuplicateSlug(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO organizations").
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	err := repo.CreateWithFounder(context.Background(), sampleOrg(), "user-1")
	if !errors.Is(err, ErrDuplicateSlug) {
		t.Errorf("err = %v, want ErrDuplicateSlug", err)
	}
}

// ---------------------------------------------------------------------------
// Invitations
// ---------------------------------------------------------------------------

func TestInvite_AlreadyMember(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("org-1", "user-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.Invite(context.Background(), "org-1", "user-2")
	if !errors.Is(err, ErrDuplicateMember) {
		t.Errorf("err = %v, want ErrDuplicateMember", err)
	}
}

func TestInvite_OK(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO organization_invitations").
		WithArgs("org-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Invite(context.Background(), "org-1", "user-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAcceptInvitation_CreatesMembershipAndPermissionRecord(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM organization_invitations").
		WithArgs("org-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO organization_members").
		WithArgs("org-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO permissions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.AcceptInvitation(context.Background(), "org-1", "user-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected ok")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAcceptInvitation_NoInvitation(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM organization_invitations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := repo.AcceptInvitation(context.Background(), "org-1", "user-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected not ok when no invitation exists")
	}
}

// ---------------------------------------------------------------------------
// RemoveMember and the last-admin rule
// ---------------------------------------------------------------------------

// The admin count must lock every qualifying row (SELECT ... FOR UPDATE in a
// fixed order) before counting. Counting without the locks lets two
// concurrent drops of two different admins each see two admins and both
// commit, leaving the organization with none.
const lockedAdminCountPattern = `(?s)SELECT COUNT\(\*\) FROM \(\s*SELECT 1 FROM permissions.*FOR UPDATE`

func TestRemoveMember_LastAdmin(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockedAdminCountPattern).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT can_modify_permissions FROM permissions").
		WithArgs("org-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"can_modify_permissions"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.RemoveMember(context.Background(), "org-1", "user-1")
	if !errors.Is(err, ErrLastAdmin) {
		t.Errorf("err = %v, want ErrLastAdmin", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRemoveMember_AdminButNotLast(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockedAdminCountPattern).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT can_modify_permissions FROM permissions").
		WillReturnRows(sqlmock.NewRows([]string{"can_modify_permissions"}).AddRow(true))
	mock.ExpectExec("DELETE FROM permissions").
		WithArgs("org-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM organization_members").
		WithArgs("org-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.RemoveMember(context.Background(), "org-1", "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRemoveMember_NonAdmin(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockedAdminCountPattern).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT can_modify_permissions FROM permissions").
		WillReturnRows(sqlmock.NewRows([]string{"can_modify_permissions"}).AddRow(false))
	mock.ExpectExec("DELETE FROM permissions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM organization_members").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.RemoveMember(context.Background(), "org-1", "user-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
