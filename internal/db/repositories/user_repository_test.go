package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

// ---------------------------------------------------------------------------
// Delete and the last-admin rule
// ---------------------------------------------------------------------------

// Deleting an account cascades its permission rows, so the delete must fail
// while the user is the only can_modify_permissions holder of any
// organization they belong to.
func TestUserDelete_LastAdminOfAnOrg(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT organization_id FROM permissions").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow("org-1"))
	mock.ExpectQuery(lockedAdminCountPattern).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT can_modify_permissions FROM permissions").
		WithArgs("org-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"can_modify_permissions"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "user-1")
	if !errors.Is(err, ErrLastAdmin) {
		t.Errorf("err = %v, want ErrLastAdmin", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUserDelete_AdminWithCoAdmins(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT organization_id FROM permissions").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow("org-1"))
	mock.ExpectQuery(lockedAdminCountPattern).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT can_modify_permissions FROM permissions").
		WithArgs("org-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"can_modify_permissions"}).AddRow(true))
	mock.ExpectExec("DELETE FROM users").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Delete(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUserDelete_NoAdministeredOrgs(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT organization_id FROM permissions").
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}))
	mock.ExpectExec("DELETE FROM users").
		WithArgs("user-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Delete(context.Background(), "user-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
