package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

var slugCols = []string{"id", "petition_id", "slug", "org_id", "user_id", "created_at"}

func newSlugRepo(t *testing.T) (*SlugRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSlugRepository(db), mock
}

func TestSlugCreate(t *testing.T) {
	repo, mock := newSlugRepo(t)
	mock.ExpectQuery("INSERT INTO slugs").
		WithArgs("pet-1", "save-the-bees", "org-1", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("slug-1", time.Now()))

	s := &models.Slug{PetitionID: "pet-1", Slug: "save-the-bees", OrgID: strp("org-1")}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "slug-1" {
		t.Errorf("ID = %s, want slug-1", s.ID)
	}
}

// The unique index is scoped per owner, so the collision error means "taken
// within this owner's namespace", not platform-wide.
func TestSlugCreate_DuplicateWithinOwner(t *testing.T) {
	repo, mock := newSlugRepo(t)
	mock.ExpectQuery("INSERT INTO slugs").
		WillReturnError(uniqueViolation())

	err := repo.Create(context.Background(), &models.Slug{PetitionID: "pet-1", Slug: "taken", UserID: strp("user-1")})
	if !errors.Is(err, ErrDuplicateSlug) {
		t.Errorf("err = %v, want ErrDuplicateSlug", err)
	}
}

func TestSlugGetForOrganization(t *testing.T) {
	repo, mock := newSlugRepo(t)
	mock.ExpectQuery(`(?s)FROM slugs s\s+JOIN organizations o`).
		WithArgs("les-amis", "save-the-bees").
		WillReturnRows(sqlmock.NewRows(slugCols).
			AddRow("slug-1", "pet-1", "save-the-bees", "org-1", nil, time.Now()))

	s, err := repo.GetForOrganization(context.Background(), "les-amis", "save-the-bees")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == nil || s.PetitionID != "pet-1" {
		t.Fatalf("unexpected slug: %+v", s)
	}
}

func TestSlugGetForUser(t *testing.T) {
	repo, mock := newSlugRepo(t)
	mock.ExpectQuery(`(?s)FROM slugs s\s+JOIN users u`).
		WithArgs("alice", "save-the-bees").
		WillReturnRows(sqlmock.NewRows(slugCols).
			AddRow("slug-1", "pet-1", "save-the-bees", nil, "user-1", time.Now()))

	s, err := repo.GetForUser(context.Background(), "alice", "save-the-bees")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == nil || s.PetitionID != "pet-1" {
		t.Fatalf("unexpected slug: %+v", s)
	}
}

// The same slug under a different owner resolves to nothing.
func TestSlugGetForUser_NotFound(t *testing.T) {
	repo, mock := newSlugRepo(t)
	mock.ExpectQuery(`(?s)FROM slugs s\s+JOIN users u`).
		WillReturnRows(sqlmock.NewRows(slugCols))

	s, err := repo.GetForUser(context.Background(), "bob", "save-the-bees")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != nil {
		t.Error("expected nil, got non-nil")
	}
}
