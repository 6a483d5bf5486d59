package petitions

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petition-platform/petition-platform/internal/db/repositories"
)

var sampleTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

var slugCols = []string{"id", "petition_id", "slug", "org_id", "user_id", "created_at"}

// newPublicHandlers builds the handlers with only the public-route
// dependencies wired, over a single sqlmock connection.
func newPublicHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	petRepo := repositories.NewPetitionRepository(sqlx.NewDb(db, "postgres"))
	slugRepo := repositories.NewSlugRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	userRepo := repositories.NewUserRepository(db)

	return NewHandlers(petRepo, nil, slugRepo, orgRepo, userRepo, nil, nil), mock
}

func newPublicRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.GET("/o/:orgSlug", h.OrganizationProfile)
	router.GET("/o/:orgSlug/:petSlug", h.PublicForOrganization)
	router.GET("/u/:username", h.UserProfile)
	router.GET("/u/:username/:petSlug", h.PublicForUser)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func expectPetitionByID(mock sqlmock.Sqlmock, petitionID string, published bool) {
	mock.ExpectQuery(`SELECT \* FROM petitions WHERE id = \$1`).
		WithArgs(petitionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "text", "published"}).
			AddRow(petitionID, "Save the library", "Our library matters.", published))
}

func expectConfirmedCount(mock sqlmock.Sqlmock, petitionID string, count int) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM signatures WHERE petition_id = \$1 AND confirmed`).
		WithArgs(petitionID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestPublicForOrganization_ResolvesWithinOrgNamespace(t *testing.T) {
	h, mock := newPublicHandlers(t)

	mock.ExpectQuery(`(?s)FROM slugs s\s+JOIN organizations o`).
		WithArgs("les-amis", "save-the-library").
		WillReturnRows(sqlmock.NewRows(slugCols).
			AddRow("slug-1", "pet-1", "save-the-library", "org-1", nil, sampleTime))
	expectPetitionByID(mock, "pet-1", true)
	expectConfirmedCount(mock, "pet-1", 12)

	w := get(newPublicRouter(h), "/o/les-amis/save-the-library")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Save the library")
	assert.Contains(t, w.Body.String(), `"signature_number":12`)
	// The management representation must not leak to visitors
	assert.NotContains(t, w.Body.String(), "salt")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The slug only exists under another owner, so this namespace sees nothing.
func TestPublicForUser_SlugFromOtherNamespaceNotFound(t *testing.T) {
	h, mock := newPublicHandlers(t)

	mock.ExpectQuery(`(?s)FROM slugs s\s+JOIN users u`).
		WithArgs("bob", "save-the-library").
		WillReturnRows(sqlmock.NewRows(slugCols))

	w := get(newPublicRouter(h), "/u/bob/save-the-library")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublicForUser_UnpublishedNotFound(t *testing.T) {
	h, mock := newPublicHandlers(t)

	mock.ExpectQuery(`(?s)FROM slugs s\s+JOIN users u`).
		WithArgs("alice", "save-the-library").
		WillReturnRows(sqlmock.NewRows(slugCols).
			AddRow("slug-1", "pet-1", "save-the-library", nil, "user-1", sampleTime))
	expectPetitionByID(mock, "pet-1", false)

	w := get(newPublicRouter(h), "/u/alice/save-the-library")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationProfile_ListsPublishedPetitions(t *testing.T) {
	h, mock := newPublicHandlers(t)

	mock.ExpectQuery(`(?s)SELECT.*FROM organizations\s+WHERE slug_name = \$1`).
		WithArgs("les-amis").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug_name", "default_template_id", "created_at", "updated_at"}).
			AddRow("org-1", "Les Amis", "les-amis", nil, sampleTime, sampleTime))
	mock.ExpectQuery(`SELECT \* FROM petitions WHERE org_id = \$1 AND published ORDER BY created_at DESC`).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "published"}).
			AddRow("pet-1", "Save the library", true))
	expectConfirmedCount(mock, "pet-1", 3)

	w := get(newPublicRouter(h), "/o/les-amis")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"slug_name":"les-amis"`)
	assert.Contains(t, w.Body.String(), "Save the library")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationProfile_UnknownOrgNotFound(t *testing.T) {
	h, mock := newPublicHandlers(t)

	mock.ExpectQuery(`(?s)SELECT.*FROM organizations\s+WHERE slug_name = \$1`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug_name", "default_template_id", "created_at", "updated_at"}))

	w := get(newPublicRouter(h), "/o/nobody")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserProfile_ListsPublishedPetitions(t *testing.T) {
	h, mock := newPublicHandlers(t)

	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "email", "first_name", "last_name",
			"password_hash", "default_template_id", "created_at", "updated_at",
		}).AddRow("user-1", "alice", "alice@example.org", "Alice", "Ada", "x", nil, sampleTime, sampleTime))
	mock.ExpectQuery(`SELECT \* FROM petitions WHERE user_id = \$1 AND published ORDER BY created_at DESC`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "published"}).
			AddRow("pet-1", "Save the library", true))
	expectConfirmedCount(mock, "pet-1", 7)

	w := get(newPublicRouter(h), "/u/alice")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
	assert.Contains(t, w.Body.String(), `"display_name":"Alice Ada"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
