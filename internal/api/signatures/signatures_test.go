package signatures

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petition-platform/petition-platform/internal/config"
	"github.com/petition-platform/petition-platform/internal/db/models"
	"github.com/petition-platform/petition-platform/internal/db/repositories"
	"github.com/petition-platform/petition-platform/internal/middleware"
	"github.com/petition-platform/petition-platform/internal/ownership"
	"github.com/petition-platform/petition-platform/internal/signing"
)

var sampleTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

var sigCols = []string{
	"id", "petition_id", "first_name", "last_name", "phone", "email",
	"subscribed_to_mailinglist", "confirmed", "confirmation_code", "ip_hash", "created_at",
}

// newHandlers builds the public signing handlers over a single sqlmock
// connection with mail delivery disabled, so Submit never spawns SMTP
// goroutines during tests.
func newHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Server:     config.ServerConfig{BaseURL: "http://localhost:8080"},
		Signatures: config.SignaturesConfig{Throttle: 5, Window: 24 * time.Hour},
	}

	sigRepo := repositories.NewSignatureRepository(db)
	petRepo := repositories.NewPetitionRepository(sqlx.NewDb(db, "postgres"))
	slugRepo := repositories.NewSlugRepository(db)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	workflow := signing.NewWorkflow(sigRepo, cfg, logger)

	return NewHandlers(sigRepo, petRepo, slugRepo, nil, workflow), mock
}

func newPublicRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.POST("/o/:orgSlug/:petSlug/sign", h.SignForOrganization)
	router.POST("/u/:username/:petSlug/sign", h.SignForUser)
	router.GET("/confirm/:code", h.Confirm)
	return router
}

var slugCols = []string{"id", "petition_id", "slug", "org_id", "user_id", "created_at"}

// expectSlugLookup matches the user-namespace slug resolution for
// /u/:username/:petSlug routes.
func expectSlugLookup(mock sqlmock.Sqlmock, username, slug, petitionID string) {
	rows := sqlmock.NewRows(slugCols)
	if petitionID != "" {
		rows.AddRow("slug-1", petitionID, slug, nil, "user-1", sampleTime)
	}
	mock.ExpectQuery(`(?s)FROM slugs s\s+JOIN users u`).
		WithArgs(username, slug).
		WillReturnRows(rows)
}

func expectPetitionLookup(mock sqlmock.Sqlmock, petitionID string, published bool) {
	mock.ExpectQuery(`SELECT \* FROM petitions WHERE id = \$1`).
		WithArgs(petitionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "published", "salt", "has_newsletter"}).
			AddRow(petitionID, "Save the library", published, "salt-1", false))
}

func postSign(router *gin.Engine, slug, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/u/alice/"+slug+"/sign", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestSign_CreatesUnconfirmedSignature(t *testing.T) {
	h, mock := newHandlers(t)

	expectSlugLookup(mock, "alice", "save-the-library", "pet-1")
	expectPetitionLookup(mock, "pet-1", true)

	// httptest requests originate from 192.0.2.1
	ipHash := signing.HashAddress("salt-1", "192.0.2.1")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM signatures`).
		WithArgs("pet-1", ipHash, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO signatures`).
		WithArgs("pet-1", "Ada", "Lovelace", "", "ada@example.org", false, sqlmock.AnyArg(), ipHash).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("sig-1", sampleTime))
	mock.ExpectCommit()

	w := postSign(newPublicRouter(h), "save-the-library",
		`{"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.org"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"sig-1"`)
	assert.Contains(t, w.Body.String(), `"confirmed":false`)
	// The confirmation code must never appear in the response
	assert.NotContains(t, w.Body.String(), "confirmation_code")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The same slug may exist under several owners; the organization route must
// resolve it inside that organization's namespace only.
func TestSignForOrganization_ResolvesWithinOrgNamespace(t *testing.T) {
	h, mock := newHandlers(t)

	mock.ExpectQuery(`(?s)FROM slugs s\s+JOIN organizations o`).
		WithArgs("les-amis", "save-the-library").
		WillReturnRows(sqlmock.NewRows(slugCols).
			AddRow("slug-1", "pet-1", "save-the-library", "org-1", nil, sampleTime))
	expectPetitionLookup(mock, "pet-1", true)

	ipHash := signing.HashAddress("salt-1", "192.0.2.1")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM signatures`).
		WithArgs("pet-1", ipHash, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO signatures`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("sig-1", sampleTime))
	mock.ExpectCommit()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/o/les-amis/save-the-library/sign",
		bytes.NewBufferString(`{"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.org"}`))
	req.Header.Set("Content-Type", "application/json")
	newPublicRouter(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSign_ThrottleExceeded(t *testing.T) {
	h, mock := newHandlers(t)

	expectSlugLookup(mock, "alice", "save-the-library", "pet-1")
	expectPetitionLookup(mock, "pet-1", true)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM signatures`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectRollback()

	w := postSign(newPublicRouter(h), "save-the-library",
		`{"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.org"}`)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSign_UnknownSlugNotFound(t *testing.T) {
	h, mock := newHandlers(t)

	expectSlugLookup(mock, "alice", "no-such-petition", "")

	w := postSign(newPublicRouter(h), "no-such-petition",
		`{"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.org"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSign_UnpublishedNotFound(t *testing.T) {
	h, mock := newHandlers(t)

	expectSlugLookup(mock, "alice", "save-the-library", "pet-1")
	expectPetitionLookup(mock, "pet-1", false)

	w := postSign(newPublicRouter(h), "save-the-library",
		`{"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.org"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSign_ValidationErrors(t *testing.T) {
	h, mock := newHandlers(t)

	expectSlugLookup(mock, "alice", "save-the-library", "pet-1")
	expectPetitionLookup(mock, "pet-1", true)

	w := postSign(newPublicRouter(h), "save-the-library",
		`{"first_name": "Ada", "email": "not-an-email"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "last_name")
	assert.Contains(t, w.Body.String(), "invalid email address")
	// Nothing must reach the database on a rejected submission
	assert.NoError(t, mock.ExpectationsWereMet())
}

func confirmCode(router *gin.Engine, code string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/confirm/"+code, nil))
	return w
}

func expectConfirmSelect(mock sqlmock.Sqlmock, code string, rows *sqlmock.Rows) {
	mock.ExpectQuery(`FROM signatures\s+WHERE confirmation_code = \$1\s+FOR UPDATE`).
		WithArgs(code).
		WillReturnRows(rows)
}

func TestConfirm_RedeemsCode(t *testing.T) {
	h, mock := newHandlers(t)

	mock.ExpectBegin()
	expectConfirmSelect(mock, "code-1", sqlmock.NewRows(sigCols).
		AddRow("sig-1", "pet-1", "Ada", "Lovelace", "", "ada@example.org", false, false, "code-1", "hash", sampleTime))
	mock.ExpectExec(`UPDATE signatures SET confirmed = TRUE WHERE id = \$1`).
		WithArgs("sig-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := confirmCode(newPublicRouter(h), "code-1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"confirmed":true`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirm_SecondRedemptionConflicts(t *testing.T) {
	h, mock := newHandlers(t)

	mock.ExpectBegin()
	expectConfirmSelect(mock, "code-1", sqlmock.NewRows(sigCols).
		AddRow("sig-1", "pet-1", "Ada", "Lovelace", "", "ada@example.org", false, true, "code-1", "hash", sampleTime))
	mock.ExpectRollback()

	w := confirmCode(newPublicRouter(h), "code-1")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// newAuthedHandlers wires a real ownership gate the way router.go does, for
// the owner-facing export endpoint.
func newAuthedHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Server:     config.ServerConfig{BaseURL: "http://localhost:8080"},
		Signatures: config.SignaturesConfig{Throttle: 5, Window: 24 * time.Hour},
	}

	sigRepo := repositories.NewSignatureRepository(db)
	petRepo := repositories.NewPetitionRepository(sqlx.NewDb(db, "postgres"))
	slugRepo := repositories.NewSlugRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	permRepo := repositories.NewPermissionRepository(db)

	gate := ownership.NewGate(
		ownership.NewResolver(orgRepo, userRepo),
		&gateStore{orgs: orgRepo, permissions: permRepo},
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	workflow := signing.NewWorkflow(sigRepo, cfg, logger)

	return NewHandlers(sigRepo, petRepo, slugRepo, gate, workflow), mock
}

type gateStore struct {
	orgs        *repositories.OrganizationRepository
	permissions *repositories.PermissionRepository
}

func (s *gateStore) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	return s.orgs.IsMember(ctx, orgID, userID)
}

func (s *gateStore) GetPermission(ctx context.Context, orgID, userID string) (*models.Permission, error) {
	return s.permissions.GetPermission(ctx, orgID, userID)
}

// expectUserOwnedPetition matches the petition load and the owner resolution
// for a petition owned by the acting account.
func expectUserOwnedPetition(mock sqlmock.Sqlmock, petitionID, userID string) {
	mock.ExpectQuery(`SELECT \* FROM petitions WHERE id = \$1`).
		WithArgs(petitionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "published", "user_id"}).
			AddRow(petitionID, "Save the library", true, userID))
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "email", "first_name", "last_name",
			"password_hash", "default_template_id", "created_at", "updated_at",
		}).AddRow(userID, "alice", "alice@example.org", "Alice", "Ada", "x", nil, sampleTime, sampleTime))
}

func doExport(h *Handlers, query string) *httptest.ResponseRecorder {
	router := gin.New()
	router.GET("/petitions/:id/signatures.csv", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "user-1")
		h.ExportCSV(c)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/petitions/pet-1/signatures.csv"+query, nil))
	return w
}

func TestExportCSV_AllSignaturesByDefault(t *testing.T) {
	h, mock := newAuthedHandlers(t)

	expectUserOwnedPetition(mock, "pet-1", "user-1")
	mock.ExpectQuery(`FROM signatures WHERE petition_id = \$1 ORDER BY created_at`).
		WithArgs("pet-1").
		WillReturnRows(sqlmock.NewRows(sigCols).
			AddRow("sig-1", "pet-1", "Ada", "Lovelace", "", "ada@example.org", false, false, "code-1", "hash", sampleTime).
			AddRow("sig-2", "pet-1", "Grace", "Hopper", "", "grace@example.org", true, true, "code-2", "hash", sampleTime))

	w := doExport(h, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "Ada,Lovelace")
	assert.Contains(t, w.Body.String(), "Grace,Hopper")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportCSV_OnlyConfirmed(t *testing.T) {
	h, mock := newAuthedHandlers(t)

	expectUserOwnedPetition(mock, "pet-1", "user-1")
	mock.ExpectQuery(`FROM signatures WHERE petition_id = \$1 AND confirmed`).
		WithArgs("pet-1").
		WillReturnRows(sqlmock.NewRows(sigCols).
			AddRow("sig-2", "pet-1", "Grace", "Hopper", "", "grace@example.org", true, true, "code-2", "hash", sampleTime))

	w := doExport(h, "?only_confirmed=true")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Grace,Hopper")
	assert.NotContains(t, w.Body.String(), "Ada")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// brokenWriter fails every body write, standing in for a client that hung up
// mid-download.
type brokenWriter struct{ *httptest.ResponseRecorder }

func (w *brokenWriter) Write(b []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestExportCSV_WriteFailureLogged(t *testing.T) {
	h, mock := newAuthedHandlers(t)

	expectUserOwnedPetition(mock, "pet-1", "user-1")
	mock.ExpectQuery(`FROM signatures WHERE petition_id = \$1 ORDER BY created_at`).
		WithArgs("pet-1").
		WillReturnRows(sqlmock.NewRows(sigCols).
			AddRow("sig-1", "pet-1", "Ada", "Lovelace", "", "ada@example.org", false, true, "code-1", "hash", sampleTime))

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	defer slog.SetDefault(prev)

	c, _ := gin.CreateTestContext(&brokenWriter{httptest.NewRecorder()})
	c.Request = httptest.NewRequest(http.MethodGet, "/petitions/pet-1/signatures.csv", nil)
	c.Params = gin.Params{{Key: "id", Value: "pet-1"}}
	c.Set(middleware.UserIDKey, "user-1")

	h.ExportCSV(c)

	assert.Contains(t, logs.String(), "csv export aborted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirm_UnknownCodeNotFound(t *testing.T) {
	h, mock := newHandlers(t)

	mock.ExpectBegin()
	expectConfirmSelect(mock, "nope", sqlmock.NewRows(sigCols))
	mock.ExpectRollback()

	w := confirmCode(newPublicRouter(h), "nope")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
