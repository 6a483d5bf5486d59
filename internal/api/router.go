// Package api wires together all HTTP routes for the petition platform.
//
// Route grouping philosophy:
//   - Visitor routes (petition pages, signing, confirmation) are public. A
//     petition exists to be signed by people without accounts, so nothing on
//     the signing path may require credentials.
//   - Everything under /api/v1 except auth is authenticated; authorization
//     beyond identity goes through the ownership gate inside the handlers,
//     never through route-level role checks.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/petition-platform/petition-platform/internal/api/accounts"
	"github.com/petition-platform/petition-platform/internal/api/organizations"
	"github.com/petition-platform/petition-platform/internal/api/petitions"
	"github.com/petition-platform/petition-platform/internal/api/signatures"
	"github.com/petition-platform/petition-platform/internal/api/templates"
	"github.com/petition-platform/petition-platform/internal/config"
	"github.com/petition-platform/petition-platform/internal/db/models"
	"github.com/petition-platform/petition-platform/internal/db/repositories"
	"github.com/petition-platform/petition-platform/internal/middleware"
	"github.com/petition-platform/petition-platform/internal/ownership"
	"github.com/petition-platform/petition-platform/internal/signing"
	"github.com/petition-platform/petition-platform/internal/storage"

	// Import storage backends to register them
	_ "github.com/petition-platform/petition-platform/internal/storage/local"
	_ "github.com/petition-platform/petition-platform/internal/storage/s3"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// BackgroundServices holds resources that must be stopped during graceful
// shutdown. The caller (cmd/server) calls Shutdown() after the HTTP server
// has drained.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines
func (bg *BackgroundServices) Shutdown() {
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("background services stopped")
}

// membershipStore adapts the organization and permission repositories to the
// ownership gate's combined interface.
type membershipStore struct {
	orgs        *repositories.OrganizationRepository
	permissions *repositories.PermissionRepository
}

func (s *membershipStore) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	return s.orgs.IsMember(ctx, orgID, userID)
}

func (s *membershipStore) GetPermission(ctx context.Context, orgID, userID string) (*models.Permission, error) {
	return s.permissions.GetPermission(ctx, orgID, userID)
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("storage backend initialized", "backend", cfg.Storage.DefaultBackend)

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	permRepo := repositories.NewPermissionRepository(db)
	sigRepo := repositories.NewSignatureRepository(db)

	sqlxDB := sqlx.NewDb(db, "postgres")
	petitionRepo := repositories.NewPetitionRepository(sqlxDB)
	templateRepo := repositories.NewTemplateRepository(sqlxDB)
	slugRepo := repositories.NewSlugRepository(db)

	// Ownership gate: the single authorization decision point
	gate := ownership.NewGate(
		ownership.NewResolver(orgRepo, userRepo),
		&membershipStore{orgs: orgRepo, permissions: permRepo},
	)

	// Signing workflow: throttle, confirmation mail, newsletter opt-in
	workflow := signing.NewWorkflow(sigRepo, cfg, slog.Default())

	// Handlers
	accountHandlers := accounts.NewHandlers(userRepo, orgRepo, petitionRepo, templateRepo)
	orgHandlers := organizations.NewHandlers(orgRepo, permRepo, userRepo, templateRepo, gate)
	petitionHandlers := petitions.NewHandlers(petitionRepo, templateRepo, slugRepo, orgRepo, userRepo, gate, storageBackend)
	signatureHandlers := signatures.NewHandlers(sigRepo, petitionRepo, slugRepo, gate, workflow)
	templateHandlers := templates.NewHandlers(templateRepo, gate)

	// Middleware stack
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.DefaultSecurityHeadersConfig()))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(loggerMiddleware())

	bg := &BackgroundServices{}
	var generalRateLimiter *middleware.RateLimiter
	if cfg.Security.RateLimiting.Enabled {
		generalRateLimiter = middleware.NewRateLimiter(middleware.RateLimitConfigFrom(&cfg.Security.RateLimiting))
		bg.rateLimiters = append(bg.rateLimiters, generalRateLimiter)
		router.Use(middleware.RateLimitMiddleware(generalRateLimiter))
	}

	// Operational endpoints
	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, storageBackend))
	router.GET("/version", versionHandler())

	// Index page: configurable per deployment
	router.GET("/", indexHandler(cfg))

	// Local media files are served by the API itself; S3 deployments hand out
	// pre-signed URLs instead and never hit this route.
	if cfg.Storage.DefaultBackend == "local" {
		router.Static("/media", cfg.Storage.Local.BasePath)
	}

	// Public petition routes
	router.GET("/petitions", petitionHandlers.ListPublic)
	router.GET("/petitions/:id", petitionHandlers.PublicByID)
	router.GET("/o/:orgSlug", petitionHandlers.OrganizationProfile)
	router.GET("/o/:orgSlug/:petSlug", petitionHandlers.PublicForOrganization)
	router.POST("/o/:orgSlug/:petSlug/sign", signatureHandlers.SignForOrganization)
	router.GET("/u/:username", petitionHandlers.UserProfile)
	router.GET("/u/:username/:petSlug", petitionHandlers.PublicForUser)
	router.POST("/u/:username/:petSlug/sign", signatureHandlers.SignForUser)
	router.GET("/confirm/:code", signatureHandlers.Confirm)

	apiV1 := router.Group("/api/v1")

	// Public authentication endpoints, rate limited harder than the rest
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	bg.rateLimiters = append(bg.rateLimiters, authRateLimiter)
	authGroup := apiV1.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
	{
		authGroup.POST("/register", accountHandlers.Register)
		authGroup.POST("/login", accountHandlers.Login)
	}

	// Everything else under /api/v1 requires a session
	authed := apiV1.Group("")
	authed.Use(middleware.AuthMiddleware(userRepo))
	{
		me := authed.Group("/me")
		{
			me.GET("", accountHandlers.Me)
			me.PUT("", accountHandlers.UpdateProfile)
			me.DELETE("", accountHandlers.DeleteAccount)
			me.PUT("/password", accountHandlers.UpdatePassword)
			me.PUT("/default-template", accountHandlers.SetDefaultTemplate)
			me.GET("/dashboard", accountHandlers.Dashboard)
			me.GET("/petitions", petitionHandlers.ListMine)
			me.GET("/templates", templateHandlers.ListMine)
			me.POST("/invitations/:orgID/accept", orgHandlers.AcceptInvitation)
			me.POST("/invitations/:orgID/dismiss", orgHandlers.DismissInvitation)
		}

		orgs := authed.Group("/organizations")
		{
			orgs.POST("", orgHandlers.Create)
			orgs.GET("", orgHandlers.ListMine)
			orgs.GET("/:orgID", orgHandlers.Get)
			orgs.DELETE("/:orgID", orgHandlers.Delete)
			orgs.GET("/:orgID/members", orgHandlers.Members)
			orgs.POST("/:orgID/members", orgHandlers.Invite)
			orgs.DELETE("/:orgID/members/:userID", orgHandlers.RemoveMember)
			orgs.POST("/:orgID/leave", orgHandlers.Leave)
			orgs.GET("/:orgID/permissions/:userID", orgHandlers.GetPermission)
			orgs.PUT("/:orgID/permissions/:userID", orgHandlers.UpdatePermission)
			orgs.PUT("/:orgID/default-template", orgHandlers.SetDefaultTemplate)
			orgs.GET("/:orgID/petitions", petitionHandlers.ListForOrganization)
			orgs.GET("/:orgID/templates", templateHandlers.ListForOrganization)
		}

		pets := authed.Group("/petitions")
		{
			pets.POST("", petitionHandlers.Create)
			pets.GET("/:id", petitionHandlers.Get)
			pets.PUT("/:id", petitionHandlers.Edit)
			pets.DELETE("/:id", petitionHandlers.Delete)
			pets.POST("/:id/publish", petitionHandlers.SetPublished(true))
			pets.POST("/:id/unpublish", petitionHandlers.SetPublished(false))
			pets.PUT("/:id/paper-signatures", petitionHandlers.SetPaperSignatures)
			pets.POST("/:id/social-card", petitionHandlers.UploadSocialCard)
			pets.GET("/:id/slugs", petitionHandlers.ListSlugs)
			pets.POST("/:id/slugs", petitionHandlers.CreateSlug)
			pets.DELETE("/:id/slugs/:slugID", petitionHandlers.DeleteSlug)
			pets.GET("/:id/signatures", signatureHandlers.List)
			pets.GET("/:id/signatures.csv", signatureHandlers.ExportCSV)
			pets.DELETE("/:id/signatures/:sigID", signatureHandlers.Delete)
			pets.POST("/:id/signatures/:sigID/resend", signatureHandlers.ResendConfirmation)
		}

		tpls := authed.Group("/templates")
		{
			tpls.POST("", templateHandlers.Create)
			tpls.GET("/:id", templateHandlers.Get)
			tpls.PUT("/:id", templateHandlers.Edit)
			tpls.DELETE("/:id", templateHandlers.Delete)
		}
	}

	return router, bg, nil
}

// indexHandler serves the site root according to index.mode: a plain landing
// document, or a redirect to the petition list, a profile, or the login page.
func indexHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch cfg.Index.Mode {
		case "all_petitions":
			c.Redirect(http.StatusFound, "/petitions")
		case "orga_profile":
			c.Redirect(http.StatusFound, "/o/"+cfg.Index.Organization)
		case "user_profile":
			c.Redirect(http.StatusFound, "/u/"+cfg.Index.User)
		case "login_register":
			c.Redirect(http.StatusFound, "/login")
		default: // "home"
			c.JSON(http.StatusOK, gin.H{
				"service": "petition-platform",
				"version": Version,
			})
		}
	}
}

// healthCheckHandler reports liveness and database reachability
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

// readinessHandler additionally probes the storage backend
func readinessHandler(db *sql.DB, store storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "database unreachable"})
			return
		}
		if _, err := store.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "storage unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version})
	}
}

// loggerMiddleware emits one structured log line per request
func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(middleware.RequestIDKey),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			slog.Error("request", attrs...)
		} else {
			slog.Info("request", attrs...)
		}
	}
}
