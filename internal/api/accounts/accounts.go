// Package accounts implements registration, login, and the endpoints an
// authenticated user operates on their own account.
package accounts

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/petition-platform/petition-platform/internal/api/respond"
	"github.com/petition-platform/petition-platform/internal/auth"
	"github.com/petition-platform/petition-platform/internal/db/models"
	"github.com/petition-platform/petition-platform/internal/db/repositories"
	"github.com/petition-platform/petition-platform/internal/forms"
	"github.com/petition-platform/petition-platform/internal/middleware"
)

// sessionDuration is how long issued login tokens stay valid
const sessionDuration = 24 * time.Hour

// Handlers bundles the account endpoints and their dependencies
type Handlers struct {
	users     *repositories.UserRepository
	orgs      *repositories.OrganizationRepository
	petitions *repositories.PetitionRepository
	templates *repositories.TemplateRepository
}

// NewHandlers creates the account handlers
func NewHandlers(
	users *repositories.UserRepository,
	orgs *repositories.OrganizationRepository,
	petitions *repositories.PetitionRepository,
	templates *repositories.TemplateRepository,
) *Handlers {
	return &Handlers{users: users, orgs: orgs, petitions: petitions, templates: templates}
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// userView is the user representation returned to clients. The password hash
// never leaves the server.
type userView struct {
	ID                string  `json:"id"`
	Username          string  `json:"username"`
	Email             string  `json:"email"`
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	DisplayName       string  `json:"display_name"`
	DefaultTemplateID *string `json:"default_template_id,omitempty"`
}

func viewOf(u *models.User) userView {
	return userView{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		DisplayName:       u.DisplayName(),
		DefaultTemplateID: u.DefaultTemplateID,
	}
}

// Register handles POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	errs := forms.FieldErrors{}
	if req.Username == "" {
		errs["username"] = "username is required"
	}
	if req.Email == "" {
		errs["email"] = "email is required"
	} else if !forms.ValidEmail(req.Email) {
		errs["email"] = "invalid email address"
	}
	if len(req.Password) < 8 {
		errs["password"] = "password must be at least 8 characters"
	}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	existing, err := h.users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		respond.Error(c, err)
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, sessionDuration)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": viewOf(user), "token": token})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		respond.Error(c, err)
		return
	}
	// Same response for unknown username and wrong password
	if user == nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, sessionDuration)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": viewOf(user), "token": token})
}

// currentUser pulls the user loaded by the auth middleware
func currentUser(c *gin.Context) *models.User {
	if v, exists := c.Get(middleware.UserKey); exists {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// Me handles GET /api/v1/me
func (h *Handlers) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": viewOf(user)})
}

type updateProfileRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UpdateProfile handles PUT /api/v1/me
func (h *Handlers) UpdateProfile(c *gin.Context) {
	user := currentUser(c)

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if req.Email != "" && !forms.ValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": forms.FieldErrors{"email": "invalid email address"}})
		return
	}

	if req.Email != "" {
		user.Email = req.Email
	}
	user.FirstName = req.FirstName
	user.LastName = req.LastName

	if err := h.users.UpdateProfile(c.Request.Context(), user); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": viewOf(user)})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdatePassword handles PUT /api/v1/me/password
func (h *Handlers) UpdatePassword(c *gin.Context) {
	user := currentUser(c)

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if !auth.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Current password is incorrect"})
		return
	}
	if len(req.NewPassword) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": forms.FieldErrors{"new_password": "password must be at least 8 characters"}})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if err := h.users.UpdatePassword(c.Request.Context(), user.ID, hash); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type defaultTemplateRequest struct {
	TemplateID *string `json:"template_id"`
}

// SetDefaultTemplate handles PUT /api/v1/me/default-template. A null
// template_id clears the default.
func (h *Handlers) SetDefaultTemplate(c *gin.Context) {
	user := currentUser(c)

	var req defaultTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	if req.TemplateID != nil {
		tpl, err := h.templates.GetByID(c.Request.Context(), *req.TemplateID)
		if err != nil {
			respond.Error(c, err)
			return
		}
		// Only the user's own templates can become their default
		if tpl == nil || tpl.UserID == nil || *tpl.UserID != user.ID {
			respond.NotFound(c)
			return
		}
	}

	if err := h.users.SetDefaultTemplate(c.Request.Context(), user.ID, req.TemplateID); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Dashboard handles GET /api/v1/me/dashboard: the user's own petitions and
// templates, organizations they belong to, and pending invitations.
func (h *Handlers) Dashboard(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	petitions, err := h.petitions.ListForUser(ctx, user.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	templates, err := h.templates.ListForUser(ctx, user.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	orgs, err := h.orgs.ListForUser(ctx, user.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	invitations, err := h.orgs.ListInvitationsForUser(ctx, user.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          viewOf(user),
		"petitions":     petitions,
		"templates":     templates,
		"organizations": orgs,
		"invitations":   invitations,
	})
}

// DeleteAccount handles DELETE /api/v1/me. Memberships and owned petitions
// cascade; the repository rejects the delete with a conflict while the user
// is still the last admin of any organization.
func (h *Handlers) DeleteAccount(c *gin.Context) {
	user := currentUser(c)
	if err := h.users.Delete(c.Request.Context(), user.ID); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
