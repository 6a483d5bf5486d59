// Package templates implements petition template management. Templates carry
// the same sections as petitions minus style and publication, and edits
// follow the same marked-section convention.
package templates

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petition-platform/petition-platform/internal/api/respond"
	"github.com/petition-platform/petition-platform/internal/db/models"
	"github.com/petition-platform/petition-platform/internal/db/repositories"
	"github.com/petition-platform/petition-platform/internal/forms"
	"github.com/petition-platform/petition-platform/internal/middleware"
	"github.com/petition-platform/petition-platform/internal/ownership"
)

// Handlers bundles the template endpoints and their dependencies
type Handlers struct {
	templates *repositories.TemplateRepository
	gate      *ownership.Gate
}

// NewHandlers creates the template handlers
func NewHandlers(templates *repositories.TemplateRepository, gate *ownership.Gate) *Handlers {
	return &Handlers{templates: templates, gate: gate}
}

func (h *Handlers) load(c *gin.Context) *models.PetitionTemplate {
	t, err := h.templates.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return nil
	}
	if t == nil {
		respond.NotFound(c)
		return nil
	}
	return t
}

func (h *Handlers) authorize(c *gin.Context, t *models.PetitionTemplate, cap models.Capability) bool {
	_, err := h.gate.Authorize(c.Request.Context(), middleware.CurrentUserID(c), t, cap)
	if err != nil {
		respond.Error(c, err)
		return false
	}
	return true
}

// requireViewer allows the account owner or any organization member to read
// the template.
func (h *Handlers) requireViewer(c *gin.Context, t *models.PetitionTemplate) bool {
	userID := middleware.CurrentUserID(c)
	owner, err := h.gate.Resolve(c.Request.Context(), t)
	if err != nil {
		respond.Error(c, err)
		return false
	}
	if owner.Kind == ownership.OwnerAccount {
		if owner.Account.ID != userID {
			respond.Error(c, ownership.ErrForbidden)
			return false
		}
		return true
	}
	if err := h.gate.RequireMember(c.Request.Context(), userID, owner.Organization.ID); err != nil {
		respond.Error(c, err)
		return false
	}
	return true
}

type createRequest struct {
	Name  string  `json:"name"`
	OrgID *string `json:"org_id,omitempty"`
}

// Create handles POST /api/v1/templates. Owned by the given organization
// (requires can_create_templates) or by the acting user.
func (h *Handlers) Create(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errors": forms.FieldErrors{"name": "name is required"}})
		return
	}

	t := &models.PetitionTemplate{Name: req.Name}
	if req.OrgID != nil {
		if err := h.gate.AuthorizeOrg(c.Request.Context(), userID, *req.OrgID, models.CanCreateTemplates); err != nil {
			respond.Error(c, err)
			return
		}
		t.OrgID = req.OrgID
	} else {
		t.UserID = &userID
	}

	if err := h.templates.Create(c.Request.Context(), t); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": t})
}

// Get handles GET /api/v1/templates/:id
func (h *Handlers) Get(c *gin.Context) {
	t := h.load(c)
	if t == nil {
		return
	}
	if !h.requireViewer(c, t) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": t})
}

// Edit handles PUT /api/v1/templates/:id with the marked-section body.
// Templates have no style section; the other four behave exactly as on
// petitions.
func (h *Handlers) Edit(c *gin.Context) {
	t := h.load(c)
	if t == nil {
		return
	}
	if !h.authorize(c, t, models.CanModifyTemplates) {
		return
	}

	var req forms.TemplateEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	results, err := forms.EditTemplate(c.Request.Context(), h.templates, t, &req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sections": results, "template": t})
}

// Delete handles DELETE /api/v1/templates/:id. Owner/org default-template
// references are cleared by the schema's ON DELETE SET NULL.
func (h *Handlers) Delete(c *gin.Context) {
	t := h.load(c)
	if t == nil {
		return
	}
	if !h.authorize(c, t, models.CanDeleteTemplates) {
		return
	}
	if err := h.templates.Delete(c.Request.Context(), t.ID); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListForOrganization handles GET /api/v1/organizations/:orgID/templates
func (h *Handlers) ListForOrganization(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")

	if err := h.gate.RequireMember(c.Request.Context(), userID, orgID); err != nil {
		respond.Error(c, err)
		return
	}
	templates, err := h.templates.ListForOrganization(c.Request.Context(), orgID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// ListMine handles GET /api/v1/me/templates
func (h *Handlers) ListMine(c *gin.Context) {
	templates, err := h.templates.ListForUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}
