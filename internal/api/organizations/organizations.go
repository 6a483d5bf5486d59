// Package organizations implements organization management: creation,
// membership, invitations, and per-member permission records.
package organizations

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petition-platform/petition-platform/internal/api/respond"
	"github.com/petition-platform/petition-platform/internal/db/models"
	"github.com/petition-platform/petition-platform/internal/db/repositories"
	"github.com/petition-platform/petition-platform/internal/middleware"
	"github.com/petition-platform/petition-platform/internal/ownership"
)

// Handlers bundles the organization endpoints and their dependencies
type Handlers struct {
	orgs        *repositories.OrganizationRepository
	permissions *repositories.PermissionRepository
	users       *repositories.UserRepository
	templates   *repositories.TemplateRepository
	gate        *ownership.Gate
}

// NewHandlers creates the organization handlers
func NewHandlers(
	orgs *repositories.OrganizationRepository,
	permissions *repositories.PermissionRepository,
	users *repositories.UserRepository,
	templates *repositories.TemplateRepository,
	gate *ownership.Gate,
) *Handlers {
	return &Handlers{orgs: orgs, permissions: permissions, users: users, templates: templates, gate: gate}
}

type createRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/organizations. The creator becomes the first
// member with every capability granted; the slug is derived from the name.
func (h *Handlers) Create(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if req.Name == "" {
		respond.BadRequest(c, "Organization name is required")
		return
	}

	org := &models.Organization{
		Name:     req.Name,
		SlugName: models.Slugify(req.Name),
	}
	if org.SlugName == "" {
		respond.BadRequest(c, "Organization name must contain letters or digits")
		return
	}

	if err := h.orgs.CreateWithFounder(c.Request.Context(), org, userID); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"organization": org})
}

// Get handles GET /api/v1/organizations/:orgID (members only)
func (h *Handlers) Get(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")

	if err := h.gate.RequireMember(c.Request.Context(), userID, orgID); err != nil {
		respond.Error(c, err)
		return
	}

	org, err := h.orgs.GetByID(c.Request.Context(), orgID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if org == nil {
		respond.NotFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": org})
}

// ListMine handles GET /api/v1/organizations
func (h *Handlers) ListMine(c *gin.Context) {
	orgs, err := h.orgs.ListForUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

// Members handles GET /api/v1/organizations/:orgID/members (members only)
func (h *Handlers) Members(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")

	if err := h.gate.RequireMember(c.Request.Context(), userID, orgID); err != nil {
		respond.Error(c, err)
		return
	}

	members, err := h.orgs.ListMembersWithUsers(c.Request.Context(), orgID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

type inviteRequest struct {
	Username string `json:"username"`
}

// Invite handles POST /api/v1/organizations/:orgID/members. Requires the
// can_add_members capability. The invited user must accept before becoming a
// member.
func (h *Handlers) Invite(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")
	ctx := c.Request.Context()

	if err := h.gate.AuthorizeOrg(ctx, userID, orgID, models.CanAddMembers); err != nil {
		respond.Error(c, err)
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	invited, err := h.users.GetByUsername(ctx, req.Username)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if invited == nil {
		respond.NotFound(c)
		return
	}

	if err := h.orgs.Invite(ctx, orgID, invited.ID); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// AcceptInvitation handles POST /api/v1/me/invitations/:orgID/accept.
// Membership and an all-false permission record are created in one
// transaction; capabilities are granted afterwards by a permission editor.
func (h *Handlers) AcceptInvitation(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")

	accepted, err := h.orgs.AcceptInvitation(c.Request.Context(), orgID, userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if !accepted {
		respond.NotFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

// DismissInvitation handles POST /api/v1/me/invitations/:orgID/dismiss
func (h *Handlers) DismissInvitation(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")

	dismissed, err := h.orgs.DismissInvitation(c.Request.Context(), orgID, userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if !dismissed {
		respond.NotFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveMember handles DELETE /api/v1/organizations/:orgID/members/:userID.
// Requires can_remove_members; removing the last member holding
// can_modify_permissions is rejected.
func (h *Handlers) RemoveMember(c *gin.Context) {
	actorID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")
	targetID := c.Param("userID")

	if err := h.gate.AuthorizeOrg(c.Request.Context(), actorID, orgID, models.CanRemoveMembers); err != nil {
		respond.Error(c, err)
		return
	}

	if err := h.orgs.RemoveMember(c.Request.Context(), orgID, targetID); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Leave handles POST /api/v1/organizations/:orgID/leave. Leaving requires no
// capability, but the last-admin rule still applies to the member's own row.
func (h *Handlers) Leave(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")

	if err := h.gate.RequireMember(c.Request.Context(), userID, orgID); err != nil {
		respond.Error(c, err)
		return
	}

	if err := h.orgs.RemoveMember(c.Request.Context(), orgID, userID); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPermission handles GET /api/v1/organizations/:orgID/permissions/:userID.
// Any member may read permission records; editing requires
// can_modify_permissions.
func (h *Handlers) GetPermission(c *gin.Context) {
	actorID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")
	targetID := c.Param("userID")

	if err := h.gate.RequireMember(c.Request.Context(), actorID, orgID); err != nil {
		respond.Error(c, err)
		return
	}

	perm, err := h.permissions.GetPermission(c.Request.Context(), orgID, targetID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if perm == nil {
		respond.NotFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"permission": perm})
}

// UpdatePermission handles PUT /api/v1/organizations/:orgID/permissions/:userID.
// The full capability set is replaced; revoking the last
// can_modify_permissions holder is rejected inside the repository transaction.
func (h *Handlers) UpdatePermission(c *gin.Context) {
	actorID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")
	targetID := c.Param("userID")
	ctx := c.Request.Context()

	if err := h.gate.AuthorizeOrg(ctx, actorID, orgID, models.CanModifyPermissions); err != nil {
		respond.Error(c, err)
		return
	}

	var perm models.Permission
	if err := c.ShouldBindJSON(&perm); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	perm.OrganizationID = orgID
	perm.UserID = targetID

	if err := h.permissions.Update(ctx, &perm); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"permission": perm})
}

type defaultTemplateRequest struct {
	TemplateID *string `json:"template_id"`
}

// SetDefaultTemplate handles PUT /api/v1/organizations/:orgID/default-template.
// The template must belong to the organization itself.
func (h *Handlers) SetDefaultTemplate(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")
	ctx := c.Request.Context()

	if err := h.gate.AuthorizeOrg(ctx, userID, orgID, models.CanModifyTemplates); err != nil {
		respond.Error(c, err)
		return
	}

	var req defaultTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	if req.TemplateID != nil {
		tpl, err := h.templates.GetByID(ctx, *req.TemplateID)
		if err != nil {
			respond.Error(c, err)
			return
		}
		if tpl == nil || tpl.OrgID == nil || *tpl.OrgID != orgID {
			respond.NotFound(c)
			return
		}
	}

	if err := h.orgs.SetDefaultTemplate(ctx, orgID, req.TemplateID); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/organizations/:orgID. Deleting an
// organization requires the full permission-editing capability since it
// removes every member's access at once.
func (h *Handlers) Delete(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")

	if err := h.gate.AuthorizeOrg(c.Request.Context(), userID, orgID, models.CanModifyPermissions); err != nil {
		respond.Error(c, err)
		return
	}

	if err := h.orgs.Delete(c.Request.Context(), orgID); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
