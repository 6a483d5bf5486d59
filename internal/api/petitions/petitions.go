// Package petitions implements petition management and the public petition
// pages. Management endpoints funnel every decision through the ownership
// gate; the public endpoints expose only published petitions and never the
// owner-configured mail credentials.
package petitions

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/petition-platform/petition-platform/internal/api/respond"
	"github.com/petition-platform/petition-platform/internal/db/models"
	"github.com/petition-platform/petition-platform/internal/db/repositories"
	"github.com/petition-platform/petition-platform/internal/forms"
	"github.com/petition-platform/petition-platform/internal/middleware"
	"github.com/petition-platform/petition-platform/internal/ownership"
	"github.com/petition-platform/petition-platform/internal/signing"
	"github.com/petition-platform/petition-platform/internal/storage"
)

// Handlers bundles the petition endpoints and their dependencies
type Handlers struct {
	petitions *repositories.PetitionRepository
	templates *repositories.TemplateRepository
	slugs     *repositories.SlugRepository
	orgs      *repositories.OrganizationRepository
	users     *repositories.UserRepository
	gate      *ownership.Gate
	storage   storage.Storage
}

// NewHandlers creates the petition handlers
func NewHandlers(
	petitions *repositories.PetitionRepository,
	templates *repositories.TemplateRepository,
	slugs *repositories.SlugRepository,
	orgs *repositories.OrganizationRepository,
	users *repositories.UserRepository,
	gate *ownership.Gate,
	store storage.Storage,
) *Handlers {
	return &Handlers{
		petitions: petitions,
		templates: templates,
		slugs:     slugs,
		orgs:      orgs,
		users:     users,
		gate:      gate,
		storage:   store,
	}
}

// load fetches the petition or writes a 404
func (h *Handlers) load(c *gin.Context) *models.Petition {
	p, err := h.petitions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return nil
	}
	if p == nil {
		respond.NotFound(c)
		return nil
	}
	return p
}

// authorize runs the gate for the given capability and handles the error
// response. Returns false when the request has been answered.
func (h *Handlers) authorize(c *gin.Context, p *models.Petition, cap models.Capability) bool {
	_, err := h.gate.Authorize(c.Request.Context(), middleware.CurrentUserID(c), p, cap)
	if err != nil {
		respond.Error(c, err)
		return false
	}
	return true
}

// requireViewer allows the account owner or any organization member to read
// the management representation, independent of capability flags.
func (h *Handlers) requireViewer(c *gin.Context, p *models.Petition) bool {
	userID := middleware.CurrentUserID(c)
	owner, err := h.gate.Resolve(c.Request.Context(), p)
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
	Title      string         `json:"title"`
	Published  forms.FlexBool `json:"published"`
	OrgID      *string        `json:"org_id,omitempty"`
	TemplateID *string        `json:"template_id,omitempty"`
}

// Create handles POST /api/v1/petitions. The petition is owned by the given
// organization (requires can_create_petitions) or by the acting user. When a
// template is named, or the owner has a default template, its settings are
// copied into the new petition before saving.
func (h *Handlers) Create(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	ctx := c.Request.Context()

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errors": forms.FieldErrors{"title": "title is required"}})
		return
	}

	p := &models.Petition{}
	templateID := req.TemplateID

	if req.OrgID != nil {
		if err := h.gate.AuthorizeOrg(ctx, userID, *req.OrgID, models.CanCreatePetitions); err != nil {
			respond.Error(c, err)
			return
		}
		p.OrgID = req.OrgID
		if templateID == nil {
			org, err := h.orgs.GetByID(ctx, *req.OrgID)
			if err != nil {
				respond.Error(c, err)
				return
			}
			if org != nil {
				templateID = org.DefaultTemplateID
			}
		}
	} else {
		p.UserID = &userID
		if templateID == nil {
			user, err := h.users.GetByID(ctx, userID)
			if err != nil {
				respond.Error(c, err)
				return
			}
			if user != nil {
				templateID = user.DefaultTemplateID
			}
		}
	}

	if templateID != nil {
		tpl, err := h.templates.GetByID(ctx, *templateID)
		if err != nil {
			respond.Error(c, err)
			return
		}
		if tpl == nil || !h.sameOwner(p, tpl) {
			respond.NotFound(c)
			return
		}
		p.PrepopulateFromTemplate(tpl)
	}

	p.Title = req.Title
	p.Published = bool(req.Published)

	salt, err := signing.NewSalt()
	if err != nil {
		respond.Error(c, err)
		return
	}
	p.Salt = salt

	if err := h.petitions.Create(ctx, p); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"petition": p})
}

// sameOwner reports whether the template belongs to the petition's owner, so
// one owner's template can never leak mail settings into another's petition.
func (h *Handlers) sameOwner(p *models.Petition, t *models.PetitionTemplate) bool {
	switch {
	case p.OrgID != nil:
		return t.OrgID != nil && *t.OrgID == *p.OrgID
	case p.UserID != nil:
		return t.UserID != nil && *t.UserID == *p.UserID
	}
	return false
}

// Get handles GET /api/v1/petitions/:id, the management view
func (h *Handlers) Get(c *gin.Context) {
	p := h.load(c)
	if p == nil {
		return
	}
	if !h.requireViewer(c, p) {
		return
	}

	count, err := h.petitions.ConfirmedSignatureCount(c.Request.Context(), p.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"petition":         p,
		"signature_number": p.SignatureNumber(count),
	})
}

// Edit handles PUT /api/v1/petitions/:id. The body follows the marked-section
// convention: only sections whose *_form_submitted marker is set are written,
// each validated and persisted independently. The response lists a result per
// marked section so a partial failure is visible field by field.
func (h *Handlers) Edit(c *gin.Context) {
	p := h.load(c)
	if p == nil {
		return
	}
	if !h.authorize(c, p, models.CanModifyPetitions) {
		return
	}

	var req forms.PetitionEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	results, err := forms.EditPetition(c.Request.Context(), h.petitions, p, &req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sections": results, "petition": p})
}

// SetPublished handles POST /api/v1/petitions/:id/publish and /unpublish
func (h *Handlers) SetPublished(published bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := h.load(c)
		if p == nil {
			return
		}
		if !h.authorize(c, p, models.CanModifyPetitions) {
			return
		}
		if err := h.petitions.SetPublished(c.Request.Context(), p.ID, published); err != nil {
			respond.Error(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type paperSignaturesRequest struct {
	Enabled forms.FlexBool `json:"enabled"`
	Count   int            `json:"count"`
}

// SetPaperSignatures handles PUT /api/v1/petitions/:id/paper-signatures.
// The stored count is only added to the public number while enabled.
func (h *Handlers) SetPaperSignatures(c *gin.Context) {
	p := h.load(c)
	if p == nil {
		return
	}
	if !h.authorize(c, p, models.CanModifyPetitions) {
		return
	}

	var req paperSignaturesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if req.Count < 0 {
		respond.BadRequest(c, "Paper signature count must not be negative")
		return
	}

	if err := h.petitions.SetPaperSignatures(c.Request.Context(), p.ID, bool(req.Enabled), req.Count); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/petitions/:id. Signatures and slugs are
// removed with the petition.
func (h *Handlers) Delete(c *gin.Context) {
	p := h.load(c)
	if p == nil {
		return
	}
	if !h.authorize(c, p, models.CanDeletePetitions) {
		return
	}
	if err := h.petitions.Delete(c.Request.Context(), p.ID); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSlugs handles GET /api/v1/petitions/:id/slugs
func (h *Handlers) ListSlugs(c *gin.Context) {
	p := h.load(c)
	if p == nil {
		return
	}
	if !h.requireViewer(c, p) {
		return
	}
	slugs, err := h.slugs.ListForPetition(c.Request.Context(), p.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slugs": slugs})
}

type createSlugRequest struct {
	Slug string `json:"slug"`
}

// CreateSlug handles POST /api/v1/petitions/:id/slugs. An empty slug derives
// one from the petition title. Collisions within the owner's namespace are
// 409s; the same slug under a different owner is fine.
func (h *Handlers) CreateSlug(c *gin.Context) {
	p := h.load(c)
	if p == nil {
		return
	}
	if !h.authorize(c, p, models.CanModifyPetitions) {
		return
	}

	var req createSlugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	value := models.Slugify(req.Slug)
	if value == "" {
		value = models.Slugify(p.Title)
	}
	if value == "" {
		respond.BadRequest(c, "Slug must contain letters or digits")
		return
	}

	slug := &models.Slug{PetitionID: p.ID, Slug: value, OrgID: p.OrgID, UserID: p.UserID}
	if err := h.slugs.Create(c.Request.Context(), slug); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"slug": slug})
}

// DeleteSlug handles DELETE /api/v1/petitions/:id/slugs/:slugID. The slug
// must belong to the petition in the path; IDs from other petitions 404.
func (h *Handlers) DeleteSlug(c *gin.Context) {
	p := h.load(c)
	if p == nil {
		return
	}
	if !h.authorize(c, p, models.CanModifyPetitions) {
		return
	}
	if err := h.slugs.Delete(c.Request.Context(), p.ID, c.Param("slugID")); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListForOrganization handles GET /api/v1/organizations/:orgID/petitions
func (h *Handlers) ListForOrganization(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	orgID := c.Param("orgID")

	if err := h.gate.RequireMember(c.Request.Context(), userID, orgID); err != nil {
		respond.Error(c, err)
		return
	}
	petitions, err := h.petitions.ListForOrganization(c.Request.Context(), orgID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"petitions": petitions})
}

// ListMine handles GET /api/v1/me/petitions
func (h *Handlers) ListMine(c *gin.Context) {
	petitions, err := h.petitions.ListForUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"petitions": petitions})
}

// allowedCardExtensions guards the social-card upload
var allowedCardExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// UploadSocialCard handles POST /api/v1/petitions/:id/social-card: a
// multipart image upload stored under the petition's media path. The stored
// URL is written into the social network section's card image field.
func (h *Handlers) UploadSocialCard(c *gin.Context) {
	p := h.load(c)
	if p == nil {
		return
	}
	if !h.authorize(c, p, models.CanModifyPetitions) {
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		respond.BadRequest(c, "Missing image file")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedCardExtensions[ext] {
		respond.BadRequest(c, "Image must be png, jpg, or webp")
		return
	}

	src, err := file.Open()
	if err != nil {
		respond.Error(c, err)
		return
	}
	defer src.Close()

	path := fmt.Sprintf("petitions/%s/card%s", p.ID, ext)
	result, err := h.storage.Upload(c.Request.Context(), path, src)
	if err != nil {
		respond.Error(c, err)
		return
	}

	p.TwitterImage = path
	if err := h.petitions.UpdateSocialNetwork(c.Request.Context(), p); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"path": result.Path, "size": result.Size})
}

// publicView is the petition representation served to visitors. Mail
// settings, the throttle salt, and unpublished drafts never appear here.
type publicView struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Text            string `json:"text"`
	SideText        string `json:"side_text,omitempty"`
	FooterText      string `json:"footer_text,omitempty"`
	FooterLinks     string `json:"footer_links,omitempty"`
	SignFormFooter  string `json:"sign_form_footer,omitempty"`
	SignatureNumber int    `json:"signature_number"`
	HasNewsletter   bool   `json:"has_newsletter"`

	SocialNetwork models.SocialNetworkSettings `json:"social_network"`
	Style         models.StyleSettings         `json:"style"`
}

func publicViewOf(p *models.Petition, confirmed int) publicView {
	return publicView{
		ID:              p.ID,
		Title:           p.Title,
		Text:            p.Text,
		SideText:        p.SideText,
		FooterText:      p.FooterText,
		FooterLinks:     p.FooterLinks,
		SignFormFooter:  p.SignFormFooter,
		SignatureNumber: p.SignatureNumber(confirmed),
		HasNewsletter:   p.HasNewsletter,
		SocialNetwork:   p.SocialNetworkSettings,
		Style:           p.StyleSettings,
	}
}

// PublicForOrganization handles GET /o/:orgSlug/:petSlug. The slug resolves
// only within the named organization's namespace.
func (h *Handlers) PublicForOrganization(c *gin.Context) {
	slug, err := h.slugs.GetForOrganization(c.Request.Context(), c.Param("orgSlug"), c.Param("petSlug"))
	h.publicBySlug(c, slug, err)
}

// PublicForUser handles GET /u/:username/:petSlug
func (h *Handlers) PublicForUser(c *gin.Context) {
	slug, err := h.slugs.GetForUser(c.Request.Context(), c.Param("username"), c.Param("petSlug"))
	h.publicBySlug(c, slug, err)
}

// publicBySlug serves the public view of a slug-resolved petition.
// Unpublished petitions 404 for everyone; drafts are previewed through the
// authenticated management endpoint instead.
func (h *Handlers) publicBySlug(c *gin.Context, slug *models.Slug, err error) {
	ctx := c.Request.Context()

	if err != nil {
		respond.Error(c, err)
		return
	}
	if slug == nil {
		respond.NotFound(c)
		return
	}

	p, err := h.petitions.GetByID(ctx, slug.PetitionID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if p == nil || !p.Published {
		respond.NotFound(c)
		return
	}

	count, err := h.petitions.ConfirmedSignatureCount(ctx, p.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"petition": publicViewOf(p, count)})
}

// publicViews builds the visitor representation of a petition list
func (h *Handlers) publicViews(c *gin.Context, petitions []*models.Petition) ([]publicView, bool) {
	views := make([]publicView, 0, len(petitions))
	for _, p := range petitions {
		count, err := h.petitions.ConfirmedSignatureCount(c.Request.Context(), p.ID)
		if err != nil {
			respond.Error(c, err)
			return nil, false
		}
		views = append(views, publicViewOf(p, count))
	}
	return views, true
}

// OrganizationProfile handles GET /o/:orgSlug, the organization's public
// page listing its published petitions
func (h *Handlers) OrganizationProfile(c *gin.Context) {
	org, err := h.orgs.GetBySlugName(c.Request.Context(), c.Param("orgSlug"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if org == nil {
		respond.NotFound(c)
		return
	}

	petitions, err := h.petitions.ListPublishedForOrganization(c.Request.Context(), org.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	views, ok := h.publicViews(c, petitions)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"organization": gin.H{"name": org.Name, "slug_name": org.SlugName},
		"petitions":    views,
	})
}

// UserProfile handles GET /u/:username
func (h *Handlers) UserProfile(c *gin.Context) {
	user, err := h.users.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if user == nil {
		respond.NotFound(c)
		return
	}

	petitions, err := h.petitions.ListPublishedForUser(c.Request.Context(), user.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	views, ok := h.publicViews(c, petitions)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":      gin.H{"username": user.Username, "display_name": user.DisplayName()},
		"petitions": views,
	})
}

// PublicByID handles GET /petitions/:id, the public detail view. Like the
// slug route, unpublished petitions 404 for everyone.
func (h *Handlers) PublicByID(c *gin.Context) {
	ctx := c.Request.Context()

	p, err := h.petitions.GetByID(ctx, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if p == nil || !p.Published {
		respond.NotFound(c)
		return
	}

	count, err := h.petitions.ConfirmedSignatureCount(ctx, p.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"petition": publicViewOf(p, count)})
}

// ListPublic handles GET /petitions: published petitions, optionally
// filtered by ?q=, paginated with ?limit= and ?offset=.
func (h *Handlers) ListPublic(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	var petitions []*models.Petition
	if q := c.Query("q"); q != "" {
		petitions, err = h.petitions.Search(c.Request.Context(), q, limit, offset)
	} else {
		petitions, err = h.petitions.ListPublished(c.Request.Context(), limit, offset)
	}
	if err != nil {
		respond.Error(c, err)
		return
	}

	views, ok := h.publicViews(c, petitions)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"petitions": views,
		"meta":      gin.H{"limit": limit, "offset": offset},
	})
}
