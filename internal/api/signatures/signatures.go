// Package signatures implements the public signing and confirmation
// endpoints and the authenticated signature management endpoints.
package signatures

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/petition-platform/petition-platform/internal/api/respond"
	"github.com/petition-platform/petition-platform/internal/db/models"
	"github.com/petition-platform/petition-platform/internal/db/repositories"
	"github.com/petition-platform/petition-platform/internal/middleware"
	"github.com/petition-platform/petition-platform/internal/ownership"
	"github.com/petition-platform/petition-platform/internal/signing"
)

// Handlers bundles the signature endpoints and their dependencies
type Handlers struct {
	signatures *repositories.SignatureRepository
	petitions  *repositories.PetitionRepository
	slugs      *repositories.SlugRepository
	gate       *ownership.Gate
	workflow   *signing.Workflow
}

// NewHandlers creates the signature handlers
func NewHandlers(
	signatures *repositories.SignatureRepository,
	petitions *repositories.PetitionRepository,
	slugs *repositories.SlugRepository,
	gate *ownership.Gate,
	workflow *signing.Workflow,
) *Handlers {
	return &Handlers{
		signatures: signatures,
		petitions:  petitions,
		slugs:      slugs,
		gate:       gate,
		workflow:   workflow,
	}
}

// SignForOrganization handles POST /o/:orgSlug/:petSlug/sign. The slug
// resolves only within the named organization's namespace.
func (h *Handlers) SignForOrganization(c *gin.Context) {
	slug, err := h.slugs.GetForOrganization(c.Request.Context(), c.Param("orgSlug"), c.Param("petSlug"))
	h.sign(c, slug, err)
}

// SignForUser handles POST /u/:username/:petSlug/sign
func (h *Handlers) SignForUser(c *gin.Context) {
	slug, err := h.slugs.GetForUser(c.Request.Context(), c.Param("username"), c.Param("petSlug"))
	h.sign(c, slug, err)
}

// sign runs the public signing flow for a slug-resolved petition. The
// originating address comes from the connection, never from the body, and
// only its salted hash reaches the workflow and the database.
func (h *Handlers) sign(c *gin.Context, slug *models.Slug, err error) {
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

	var req signing.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	req.RemoteAddr = c.ClientIP()

	sig, err := h.workflow.Submit(ctx, p, &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	// The confirmation code travels only by email
	c.JSON(http.StatusCreated, gin.H{
		"signature": gin.H{"id": sig.ID, "confirmed": sig.Confirmed},
		"message":   "Check your inbox for the confirmation link",
	})
}

// Confirm handles GET /confirm/:code, the link from the confirmation email.
// Codes redeem exactly once; a second visit reports the earlier confirmation
// instead of flipping anything.
func (h *Handlers) Confirm(c *gin.Context) {
	sig, err := h.workflow.Confirm(c.Request.Context(), c.Param("code"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if sig == nil {
		respond.NotFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": true})
}

// loadAuthorized fetches the petition and runs the gate for cap. Returns nil
// when the response has already been written.
func (h *Handlers) loadAuthorized(c *gin.Context, cap models.Capability) *models.Petition {
	p, err := h.petitions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return nil
	}
	if p == nil {
		respond.NotFound(c)
		return nil
	}
	if _, err := h.gate.Authorize(c.Request.Context(), middleware.CurrentUserID(c), p, cap); err != nil {
		respond.Error(c, err)
		return nil
	}
	return p
}

// List handles GET /api/v1/petitions/:id/signatures. Requires
// can_view_signatures on organization-owned petitions.
func (h *Handlers) List(c *gin.Context) {
	p := h.loadAuthorized(c, models.CanViewSignatures)
	if p == nil {
		return
	}

	sigs, err := h.signatures.ListForPetition(c.Request.Context(), p.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signatures": sigs})
}

// ExportCSV handles GET /api/v1/petitions/:id/signatures.csv, streaming
// signatures in creation order. ?only_confirmed=true restricts the export to
// confirmed signatures.
func (h *Handlers) ExportCSV(c *gin.Context) {
	p := h.loadAuthorized(c, models.CanViewSignatures)
	if p == nil {
		return
	}

	onlyConfirmed, _ := strconv.ParseBool(c.DefaultQuery("only_confirmed", "false"))

	var sigs []*models.Signature
	var err error
	if onlyConfirmed {
		sigs, err = h.signatures.ListConfirmedForPetition(c.Request.Context(), p.ID)
	} else {
		sigs, err = h.signatures.ListForPetition(c.Request.Context(), p.ID)
	}
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="signatures.csv"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"first_name", "last_name", "phone", "email", "subscribed_to_mailinglist", "confirmed"})
	for _, s := range sigs {
		w.Write([]string{
			s.FirstName,
			s.LastName,
			s.Phone,
			s.Email,
			strconv.FormatBool(s.SubscribedToMailinglist),
			strconv.FormatBool(s.Confirmed),
		})
		if w.Error() != nil {
			break
		}
	}
	w.Flush()
	// Headers are already on the wire; a failed write can only be logged,
	// leaving the client with a truncated file it can detect.
	if err := w.Error(); err != nil {
		slog.Error("csv export aborted", "petition_id", p.ID, "error", err)
	}
}

// loadSignature fetches the signature from the path and checks it belongs to
// the petition; mismatches 404 so signature IDs stay unguessable across
// petitions.
func (h *Handlers) loadSignature(c *gin.Context, petitionID string) *models.Signature {
	sig, err := h.signatures.GetByID(c.Request.Context(), c.Param("sigID"))
	if err != nil {
		respond.Error(c, err)
		return nil
	}
	if sig == nil || sig.PetitionID != petitionID {
		respond.NotFound(c)
		return nil
	}
	return sig
}

// Delete handles DELETE /api/v1/petitions/:id/signatures/:sigID. Requires
// can_delete_signatures.
func (h *Handlers) Delete(c *gin.Context) {
	p := h.loadAuthorized(c, models.CanDeleteSignatures)
	if p == nil {
		return
	}
	sig := h.loadSignature(c, p.ID)
	if sig == nil {
		return
	}

	if err := h.signatures.Delete(c.Request.Context(), sig.ID); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResendConfirmation handles POST /api/v1/petitions/:id/signatures/:sigID/resend.
// Requires can_modify_signatures; already-confirmed signatures 409.
func (h *Handlers) ResendConfirmation(c *gin.Context) {
	p := h.loadAuthorized(c, models.CanModifySignatures)
	if p == nil {
		return
	}

	sig, err := h.workflow.ResendConfirmation(c.Request.Context(), p, c.Param("sigID"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if sig == nil {
		respond.NotFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Confirmation email sent"})
}
