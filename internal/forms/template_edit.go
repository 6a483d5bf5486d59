package forms

import (
	"context"
	"fmt"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

// TemplateContentForm is the content section of a template. Templates carry a
// name instead of a title.
type TemplateContentForm struct {
	Name           string `json:"name"`
	Text           string `json:"text"`
	SideText       string `json:"side_text"`
	FooterText     string `json:"footer_text"`
	FooterLinks    string `json:"footer_links"`
	SignFormFooter string `json:"sign_form_footer"`
}

// Validate checks the template content section.
func (f *TemplateContentForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.Name == "" {
		errs["name"] = "name is required"
	}
	return errs
}

// Apply writes the form onto the template's content fields.
func (f *TemplateContentForm) Apply(t *models.PetitionTemplate) {
	t.Name = f.Name
	t.Text = f.Text
	t.SideText = f.SideText
	t.FooterText = f.FooterText
	t.FooterLinks = f.FooterLinks
	t.SignFormFooter = f.SignFormFooter
}

// TemplateEditRequest is the body of a template edit. Templates have no style
// section.
type TemplateEditRequest struct {
	ContentFormSubmitted       FlexBool `json:"content_form_submitted"`
	EmailFormSubmitted         FlexBool `json:"email_form_submitted"`
	SocialNetworkFormSubmitted FlexBool `json:"social_network_form_submitted"`
	NewsletterFormSubmitted    FlexBool `json:"newsletter_form_submitted"`

	Content       *TemplateContentForm `json:"content,omitempty"`
	Email         *EmailForm           `json:"email,omitempty"`
	SocialNetwork *SocialNetworkForm   `json:"social_network,omitempty"`
	Newsletter    *NewsletterForm      `json:"newsletter,omitempty"`
}

// TemplateSectionStore persists one template section at a time.
type TemplateSectionStore interface {
	UpdateContent(ctx context.Context, t *models.PetitionTemplate) error
	UpdateEmailSettings(ctx context.Context, t *models.PetitionTemplate) error
	UpdateSocialNetwork(ctx context.Context, t *models.PetitionTemplate) error
	UpdateNewsletter(ctx context.Context, t *models.PetitionTemplate) error
}

// EditTemplate is the template counterpart of EditPetition: every marked
// section is validated and persisted independently.
func EditTemplate(ctx context.Context, store TemplateSectionStore, t *models.PetitionTemplate, req *TemplateEditRequest) ([]SectionResult, error) {
	results := make([]SectionResult, 0, 4)

	process := func(section Section, form interface{ Validate() FieldErrors }, missing bool, apply func() error) error {
		if missing {
			results = append(results, SectionResult{
				Section: section,
				Errors:  FieldErrors{"form": "section marked as submitted but payload missing"},
			})
			return nil
		}
		if errs := form.Validate(); len(errs) > 0 {
			results = append(results, SectionResult{Section: section, Errors: errs})
			return nil
		}
		if err := apply(); err != nil {
			return fmt.Errorf("failed to save %s section: %w", section, err)
		}
		results = append(results, SectionResult{Section: section, Applied: true})
		return nil
	}

	if req.ContentFormSubmitted {
		err := process(SectionContent, req.Content, req.Content == nil, func() error {
			req.Content.Apply(t)
			return store.UpdateContent(ctx, t)
		})
		if err != nil {
			return results, err
		}
	}
	if req.EmailFormSubmitted {
		err := process(SectionEmail, req.Email, req.Email == nil, func() error {
			t.EmailSettings = req.Email.settings()
			return store.UpdateEmailSettings(ctx, t)
		})
		if err != nil {
			return results, err
		}
	}
	if req.SocialNetworkFormSubmitted {
		err := process(SectionSocialNetwork, req.SocialNetwork, req.SocialNetwork == nil, func() error {
			t.SocialNetworkSettings = req.SocialNetwork.settings()
			return store.UpdateSocialNetwork(ctx, t)
		})
		if err != nil {
			return results, err
		}
	}
	if req.NewsletterFormSubmitted {
		err := process(SectionNewsletter, req.Newsletter, req.Newsletter == nil, func() error {
			t.NewsletterSettings = req.Newsletter.settings()
			return store.UpdateNewsletter(ctx, t)
		})
		if err != nil {
			return results, err
		}
	}

	return results, nil
}
