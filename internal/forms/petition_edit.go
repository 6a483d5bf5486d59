package forms

import (
	"context"
	"fmt"
	"net/url"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

// ContentForm is the content section of a petition.
type ContentForm struct {
	Title          string `json:"title"`
	Text           string `json:"text"`
	SideText       string `json:"side_text"`
	FooterText     string `json:"footer_text"`
	FooterLinks    string `json:"footer_links"`
	SignFormFooter string `json:"sign_form_footer"`
}

// Validate checks the content section.
func (f *ContentForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.Title == "" {
		errs["title"] = "title is required"
	}
	return errs
}

// Apply writes the form onto the petition's content fields.
func (f *ContentForm) Apply(p *models.Petition) {
	p.Title = f.Title
	p.Text = f.Text
	p.SideText = f.SideText
	p.FooterText = f.FooterText
	p.FooterLinks = f.FooterLinks
	p.SignFormFooter = f.SignFormFooter
}

// EmailForm is the email section, shared by petitions and templates.
type EmailForm struct {
	UseCustomEmailSettings        FlexBool `json:"use_custom_email_settings"`
	ConfirmationEmailSender       string   `json:"confirmation_email_sender"`
	ConfirmationEmailSMTPHost     string   `json:"confirmation_email_smtp_host"`
	ConfirmationEmailSMTPPort     int      `json:"confirmation_email_smtp_port"`
	ConfirmationEmailSMTPUser     string   `json:"confirmation_email_smtp_user"`
	ConfirmationEmailSMTPPassword string   `json:"confirmation_email_smtp_password"`
	ConfirmationEmailSMTPTLS      FlexBool `json:"confirmation_email_smtp_tls"`
	ConfirmationEmailSMTPSTARTTLS FlexBool `json:"confirmation_email_smtp_starttls"`
}

// Validate checks the email section. The SMTP fields only matter when custom
// settings are switched on.
func (f *EmailForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.UseCustomEmailSettings {
		if f.ConfirmationEmailSender == "" {
			errs["confirmation_email_sender"] = "sender address is required"
		} else if !ValidEmail(f.ConfirmationEmailSender) {
			errs["confirmation_email_sender"] = "invalid email address"
		}
		if f.ConfirmationEmailSMTPHost == "" {
			errs["confirmation_email_smtp_host"] = "SMTP host is required"
		}
		if f.ConfirmationEmailSMTPPort < 1 || f.ConfirmationEmailSMTPPort > 65535 {
			errs["confirmation_email_smtp_port"] = "invalid port"
		}
		if f.ConfirmationEmailSMTPTLS && f.ConfirmationEmailSMTPSTARTTLS {
			errs["confirmation_email_smtp_starttls"] = "TLS and STARTTLS are mutually exclusive"
		}
	}
	return errs
}

func (f *EmailForm) settings() models.EmailSettings {
	return models.EmailSettings{
		UseCustomEmailSettings:        bool(f.UseCustomEmailSettings),
		ConfirmationEmailSender:       f.ConfirmationEmailSender,
		ConfirmationEmailSMTPHost:     f.ConfirmationEmailSMTPHost,
		ConfirmationEmailSMTPPort:     f.ConfirmationEmailSMTPPort,
		ConfirmationEmailSMTPUser:     f.ConfirmationEmailSMTPUser,
		ConfirmationEmailSMTPPassword: f.ConfirmationEmailSMTPPassword,
		ConfirmationEmailSMTPTLS:      bool(f.ConfirmationEmailSMTPTLS),
		ConfirmationEmailSMTPSTARTTLS: bool(f.ConfirmationEmailSMTPSTARTTLS),
	}
}

// SocialNetworkForm is the social-network section, shared by petitions and
// templates.
type SocialNetworkForm struct {
	TwitterDescription string `json:"twitter_description"`
	TwitterImage       string `json:"twitter_image"`
	OrgTwitterHandle   string `json:"org_twitter_handle"`
}

// Validate checks the social-network section.
func (f *SocialNetworkForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if len(f.TwitterDescription) > 280 {
		errs["twitter_description"] = "description is too long"
	}
	return errs
}

func (f *SocialNetworkForm) settings() models.SocialNetworkSettings {
	return models.SocialNetworkSettings{
		TwitterDescription: f.TwitterDescription,
		TwitterImage:       f.TwitterImage,
		OrgTwitterHandle:   f.OrgTwitterHandle,
	}
}

// NewsletterForm is the newsletter section, shared by petitions and
// templates.
type NewsletterForm struct {
	HasNewsletter                      FlexBool `json:"has_newsletter"`
	NewsletterSubscribeMethod          string   `json:"newsletter_subscribe_method"`
	NewsletterSubscribeHTTPData        string   `json:"newsletter_subscribe_http_data"`
	NewsletterSubscribeHTTPMailfield   string   `json:"newsletter_subscribe_http_mailfield"`
	NewsletterSubscribeHTTPURL         string   `json:"newsletter_subscribe_http_url"`
	NewsletterSubscribeMailSubject     string   `json:"newsletter_subscribe_mail_subject"`
	NewsletterSubscribeMailFrom        string   `json:"newsletter_subscribe_mail_from"`
	NewsletterSubscribeMailTo          string   `json:"newsletter_subscribe_mail_to"`
	NewsletterSubscribeMailSMTPHost    string   `json:"newsletter_subscribe_mail_smtp_host"`
	NewsletterSubscribeMailSMTPPort    int      `json:"newsletter_subscribe_mail_smtp_port"`
	NewsletterSubscribeMailSMTPUser    string   `json:"newsletter_subscribe_mail_smtp_user"`
	NewsletterSubscribeMailSMTPPass    string   `json:"newsletter_subscribe_mail_smtp_password"`
	NewsletterSubscribeMailSMTPTLS     FlexBool `json:"newsletter_subscribe_mail_smtp_tls"`
	NewsletterSubscribeMailSMTPStartTL FlexBool `json:"newsletter_subscribe_mail_smtp_starttls"`
}

// Validate checks the newsletter section. Delivery settings are only
// validated for the selected method, and only when the newsletter is on.
func (f *NewsletterForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if !f.HasNewsletter {
		return errs
	}
	switch f.NewsletterSubscribeMethod {
	case models.NewsletterMethodHTTP:
		if f.NewsletterSubscribeHTTPURL == "" {
			errs["newsletter_subscribe_http_url"] = "subscription URL is required"
		} else if u, err := url.Parse(f.NewsletterSubscribeHTTPURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs["newsletter_subscribe_http_url"] = "invalid URL"
		}
	case models.NewsletterMethodMail:
		if f.NewsletterSubscribeMailTo == "" {
			errs["newsletter_subscribe_mail_to"] = "recipient address is required"
		} else if !ValidEmail(f.NewsletterSubscribeMailTo) {
			errs["newsletter_subscribe_mail_to"] = "invalid email address"
		}
	default:
		errs["newsletter_subscribe_method"] = "unknown subscription method"
	}
	return errs
}

func (f *NewsletterForm) settings() models.NewsletterSettings {
	return models.NewsletterSettings{
		HasNewsletter:                      bool(f.HasNewsletter),
		NewsletterSubscribeMethod:          f.NewsletterSubscribeMethod,
		NewsletterSubscribeHTTPData:        f.NewsletterSubscribeHTTPData,
		NewsletterSubscribeHTTPMailfield:   f.NewsletterSubscribeHTTPMailfield,
		NewsletterSubscribeHTTPURL:         f.NewsletterSubscribeHTTPURL,
		NewsletterSubscribeMailSubject:     f.NewsletterSubscribeMailSubject,
		NewsletterSubscribeMailFrom:        f.NewsletterSubscribeMailFrom,
		NewsletterSubscribeMailTo:          f.NewsletterSubscribeMailTo,
		NewsletterSubscribeMailSMTPHost:    f.NewsletterSubscribeMailSMTPHost,
		NewsletterSubscribeMailSMTPPort:    f.NewsletterSubscribeMailSMTPPort,
		NewsletterSubscribeMailSMTPUser:    f.NewsletterSubscribeMailSMTPUser,
		NewsletterSubscribeMailSMTPPass:    f.NewsletterSubscribeMailSMTPPass,
		NewsletterSubscribeMailSMTPTLS:     bool(f.NewsletterSubscribeMailSMTPTLS),
		NewsletterSubscribeMailSMTPStartTL: bool(f.NewsletterSubscribeMailSMTPStartTL),
	}
}

// StyleForm is the style section, petitions only. Colors are normalized to
// canonical "#rrggbb" form before validation.
type StyleForm struct {
	BgColor                 string `json:"bgcolor"`
	LinearGradientDirection string `json:"linear_gradient_direction"`
	GradientFrom            string `json:"gradient_from"`
	GradientTo              string `json:"gradient_to"`
}

// Validate normalizes the color fields in place and reports the ones that are
// not hex colors.
func (f *StyleForm) Validate() FieldErrors {
	errs := FieldErrors{}
	fields := []struct {
		name  string
		value *string
	}{
		{"bgcolor", &f.BgColor},
		{"gradient_from", &f.GradientFrom},
		{"gradient_to", &f.GradientTo},
	}
	for _, fl := range fields {
		normalized, ok := NormalizeColor(*fl.value)
		if !ok {
			errs[fl.name] = "invalid color"
			continue
		}
		*fl.value = normalized
	}
	return errs
}

// Apply writes the form onto the petition's style fields.
func (f *StyleForm) Apply(p *models.Petition) {
	p.StyleSettings = models.StyleSettings{
		BgColor:                 f.BgColor,
		LinearGradientDirection: f.LinearGradientDirection,
		GradientFrom:            f.GradientFrom,
		GradientTo:              f.GradientTo,
	}
}

// PetitionEditRequest is the body of a petition edit. Each *_form_submitted
// marker selects one section for writing; unmarked sections are ignored
// entirely, whatever their payload says.
type PetitionEditRequest struct {
	ContentFormSubmitted       FlexBool `json:"content_form_submitted"`
	EmailFormSubmitted         FlexBool `json:"email_form_submitted"`
	SocialNetworkFormSubmitted FlexBool `json:"social_network_form_submitted"`
	NewsletterFormSubmitted    FlexBool `json:"newsletter_form_submitted"`
	StyleFormSubmitted         FlexBool `json:"style_form_submitted"`

	Content       *ContentForm       `json:"content,omitempty"`
	Email         *EmailForm         `json:"email,omitempty"`
	SocialNetwork *SocialNetworkForm `json:"social_network,omitempty"`
	Newsletter    *NewsletterForm    `json:"newsletter,omitempty"`
	Style         *StyleForm         `json:"style,omitempty"`
}

// PetitionSectionStore persists one section at a time. Each method writes a
// disjoint column set.
type PetitionSectionStore interface {
	UpdateContent(ctx context.Context, p *models.Petition) error
	UpdateEmailSettings(ctx context.Context, p *models.Petition) error
	UpdateSocialNetwork(ctx context.Context, p *models.Petition) error
	UpdateNewsletter(ctx context.Context, p *models.Petition) error
	UpdateStyle(ctx context.Context, p *models.Petition) error
}

// EditPetition processes every marked section of the request against the
// loaded petition: validate, apply to the in-memory copy, persist just that
// section. A section that fails validation is reported in its result and the
// stored values stay untouched; later sections are still processed. A
// storage error aborts the remaining sections.
func EditPetition(ctx context.Context, store PetitionSectionStore, p *models.Petition, req *PetitionEditRequest) ([]SectionResult, error) {
	results := make([]SectionResult, 0, 5)

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
			req.Content.Apply(p)
			return store.UpdateContent(ctx, p)
		})
		if err != nil {
			return results, err
		}
	}
	if req.EmailFormSubmitted {
		err := process(SectionEmail, req.Email, req.Email == nil, func() error {
			p.EmailSettings = req.Email.settings()
			return store.UpdateEmailSettings(ctx, p)
		})
		if err != nil {
			return results, err
		}
	}
	if req.SocialNetworkFormSubmitted {
		err := process(SectionSocialNetwork, req.SocialNetwork, req.SocialNetwork == nil, func() error {
			p.SocialNetworkSettings = req.SocialNetwork.settings()
			return store.UpdateSocialNetwork(ctx, p)
		})
		if err != nil {
			return results, err
		}
	}
	if req.NewsletterFormSubmitted {
		err := process(SectionNewsletter, req.Newsletter, req.Newsletter == nil, func() error {
			p.NewsletterSettings = req.Newsletter.settings()
			return store.UpdateNewsletter(ctx, p)
		})
		if err != nil {
			return results, err
		}
	}
	if req.StyleFormSubmitted {
		err := process(SectionStyle, req.Style, req.Style == nil, func() error {
			req.Style.Apply(p)
			return store.UpdateStyle(ctx, p)
		})
		if err != nil {
			return results, err
		}
	}

	return results, nil
}
