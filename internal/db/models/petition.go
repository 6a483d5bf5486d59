package models

import "time"

// Newsletter subscription methods. The http method POSTs the signer's email
// to a configured endpoint; the mail method sends a subscription email to a
// list manager address.
const (
	NewsletterMethodHTTP = "http"
	NewsletterMethodMail = "mail"
)

// EmailSettings is the email section of a petition or template: whether to
// use custom SMTP settings for confirmation mail, and the settings themselves.
type EmailSettings struct {
	UseCustomEmailSettings        bool   `json:"use_custom_email_settings" db:"use_custom_email_settings"`
	ConfirmationEmailSender       string `json:"confirmation_email_sender" db:"confirmation_email_sender"`
	ConfirmationEmailSMTPHost     string `json:"confirmation_email_smtp_host" db:"confirmation_email_smtp_host"`
	ConfirmationEmailSMTPPort     int    `json:"confirmation_email_smtp_port" db:"confirmation_email_smtp_port"`
	ConfirmationEmailSMTPUser     string `json:"confirmation_email_smtp_user" db:"confirmation_email_smtp_user"`
	ConfirmationEmailSMTPPassword string `json:"confirmation_email_smtp_password" db:"confirmation_email_smtp_password"`
	ConfirmationEmailSMTPTLS      bool   `json:"confirmation_email_smtp_tls" db:"confirmation_email_smtp_tls"`
	ConfirmationEmailSMTPSTARTTLS bool   `json:"confirmation_email_smtp_starttls" db:"confirmation_email_smtp_starttls"`
}

// SocialNetworkSettings is the social-network section: the description,
// card image reference, and handle used when the petition is shared.
// TwitterImage holds a storage reference path, never raw image bytes.
type SocialNetworkSettings struct {
	TwitterDescription string `json:"twitter_description" db:"twitter_description"`
	TwitterImage       string `json:"twitter_image" db:"twitter_image"`
	OrgTwitterHandle   string `json:"org_twitter_handle" db:"org_twitter_handle"`
}

// NewsletterSettings is the newsletter section: whether signers may opt in,
// and how subscriptions are delivered (HTTP POST or mail).
type NewsletterSettings struct {
	HasNewsletter                      bool   `json:"has_newsletter" db:"has_newsletter"`
	NewsletterSubscribeMethod          string `json:"newsletter_subscribe_method" db:"newsletter_subscribe_method"`
	NewsletterSubscribeHTTPData        string `json:"newsletter_subscribe_http_data" db:"newsletter_subscribe_http_data"`
	NewsletterSubscribeHTTPMailfield   string `json:"newsletter_subscribe_http_mailfield" db:"newsletter_subscribe_http_mailfield"`
	NewsletterSubscribeHTTPURL         string `json:"newsletter_subscribe_http_url" db:"newsletter_subscribe_http_url"`
	NewsletterSubscribeMailSubject     string `json:"newsletter_subscribe_mail_subject" db:"newsletter_subscribe_mail_subject"`
	NewsletterSubscribeMailFrom        string `json:"newsletter_subscribe_mail_from" db:"newsletter_subscribe_mail_from"`
	NewsletterSubscribeMailTo          string `json:"newsletter_subscribe_mail_to" db:"newsletter_subscribe_mail_to"`
	NewsletterSubscribeMailSMTPHost    string `json:"newsletter_subscribe_mail_smtp_host" db:"newsletter_subscribe_mail_smtp_host"`
	NewsletterSubscribeMailSMTPPort    int    `json:"newsletter_subscribe_mail_smtp_port" db:"newsletter_subscribe_mail_smtp_port"`
	NewsletterSubscribeMailSMTPUser    string `json:"newsletter_subscribe_mail_smtp_user" db:"newsletter_subscribe_mail_smtp_user"`
	NewsletterSubscribeMailSMTPPass    string `json:"newsletter_subscribe_mail_smtp_password" db:"newsletter_subscribe_mail_smtp_password"`
	NewsletterSubscribeMailSMTPTLS     bool   `json:"newsletter_subscribe_mail_smtp_tls" db:"newsletter_subscribe_mail_smtp_tls"`
	NewsletterSubscribeMailSMTPStartTL bool   `json:"newsletter_subscribe_mail_smtp_starttls" db:"newsletter_subscribe_mail_smtp_starttls"`
}

// StyleSettings is the style section, petitions only. Colors are stored in
// canonical "#rrggbb" form.
type StyleSettings struct {
	BgColor                 string `json:"bgcolor" db:"bgcolor"`
	LinearGradientDirection string `json:"linear_gradient_direction" db:"linear_gradient_direction"`
	GradientFrom            string `json:"gradient_from" db:"gradient_from"`
	GradientTo              string `json:"gradient_to" db:"gradient_to"`
}

// Petition is the central editable entity. It is owned by exactly one
// organization or one individual account; the single-owner invariant is
// backed by a CHECK constraint and enforced again by ownership.Resolve.
type Petition struct {
	ID string `json:"id" db:"id"`

	// content section
	Title          string `json:"title" db:"title"`
	Text           string `json:"text" db:"text"`
	SideText       string `json:"side_text" db:"side_text"`
	FooterText     string `json:"footer_text" db:"footer_text"`
	FooterLinks    string `json:"footer_links" db:"footer_links"`
	SignFormFooter string `json:"sign_form_footer" db:"sign_form_footer"`

	EmailSettings
	SocialNetworkSettings
	NewsletterSettings
	StyleSettings

	// publication state
	Published              bool `json:"published" db:"published"`
	PaperSignatures        int  `json:"paper_signatures" db:"paper_signatures"`
	PaperSignaturesEnabled bool `json:"paper_signatures_enabled" db:"paper_signatures_enabled"`

	// Salt is assigned once at creation and immutable; it keys the hashed
	// originating address used by the signature throttle.
	Salt string `json:"-" db:"salt"`

	OrgID  *string `json:"org_id,omitempty" db:"org_id"`
	UserID *string `json:"user_id,omitempty" db:"user_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OwnerIDs returns the (organization, account) owner links for ownership
// resolution.
func (p *Petition) OwnerIDs() (orgID, userID *string) {
	return p.OrgID, p.UserID
}

// SignatureNumber returns the public signature count: confirmed digital
// signatures plus the paper count when paper signatures are enabled.
func (p *Petition) SignatureNumber(confirmedDigital int) int {
	if p.PaperSignaturesEnabled {
		return confirmedDigital + p.PaperSignatures
	}
	return confirmedDigital
}

// PrepopulateFromTemplate copies every template-configurable field onto the
// petition. Called at creation time when a template is selected; the
// petition's title, ownership, salt, and publication state are untouched.
func (p *Petition) PrepopulateFromTemplate(t *PetitionTemplate) {
	p.Text = t.Text
	p.SideText = t.SideText
	p.FooterText = t.FooterText
	p.FooterLinks = t.FooterLinks
	p.SignFormFooter = t.SignFormFooter
	p.EmailSettings = t.EmailSettings
	p.SocialNetworkSettings = t.SocialNetworkSettings
	p.NewsletterSettings = t.NewsletterSettings
}
