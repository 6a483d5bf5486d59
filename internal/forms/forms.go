// Package forms implements the multi-section edit surface for petitions and
// templates. An edit request carries one marker per section it intends to
// write; each marked section is validated and persisted independently, so an
// invalid section never blocks a valid one submitted in the same request.
package forms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Section names one editable block of a petition or template.
type Section string

const (
	SectionContent       Section = "content"
	SectionEmail         Section = "email"
	SectionSocialNetwork Section = "social_network"
	SectionNewsletter    Section = "newsletter"
	SectionStyle         Section = "style"
)

// FieldErrors maps field name to a human-readable validation message.
type FieldErrors map[string]string

// SectionResult reports the outcome of one submitted section: either the
// section was applied, or Errors lists what was wrong and the stored values
// were left untouched.
type SectionResult struct {
	Section Section     `json:"section"`
	Applied bool        `json:"applied"`
	Errors  FieldErrors `json:"errors,omitempty"`
}

// FlexBool is a boolean that also accepts the string forms browsers and
// legacy clients send for checkboxes: "on", "off", "true", "false", "1",
// "0", and the empty string.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*b = true
		return nil
	case "false", "null":
		*b = false
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid boolean value %s", data)
	}
	switch strings.ToLower(s) {
	case "on", "true", "1":
		*b = true
	case "", "off", "false", "0":
		*b = false
	default:
		return fmt.Errorf("invalid boolean value %q", s)
	}
	return nil
}

func (b FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

var (
	hexColorRe = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// NormalizeColor canonicalizes a color value to lowercase "#rrggbb" form,
// adding the missing leading hash and expanding "#rgb" shorthand. Empty
// input stays empty; a value that is not a hex color is reported as invalid.
func NormalizeColor(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", true
	}
	m := hexColorRe.FindStringSubmatch(v)
	if m == nil {
		return "", false
	}
	hex := strings.ToLower(m[1])
	if len(hex) == 3 {
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	}
	return "#" + hex, true
}

// ValidEmail reports whether v looks like a deliverable address. The check
// is shape-only; actual deliverability is proven by the confirmation email.
func ValidEmail(v string) bool {
	return emailRe.MatchString(v)
}
