package models

// Capability names one organization-scoped action a member may be granted.
type Capability string

// The twelve capability flags carried by every Permission record.
const (
	CanAddMembers        Capability = "can_add_members"
	CanRemoveMembers     Capability = "can_remove_members"
	CanCreatePetitions   Capability = "can_create_petitions"
	CanModifyPetitions   Capability = "can_modify_petitions"
	CanDeletePetitions   Capability = "can_delete_petitions"
	CanCreateTemplates   Capability = "can_create_templates"
	CanModifyTemplates   Capability = "can_modify_templates"
	CanDeleteTemplates   Capability = "can_delete_templates"
	CanViewSignatures    Capability = "can_view_signatures"
	CanModifySignatures  Capability = "can_modify_signatures"
	CanDeleteSignatures  Capability = "can_delete_signatures"
	CanModifyPermissions Capability = "can_modify_permissions"
)

// Capabilities lists every flag in a stable order (form field order).
var Capabilities = []Capability{
	CanAddMembers,
	CanRemoveMembers,
	CanCreatePetitions,
	CanModifyPetitions,
	CanDeletePetitions,
	CanCreateTemplates,
	CanModifyTemplates,
	CanDeleteTemplates,
	CanViewSignatures,
	CanModifySignatures,
	CanDeleteSignatures,
	CanModifyPermissions,
}

// Permission is the per-(organization, user) capability set. Exactly one
// record exists per membership.
type Permission struct {
	OrganizationID       string `json:"organization_id"`
	UserID               string `json:"user_id"`
	CanAddMembers        bool   `json:"can_add_members"`
	CanRemoveMembers     bool   `json:"can_remove_members"`
	CanCreatePetitions   bool   `json:"can_create_petitions"`
	CanModifyPetitions   bool   `json:"can_modify_petitions"`
	CanDeletePetitions   bool   `json:"can_delete_petitions"`
	CanCreateTemplates   bool   `json:"can_create_templates"`
	CanModifyTemplates   bool   `json:"can_modify_templates"`
	CanDeleteTemplates   bool   `json:"can_delete_templates"`
	CanViewSignatures    bool   `json:"can_view_signatures"`
	CanModifySignatures  bool   `json:"can_modify_signatures"`
	CanDeleteSignatures  bool   `json:"can_delete_signatures"`
	CanModifyPermissions bool   `json:"can_modify_permissions"`
}

// Has reports whether the named capability flag is set.
func (p *Permission) Has(c Capability) bool {
	switch c {
	case CanAddMembers:
		return p.CanAddMembers
	case CanRemoveMembers:
		return p.CanRemoveMembers
	case CanCreatePetitions:
		return p.CanCreatePetitions
	case CanModifyPetitions:
		return p.CanModifyPetitions
	case CanDeletePetitions:
		return p.CanDeletePetitions
	case CanCreateTemplates:
		return p.CanCreateTemplates
	case CanModifyTemplates:
		return p.CanModifyTemplates
	case CanDeleteTemplates:
		return p.CanDeleteTemplates
	case CanViewSignatures:
		return p.CanViewSignatures
	case CanModifySignatures:
		return p.CanModifySignatures
	case CanDeleteSignatures:
		return p.CanDeleteSignatures
	case CanModifyPermissions:
		return p.CanModifyPermissions
	}
	return false
}

// Set sets the named capability flag.
func (p *Permission) Set(c Capability, v bool) {
	switch c {
	case CanAddMembers:
		p.CanAddMembers = v
	case CanRemoveMembers:
		p.CanRemoveMembers = v
	case CanCreatePetitions:
		p.CanCreatePetitions = v
	case CanModifyPetitions:
		p.CanModifyPetitions = v
	case CanDeletePetitions:
		p.CanDeletePetitions = v
	case CanCreateTemplates:
		p.CanCreateTemplates = v
	case CanModifyTemplates:
		p.CanModifyTemplates = v
	case CanDeleteTemplates:
		p.CanDeleteTemplates = v
	case CanViewSignatures:
		p.CanViewSignatures = v
	case CanModifySignatures:
		p.CanModifySignatures = v
	case CanDeleteSignatures:
		p.CanDeleteSignatures = v
	case CanModifyPermissions:
		p.CanModifyPermissions = v
	}
}

// SetAll sets every capability flag to v. Used when the creator of a new
// organization receives the full permission set.
func (p *Permission) SetAll(v bool) {
	for _, c := range Capabilities {
		p.Set(c, v)
	}
}
