// Package principal defines the identity produced by the bundled strategies.
package principal

type (
	Principal struct {
		Subject string   `json:"subject"`
		Name    string   `json:"name,omitempty"`
		Roles   []string `json:"roles,omitempty"`
	}
)

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DisplayName returns Name when set, Subject otherwise
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Subject
}
