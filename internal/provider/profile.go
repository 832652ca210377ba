// Package provider implements profile eligibility filtering and
// priority/tie-break selection. A profile is one credentialed route to an
// upstream provider.
package provider

// Profile is one configured route to a provider, ranked by priority and
// subject to model and user-group filters.
type Profile struct {
	ID                string
	ProviderType      string
	Priority          int
	AllowedModels     []string
	ModelCosts        map[string]float64
	AllowedUserGroups []string
	// EligibilityExpr is an optional CEL boolean expression evaluated with
	// variables "model" and "userGroup", for profiles that need a richer
	// rule than the static allow-lists above.
	EligibilityExpr string
}

func (p Profile) hasAllowedModels() bool { return len(p.AllowedModels) > 0 }
func (p Profile) hasModelCosts() bool    { return len(p.ModelCosts) > 0 }

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
