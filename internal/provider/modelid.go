package provider

// legacyModelAliases carries forward modelId -> upstream-id fallbacks
// from before the table was configurable, consulted only when explicit
// configuration misses.
var legacyModelAliases = map[string]string{
	"opus":    "claude3opus",
	"sonnets": "old_sonnets",
}

// ResolveModelID maps a client-facing modelId to the upstream ID a
// profile's ModelCosts/AllowedModels are keyed by. configured, when
// non-nil, takes precedence over the legacy table.
func ResolveModelID(modelID string, configured map[string]string) string {
	if configured != nil {
		if v, ok := configured[modelID]; ok {
			return v
		}
	}
	if v, ok := legacyModelAliases[modelID]; ok {
		return v
	}
	return modelID
}
