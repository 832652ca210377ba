package inference

import "github.com/hrygo/loomchat/internal/provider"

// DefaultCost prices a completed Usage against a profile's configured
// ModelCosts (dollars per 1,000 tokens), returning whole milli-cents so
// the metrics_added payload never carries a fractional unit. Profiles
// with no cost entry for the model price at zero rather than failing the
// generation; balance enforcement is a policy decision above this layer.
func DefaultCost(p provider.Profile, model string, usage Usage) (int64, string) {
	rate, ok := p.ModelCosts[model]
	if !ok || rate <= 0 {
		return 0, "credit"
	}
	dollars := rate * float64(usage.TotalTokens) / 1000.0
	return int64(dollars * 100_000), "credit"
}
