package inference

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/loomchat/internal/provider"
)

func TestDefaultCostPricesByModelCosts(t *testing.T) {
	p := provider.Profile{ModelCosts: map[string]float64{"sonnet": 3.0}}
	cost, currency := DefaultCost(p, "sonnet", Usage{TotalTokens: 2000})
	require.Equal(t, "credit", currency)
	require.Equal(t, int64(600_000), cost)
}

func TestDefaultCostZeroWhenModelUnpriced(t *testing.T) {
	p := provider.Profile{ModelCosts: map[string]float64{"sonnet": 3.0}}
	cost, currency := DefaultCost(p, "haiku", Usage{TotalTokens: 2000})
	require.Equal(t, int64(0), cost)
	require.Equal(t, "credit", currency)
}
