package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRecordGenerationExportsCounters(t *testing.T) {
	e := New(Config{Registry: prometheus.NewRegistry()})

	e.RecordGeneration("p-a", "sonnet", 100, 50, 250, "credit", 750*time.Millisecond, false)
	e.RecordGeneration("p-a", "sonnet", 10, 0, 0, "credit", 10*time.Millisecond, true)

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	require.Contains(t, body, `loomchat_inference_tokens_total{model="sonnet",profile="p-a",token_kind="prompt"} 110`)
	require.Contains(t, body, `loomchat_inference_cost_milli_cents_total{currency="credit",profile="p-a"} 250`)
	require.Contains(t, body, `loomchat_inference_generations_total{model="sonnet",outcome="failed",profile="p-a"} 1`)
	require.Contains(t, body, `loomchat_inference_generations_total{model="sonnet",outcome="ok",profile="p-a"} 1`)
}

func TestRecordNotEligibleAndBusyReject(t *testing.T) {
	e := New(Config{Registry: prometheus.NewRegistry()})
	e.RecordNotEligible("anthropic")
	e.RecordNotEligible("anthropic")
	e.RecordBusyReject("conv1")
	e.SetActiveRooms(3)

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	require.Contains(t, body, `loomchat_provider_not_eligible_total{provider_type="anthropic"} 2`)
	require.Contains(t, body, `loomchat_room_generation_busy_rejects_total{conversation_id="conv1"} 1`)
	require.True(t, strings.Contains(body, "loomchat_room_active_rooms 3"))
}
