package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var TransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tpa_state_transitions_total",
		Help: "Workflow state machine transitions by outcome.",
	},
	[]string{"workflow", "transition", "outcome"},
)

var DeferredJobTimeoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tpa_deferred_job_timeouts_total",
		Help: "Deferred jobs that timed out waiting for a correlated reply.",
	},
	[]string{"channel_kind"},
)

func RecordTransition(workflow, transition string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	TransitionsTotal.WithLabelValues(workflow, transition, outcome).Inc()
}

// ChannelKind extracts the workflow family from a correlation channel
// name of the form <workflowKind>_<phase>_<id>.
func ChannelKind(channel string) string {
	if idx := strings.Index(channel, "_"); idx > 0 {
		return channel[:idx]
	}
	return channel
}

func RecordDeferredJobTimeout(channel string) {
	DeferredJobTimeoutsTotal.WithLabelValues(ChannelKind(channel)).Inc()
}
