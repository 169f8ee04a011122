package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/coordinator.txt
	coordinatorRaw string

	//go:embed template/route_optimizer.txt
	routeOptimizerRaw string

	//go:embed template/fleet_monitor.txt
	fleetMonitorRaw string

	//go:embed template/data_retriever.txt
	dataRetrieverRaw string

	//go:embed template/notification.txt
	notificationRaw string

	//go:embed template/fallback.txt
	fallbackRaw string
)

// PromptSet holds the system prompt for each capability.
type PromptSet struct {
	Coordinator    string
	RouteOptimizer string
	FleetMonitor   string
	DataRetriever  string
	Notification   string

	// Fallback is a printf template taking the caller role, used for the
	// dispatcher's context-light degraded completion.
	Fallback string
}

// LoadPromptSet returns the embedded prompts, trimmed. Safe to call
// concurrently.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Coordinator:    strings.TrimSpace(coordinatorRaw),
		RouteOptimizer: strings.TrimSpace(routeOptimizerRaw),
		FleetMonitor:   strings.TrimSpace(fleetMonitorRaw),
		DataRetriever:  strings.TrimSpace(dataRetrieverRaw),
		Notification:   strings.TrimSpace(notificationRaw),
		Fallback:       strings.TrimSpace(fallbackRaw),
	}
}
