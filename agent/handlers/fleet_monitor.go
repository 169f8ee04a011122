package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	contractx "github.com/piyachat/chainflow/agent/contract"
	statex "github.com/piyachat/chainflow/agent/state"
	refdatax "github.com/piyachat/chainflow/refdata"
)

// fleetDetailLimit caps how many per-vehicle blocks go into a summary.
const fleetDetailLimit = 5

// FleetMonitor answers vehicle status and maintenance questions. When the
// request asks for a summary, status, or overview it prepends a rendered
// fleet digest to the request so the model answers from concrete data.
type FleetMonitor struct {
	completer    contractx.Completer
	systemPrompt string
}

func NewFleetMonitor(completer contractx.Completer, systemPrompt string) *FleetMonitor {
	return &FleetMonitor{completer: completer, systemPrompt: systemPrompt}
}

func (f *FleetMonitor) Process(ctx context.Context, st *statex.State) (*statex.State, error) {
	sctx := st.Context

	input := st.Input
	lowered := strings.ToLower(input)
	if strings.Contains(lowered, "summary") ||
		strings.Contains(lowered, "status") ||
		strings.Contains(lowered, "overview") {
		input = fmt.Sprintf("%s\n\nHere's the current fleet data:\n%s",
			input, fleetSummary(sctx.RefData.Vehicles))
	}

	userContent := fmt.Sprintf(`User role: %s
User request: %s

Available data:
- Vehicles: %d vehicles in fleet
- Maintenance records: Available for all vehicles
- Real-time locations: GPS tracking active
- Driver logs: Performance metrics available

Please respond with fleet status or relevant information.`,
		sctx.Role, input, len(sctx.RefData.Vehicles),
	)

	content, err := f.completer.Complete(ctx, f.systemPrompt, sctx.RecentHistory(), userContent)
	if err != nil {
		return nil, fmt.Errorf("%w: fleet monitor completion: %v", contractx.ErrModelInvoke, err)
	}

	return finishOrHandOff(st, content), nil
}

func fleetSummary(vehicles []refdatax.Vehicle) string {
	if len(vehicles) == 0 {
		return "No vehicle data available"
	}

	statusCounts := map[string]int{}
	typeCounts := map[string]int{}
	maintenanceNeeded := 0
	for _, v := range vehicles {
		statusCounts[v.Status]++
		typeCounts[v.Type]++
		if len(v.Maintenance.Issues) > 0 {
			maintenanceNeeded++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fleet Summary:\n")
	fmt.Fprintf(&b, "- Total vehicles: %d\n", len(vehicles))
	fmt.Fprintf(&b, "- Status breakdown: %s\n", countLine(statusCounts))
	fmt.Fprintf(&b, "- Vehicle types: %s\n", countLine(typeCounts))
	fmt.Fprintf(&b, "- Vehicles needing maintenance: %d\n", maintenanceNeeded)
	fmt.Fprintf(&b, "\nIndividual vehicle details:\n")

	for i, v := range vehicles {
		if i >= fleetDetailLimit {
			fmt.Fprintf(&b, "- ... and %d more vehicles\n", len(vehicles)-fleetDetailLimit)
			break
		}
		issues := "None"
		if len(v.Maintenance.Issues) > 0 {
			issues = strings.Join(v.Maintenance.Issues, ", ")
		}
		fmt.Fprintf(&b, "- %s (%s):\n  Driver: %s\n  Status: %s\n  Location: %s\n  Issues: %s\n",
			v.VehicleID, v.Type, v.DriverName, v.Status, v.CurrentLocation.Address, issues)
	}
	return b.String()
}

// countLine renders a count map in a stable order so summaries are
// reproducible across runs.
func countLine(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}
