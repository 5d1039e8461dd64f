package output

import (
	"encoding/json"
	"os"

	"github.com/dando385/vm-integrity-monitor/internal/monitor"
)

// jsonLatency is the machine-readable shape of a dispatch-latency summary.
type jsonLatency struct {
	P50 string `json:"p50"`
	P95 string `json:"p95"`
	P99 string `json:"p99"`
	Max string `json:"max"`
}

// jsonStatus is the machine-readable shape of a single guest's status.
type jsonStatus struct {
	Name    string              `json:"name"`
	State   string              `json:"state"`
	Static  []string            `json:"static"`
	Dynamic []string            `json:"dynamic"`
	Clients map[string][]string `json:"clients"`
	Latency jsonLatency         `json:"latency"`
}

func toJSONStatus(st monitor.Status) jsonStatus {
	return jsonStatus{
		Name:    st.Name,
		State:   st.State.String(),
		Static:  orEmpty(st.Static),
		Dynamic: orEmpty(st.Dynamic),
		Clients: st.Clients,
		Latency: jsonLatency{
			P50: st.Latency.P50.String(),
			P95: st.Latency.P95.String(),
			P99: st.Latency.P99.String(),
			Max: st.Latency.Max.String(),
		},
	}
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// RenderStatusJSON writes a single guest's status as JSON to stdout.
func RenderStatusJSON(st monitor.Status) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(toJSONStatus(st))
}

// RenderFleetJSON writes every managed guest's status as a JSON array.
func RenderFleetJSON(statuses map[string]monitor.Status) error {
	out := make([]jsonStatus, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, toJSONStatus(st))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
