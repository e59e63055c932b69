package benchmark

import (
	"RC/configs"
	"RC/utils"
	"fmt"
	"strings"
	"time"
)

// Report is what the driver prints at the end of a run.
type Report struct {
	Mode    string        `json:"mode"`
	Token   string        `json:"token"`
	Journal string        `json:"journal,omitempty"`
	Summary utils.Summary `json:"summary"`
	Items   []*utils.Info `json:"items,omitempty"`
}

// NewReport rebuilds a report from journaled results, keeping the per-item
// entries for the JSON form.
func NewReport(token string, infos []*utils.Info) *Report {
	strategy := ""
	if len(infos) > 0 {
		strategy = infos[0].Strategy
	}
	st := utils.NewStat(strategy)
	for _, v := range infos {
		st.Append(v)
	}
	return &Report{
		Mode:    configs.StrategyName(strategy),
		Token:   token,
		Summary: st.Summary(),
		Items:   st.Infos(),
	}
}

func seconds(us int64) float64 {
	return float64(us) / float64(time.Second/time.Microsecond)
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s mode estimated time: %.3f seconds\n", r.Mode, seconds(r.Summary.Estimated))
	fmt.Fprintf(&b, "%s mode actual time: %.3f seconds\n", r.Mode, seconds(r.Summary.Actual))
	fmt.Fprintf(&b, "items: %d, conflicts: %d, contended locks: %d\n", r.Summary.Items, r.Summary.Conflicts, r.Summary.Contended)
	fmt.Fprintf(&b, "p50: %v, p90: %v, p99: %v\n", r.Summary.P50, r.Summary.P90, r.Summary.P99)
	return b.String()
}

func (r *Report) JSON() string {
	return configs.JToString(r)
}
