package orchestrator

import (
	"context"
	"time"

	"github.com/yairfalse/towercmp/internal/report"
	"github.com/yairfalse/towercmp/pkg/resource"
)

// RunResult contains the results of one comparison run.
type RunResult struct {
	StartTime time.Time                  `json:"start_time"`
	EndTime   time.Time                  `json:"end_time"`
	Duration  time.Duration              `json:"duration"`
	Compared  []resource.Type            `json:"compared"`
	Failed    []resource.Type            `json:"failed,omitempty"`
	Findings  map[report.FindingKind]int `json:"findings"`
	Errors    []string                   `json:"errors,omitempty"`
	Success   bool                       `json:"success"`
}

// TotalFindings returns the number of findings of all kinds.
func (r *RunResult) TotalFindings() int {
	n := 0
	for _, c := range r.Findings {
		n += c
	}
	return n
}

// Recorder receives run metrics.
type Recorder interface {
	RecordResourceCount(ctx context.Context, source string, t resource.Type, count int)
	RecordFindings(ctx context.Context, t resource.Type, kind string, count int)
}

type nopRecorder struct{}

func (nopRecorder) RecordResourceCount(context.Context, string, resource.Type, int) {}
func (nopRecorder) RecordFindings(context.Context, resource.Type, string, int)      {}
