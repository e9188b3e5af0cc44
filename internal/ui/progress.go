package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/progress"
	"github.com/quantmind-br/snapwiz/internal/queue"
	"github.com/schollz/progressbar/v3"
)

// BatchProgress renders one progress bar per task while a batch runs.
// Bars are drawn only when enabled (an interactive terminal); completion
// lines are always printed.
type BatchProgress struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	total   int
	order   map[string]int
	names   map[string]string
	percent map[string]int
	bars    map[string]*progressbar.ProgressBar
}

// NewBatchProgress creates a renderer for the given tasks, in queue order
func NewBatchProgress(w io.Writer, tasks []queue.TaskSnapshot, enabled bool) *BatchProgress {
	p := &BatchProgress{
		w:       w,
		enabled: enabled,
		order:   make(map[string]int),
		names:   make(map[string]string),
		percent: make(map[string]int),
		bars:    make(map[string]*progressbar.ProgressBar),
	}
	for _, t := range tasks {
		if t.Status != core.StatusPending {
			continue
		}
		p.total++
		p.order[t.ID] = p.total
		p.names[t.ID] = t.Name()
	}
	return p
}

func (p *BatchProgress) newBar(id string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(100,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(p.names[id]),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// description builds "[i/n] name: stage" with the attempt number on retries
func (p *BatchProgress) description(ev progress.Event) string {
	desc := fmt.Sprintf("[%d/%d] %s: %s", p.order[ev.TaskID], p.total, p.names[ev.TaskID], ev.Stage.Label())
	if ev.Attempt > 1 {
		desc += fmt.Sprintf(" (attempt %d)", ev.Attempt)
	}
	return desc
}

// Update applies a progress event
func (p *BatchProgress) Update(ev progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.percent[ev.TaskID] = ev.Percent
	if !p.enabled {
		return
	}
	bar, ok := p.bars[ev.TaskID]
	if !ok {
		bar = p.newBar(ev.TaskID)
		p.bars[ev.TaskID] = bar
	}
	bar.Describe(p.description(ev))
	_ = bar.Set(ev.Percent)
}

// Percent returns the last percentage reported for a task
func (p *BatchProgress) Percent(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent[id]
}

// Done closes the task's bar and prints its outcome
func (p *BatchProgress) Done(s queue.TaskSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if bar, ok := p.bars[s.ID]; ok {
		if s.Status == core.StatusSucceeded {
			_ = bar.Finish()
		} else {
			_ = bar.Clear()
		}
		fmt.Fprintln(p.w)
		delete(p.bars, s.ID)
	}

	switch s.Status {
	case core.StatusSucceeded:
		PrintSuccess(p.w, "%s", s.Message)
	case core.StatusCancelled:
		PrintWarning(p.w, "%s: installation cancelled", s.Name())
	default:
		PrintErrorRecord(p.w, s.Name(), s.Error)
	}
}

// PrintSummary prints the batch totals
func PrintSummary(w io.Writer, r queue.BatchResult) {
	PrintHeader(w, "Summary")
	fmt.Fprintf(w, "%d succeeded, %d failed, %d cancelled (%s)\n",
		r.Succeeded, r.Failed, r.Cancelled, r.Duration.Round(10*time.Millisecond))
}
