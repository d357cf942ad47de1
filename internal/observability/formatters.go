// Package observability provides formatted, coloured output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/jonathan/apply-agent/internal/autopilot"
	"github.com/jonathan/apply-agent/internal/fieldsync"
	"github.com/jonathan/apply-agent/internal/remote"
	"github.com/jonathan/apply-agent/internal/tailoring"
	"github.com/jonathan/apply-agent/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
	stepColor = color.New(color.FgCyan)
)

// Printer handles formatted output for the CLI. It is safe for concurrent use;
// each line or box is written as a unit.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintAutopilotEvent writes one progress line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintAutopilotEvent(ev autopilot.ProgressEvent) {
	prefix := fmt.Sprintf("[%s]", ev.Phase)
	if ev.Step > 0 {
		prefix = fmt.Sprintf("[step %d/%d]", ev.Step, ev.MaxSteps)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	stepColor.Fprint(p.out, prefix)
	fmt.Fprint(p.out, " ")
	switch {
	case ev.Warning:
		warnColor.Fprintln(p.out, "⚠ "+ev.Message)
	case ev.Phase == autopilot.PhaseSubmitted:
		okColor.Fprintln(p.out, "✓ "+ev.Message)
	default:
		fmt.Fprintln(p.out, ev.Message)
	}
}

// PrintAutopilotResult summarises a finished run. err is the error Run returned.
func (p *Printer) PrintAutopilotResult(res *autopilot.Result, err error) {
	if res == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Outcome:  %s\n", res.Outcome))
	sb.WriteString(fmt.Sprintf("Steps:    %d\n", res.Steps))
	if res.JD != nil {
		sb.WriteString(fmt.Sprintf("Job:      %s\n", res.JD.Title))
	}
	if len(res.Actions) > 0 {
		actions := make([]string, len(res.Actions))
		for i, a := range res.Actions {
			actions[i] = string(a)
		}
		sb.WriteString(fmt.Sprintf("Actions:  %s\n", strings.Join(actions, " → ")))
	}

	if len(res.Unresolved) > 0 {
		sb.WriteString("\nNeeds an answer:\n")
		count := min(len(res.Unresolved), maxItemsToShow)
		for i := 0; i < count; i++ {
			f := res.Unresolved[i]
			label := f.Label
			if label == "" {
				label = f.Key
			}
			sb.WriteString(fmt.Sprintf("  • %s\n", label))
		}
		if len(res.Unresolved) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(res.Unresolved)-maxItemsToShow))
		}
	}

	if res.Resume != nil {
		sb.WriteString(fmt.Sprintf("\nResume:   %s\n", gateLabel(res.Resume)))
	}
	if res.TailoringErr != nil {
		sb.WriteString(fmt.Sprintf("\nTailoring failed: %v\n", res.TailoringErr))
	}
	if err != nil {
		sb.WriteString(fmt.Sprintf("\nError: %v\n", err))
	}

	p.printBox("AUTOPILOT RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTailoringEvent writes one progress line for the convergence loop.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintTailoringEvent(ev tailoring.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stepColor.Fprintf(p.out, "[%s]", ev.Stage)
	fmt.Fprint(p.out, " ")
	if ev.Passed != nil && !*ev.Passed {
		warnColor.Fprintln(p.out, ev.Message)
		return
	}
	fmt.Fprintln(p.out, ev.Message)
}

// PrintTailoredResume outputs scores and the reviewer verdict of a tailored resume.
func (p *Printer) PrintTailoredResume(r *tailoring.TailoredResume) {
	if r == nil {
		return
	}

	var sb strings.Builder
	if r.JobTitle != "" {
		sb.WriteString(fmt.Sprintf("Job:      %s\n", r.JobTitle))
	}
	d := r.Delta()
	sb.WriteString(fmt.Sprintf("ATS:      %d → %d (%+d)\n", r.ScoresBefore.ATS, r.ScoresAfter.ATS, d.ATS))
	sb.WriteString(fmt.Sprintf("Match:    %d → %d (%+d)\n", r.ScoresBefore.Match, r.ScoresAfter.Match, d.Match))
	sb.WriteString(fmt.Sprintf("Reviews:  %d service, %d extra\n", r.ServiceIterations, r.ReviewRounds))
	sb.WriteString(fmt.Sprintf("Reviewer: %s\n", gateLabel(r)))
	if reason := r.GateReason(); reason != "" {
		sb.WriteString(fmt.Sprintf("  %s\n", reason))
	}

	files := availableFiles(r.Files)
	if len(files) > 0 {
		sb.WriteString(fmt.Sprintf("Files:    %s\n", strings.Join(files, ", ")))
	}

	if n := len(r.ReviewLog); n > 0 {
		sb.WriteString("\nReview log:\n")
		start := max(0, n-maxItemsToShow)
		for _, e := range r.ReviewLog[start:] {
			mark := "✗"
			if e.Passed {
				mark = "✓"
			}
			line := fmt.Sprintf("  %s round %d", mark, e.Iteration)
			if e.Feedback != "" {
				line += ": " + e.Feedback
			}
			sb.WriteString(line + "\n")
		}
	}

	p.printBox("TAILORED RESUME", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintMergeSummary outputs the result of a field sync operation.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintMergeSummary(res *fieldsync.Result) {
	if res == nil {
		return
	}
	if res.Skipped {
		p.mu.Lock()
		defer p.mu.Unlock()
		dimColor.Fprintf(p.out, "Field sync is disabled; %s skipped\n", res.Direction)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Direction: %s\n", res.Direction))
	sb.WriteString(fmt.Sprintf("Added:     %d\n", res.Summary.Added))
	sb.WriteString(fmt.Sprintf("Updated:   %d\n", res.Summary.Updated))
	sb.WriteString(fmt.Sprintf("Unchanged: %d\n", res.Summary.Unchanged))
	sb.WriteString(fmt.Sprintf("Total:     %d\n", res.Total))
	if res.Persisted {
		sb.WriteString("Saved locally")
	} else {
		sb.WriteString("Local copy already up to date")
	}

	p.printBox("LEARNED FIELDS", sb.String())
}

// PrintLearnedFields lists learned field entries in key order.
func (p *Printer) PrintLearnedFields(fields types.LearnedFields) {
	if len(fields) == 0 {
		p.printBox("LEARNED FIELDS", "No learned fields")
		return
	}

	var sb strings.Builder
	for _, k := range fields.Keys() {
		e := fields[k]
		sb.WriteString(fmt.Sprintf("%s = %s\n", k, e.Value))
	}
	p.printBox(fmt.Sprintf("LEARNED FIELDS (%d)", len(fields)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintHistory outputs history entries, newest first.
func (p *Printer) PrintHistory(entries []types.HistoryEntry) {
	if len(entries) == 0 {
		p.printBox("HISTORY", "No history yet")
		return
	}

	var sb strings.Builder
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-10s %s", e.At.Local().Format("01-02 15:04"), e.Kind, e.Title)
		if e.Detail != "" {
			line += " (" + e.Detail + ")"
		}
		sb.WriteString(line + "\n")
	}
	p.printBox("HISTORY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintHealth reports the reachability of the tailoring service.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintHealth(baseURL string, h *remote.HealthResponse, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		errColor.Fprintf(p.out, "✗ %s unavailable: %v\n", baseURL, err)
		return
	}
	okColor.Fprintf(p.out, "✓ %s is healthy", baseURL)
	if h != nil && h.Version != "" {
		fmt.Fprintf(p.out, " (version %s)", h.Version)
	}
	fmt.Fprintln(p.out)
}

func gateLabel(r *tailoring.TailoredResume) string {
	if r.ReviewerPassed() {
		return "PASSED"
	}
	return "BLOCKED"
}

func availableFiles(f remote.Files) []string {
	var out []string
	if f.PDF != "" {
		out = append(out, "pdf")
	}
	if f.DOCX != "" {
		out = append(out, "docx")
	}
	return append(out, "txt")
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
