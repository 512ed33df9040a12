// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/parastep/parastep/internal/dispatch"
	"github.com/parastep/parastep/internal/harness"
	"github.com/parastep/parastep/internal/step"
)

type (
	batchReport struct {
		Results   []resultReport `json:"results"`
		Succeeded bool           `json:"succeeded"`
	}

	resultReport struct {
		ID         string          `json:"id"`
		Type       step.Type       `json:"type"`
		Status     dispatch.Status `json:"status"`
		Lane       dispatch.Lane   `json:"lane,omitempty"`
		DurationMS int64           `json:"duration_ms"`
		Outcome    step.Outcome    `json:"outcome"`
	}
)

// renderBatch prints one block per invocation in submission order, followed by
// a summary line.
func renderBatch(w io.Writer, batch *dispatch.Batch, elapsed time.Duration) {
	failedCategories := make(map[step.Category]bool)

	for _, r := range batch.Results {
		id := CmdStyle.Render(r.Invocation.ID)
		kind := SubtitleStyle.Render(fmt.Sprintf("(%s)", r.Invocation.Type))

		switch {
		case r.Status == dispatch.StatusSkipped:
			fmt.Fprintf(w, "%s %s %s %s\n", WarningStyle.Render("-"), id, kind, WarningStyle.Render("skipped"))
			continue
		case r.Outcome.Success:
			fmt.Fprintf(w, "%s %s %s %s\n", SuccessStyle.Render("✓"), id, kind, VerboseStyle.Render(formatDuration(r.Duration)))
		default:
			fmt.Fprintf(w, "%s %s %s %s\n", ErrorStyle.Render("✗"), id, kind, VerboseStyle.Render(formatDuration(r.Duration)))
		}
		if r.Lane == dispatch.LaneExclusive {
			fmt.Fprintf(w, "    %s\n", WarningStyle.Render("ran in the exclusive lane"))
		}

		renderDiagnostics(w, r.Outcome.Diagnostics)
		if r.Outcome.Category != step.CategoryNone {
			failedCategories[r.Outcome.Category] = true
			fmt.Fprintf(w, "    %s %s\n", ErrorStyle.Render(r.Outcome.Category.String()+":"), r.Outcome.Error)
		}
		renderOutputs(w, r.Outcome.Outputs)
	}

	succeeded := 0
	for _, r := range batch.Results {
		if r.Status == dispatch.StatusCompleted && r.Outcome.Success {
			succeeded++
		}
	}
	summary := fmt.Sprintf("%d invocations: %d succeeded, %d failed, %d skipped in %s",
		len(batch.Results), succeeded, len(batch.Failed()), batch.Skipped(), formatDuration(elapsed))
	fmt.Fprintln(w)
	if batch.Succeeded() {
		fmt.Fprintln(w, SuccessStyle.Render(summary))
	} else {
		fmt.Fprintln(w, ErrorStyle.Render(summary))
	}

	for _, c := range step.Categories() {
		if failedCategories[c] {
			fmt.Fprintln(w, SubtitleStyle.Render(fmt.Sprintf("Run 'parastep explain %s' for details.", c)))
		}
	}
	if batch.Skipped() > 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("Run 'parastep explain skipped' for details."))
	}
}

func renderDiagnostics(w io.Writer, diags []step.Diagnostic) {
	for _, d := range diags {
		label := d.Severity.String() + ":"
		switch d.Severity {
		case step.SeverityError:
			label = ErrorStyle.Render(label)
		case step.SeverityWarning:
			label = WarningStyle.Render(label)
		default:
			label = VerboseStyle.Render(label)
		}
		fmt.Fprintf(w, "    %s %s\n", label, d.Message)
	}
}

func renderOutputs(w io.Writer, outputs step.Outputs) {
	for _, name := range slices.Sorted(maps.Keys(outputs)) {
		items := outputs[name]
		ids := make([]string, len(items))
		for i, it := range items {
			ids[i] = it.Identity
		}
		fmt.Fprintf(w, "    %s %s\n", SubtitleStyle.Render(name+":"), strings.Join(ids, ", "))
	}
}

// writeBatchJSON prints the batch as a single indented JSON document.
func writeBatchJSON(w io.Writer, batch *dispatch.Batch) error {
	report := batchReport{Results: make([]resultReport, len(batch.Results)), Succeeded: batch.Succeeded()}
	for i, r := range batch.Results {
		report.Results[i] = resultReport{
			ID:         r.Invocation.ID,
			Type:       r.Invocation.Type,
			Status:     r.Status,
			Lane:       r.Lane,
			DurationMS: r.Duration.Milliseconds(),
			Outcome:    r.Outcome,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// renderParity prints one line per parity record and the diff or problems of
// the ones that failed. It returns the number of failed records.
func renderParity(w io.Writer, records []harness.ParityRecord) int {
	failed := 0
	for _, r := range records {
		if r.Passed() {
			fmt.Fprintf(w, "%s %s %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(r.Label), SubtitleStyle.Render(fmt.Sprintf("(%s)", r.Type)))
			continue
		}
		failed++
		fmt.Fprintf(w, "%s %s %s\n", ErrorStyle.Render("✗"), CmdStyle.Render(r.Label), SubtitleStyle.Render(fmt.Sprintf("(%s)", r.Type)))
		for _, p := range r.Problems {
			fmt.Fprintf(w, "    %s\n", WarningStyle.Render(p))
		}
		if r.Diff != "" {
			fmt.Fprintf(w, "    %s\n", VerboseStyle.Render("diff (-baseline +candidate):"))
			for line := range strings.SplitSeq(strings.TrimRight(r.Diff, "\n"), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
	return failed
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(time.Millisecond).String()
}
