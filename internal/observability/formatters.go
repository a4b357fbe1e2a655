// Package observability provides the service logger and formatted report
// output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/hiring-workflow/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// histogramWidth is the longest bar in the rating histogram
	histogramWidth = 30
)

// Printer writes human-readable reports
type Printer struct {
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
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintStatistics outputs a feedback statistics report.
func (p *Printer) PrintStatistics(stats *types.FeedbackStatistics) {
	if stats == nil {
		return
	}

	s := stats.Summary
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total feedback:  %d\n", s.TotalFeedback))
	sb.WriteString(fmt.Sprintf("Approved:        %d\n", s.ApprovedCount))
	sb.WriteString(fmt.Sprintf("Rejected:        %d\n", s.RejectedCount))
	sb.WriteString(fmt.Sprintf("Average rating:  %.2f\n", s.AvgRating))
	sb.WriteString(fmt.Sprintf("Approval rate:   %.1f%%", s.ApprovalRate))
	p.printBox("FEEDBACK SUMMARY", sb.String())

	if s.TotalFeedback == 0 {
		return
	}

	p.printBox("RATING DISTRIBUTION", histogram(stats.RatingDistribution))

	if len(stats.StageRatings) > 0 {
		sb.Reset()
		for i, r := range stats.StageRatings {
			sb.WriteString(fmt.Sprintf("%d. %-26s %5.2f  (%d)", r.Stage, r.StageName, r.AvgRating, r.Count))
			if i < len(stats.StageRatings)-1 {
				sb.WriteString("\n")
			}
		}
		p.printBox("AVERAGE RATING BY STAGE", sb.String())
	}

	if len(stats.TeamMemberPerformance) > 0 {
		sb.Reset()
		count := min(len(stats.TeamMemberPerformance), maxItemsToShow)
		for i := 0; i < count; i++ {
			e := stats.TeamMemberPerformance[i]
			sb.WriteString(fmt.Sprintf("%-20s %3d reviews  avg %.2f\n", e.Username, e.TotalFeedback, e.AvgRating))
			sb.WriteString(fmt.Sprintf("  ✓ %d approved  ✗ %d rejected", e.Approved, e.Rejected))
			if i < count-1 {
				sb.WriteString("\n")
			}
		}
		if len(stats.TeamMemberPerformance) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("\n... and %d more evaluators", len(stats.TeamMemberPerformance)-maxItemsToShow))
		}
		p.printBox("TOP EVALUATORS", sb.String())
	}
}

func histogram(buckets []types.RatingBucket) string {
	peak := 0
	for _, b := range buckets {
		peak = max(peak, b.Count)
	}
	lines := make([]string, 0, len(buckets))
	for _, b := range buckets {
		bar := 0
		if peak > 0 {
			bar = b.Count * histogramWidth / peak
		}
		if b.Count > 0 && bar == 0 {
			bar = 1
		}
		lines = append(lines, fmt.Sprintf("%2d │%s %d", b.Rating, strings.Repeat("█", bar), b.Count))
	}
	return strings.Join(lines, "\n")
}

// PrintSweepResult reports a one-shot deadline sweep.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintSweepResult(sent int) {
	if sent == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO DEADLINE WARNINGS DUE")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}
	p.printBox("DEADLINE SWEEP", fmt.Sprintf("Sent %d deadline warning(s)", sent))
}
