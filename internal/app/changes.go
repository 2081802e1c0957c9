package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/webscan/internal/model"
)

// ChangeSummary describes how a rescan differs from the result it replaced.
type ChangeSummary struct {
	// PreviousTimestamp is the epoch milliseconds of the replaced scan.
	PreviousTimestamp int64 `json:"previousTimestamp"`

	Added    []string `json:"added"`
	Resolved []string `json:"resolved"`

	PerformanceScoreDelta   int `json:"performanceScoreDelta"`
	AccessibilityScoreDelta int `json:"accessibilityScoreDelta"`
}

// Empty reports whether nothing changed.
func (c *ChangeSummary) Empty() bool {
	return len(c.Added) == 0 && len(c.Resolved) == 0 &&
		c.PerformanceScoreDelta == 0 && c.AccessibilityScoreDelta == 0
}

// SummarizeChanges compares the issues of two scans of the same URL. Issues
// are compared line by line, one line per issue.
func SummarizeChanges(prev, next *model.ScanResult) *ChangeSummary {
	sum := &ChangeSummary{
		PreviousTimestamp: prev.Timestamp,
		Added:             []string{},
		Resolved:          []string{},
	}
	sum.PerformanceScoreDelta = next.Results.Performance.Metrics.PerformanceScore -
		prev.Results.Performance.Metrics.PerformanceScore
	sum.AccessibilityScoreDelta = next.Results.Accessibility.Metrics.AccessibilityScore -
		prev.Results.Accessibility.Metrics.AccessibilityScore

	dmp := diffmatchpatch.New()
	base, head, lines := dmp.DiffLinesToChars(issueLines(prev), issueLines(next))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(base, head, false), lines)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			sum.Added = append(sum.Added, splitLines(d.Text)...)
		case diffmatchpatch.DiffDelete:
			sum.Resolved = append(sum.Resolved, splitLines(d.Text)...)
		}
	}
	return sum
}

// issueLines renders every issue of r as "category type: title", sorted so
// that reordering alone is not reported as a change.
func issueLines(r *model.ScanResult) string {
	var lines []string
	add := func(category string, issues []model.Issue) {
		for _, is := range issues {
			lines = append(lines, fmt.Sprintf("%s %s: %s", category, is.Type, is.Title))
		}
	}
	add(model.CategoryPerformance, r.Results.Performance.Errors)
	add(model.CategoryPerformance, r.Results.Performance.Alerts)
	add(model.CategoryAccessibility, r.Results.Accessibility.Errors)
	add(model.CategoryAccessibility, r.Results.Accessibility.Alerts)
	sort.Strings(lines)

	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func splitLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
