package normalizer

import "github.com/raysh454/webscan/internal/model"

// BuildPerformance normalizes the performance category of a report.
func BuildPerformance(report *model.RawAuditReport, cfg Config) model.CategoryResult[model.PerformanceMetrics] {
	return model.NewCategoryResult(
		Normalize(report, model.CategoryPerformance, cfg),
		ExtractPerformanceMetrics(report),
	)
}

// BuildAccessibility normalizes the accessibility category of a report,
// including the DOM checks when enabled.
func BuildAccessibility(report *model.RawAuditReport, cfg Config) model.CategoryResult[model.AccessibilityMetrics] {
	return model.NewCategoryResult(
		Normalize(report, model.CategoryAccessibility, cfg),
		ExtractAccessibilityMetrics(report, cfg),
	)
}

// BuildResults normalizes both categories of a report.
func BuildResults(report *model.RawAuditReport, cfg Config) model.ScanResults {
	return model.ScanResults{
		Performance:   BuildPerformance(report, cfg),
		Accessibility: BuildAccessibility(report, cfg),
	}
}
