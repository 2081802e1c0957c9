package normalizer

import (
	"fmt"
	"math"

	"github.com/raysh454/webscan/internal/model"
)

type unit int

const (
	unitSeconds unit = iota // numeric value in ms, shown in seconds
	unitMillis
	unitless
)

// ExtractPerformanceMetrics projects the report onto the fixed performance
// shape. Missing values default to zero; it never fails.
func ExtractPerformanceMetrics(report *model.RawAuditReport) model.PerformanceMetrics {
	return model.PerformanceMetrics{
		PerformanceScore: CategoryScore(report, model.CategoryPerformance),
		Metrics: model.PerformanceSubMetrics{
			FirstContentfulPaint:   auditMetric(report, "first-contentful-paint", unitSeconds),
			SpeedIndex:             auditMetric(report, "speed-index", unitSeconds),
			LargestContentfulPaint: auditMetric(report, "largest-contentful-paint", unitSeconds),
			TimeToInteractive:      auditMetric(report, "interactive", unitSeconds),
			TotalBlockingTime:      auditMetric(report, "total-blocking-time", unitMillis),
			CumulativeLayoutShift:  auditMetric(report, "cumulative-layout-shift", unitless),
		},
	}
}

// ExtractAccessibilityMetrics summarizes the accessibility allow-list.
func ExtractAccessibilityMetrics(report *model.RawAuditReport, cfg Config) model.AccessibilityMetrics {
	var failed, manual, passed, flagged int
	for _, id := range cfg.AccessibilityAuditIDs {
		a, ok := report.Audit(id)
		if !ok {
			continue
		}
		switch {
		case a.ScoreDisplayMode == model.DisplayModeManual:
			manual++
		case a.Score == nil:
		case *a.Score >= 1:
			passed++
		default:
			failed++
			flagged += len(a.Details.Items)
		}
	}
	return model.AccessibilityMetrics{
		AccessibilityScore: CategoryScore(report, model.CategoryAccessibility),
		Metrics: model.AccessibilitySubMetrics{
			FailedAudits:    countMetric(failed, "audit", "audits"),
			ManualChecks:    countMetric(manual, "check", "checks"),
			PassedAudits:    countMetric(passed, "audit", "audits"),
			FlaggedElements: countMetric(flagged, "element", "elements"),
		},
	}
}

// CategoryScore converts a [0,1] category score to an integer in [0,100].
func CategoryScore(report *model.RawAuditReport, category string) int {
	s := report.CategoryScore(category)
	if s == nil || math.IsNaN(*s) || math.IsInf(*s, 0) {
		return 0
	}
	v := int(math.Round(*s * 100))
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func auditMetric(report *model.RawAuditReport, id string, u unit) model.Metric {
	a, _ := report.Audit(id)
	raw := 0.0
	if a.NumericValue != nil && !math.IsNaN(*a.NumericValue) && !math.IsInf(*a.NumericValue, 0) {
		raw = *a.NumericValue
	}

	m := model.Metric{Value: raw, DisplayValue: a.DisplayValue}
	if u == unitSeconds {
		m.Value = raw / 1000
	}
	if m.DisplayValue == "" {
		m.DisplayValue = synthesizeDisplay(raw, u)
	}
	return m
}

func synthesizeDisplay(raw float64, u unit) string {
	switch u {
	case unitSeconds:
		return fmt.Sprintf("%.1f s", raw/1000)
	case unitMillis:
		return fmt.Sprintf("%.0f ms", raw)
	default:
		return fmt.Sprintf("%.3f", raw)
	}
}

func countMetric(n int, singular, plural string) model.Metric {
	word := plural
	if n == 1 {
		word = singular
	}
	return model.Metric{Value: float64(n), DisplayValue: fmt.Sprintf("%d %s", n, word)}
}
