package normalizer

// Config drives issue classification and output bounds.
type Config struct {
	ErrorScoreThreshold  float64
	AlertScoreThreshold  float64
	MaxErrorsPerCategory int
	MaxAlertsPerCategory int

	// Allow-lists of audit ids per category, in output order.
	PerformanceAuditIDs   []string
	AccessibilityAuditIDs []string

	// CustomChecks enables the DOM heuristics over the rendered page.
	CustomChecks bool
}

// DefaultConfig returns the reference thresholds, caps and allow-lists.
func DefaultConfig() Config {
	return Config{
		ErrorScoreThreshold:  0.5,
		AlertScoreThreshold:  0.9,
		MaxErrorsPerCategory: 3,
		MaxAlertsPerCategory: 5,
		PerformanceAuditIDs: []string{
			"first-contentful-paint",
			"largest-contentful-paint",
			"speed-index",
			"interactive",
			"total-blocking-time",
			"cumulative-layout-shift",
			"server-response-time",
			"render-blocking-resources",
			"uses-long-cache-ttl",
			"unused-javascript",
			"unused-css-rules",
			"uses-optimized-images",
			"uses-text-compression",
			"dom-size",
		},
		AccessibilityAuditIDs: []string{
			"image-alt",
			"color-contrast",
			"link-name",
			"button-name",
			"label",
			"document-title",
			"html-has-lang",
			"meta-viewport",
			"heading-order",
			"aria-hidden-body",
			"aria-allowed-attr",
			"aria-required-attr",
			"duplicate-id-aria",
			"frame-title",
			"list",
			"tabindex",
		},
		CustomChecks: true,
	}
}

// AuditIDs returns the allow-list for category.
func (c Config) AuditIDs(category string) []string {
	switch category {
	case "performance":
		return c.PerformanceAuditIDs
	case "accessibility":
		return c.AccessibilityAuditIDs
	}
	return nil
}
