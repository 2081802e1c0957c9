package model

// Issue types.
const (
	IssueError = "error"
	IssueAlert = "alert"
)

// Scan statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Issue is a normalized, user-facing failing or manual-review audit.
type Issue struct {
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Suggestion   string   `json:"suggestion"`
	Score        *float64 `json:"score"`
	DisplayValue *string  `json:"displayValue"`
	Element      string   `json:"element"`
}

// Metric is a single named measurement with its human-readable form.
type Metric struct {
	Value        float64 `json:"value"`
	DisplayValue string  `json:"displayValue"`
}

type PerformanceMetrics struct {
	PerformanceScore int                   `json:"performanceScore"`
	Metrics          PerformanceSubMetrics `json:"metrics"`
}

type PerformanceSubMetrics struct {
	FirstContentfulPaint   Metric `json:"firstContentfulPaint"`
	SpeedIndex             Metric `json:"speedIndex"`
	LargestContentfulPaint Metric `json:"largestContentfulPaint"`
	TimeToInteractive      Metric `json:"timeToInteractive"`
	TotalBlockingTime      Metric `json:"totalBlockingTime"`
	CumulativeLayoutShift  Metric `json:"cumulativeLayoutShift"`
}

type AccessibilityMetrics struct {
	AccessibilityScore int                     `json:"accessibilityScore"`
	Metrics            AccessibilitySubMetrics `json:"metrics"`
}

type AccessibilitySubMetrics struct {
	FailedAudits    Metric `json:"failedAudits"`
	ManualChecks    Metric `json:"manualChecks"`
	PassedAudits    Metric `json:"passedAudits"`
	FlaggedElements Metric `json:"flaggedElements"`
}

// CategoryResult holds one category's issues and metrics. The totals always
// mirror the list lengths; build values with NewCategoryResult.
type CategoryResult[M any] struct {
	Errors      []Issue `json:"errors"`
	Alerts      []Issue `json:"alerts"`
	TotalErrors int     `json:"totalErrors"`
	TotalAlerts int     `json:"totalAlerts"`
	Metrics     M       `json:"metrics"`
}

// NewCategoryResult splits issues by type and derives the totals.
func NewCategoryResult[M any](issues []Issue, metrics M) CategoryResult[M] {
	res := CategoryResult[M]{
		Errors:  []Issue{},
		Alerts:  []Issue{},
		Metrics: metrics,
	}
	for _, is := range issues {
		switch is.Type {
		case IssueError:
			res.Errors = append(res.Errors, is)
		case IssueAlert:
			res.Alerts = append(res.Alerts, is)
		}
	}
	res.recount()
	return res
}

func (c *CategoryResult[M]) recount() {
	if c.Errors == nil {
		c.Errors = []Issue{}
	}
	if c.Alerts == nil {
		c.Alerts = []Issue{}
	}
	c.TotalErrors = len(c.Errors)
	c.TotalAlerts = len(c.Alerts)
}

type ScanResults struct {
	Performance   CategoryResult[PerformanceMetrics]   `json:"performance"`
	Accessibility CategoryResult[AccessibilityMetrics] `json:"accessibility"`
}

// ScanResult is the final output of a scan.
type ScanResult struct {
	Status      string      `json:"status"`
	URL         string      `json:"url"`
	OriginalURL string      `json:"originalUrl"`
	Results     ScanResults `json:"results"`
	// Timestamp is epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Recount re-derives every total from its issue list.
func (r *ScanResult) Recount() {
	r.Results.Performance.recount()
	r.Results.Accessibility.recount()
}
