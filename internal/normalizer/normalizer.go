package normalizer

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/raysh454/webscan/internal/model"
)

const (
	maxElementRunes = 200
	ellipsis        = "..."
	noElement       = "N/A"

	genericSuggestion = "Review the issue and update the relevant HTML/CSS."
)

// suggestions are remediation hints for frequently failing audits.
var suggestions = map[string]string{
	"image-alt":                 `Add a descriptive "alt" attribute to the <img> tag (e.g., alt="description").`,
	"color-contrast":            "Adjust CSS to increase contrast (e.g., change text color to #000).",
	"link-name":                 `Add meaningful text inside the <a> tag (e.g., <a href="#">Learn More</a>).`,
	"button-name":               `Add text or an "aria-label" to the <button> (e.g., <button aria-label="Submit">).`,
	"render-blocking-resources": `Defer non-critical CSS/JS (e.g., add "defer" to <script>).`,
	"document-title":            "Add a <title> tag to the <head> (e.g., <title>My Website</title>).",
	"label":                     `Associate a <label for="..."> or an "aria-label" with every form control.`,
	"html-has-lang":             `Add a "lang" attribute to the <html> element (e.g., <html lang="en">).`,
	"uses-long-cache-ttl":       "Serve static assets with a long Cache-Control max-age.",
	"uses-text-compression":     "Enable gzip or brotli compression for text responses.",
}

// performanceDescriptions replace Lighthouse's own text for the headline
// performance audits.
var performanceDescriptions = map[string]string{
	"first-contentful-paint":    "First Contentful Paint marks the time at which the first text or image is painted. [Learn more about the First Contentful Paint metric](https://developer.chrome.com/docs/lighthouse/performance/first-contentful-paint/).",
	"speed-index":               "Speed Index shows how quickly the contents of a page are visibly populated. [Learn more about the Speed Index metric](https://developer.chrome.com/docs/lighthouse/performance/speed-index/).",
	"largest-contentful-paint":  "Largest Contentful Paint marks the time at which the largest text or image is painted. [Learn more about the Largest Contentful Paint metric](https://developer.chrome.com/docs/lighthouse/performance/lighthouse-largest-contentful-paint/).",
	"interactive":               "The maximum potential First Input Delay that your users could experience is the duration of the longest task. [Learn more about the Maximum Potential First Input Delay metric](https://developer.chrome.com/docs/lighthouse/performance/lighthouse-max-potential-fid/).",
	"total-blocking-time":       "Total Blocking Time measures the total time during which tasks block the main thread. [Learn more](https://web.dev/tbt/).",
	"cumulative-layout-shift":   "Cumulative Layout Shift measures the movement of visible elements within the viewport. [Learn more about the Cumulative Layout Shift metric](https://web.dev/articles/cls).",
	"time-to-first-byte":        "Time to First Byte measures the time from navigation to the first byte received. [Learn more](https://web.dev/time-to-first-byte/).",
	"first-meaningful-paint":    "First Meaningful Paint measures when the primary content is visible. [Learn more](https://developer.chrome.com/docs/lighthouse/performance/first-meaningful-paint/).",
	"render-blocking-resources": "Render-blocking resources delay the first paint of your page. [Learn more](https://web.dev/render-blocking-resources/).",
	"uses-long-cache-ttl":       "A long cache lifetime can speed up repeat visits to your page. [Learn more](https://web.dev/uses-long-cache-ttl/).",
}

var fallbackDescriptions = map[string]string{
	model.CategoryPerformance:   "Performance issue detected.",
	model.CategoryAccessibility: "Accessibility issue detected.",
}

// Normalize converts the audits of one category into classified issues,
// errors first, capped per type. Identical input yields identical output.
func Normalize(report *model.RawAuditReport, category string, cfg Config) []model.Issue {
	var issues []model.Issue
	for _, id := range cfg.AuditIDs(category) {
		audit, ok := report.Audit(id)
		if !ok {
			continue
		}
		if is, ok := classify(id, audit, category, cfg); ok {
			issues = append(issues, is)
		}
	}
	if category == model.CategoryAccessibility && cfg.CustomChecks && report != nil {
		issues = append(issues, RunCustomChecks(report.DOMSnapshot)...)
	}
	return capIssues(issues, cfg.MaxErrorsPerCategory, cfg.MaxAlertsPerCategory)
}

// classify applies the threshold rules to one audit.
func classify(id string, audit model.AuditResult, category string, cfg Config) (model.Issue, bool) {
	var typ string
	switch {
	case audit.ScoreDisplayMode == model.DisplayModeManual,
		audit.ScoreDisplayMode == model.DisplayModeNotApplicable:
		typ = model.IssueAlert
	case audit.Score == nil:
		return model.Issue{}, false
	case *audit.Score < cfg.ErrorScoreThreshold:
		typ = model.IssueError
	case *audit.Score < cfg.AlertScoreThreshold:
		typ = model.IssueAlert
	default:
		return model.Issue{}, false
	}

	description := describe(id, audit, category)

	var displayValue *string
	if audit.DisplayValue != "" {
		dv := audit.DisplayValue
		displayValue = &dv
	}
	var score *float64
	if audit.Score != nil {
		s := *audit.Score
		score = &s
	}

	// Only items that point at an element count as instances to fix; rows
	// listing resources or timings do not.
	element := noElement
	instances := 0
	for _, item := range audit.Details.Items {
		ref := item.ElementRef()
		if ref == "" {
			continue
		}
		if instances == 0 {
			element = TruncateElement(ref)
		}
		instances++
	}

	return model.Issue{
		Type:         typ,
		Title:        TitleFromID(id),
		Description:  description,
		Suggestion:   suggestionFor(id, instances),
		Score:        score,
		DisplayValue: displayValue,
		Element:      element,
	}, true
}

// describe picks the issue description: the fixed text for headline
// performance audits, then the audit's own, then a per-category fallback.
func describe(id string, audit model.AuditResult, category string) string {
	if category == model.CategoryPerformance {
		if d, ok := performanceDescriptions[id]; ok {
			return d
		}
	}
	if audit.Description != "" {
		return audit.Description
	}
	if d, ok := fallbackDescriptions[category]; ok {
		return d
	}
	return "Issue detected."
}

// TitleFromID turns an audit id into a display title: "image-alt" becomes
// "Image Alt".
func TitleFromID(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func suggestionFor(id string, instances int) string {
	base, ok := suggestions[id]
	if !ok {
		base = genericSuggestion
	}
	if instances <= 0 {
		return base
	}
	return fmt.Sprintf("%s %s", fixInstances(instances), base)
}

func fixInstances(n int) string {
	if n == 1 {
		return "Fix 1 instance."
	}
	return fmt.Sprintf("Fix %d instances.", n)
}

// TruncateElement bounds an element reference to 200 characters, appending
// an ellipsis when it had to cut.
func TruncateElement(s string) string {
	if s == "" {
		return noElement
	}
	if utf8.RuneCountInString(s) <= maxElementRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxElementRunes]) + ellipsis
}

// capIssues orders errors before alerts, keeping input order within a type,
// and drops anything past the per-type caps.
func capIssues(issues []model.Issue, maxErrors, maxAlerts int) []model.Issue {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Type == model.IssueError && issues[j].Type != model.IssueError
	})
	out := make([]model.Issue, 0, len(issues))
	var errs, alerts int
	for _, is := range issues {
		switch is.Type {
		case model.IssueError:
			if errs >= maxErrors {
				continue
			}
			errs++
		case model.IssueAlert:
			if alerts >= maxAlerts {
				continue
			}
			alerts++
		default:
			continue
		}
		out = append(out, is)
	}
	return out
}
