package normalizer_test

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/raysh454/webscan/internal/model"
	"github.com/raysh454/webscan/internal/normalizer"
)

func f(v float64) *float64 { return &v }

func report(audits map[string]model.AuditResult) *model.RawAuditReport {
	return &model.RawAuditReport{
		FinalURL:   "https://example.com/",
		Audits:     audits,
		Categories: map[string]model.CategoryScore{},
	}
}

func withItems(refs ...string) model.AuditDetails {
	d := model.AuditDetails{Type: "table"}
	for _, r := range refs {
		d.Items = append(d.Items, model.AuditItem{Node: &model.NodeRef{Snippet: r}})
	}
	return d
}

func TestNormalize_ImageAltScoreZeroIsError(t *testing.T) {
	t.Parallel()
	rep := report(map[string]model.AuditResult{
		"image-alt": {Score: f(0), ScoreDisplayMode: "binary", Description: "Images need alt text.", Details: withItems(`<img src="a.png">`)},
	})
	cfg := normalizer.DefaultConfig()
	cfg.CustomChecks = false

	issues := normalizer.Normalize(rep, model.CategoryAccessibility, cfg)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %+v", len(issues), issues)
	}
	is := issues[0]
	if is.Type != model.IssueError || is.Title != "Image Alt" {
		t.Errorf("unexpected issue: %+v", is)
	}
	if is.Element != `<img src="a.png">` {
		t.Errorf("unexpected element %q", is.Element)
	}
	if !strings.HasPrefix(is.Suggestion, "Fix 1 instance.") {
		t.Errorf("unexpected suggestion %q", is.Suggestion)
	}
}

func TestNormalize_ManualAuditIsAlert(t *testing.T) {
	t.Parallel()
	rep := report(map[string]model.AuditResult{
		"aria-hidden-body": {Score: nil, ScoreDisplayMode: "manual"},
	})
	cfg := normalizer.DefaultConfig()

	issues := normalizer.Normalize(rep, model.CategoryAccessibility, cfg)
	if len(issues) != 1 || issues[0].Type != model.IssueAlert {
		t.Fatalf("expected one alert, got %+v", issues)
	}
	if issues[0].Element != "N/A" {
		t.Errorf("expected N/A element, got %q", issues[0].Element)
	}
	if issues[0].Suggestion == "" || issues[0].Description == "" {
		t.Errorf("suggestion and description must never be empty: %+v", issues[0])
	}
}

func TestNormalize_Classification(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		audit model.AuditResult
		want  string // "" means no issue
	}{
		{"below error threshold", model.AuditResult{Score: f(0.49), ScoreDisplayMode: "numeric"}, model.IssueError},
		{"at error threshold", model.AuditResult{Score: f(0.5), ScoreDisplayMode: "numeric"}, model.IssueAlert},
		{"below alert threshold", model.AuditResult{Score: f(0.89), ScoreDisplayMode: "numeric"}, model.IssueAlert},
		{"at alert threshold", model.AuditResult{Score: f(0.9), ScoreDisplayMode: "numeric"}, ""},
		{"perfect", model.AuditResult{Score: f(1), ScoreDisplayMode: "binary"}, ""},
		{"not applicable", model.AuditResult{ScoreDisplayMode: "notApplicable"}, model.IssueAlert},
		{"manual with low score", model.AuditResult{Score: f(0), ScoreDisplayMode: "manual"}, model.IssueAlert},
		{"informative", model.AuditResult{ScoreDisplayMode: "informative"}, ""},
		{"errored audit", model.AuditResult{ScoreDisplayMode: "error"}, ""},
	}
	cfg := normalizer.DefaultConfig()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rep := report(map[string]model.AuditResult{"speed-index": tc.audit})
			issues := normalizer.Normalize(rep, model.CategoryPerformance, cfg)
			if tc.want == "" {
				if len(issues) != 0 {
					t.Fatalf("expected no issue, got %+v", issues)
				}
				return
			}
			if len(issues) != 1 || issues[0].Type != tc.want {
				t.Fatalf("expected one %s, got %+v", tc.want, issues)
			}
		})
	}
}

func TestNormalize_ThresholdsAreConfig(t *testing.T) {
	t.Parallel()
	rep := report(map[string]model.AuditResult{"speed-index": {Score: f(0.6)}})
	cfg := normalizer.DefaultConfig()
	cfg.ErrorScoreThreshold = 0.7

	issues := normalizer.Normalize(rep, model.CategoryPerformance, cfg)
	if len(issues) != 1 || issues[0].Type != model.IssueError {
		t.Fatalf("expected error with raised threshold, got %+v", issues)
	}
}

func TestNormalize_IgnoresAuditsOutsideAllowList(t *testing.T) {
	t.Parallel()
	rep := report(map[string]model.AuditResult{
		"some-unrelated-audit": {Score: f(0)},
		"image-alt":            {Score: f(0)},
	})
	cfg := normalizer.DefaultConfig()

	if got := normalizer.Normalize(rep, model.CategoryPerformance, cfg); len(got) != 0 {
		t.Errorf("expected no performance issues, got %+v", got)
	}
}

func TestNormalize_ErrorsFirstAndCapped(t *testing.T) {
	t.Parallel()
	audits := map[string]model.AuditResult{}
	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("audit-%02d", i)
		ids = append(ids, id)
		score := 0.1
		if i%2 == 0 {
			score = 0.7
		}
		audits[id] = model.AuditResult{Score: f(score)}
	}
	cfg := normalizer.DefaultConfig()
	cfg.PerformanceAuditIDs = ids

	issues := normalizer.Normalize(report(audits), model.CategoryPerformance, cfg)
	if len(issues) != cfg.MaxErrorsPerCategory+cfg.MaxAlertsPerCategory {
		t.Fatalf("expected %d issues, got %d", cfg.MaxErrorsPerCategory+cfg.MaxAlertsPerCategory, len(issues))
	}
	for i, is := range issues {
		wantErr := i < cfg.MaxErrorsPerCategory
		if (is.Type == model.IssueError) != wantErr {
			t.Fatalf("issue %d has type %s, errors must precede alerts: %+v", i, is.Type, issues)
		}
	}
	if issues[0].Title != "Audit 01" || issues[3].Title != "Audit 00" {
		t.Errorf("allow-list order not preserved within a type: %q, %q", issues[0].Title, issues[3].Title)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	t.Parallel()
	raw := `{"categories":{"accessibility":{"score":0.71}},"audits":{
		"image-alt":{"score":0,"scoreDisplayMode":"binary","details":{"items":[{"node":{"snippet":"<img>"}}]}},
		"color-contrast":{"score":0,"scoreDisplayMode":"binary","details":{"items":[{"node":{"selector":"p.x"}},{"node":{"selector":"p.y"}}]}},
		"label":{"score":0.6,"scoreDisplayMode":"binary"},
		"aria-hidden-body":{"score":null,"scoreDisplayMode":"manual"},
		"list":{"score":null,"scoreDisplayMode":"notApplicable"}}}`
	cfg := normalizer.DefaultConfig()

	var first []byte
	for i := 0; i < 20; i++ {
		var rep model.RawAuditReport
		if err := json.Unmarshal([]byte(raw), &rep); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		rep.DOMSnapshot = `<html><body><img src="x.png"><a href="/"></a></body></html>`
		out, err := json.Marshal(normalizer.Normalize(&rep, model.CategoryAccessibility, cfg))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if first == nil {
			first = out
			continue
		}
		if string(out) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, out)
		}
	}
}

func TestTitleFromID(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"image-alt":              "Image Alt",
		"first-contentful-paint": "First Contentful Paint",
		"uses_long-cache-ttl":    "Uses Long Cache Ttl",
		"interactive":            "Interactive",
		"":                       "",
		"--double--dash":         "Double Dash",
		"ünicode-check":          "Ünicode Check",
	}
	for in, want := range cases {
		if got := normalizer.TitleFromID(in); got != want {
			t.Errorf("TitleFromID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateElement(t *testing.T) {
	t.Parallel()
	short := "<img>"
	if got := normalizer.TruncateElement(short); got != short {
		t.Errorf("short element changed: %q", got)
	}
	if got := normalizer.TruncateElement(""); got != "N/A" {
		t.Errorf("empty element should be N/A, got %q", got)
	}

	exact := strings.Repeat("a", 200)
	if got := normalizer.TruncateElement(exact); got != exact {
		t.Errorf("200-char element must not be truncated")
	}

	long := strings.Repeat("é", 250)
	got := normalizer.TruncateElement(long)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis, got %q", got)
	}
	body := strings.TrimSuffix(got, "...")
	if utf8.RuneCountInString(body) != 200 || !strings.HasPrefix(long, body) {
		t.Errorf("truncation must be a 200-character prefix, got %d runes", utf8.RuneCountInString(body))
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a multi-byte character")
	}
}

func TestBuildResults_TotalsAndBounds(t *testing.T) {
	t.Parallel()
	audits := map[string]model.AuditResult{}
	cfg := normalizer.DefaultConfig()
	for _, id := range cfg.AccessibilityAuditIDs {
		audits[id] = model.AuditResult{Score: f(0)}
	}
	for _, id := range cfg.PerformanceAuditIDs {
		audits[id] = model.AuditResult{Score: f(0.8)}
	}
	rep := report(audits)
	rep.Categories[model.CategoryPerformance] = model.CategoryScore{Score: f(1.4)}
	rep.Categories[model.CategoryAccessibility] = model.CategoryScore{Score: f(0.444)}

	res := normalizer.BuildResults(rep, cfg)

	perf, acc := res.Performance, res.Accessibility
	if perf.TotalErrors != len(perf.Errors) || perf.TotalAlerts != len(perf.Alerts) {
		t.Errorf("performance totals mismatch: %+v", perf)
	}
	if acc.TotalErrors != len(acc.Errors) || acc.TotalAlerts != len(acc.Alerts) {
		t.Errorf("accessibility totals mismatch: %+v", acc)
	}
	if acc.TotalErrors != cfg.MaxErrorsPerCategory || perf.TotalAlerts != cfg.MaxAlertsPerCategory {
		t.Errorf("caps not applied: acc errors=%d perf alerts=%d", acc.TotalErrors, perf.TotalAlerts)
	}
	if perf.Metrics.PerformanceScore != 100 {
		t.Errorf("score must clamp to 100, got %d", perf.Metrics.PerformanceScore)
	}
	if acc.Metrics.AccessibilityScore != 44 {
		t.Errorf("expected 44, got %d", acc.Metrics.AccessibilityScore)
	}
}

func TestNormalize_NilReport(t *testing.T) {
	t.Parallel()
	res := normalizer.BuildResults(nil, normalizer.DefaultConfig())
	want := model.NewCategoryResult(nil, model.PerformanceMetrics{
		Metrics: model.PerformanceSubMetrics{
			FirstContentfulPaint:   model.Metric{DisplayValue: "0.0 s"},
			SpeedIndex:             model.Metric{DisplayValue: "0.0 s"},
			LargestContentfulPaint: model.Metric{DisplayValue: "0.0 s"},
			TimeToInteractive:      model.Metric{DisplayValue: "0.0 s"},
			TotalBlockingTime:      model.Metric{DisplayValue: "0 ms"},
			CumulativeLayoutShift:  model.Metric{DisplayValue: "0.000"},
		},
	})
	if !reflect.DeepEqual(res.Performance, want) {
		t.Errorf("unexpected zero result:\n got %+v\nwant %+v", res.Performance, want)
	}
}

// ─── Descriptions and instance counts ─────────────────────────────────

func TestNormalize_PerformanceDescriptionTable(t *testing.T) {
	t.Parallel()
	rep := report(map[string]model.AuditResult{
		"first-contentful-paint": {Score: f(0.2), ScoreDisplayMode: "numeric", Description: "Lighthouse text."},
		"dom-size":               {Score: f(0.2), ScoreDisplayMode: "numeric", Description: "Avoid an excessive DOM size."},
		"unused-css-rules":       {Score: f(0.2), ScoreDisplayMode: "numeric"},
	})
	byTitle := map[string]model.Issue{}
	for _, is := range normalizer.Normalize(rep, model.CategoryPerformance, normalizer.DefaultConfig()) {
		byTitle[is.Title] = is
	}

	if d := byTitle["First Contentful Paint"].Description; !strings.HasPrefix(d, "First Contentful Paint marks the time") {
		t.Errorf("table entry should win over the audit text, got %q", d)
	}
	if d := byTitle["Dom Size"].Description; d != "Avoid an excessive DOM size." {
		t.Errorf("audit without a table entry keeps its own text, got %q", d)
	}
	if d := byTitle["Unused Css Rules"].Description; d != "Performance issue detected." {
		t.Errorf("fallback description = %q", d)
	}
}

func TestNormalize_TableTextIsPerformanceOnly(t *testing.T) {
	t.Parallel()
	cfg := normalizer.DefaultConfig()
	cfg.AccessibilityAuditIDs = []string{"interactive"}
	rep := report(map[string]model.AuditResult{
		"interactive": {Score: f(0), ScoreDisplayMode: "binary", Description: "Own text."},
	})
	issues := normalizer.Normalize(rep, model.CategoryAccessibility, cfg)
	if len(issues) != 1 || issues[0].Description != "Own text." {
		t.Errorf("unexpected issues %+v", issues)
	}
}

func TestNormalize_InstancesCountOnlyElementItems(t *testing.T) {
	t.Parallel()
	resourceRows := model.AuditDetails{Type: "opportunity", Items: []model.AuditItem{{}, {}, {}}}
	mixed := withItems(`<link rel="stylesheet" href="a.css">`, `<script src="b.js">`)
	mixed.Items = append([]model.AuditItem{{}}, mixed.Items...)
	mixed.Items = append(mixed.Items, model.AuditItem{})

	rep := report(map[string]model.AuditResult{
		"uses-long-cache-ttl":       {Score: f(0.2), ScoreDisplayMode: "numeric", Details: resourceRows},
		"render-blocking-resources": {Score: f(0.2), ScoreDisplayMode: "numeric", Details: mixed},
	})
	byTitle := map[string]model.Issue{}
	for _, is := range normalizer.Normalize(rep, model.CategoryPerformance, normalizer.DefaultConfig()) {
		byTitle[is.Title] = is
	}

	ttl := byTitle["Uses Long Cache Ttl"]
	if strings.HasPrefix(ttl.Suggestion, "Fix ") {
		t.Errorf("rows without elements are not instances, got %q", ttl.Suggestion)
	}
	if ttl.Element != "N/A" {
		t.Errorf("element = %q, want N/A", ttl.Element)
	}

	rb := byTitle["Render Blocking Resources"]
	if !strings.HasPrefix(rb.Suggestion, "Fix 2 instances.") {
		t.Errorf("suggestion = %q, want two instances", rb.Suggestion)
	}
	if rb.Element != `<link rel="stylesheet" href="a.css">` {
		t.Errorf("element = %q, want the first element item", rb.Element)
	}
}
