package model

import (
	"encoding/json"
)

// Score display modes reported by the audit engine.
const (
	DisplayModeBinary        = "binary"
	DisplayModeNumeric       = "numeric"
	DisplayModeManual        = "manual"
	DisplayModeNotApplicable = "notApplicable"
	DisplayModeInformative   = "informative"
	DisplayModeError         = "error"
)

// Audit categories understood by the pipeline.
const (
	CategoryPerformance   = "performance"
	CategoryAccessibility = "accessibility"
)

// RawAuditReport is the subset of a Lighthouse result the pipeline reads.
// It is owned by the audit engine and treated as read-only input.
type RawAuditReport struct {
	FinalURL          string                   `json:"finalUrl,omitempty"`
	FinalDisplayedURL string                   `json:"finalDisplayedUrl,omitempty"`
	RequestedURL      string                   `json:"requestedUrl,omitempty"`
	LighthouseVersion string                   `json:"lighthouseVersion,omitempty"`
	Audits            map[string]AuditResult   `json:"audits"`
	Categories        map[string]CategoryScore `json:"categories"`
	RuntimeError      *RuntimeError            `json:"runtimeError,omitempty"`

	// DOMSnapshot is the rendered HTML captured by the executor after
	// navigation. It feeds the DOM checks and is never serialized.
	DOMSnapshot string `json:"-"`
}

// ResolvedURL returns the post-redirect URL the audit ran against, falling
// back to fallback when the report does not carry one.
func (r *RawAuditReport) ResolvedURL(fallback string) string {
	if r == nil {
		return fallback
	}
	if r.FinalURL != "" {
		return r.FinalURL
	}
	if r.FinalDisplayedURL != "" {
		return r.FinalDisplayedURL
	}
	return fallback
}

// CategoryScore returns the [0,1] score of a category, or nil when absent.
func (r *RawAuditReport) CategoryScore(category string) *float64 {
	if r == nil || r.Categories == nil {
		return nil
	}
	c, ok := r.Categories[category]
	if !ok {
		return nil
	}
	return c.Score
}

// Audit returns the audit result for id.
func (r *RawAuditReport) Audit(id string) (AuditResult, bool) {
	if r == nil || r.Audits == nil {
		return AuditResult{}, false
	}
	a, ok := r.Audits[id]
	return a, ok
}

type RuntimeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CategoryScore struct {
	ID    string   `json:"id,omitempty"`
	Title string   `json:"title,omitempty"`
	Score *float64 `json:"score"`
}

// AuditResult is one audit entry of the raw report.
type AuditResult struct {
	ID               string       `json:"id,omitempty"`
	Title            string       `json:"title,omitempty"`
	Description      string       `json:"description,omitempty"`
	Score            *float64     `json:"score"`
	ScoreDisplayMode string       `json:"scoreDisplayMode,omitempty"`
	DisplayValue     string       `json:"displayValue,omitempty"`
	NumericValue     *float64     `json:"numericValue,omitempty"`
	Details          AuditDetails `json:"details,omitempty"`
}

// AuditDetails keeps only the element references of an audit's detail items.
type AuditDetails struct {
	Type  string      `json:"type,omitempty"`
	Items []AuditItem `json:"items,omitempty"`
}

// UnmarshalJSON tolerates heterogeneous detail payloads: items that are not
// objects, or a non-array items field, are skipped instead of failing the
// whole report.
func (d *AuditDetails) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  string          `json:"type"`
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	d.Type = raw.Type
	d.Items = nil

	var items []json.RawMessage
	if len(raw.Items) == 0 || json.Unmarshal(raw.Items, &items) != nil {
		return nil
	}
	for _, it := range items {
		var item AuditItem
		if err := json.Unmarshal(it, &item); err != nil {
			continue
		}
		d.Items = append(d.Items, item)
	}
	return nil
}

// AuditItem is a detail row that may reference an offending DOM element.
type AuditItem struct {
	Node     *NodeRef `json:"node,omitempty"`
	Selector string   `json:"selector,omitempty"`
}

type NodeRef struct {
	Selector    string `json:"selector,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	NodeLabel   string `json:"nodeLabel,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// ElementRef returns the most descriptive reference of the item, preferring
// the node snippet, then the node selector, then the item selector.
func (i AuditItem) ElementRef() string {
	if i.Node != nil {
		if i.Node.Snippet != "" {
			return i.Node.Snippet
		}
		if i.Node.Selector != "" {
			return i.Node.Selector
		}
	}
	return i.Selector
}
