package normalizer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/webscan/internal/model"
)

// domCheck is a heuristic over the rendered document that returns the
// offending elements.
type domCheck struct {
	title       string
	description string
	suggestion  string
	find        func(doc *goquery.Document) *goquery.Selection
}

var domChecks = []domCheck{
	{
		title:       "Image Missing Alternative Text",
		description: "Images without an alt attribute are announced by file name or skipped by screen readers.",
		suggestion:  `Add an "alt" attribute to every <img>; use alt="" for decorative images.`,
		find: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find("img").Not("[alt]").Not(`[role="presentation"]`).Not(`[aria-hidden="true"]`)
		},
	},
	{
		title:       "Form Control Missing Associated Label",
		description: "Form controls need an accessible name so assistive technology can announce their purpose.",
		suggestion:  `Wrap the control in a <label>, point a <label for="..."> at its id, or add "aria-label".`,
		find: func(doc *goquery.Document) *goquery.Selection {
			labelled := map[string]bool{}
			doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
				if id, ok := s.Attr("for"); ok && id != "" {
					labelled[id] = true
				}
			})
			return doc.Find("input, select, textarea").FilterFunction(func(_ int, s *goquery.Selection) bool {
				if goquery.NodeName(s) == "input" {
					switch strings.ToLower(attr(s, "type")) {
					case "hidden", "submit", "reset", "button", "image":
						return false
					}
				}
				if hasAccessibleNameAttr(s) {
					return false
				}
				if id := attr(s, "id"); id != "" && labelled[id] {
					return false
				}
				return s.Closest("label").Length() == 0
			})
		},
	},
	{
		title:       "Link With No Discernible Text",
		description: "Links need text, an aria-label, or an image with alt text so users know where they lead.",
		suggestion:  `Add visible text or an "aria-label" to the <a> element.`,
		find: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
				if strings.TrimSpace(s.Text()) != "" || hasAccessibleNameAttr(s) {
					return false
				}
				described := false
				s.Find("img[alt]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
					if strings.TrimSpace(attr(img, "alt")) != "" {
						described = true
						return false
					}
					return true
				})
				return !described
			})
		},
	},
}

// RunCustomChecks parses html and returns one error issue per failing DOM
// heuristic. Unparseable or empty input yields no issues.
func RunCustomChecks(html string) []model.Issue {
	if strings.TrimSpace(html) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var issues []model.Issue
	for _, check := range domChecks {
		offenders := check.find(doc)
		n := offenders.Length()
		if n == 0 {
			continue
		}
		element := noElement
		if snippet, err := goquery.OuterHtml(offenders.First()); err == nil {
			element = TruncateElement(snippet)
		}
		zero := 0.0
		issues = append(issues, model.Issue{
			Type:        model.IssueError,
			Title:       check.title,
			Description: check.description,
			Suggestion:  fixInstances(n) + " " + check.suggestion,
			Score:       &zero,
			Element:     element,
		})
	}
	return issues
}

func hasAccessibleNameAttr(s *goquery.Selection) bool {
	return strings.TrimSpace(attr(s, "aria-label")) != "" ||
		strings.TrimSpace(attr(s, "aria-labelledby")) != "" ||
		strings.TrimSpace(attr(s, "title")) != ""
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return v
}
