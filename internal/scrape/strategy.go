package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/drukpa1455/crewai-job/internal/cleaner"
)

const (
	TitleNotFound       = "Position Title Not Found"
	CompanyNotFound     = "Company Name Not Found"
	LocationNotFound    = "Location Not Found"
	DescriptionNotFound = "Description Not Found"
)

// Strategy pulls one field out of a parsed page. An empty result means "no
// match", and the next strategy in the cascade is tried.
type Strategy interface {
	Extract(doc *goquery.Document) string
}

// Text takes the text of the first element matching the selector.
type Text string

func (s Text) Extract(doc *goquery.Document) string {
	return cleaner.CleanText(doc.Find(string(s)).First().Text())
}

// Block is like Text but keeps paragraph breaks, for long free-text fields.
type Block string

func (s Block) Extract(doc *goquery.Document) string {
	sel := doc.Find(string(s)).First()
	if sel.Length() == 0 {
		return ""
	}
	return blockText(sel)
}

// Attr reads an attribute of the first matching element, e.g. meta content.
type Attr struct {
	Selector string
	Name     string
}

func (s Attr) Extract(doc *goquery.Document) string {
	v, _ := doc.Find(s.Selector).First().Attr(s.Name)
	return cleaner.CleanText(v)
}

// LargestBlock picks the element among Selector with the most text.
type LargestBlock string

func (s LargestBlock) Extract(doc *goquery.Document) string {
	var best string
	doc.Find(string(s)).Each(func(_ int, sel *goquery.Selection) {
		if text := blockText(sel); len(text) > len(best) {
			best = text
		}
	})
	return best
}

// Cascade is an ordered list of strategies with first-match-wins semantics.
type Cascade []Strategy

func (c Cascade) Extract(doc *goquery.Document) string {
	for _, s := range c {
		if v := s.Extract(doc); v != "" {
			return v
		}
	}
	return ""
}

// Rules holds one cascade per posting field.
type Rules struct {
	Title       Cascade
	Company     Cascade
	Location    Cascade
	Description Cascade
}

// DefaultRules cover Greenhouse, Lever, Workday and generic career pages.
func DefaultRules() Rules {
	return Rules{
		Title: Cascade{
			Text("h1.app-title"),
			Text("h1.job-title"),
			Text(".posting-headline h2"),
			Text(`[data-automation-id="jobPostingHeader"]`),
			Text(`h1[class*="title"]`),
			Attr{Selector: `meta[property="og:title"]`, Name: "content"},
			Text("h1"),
		},
		Company: Cascade{
			Text("span.company-name"),
			Text(".company-name"),
			Text(`[data-automation-id="company"]`),
			Text(`[class*="company"]`),
			Attr{Selector: `meta[property="og:site_name"]`, Name: "content"},
		},
		Location: Cascade{
			Text("div.location"),
			Text(".location"),
			Text(`[data-automation-id="locations"]`),
			Text(`[class*="location"]`),
		},
		Description: Cascade{
			Block("div#content"),
			Block("#job-description"),
			Block(".job-description"),
			Block("section.job-details"),
			Block(`[class*="description"]`),
			LargestBlock("div, section, article"),
		},
	}
}

func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Find("br").ReplaceWithHtml("\n")
	sel.Find("p, li, h1, h2, h3, h4, h5, h6, div").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	b.WriteString(sel.Text())
	return cleaner.CleanBlock(b.String())
}
