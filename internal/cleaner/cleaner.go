package cleaner

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

var (
	spaceRe      = regexp.MustCompile(`\s+`)
	blankLinesRe = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
)

type Cleaner struct{}

func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// StripNoise removes nodes that never carry posting content.
func (c *Cleaner) StripNoise(doc *goquery.Document) {
	doc.Find("script, style, noscript, iframe, svg, template").Remove()
}

func (c *Cleaner) CleanLlmResponse(response string) string {
	if !strings.Contains(response, "```") {
		return strings.TrimSpace(response)
	}

	start := -1
	if strings.Contains(response, "```json") {
		start = strings.Index(response, "```json") + 7
	} else if strings.Contains(response, "```yaml") {
		start = strings.Index(response, "```yaml") + 7
	} else {
		start = strings.Index(response, "```") + 3
	}

	end := strings.LastIndex(response, "```")

	if start != -1 && end != -1 && end > start {
		return strings.TrimSpace(response[start:end])
	}

	return strings.TrimSpace(response)
}

// ExtractJSON returns the JSON object or array contained in an LLM answer,
// tolerating code fences and chatter around it. ok is false when no valid
// JSON is found.
func (c *Cleaner) ExtractJSON(response string) (string, bool) {
	candidate := c.CleanLlmResponse(response)
	if gjson.Valid(candidate) {
		return candidate, true
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(candidate, pair[0])
		end := strings.LastIndex(candidate, pair[1])
		if start == -1 || end <= start {
			continue
		}
		if inner := candidate[start : end+1]; gjson.Valid(inner) {
			return inner, true
		}
	}
	return candidate, false
}

// CleanText collapses all whitespace runs, including non-breaking spaces,
// into single spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// CleanBlock keeps paragraph breaks but trims every line and squeezes runs of
// blank lines down to one.
func CleanBlock(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
