package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/drukpa1455/crewai-job/pkg/types"
)

var scoreRe = regexp.MustCompile(`(?i)score\**\s*[:=-]?\s*\**\s*(\d{1,3})\s*(?:/\s*100|out of 100)?`)

// ParseEvaluation reads the recruiter's answer. JSON answers are read field
// by field; free text falls back to a "Score: NN/100" search. A score outside
// 0-100 is dropped.
func ParseEvaluation(answer string) types.Evaluation {
	var ev types.Evaluation
	if js, ok := clean.ExtractJSON(answer); ok && gjson.Get(js, "@this").IsObject() {
		ev.Score = jsonScore(gjson.Get(js, "score"))
		ev.Feedback = strings.TrimSpace(gjson.Get(js, "feedback").String())
		for _, s := range gjson.Get(js, "suggestions").Array() {
			if v := strings.TrimSpace(s.String()); v != "" {
				ev.Suggestions = append(ev.Suggestions, v)
			}
		}
		if ev.Feedback == "" {
			ev.Feedback = strings.TrimSpace(answer)
		}
		return ev
	}

	ev.Feedback = strings.TrimSpace(answer)
	ev.Score = textScore(answer)
	return ev
}

// jsonScore accepts a number, or a string such as "85" or "85/100".
func jsonScore(v gjson.Result) *int {
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		if f < 0 || f > 100 {
			return nil
		}
		return bounded(int(f + 0.5))
	case gjson.String:
		if score := textScore(v.String()); score != nil {
			return score
		}
		return textScore("score: " + v.String())
	}
	return nil
}

func textScore(s string) *int {
	m := scoreRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return bounded(n)
}

func bounded(n int) *int {
	if n < 0 || n > 100 {
		return nil
	}
	return &n
}
