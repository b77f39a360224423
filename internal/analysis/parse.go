package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

type rawAnalysis struct {
	ArticleTitle    string           `json:"article_title"`
	ArticleURL      string           `json:"article_url"`
	ImpactingEntity string           `json:"impacting_entity"`
	Impacts         *json.RawMessage `json:"impacts"`
}

// ParseResponse reads AnalysisData out of a model reply. Markdown fences and
// reasoning blocks around the JSON object are ignored.
func ParseResponse(raw string) (*AnalysisData, error) {
	text := unwrap(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	var head rawAnalysis
	if err := json.Unmarshal([]byte(text), &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(head.ArticleTitle) == "" {
		return nil, fmt.Errorf("%w: missing article_title", ErrMalformedResponse)
	}
	if head.Impacts == nil || !strings.HasPrefix(strings.TrimSpace(string(*head.Impacts)), "[") {
		return nil, fmt.Errorf("%w: impacts must be an array", ErrMalformedResponse)
	}

	data := &AnalysisData{}
	if err := json.Unmarshal([]byte(text), data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return data, nil
}

func unwrap(raw string) string {
	text := strings.TrimSpace(thinkPattern.ReplaceAllString(raw, ""))
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	// tolerate prose around the object
	if !strings.HasPrefix(text, "{") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start >= 0 && end > start {
			text = text[start : end+1]
		}
	}

	return text
}
