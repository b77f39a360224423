package llm

import (
	"context"
	"encoding/json"
	"strings"
)

type mock struct{}

// NewMock returns a client that answers without calling a model. The reply
// is derived from the article so repeated runs are stable.
func NewMock() Client {
	return mock{}
}

func (mock) Complete(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	title := "Untitled article"
	if article := articleOf(user); article != "" {
		title = firstLine(article, 80)
	}

	reply := map[string]interface{}{
		"article_title":    title,
		"impacting_entity": "Unknown",
		"impacts": []map[string]interface{}{
			{
				"impacted_entity": "General Public",
				"impact":          "Awareness of the reported events increases.",
				"score":           0.2,
				"confidence":      0.5,
				"supporting_evidence": []map[string]string{
					{"description": title, "source_url": "https://example.com/mock"},
				},
			},
			{
				"impacted_entity": "Markets",
				"impact":          "Short term uncertainty while the consequences become clear.",
				"score":           -0.2,
			},
		},
	}

	out, err := json.Marshal(reply)
	if err != nil {
		return "", err
	}

	return "```json\n" + string(out) + "\n```", nil
}

func articleOf(prompt string) string {
	_, rest, ok := strings.Cut(prompt, "Article:\n")
	if !ok {
		return strings.TrimSpace(prompt)
	}
	article, _, _ := strings.Cut(rest, "\n\nIdentify the main entity")
	return strings.TrimSpace(article)
}

func firstLine(s string, max int) string {
	line, _, _ := strings.Cut(s, "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > max {
		return string(r[:max])
	}
	return line
}
