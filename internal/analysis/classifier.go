package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gobuffalo/packr"
)

type fixtureRule struct {
	keywords []string
	file     string
}

// rules are checked in order, the first matching keyword wins.
var rules = []fixtureRule{
	{keywords: []string{"ai healthcare", "ai in healthcare"}, file: "ai-healthcare-analysis.json"},
	{keywords: []string{"tariff"}, file: "tariff-analysis.json"},
}

// Classifier short-circuits extraction for content on a known fixture topic.
type Classifier struct {
	fixtures map[string][]byte
}

// NewClassifier loads the bundled fixtures.
func NewClassifier() (*Classifier, error) {
	box := packr.NewBox("./fixtures")

	fixtures := make(map[string][]byte)
	for _, rule := range rules {
		data, err := box.Find(rule.file)
		if err != nil {
			return nil, fmt.Errorf("load fixture %s: %w", rule.file, err)
		}
		// fail at startup rather than on the first matching request
		if _, err := decodeFixture(data); err != nil {
			return nil, fmt.Errorf("decode fixture %s: %w", rule.file, err)
		}
		fixtures[rule.file] = data
	}

	return &Classifier{fixtures: fixtures}, nil
}

// Classify returns the fixture for the first keyword found in content, or
// false when the content must go to the extractor. Every call decodes a fresh
// copy so callers may modify the result.
func (c *Classifier) Classify(content string) (*AnalysisData, bool) {
	lower := strings.ToLower(content)
	for _, rule := range rules {
		for _, keyword := range rule.keywords {
			if !strings.Contains(lower, keyword) {
				continue
			}

			data, err := decodeFixture(c.fixtures[rule.file])
			if err != nil {
				return nil, false
			}
			return data, true
		}
	}

	return nil, false
}

func decodeFixture(raw []byte) (*AnalysisData, error) {
	data := &AnalysisData{}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, err
	}
	Normalize(data)

	return data, nil
}
