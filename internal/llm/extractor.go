package llm

import (
	"context"
	"time"

	"github.com/emrgen/impact/internal/analysis"
	"github.com/sirupsen/logrus"
)

// Extractor turns article text into normalized AnalysisData with a model call.
type Extractor struct {
	client  Client
	timeout time.Duration
}

func NewExtractor(client Client, timeout time.Duration) *Extractor {
	return &Extractor{client: client, timeout: timeout}
}

func (e *Extractor) Extract(ctx context.Context, content string) (*analysis.AnalysisData, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := e.client.Complete(ctx, SystemPrompt, UserPrompt(content))
	if err != nil {
		return nil, err
	}
	logrus.Debugf("extraction took %v, %d bytes", time.Since(start), len(raw))

	data, err := analysis.ParseResponse(raw)
	if err != nil {
		logrus.Debugf("unparsable extraction response: %s", raw)
		return nil, err
	}
	analysis.Normalize(data)

	return data, nil
}
