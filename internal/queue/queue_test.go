package queue

import (
	"context"
	"testing"

	"github.com/emrgen/impact/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: EventImpactVoted}))
	p.Close()
}

func TestKafkaPublisher_Unreachable(t *testing.T) {
	// producing is asynchronous, so an unreachable broker only shows up in
	// delivery reports
	p, err := NewKafkaPublisher(config.KafkaConfig{Brokers: "127.0.0.1:1", Topic: "impact.events"})
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.Publish(context.Background(), Event{Type: EventArticleDeleted, ArticleID: "a1"}))
}
