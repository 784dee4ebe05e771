package messaging

import (
	"context"
	"time"
)

// ClusterScoredEvent announces that the offline scorer recorded a new risk
// score for a cluster. Downstream surfaces (chat commands, query API) consume
// these to refresh their views.
type ClusterScoredEvent struct {
	ClusterID string    `json:"cluster_id"`
	Score     float64   `json:"score"`
	Tags      []string  `json:"tags"`
	Members   int       `json:"members"`
	ScoredAt  time.Time `json:"scored_at"`
}

// Publisher defines the interface for publishing events to the message broker
type Publisher interface {
	// PublishClusterScored publishes a cluster score update
	PublishClusterScored(ctx context.Context, event *ClusterScoredEvent) error
	// Close closes the connection
	Close()
}
