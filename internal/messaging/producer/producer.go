package producer

import (
	"context"

	"logshare/internal/models"
)

// Producer defines the interface for the mutation-mirror producer
type Producer interface {
	// Publish sends a single mutation event to the configured topic
	Publish(ctx context.Context, event *models.MutationEvent) error

	// Close closes the producer connection
	Close() error
}
