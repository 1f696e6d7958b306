package interfaces

import (
	"context"

	"chatrelay/pkg/types"
)

// MessageLog is the persistence collaborator for chat messages. The
// coordinator depends only on these operations and treats any error as a
// persistence failure: a message that fails to append is never broadcast.
type MessageLog interface {
	// Append persists a message and assigns its sequential identifier.
	Append(ctx context.Context, msg *types.Message) error

	// RecentByRoom returns up to limit most recent messages for a room,
	// ordered oldest first.
	RecentByRoom(ctx context.Context, roomName string, limit int) ([]*types.Message, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and releases resources.
	Close() error
}
