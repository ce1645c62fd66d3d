package presence

import "context"

// Store mirrors which identities are online. The hub remains the in-process
// source of truth for its own connections; the store exists so other
// instances and collaborators can answer IsOnline without holding hub state.
type Store interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	Refresh(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	Close() error
}
