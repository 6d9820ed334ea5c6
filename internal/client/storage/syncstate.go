package storage

import (
	"context"
	"time"
)

// SyncState — singleton-состояние движка синхронизации.
// Обновляется только движком; остальной код читает его для статуса.
type SyncState struct {
	LastFullSyncAt    *time.Time `json:"last_full_sync_at,omitempty"`
	LastSyncAttemptAt *time.Time `json:"last_sync_attempt_at,omitempty"`
	SyncInProgress    bool       `json:"sync_in_progress"`
}

// SyncStateStorage defines interface for the singleton sync state row
type SyncStateStorage interface {
	// SaveSyncState stores the singleton sync state
	SaveSyncState(ctx context.Context, state *SyncState) error

	// GetSyncState retrieves the singleton sync state
	// Returns a zero-value state if no sync has ever run
	GetSyncState(ctx context.Context) (*SyncState, error)
}
