package storage

import (
	"context"
	"errors"
)

// MaxCount is the largest use count a Store reports, counts saturate there
const MaxCount = 0xFFFF

var (
	ErrClosed        = errors.New("store is closed")
	ErrInvalidBackup = errors.New("backup is not a valid usage document")
)

// Store counts how often each application has been run. Implementations must
// be safe for concurrent use by every connection worker.
type Store interface {
	RecordRun(ctx context.Context, app string) error
	Snapshot(ctx context.Context) (Snapshot, error)

	Restore(values []byte) error
	Backup() ([]byte, error)

	ListenToUpdates() <-chan *Update

	Close() error
}

// Update is sent to listeners every time a run is recorded
type Update struct {
	App     string
	Count   int
	LastRun int64
}

type AppCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Snapshot is the state of a Store at one point in time. Apps are sorted by name.
type Snapshot struct {
	Apps []AppCount `json:"apps"`

	// LastRun is when any application last ran, in unix seconds. Zero if
	// nothing has run.
	LastRun int64 `json:"lastRun"`
}
