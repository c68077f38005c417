package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	appsKey    = "apps"
	lastRunKey = "lastRun"

	updateBufferSize = 255
)

// InmemoryStore keeps the usage counters as a JSON document, so a backup is
// just a copy of it:
//
//	{"apps":{"Poll":3,"TicTacToe":1},"lastRun":1634567890}
type InmemoryStore struct {
	mu     sync.Mutex
	values []byte
	now    func() time.Time

	updateChans []chan *Update

	// stop will be closed when Close() is called
	stop chan struct{}
}

type Option func(*InmemoryStore)

// WithClock replaces time.Now as the source of last-run timestamps
func WithClock(now func() time.Time) Option {
	return func(i *InmemoryStore) {
		i.now = now
	}
}

func NewInmemoryStore(opts ...Option) *InmemoryStore {
	i := &InmemoryStore{
		values:      []byte("{}"),
		now:         time.Now,
		stop:        make(chan struct{}),
		updateChans: make([]chan *Update, 0),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return nil
	}

	close(i.stop)

	for _, updateChan := range i.updateChans {
		close(updateChan)
	}

	i.updateChans = nil
	return nil
}

// RecordRun counts one run of app and stamps the last-run time
func (i *InmemoryStore) RecordRun(ctx context.Context, app string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return ErrClosed
	}

	key := countKey(app)

	count := int(gjson.GetBytes(i.values, key).Int()) + 1
	if count > MaxCount {
		count = MaxCount
	}

	lastRun := i.now().Unix()

	i.values, err = sjson.SetBytes(i.values, key, count)
	if err != nil {
		return fmt.Errorf("failed to count run of %s: %w", app, err)
	}

	i.values, err = sjson.SetBytes(i.values, lastRunKey, lastRun)
	if err != nil {
		return fmt.Errorf("failed to stamp run of %s: %w", app, err)
	}

	update := &Update{App: app, Count: count, LastRun: lastRun}
	for _, updateChan := range i.updateChans {
		// A listener that can't keep up misses updates, recording never waits
		select {
		case updateChan <- update:
		default:
		}
	}

	return nil
}

func (i *InmemoryStore) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	snap := Snapshot{
		Apps:    make([]AppCount, 0),
		LastRun: gjson.GetBytes(i.values, lastRunKey).Int(),
	}

	gjson.GetBytes(i.values, appsKey).ForEach(func(key, value gjson.Result) bool {
		snap.Apps = append(snap.Apps, AppCount{Name: key.String(), Count: int(value.Int())})
		return true
	})

	sort.Slice(snap.Apps, func(a, b int) bool {
		return snap.Apps[a].Name < snap.Apps[b].Name
	})

	return snap, nil
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, updateBufferSize)
	if !i.isRunning() {
		close(updateChan)
		return updateChan
	}

	i.updateChans = append(i.updateChans, updateChan)
	return updateChan
}

// Restore replaces every counter with those in a document produced by Backup
func (i *InmemoryStore) Restore(values []byte) error {
	if !gjson.ValidBytes(values) || !gjson.ParseBytes(values).IsObject() {
		return ErrInvalidBackup
	}

	apps := gjson.GetBytes(values, appsKey)
	if apps.Exists() && !apps.IsObject() {
		return fmt.Errorf("%w: %s is not an object", ErrInvalidBackup, appsKey)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.values = append([]byte(nil), values...)
	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.values) == 0 {
		return []byte("{}"), nil
	}

	return append([]byte(nil), i.values...), nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

func countKey(app string) string {
	return appsKey + "." + gjsonEscape(app)
}

// gjsonEscape escapes the characters gjson and sjson treat as path syntax
func gjsonEscape(key string) string {
	escaped := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\':
			escaped = append(escaped, '\\')
		}

		escaped = append(escaped, key[i])
	}

	return string(escaped)
}

var _ Store = (*InmemoryStore)(nil)
