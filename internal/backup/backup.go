// Package backup exports JSON snapshots of the record store to a blob store
// and restores the record store from them.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"astrocore/internal/blob"
	"astrocore/pkg/domain"
)

const (
	// DefaultPrefix is the key prefix every snapshot is written under.
	DefaultPrefix = "backups/"
	// FormatVersion identifies the snapshot document layout.
	FormatVersion = 1

	contentType = "application/json"
	keyLayout   = "20060102T150405.000000000Z"
)

// Snapshot is a full copy of the three tables.
type Snapshot struct {
	Version int       `json:"version"`
	TakenAt time.Time `json:"taken_at"`
	domain.Dataset
}

// Capture reads every record inside a single read transaction.
func Capture(ctx context.Context, store domain.PersistentStore, now time.Time) (Snapshot, error) {
	snap := Snapshot{Version: FormatVersion, TakenAt: now.UTC()}
	err := store.View(ctx, func(v domain.TransactionView) error {
		var err error
		if snap.Scientists, err = v.ListScientists(); err != nil {
			return fmt.Errorf("list scientists: %w", err)
		}
		if snap.Planets, err = v.ListPlanets(); err != nil {
			return fmt.Errorf("list planets: %w", err)
		}
		if snap.Missions, err = v.ListMissions(); err != nil {
			return fmt.Errorf("list missions: %w", err)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Manager writes, reads, restores and prunes snapshots.
type Manager struct {
	store domain.PersistentStore
	blobs blob.Store
	now   func() time.Time
}

// NewManager binds a record store to a blob store. now defaults to time.Now.
func NewManager(store domain.PersistentStore, blobs blob.Store, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, blobs: blobs, now: now}
}

// Key returns the blob key for a snapshot taken at t.
func Key(t time.Time) string {
	return DefaultPrefix + "astrocore-" + t.UTC().Format(keyLayout) + ".json"
}

// Create captures a snapshot and stores it under a timestamped key.
func (m *Manager) Create(ctx context.Context) (blob.Info, error) {
	snap, err := Capture(ctx, m.store, m.now())
	if err != nil {
		return blob.Info{}, fmt.Errorf("capture snapshot: %w", err)
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	info, err := m.blobs.Put(ctx, Key(snap.TakenAt), bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"format_version": strconv.Itoa(FormatVersion),
			"scientists":     strconv.Itoa(len(snap.Scientists)),
			"planets":        strconv.Itoa(len(snap.Planets)),
			"missions":       strconv.Itoa(len(snap.Missions)),
		},
	})
	if err != nil {
		if errors.Is(err, blob.ErrExists) {
			return blob.Info{}, fmt.Errorf("snapshot %s already stored: %w", Key(snap.TakenAt), err)
		}
		return blob.Info{}, fmt.Errorf("store snapshot: %w", err)
	}
	return info, nil
}

// List returns stored snapshots under prefix, newest first.
func (m *Manager) List(ctx context.Context, prefix string) ([]blob.Info, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	items, err := m.blobs.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Key > items[j].Key })
	return items, nil
}

// Load reads and decodes the snapshot stored at key.
func (m *Manager) Load(ctx context.Context, key string) (Snapshot, error) {
	_, rc, err := m.blobs.Get(ctx, key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	if snap.Version != FormatVersion {
		return Snapshot{}, fmt.Errorf("snapshot %s has unsupported version %d", key, snap.Version)
	}
	return snap, nil
}

// Restore loads the snapshot at key and replaces every record with it in one
// transaction. A snapshot that fails validation or the rules leaves the store
// untouched.
func (m *Manager) Restore(ctx context.Context, key string) (Snapshot, error) {
	snap, err := m.Load(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	if _, err := m.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.Restore(snap.Dataset)
	}); err != nil {
		return Snapshot{}, fmt.Errorf("restore snapshot %s: %w", key, err)
	}
	return snap, nil
}

// Prune deletes all but the newest keep snapshots under DefaultPrefix and
// returns the removed keys.
func (m *Manager) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	items, err := m.List(ctx, DefaultPrefix)
	if err != nil {
		return nil, err
	}
	if len(items) <= keep {
		return nil, nil
	}
	var removed []string
	for _, item := range items[keep:] {
		existed, err := m.blobs.Delete(ctx, item.Key)
		if err != nil {
			return removed, fmt.Errorf("delete snapshot %s: %w", item.Key, err)
		}
		if existed {
			removed = append(removed, item.Key)
		}
	}
	return removed, nil
}
