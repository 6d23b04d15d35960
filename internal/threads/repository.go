// Package threads persists chat threads as a single JSON document in a
// kv.Store, together with the current-thread pointer.
//
// Every write is a whole-collection read-modify-write. Two writers that
// interleave lose one of their updates; the collection belongs to a single
// local user, so no locking is done here.
package threads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/RichardoC/talkback/internal/kv"
	"github.com/RichardoC/talkback/internal/models"
	"go.uber.org/zap"
)

const (
	KeyThreads         = "chat_threads"
	KeyCurrentThreadID = "current_thread_id"
)

var ErrStorage = errors.New("thread storage error")

// StorageError reports a read, write or decode failure of the thread store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

type Repository struct {
	kv     kv.Store
	logger *zap.Logger
}

func NewRepository(store kv.Store, logger *zap.Logger) *Repository {
	return &Repository{kv: store, logger: logger}
}

// ListThreads returns every stored thread in storage order. A missing
// collection is empty; an unreadable or malformed one is a StorageError.
func (r *Repository) ListThreads(ctx context.Context) ([]models.Thread, error) {
	raw, ok, err := r.kv.Get(ctx, KeyThreads)
	if err != nil {
		return nil, &StorageError{Op: "read chat threads", Err: err}
	}
	if !ok || raw == "" {
		return []models.Thread{}, nil
	}

	var threads []models.Thread
	if err := json.Unmarshal([]byte(raw), &threads); err != nil {
		return nil, &StorageError{Op: "decode chat threads", Err: err}
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	return threads, nil
}

// GetThread returns the thread with id, or nil when there is none.
func (r *Repository) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	threads, err := r.ListThreads(ctx)
	if err != nil {
		return nil, err
	}
	for i := range threads {
		if threads[i].ID == id {
			return &threads[i], nil
		}
	}
	return nil, nil
}

// SaveThread replaces the stored thread with the same id, or appends it.
func (r *Repository) SaveThread(ctx context.Context, thread models.Thread) error {
	threads, err := r.ListThreads(ctx)
	if err != nil {
		return err
	}

	if i := slices.IndexFunc(threads, func(t models.Thread) bool { return t.ID == thread.ID }); i >= 0 {
		threads[i] = thread
	} else {
		threads = append(threads, thread)
	}

	if err := r.write(ctx, threads); err != nil {
		return err
	}
	r.logger.Debug("saved chat thread",
		zap.String("threadID", thread.ID),
		zap.Int("messages", len(thread.Messages)))
	return nil
}

// DeleteThread removes the thread with id. Deleting an unknown id is a no-op.
func (r *Repository) DeleteThread(ctx context.Context, id string) error {
	threads, err := r.ListThreads(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(threads, func(t models.Thread) bool { return t.ID == id })
	return r.write(ctx, kept)
}

// CurrentThreadID returns the active thread id, or "" when none is set.
func (r *Repository) CurrentThreadID(ctx context.Context) (string, error) {
	id, _, err := r.kv.Get(ctx, KeyCurrentThreadID)
	if err != nil {
		return "", &StorageError{Op: "read current thread id", Err: err}
	}
	return id, nil
}

func (r *Repository) SetCurrentThreadID(ctx context.Context, id string) error {
	if err := r.kv.Set(ctx, KeyCurrentThreadID, id); err != nil {
		return &StorageError{Op: "save current thread id", Err: err}
	}
	return nil
}

func (r *Repository) ClearCurrentThreadID(ctx context.Context) error {
	if err := r.kv.Remove(ctx, KeyCurrentThreadID); err != nil {
		return &StorageError{Op: "clear current thread id", Err: err}
	}
	return nil
}

func (r *Repository) write(ctx context.Context, threads []models.Thread) error {
	data, err := json.Marshal(threads)
	if err != nil {
		return &StorageError{Op: "encode chat threads", Err: err}
	}
	if err := r.kv.Set(ctx, KeyThreads, string(data)); err != nil {
		return &StorageError{Op: "save chat threads", Err: err}
	}
	return nil
}

// SortByRecent orders threads by UpdatedAt, most recent first.
func SortByRecent(threads []models.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].UpdatedAt > threads[j].UpdatedAt
	})
}
