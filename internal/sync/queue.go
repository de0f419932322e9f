package sync

import (
	"context"
	"sync"
	"time"

	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/models"
)

// Operation is the kind of a queued mutation.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Mutation is a pending remote write. Payload is nil for deletes.
type Mutation struct {
	Op         Operation
	RecordID   string
	Payload    *models.Record
	EnqueuedAt time.Time
	RetryCount int
}

// DropFunc is invoked when a mutation exhausts its retries and is dropped.
// Dropping is reported, never silent.
type DropFunc func(m Mutation, err error)

// Queue is an in-memory, at-least-once queue of pending mutations. There is
// no deduplication: a record mutated twice while offline yields two entries,
// processed in order, and the remote's keyed writes make the last one win.
type Queue struct {
	logger       *events.Logger
	retryCeiling int
	onDrop       DropFunc

	mu       sync.Mutex
	items    []Mutation
	draining bool
}

// NewQueue creates a queue with the given retry ceiling.
func NewQueue(retryCeiling int, logger *events.Logger, onDrop DropFunc) *Queue {
	if onDrop == nil {
		onDrop = func(Mutation, error) {}
	}
	return &Queue{
		logger:       logger.WithField("component", "sync_queue"),
		retryCeiling: retryCeiling,
		onDrop:       onDrop,
	}
}

// Enqueue appends a mutation. O(1), never fails.
func (q *Queue) Enqueue(m Mutation) {
	if m.EnqueuedAt.IsZero() {
		m.EnqueuedAt = time.Now().UTC()
	}

	q.mu.Lock()
	q.items = append(q.items, m)
	depth := len(q.items)
	q.mu.Unlock()

	q.logger.WithFields(map[string]interface{}{
		"op":        string(m.Op),
		"record_id": m.RecordID,
		"depth":     depth,
	}).Debug("Mutation queued")
}

// Clear discards all pending mutations. Used when the local store is purged
// and queued mutations no longer reference anything.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Len reports the number of pending mutations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain processes pending mutations in enqueue order using push. It snapshots
// the queue and clears it up front, so mutations enqueued during the drain
// wait for the next pass. Only one drain runs at a time; overlapping calls
// no-op. A failed item is re-enqueued with its retry count bumped, unless it
// has already hit the ceiling, in which case it is dropped and reported.
// Returns the number of items pushed and the number that failed this pass.
func (q *Queue) Drain(ctx context.Context, push func(ctx context.Context, m Mutation) error) (pushed, failed int) {
	q.mu.Lock()
	if q.draining || len(q.items) == 0 {
		q.mu.Unlock()
		return 0, 0
	}
	q.draining = true
	snapshot := q.items
	q.items = nil
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	q.logger.WithField("count", len(snapshot)).Info("Draining sync queue")

	for _, item := range snapshot {
		if err := ctx.Err(); err != nil {
			// Cancelled mid-drain: everything unprocessed goes back in front
			// of whatever was enqueued meanwhile.
			q.mu.Lock()
			remaining := make([]Mutation, 0, len(snapshot)-pushed-failed+len(q.items))
			remaining = append(remaining, snapshot[pushed+failed:]...)
			q.items = append(remaining, q.items...)
			q.mu.Unlock()
			return pushed, failed
		}

		err := push(ctx, item)
		if err == nil {
			pushed++
			continue
		}
		failed++

		if item.RetryCount >= q.retryCeiling {
			q.logger.WithError(err).WithFields(map[string]interface{}{
				"op":        string(item.Op),
				"record_id": item.RecordID,
				"retries":   item.RetryCount,
			}).Error("Dropping mutation after retry ceiling")
			q.onDrop(item, err)
			continue
		}

		item.RetryCount++
		q.mu.Lock()
		q.items = append(q.items, item)
		q.mu.Unlock()
	}

	return pushed, failed
}
