package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	gosync "sync"

	"github.com/gatherly/gathersync/internal/backup"
	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/lifecycle"
	"github.com/gatherly/gathersync/internal/models"
	"github.com/gatherly/gathersync/internal/store"
)

// Engine reconciles the local and remote record stores. It is an explicit
// instance: construct with NewEngine, release with Close. All sync activity
// is event-driven (mutations, connectivity transitions, foreground signals,
// explicit calls); the engine never syncs on a timer.
type Engine struct {
	local   store.LocalStore
	remote  store.RemoteStore
	monitor *lifecycle.Monitor
	queue   *Queue
	backups *backup.Store
	logger  *events.Logger

	mu            gosync.Mutex
	status        models.SyncStatus
	statusSubs    map[int]func(models.SyncStatus)
	nextSubID     int
	authenticated bool
	syncing       bool
	closed        bool
	dropped       int

	detach []func()
	wg     gosync.WaitGroup
}

// NewEngine wires an engine to its stores and the lifecycle monitor. The
// backup store is optional; without it the backup operations fail.
// retryCeiling bounds queued-mutation retries before a drop.
func NewEngine(local store.LocalStore, remote store.RemoteStore, monitor *lifecycle.Monitor, backups *backup.Store, retryCeiling int, logger *events.Logger) *Engine {
	e := &Engine{
		local:      local,
		remote:     remote,
		monitor:    monitor,
		backups:    backups,
		logger:     logger.WithField("component", "sync_engine"),
		status:     models.StatusIdle,
		statusSubs: make(map[int]func(models.SyncStatus)),
	}

	e.queue = NewQueue(retryCeiling, logger, func(m Mutation, err error) {
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
		e.setStatus(models.StatusError)
	})

	// Coming back online drains whatever piled up while offline. Going
	// offline just flips the reported status.
	e.detach = append(e.detach, monitor.Subscribe(func(online bool) {
		if !online {
			e.setStatus(models.StatusOffline)
			return
		}
		e.spawn(func() {
			e.DrainQueue(context.Background())
		})
	}))

	// Foreground means the user is looking at possibly stale data: pull.
	e.detach = append(e.detach, monitor.SubscribeForeground(func() {
		e.spawn(func() {
			if err := e.PullFromCloud(context.Background()); err != nil && !errors.Is(err, models.ErrSyncInProgress) {
				e.logger.WithError(err).Warn("Foreground pull failed")
			}
		})
	}))

	return e
}

// spawn runs fn on the engine's waitgroup unless the engine is closed. The
// closed check and the Add happen under the same lock Close takes before
// waiting, so no goroutine starts after Close begins.
func (e *Engine) spawn(fn func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// Close detaches the engine from the monitor and waits for in-flight
// background pushes. Queued mutations that never made it out are lost with
// the process, as designed for an in-memory queue.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	detach := e.detach
	e.detach = nil
	e.mu.Unlock()

	for _, fn := range detach {
		fn()
	}
	e.wg.Wait()

	e.logger.Debug("Engine closed")
	return nil
}

// Status returns the current sync status.
func (e *Engine) Status() models.SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SubscribeStatus registers a status-change callback, fired on every
// transition. The returned function unsubscribes.
func (e *Engine) SubscribeStatus(fn func(models.SyncStatus)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSubID
	e.nextSubID++
	e.statusSubs[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.statusSubs, id)
	}
}

func (e *Engine) setStatus(status models.SyncStatus) {
	e.mu.Lock()
	if e.status == status {
		e.mu.Unlock()
		return
	}
	e.status = status

	subs := make([]func(models.SyncStatus), 0, len(e.statusSubs))
	for _, fn := range e.statusSubs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	e.logger.WithField("status", status.String()).Debug("Status changed")

	for _, fn := range subs {
		fn(status)
	}
}

// SetAuthenticated flips the auth gate. Becoming authenticated while online
// kicks off a full sync in the background.
func (e *Engine) SetAuthenticated(ok bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	was := e.authenticated
	e.authenticated = ok
	e.mu.Unlock()

	if ok && !was && e.monitor.Online() {
		e.spawn(func() {
			if err := e.SyncAll(context.Background()); err != nil && !errors.Is(err, models.ErrSyncInProgress) {
				e.logger.WithError(err).Warn("Post-login sync failed")
			}
		})
	}
}

// Authenticated reports whether the auth gate is open.
func (e *Engine) Authenticated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authenticated
}

// DroppedMutations reports how many queued mutations were dropped after
// exhausting their retries.
func (e *Engine) DroppedMutations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// QueueLen reports the number of pending queued mutations.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// beginSync acquires the single-sync-at-a-time guard.
func (e *Engine) beginSync() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return models.ErrEngineClosed
	}
	if !e.authenticated {
		return models.ErrNotAuthenticated
	}
	if e.syncing {
		return models.ErrSyncInProgress
	}
	e.syncing = true
	return nil
}

func (e *Engine) endSync() {
	e.mu.Lock()
	e.syncing = false
	e.mu.Unlock()
}

// PullFromCloud merges the remote record set into the local store. Conflicts
// resolve last-write-wins on UpdatedAt, with ties keeping the local copy, and
// deletes always winning so a tombstone is never resurrected. Records that
// exist only locally are left alone; push carries them up. No-ops while
// offline or when a sync is already running.
func (e *Engine) PullFromCloud(ctx context.Context) error {
	if err := e.beginSync(); err != nil {
		return err
	}
	defer e.endSync()

	return e.pull(ctx)
}

func (e *Engine) pull(ctx context.Context) error {
	if !e.monitor.Online() {
		e.setStatus(models.StatusOffline)
		return nil
	}

	e.setStatus(models.StatusSyncing)

	remoteRecs, err := e.remote.GetAll(ctx)
	if err != nil {
		e.reportRemoteFailure(err, "Pull failed")
		return err
	}

	localRecs, err := e.local.GetAllRaw()
	if err != nil {
		e.setStatus(models.StatusError)
		return err
	}

	locals := make(map[string]*models.Record, len(localRecs))
	for _, rec := range localRecs {
		locals[rec.ID] = rec
	}

	var adopted, merged, failed int
	for _, rr := range remoteRecs {
		lr, ok := locals[rr.ID]
		if !ok {
			if _, err := e.local.AddWithID(rr.Clone()); err != nil && !errors.Is(err, models.ErrRecordExists) {
				e.logger.WithError(err).WithField("record_id", rr.ID).Error("Failed to adopt remote record")
				failed++
				continue
			}
			adopted++
			continue
		}

		switch {
		case lr.IsDeleted():
			// Local tombstone stands; push propagates the delete if the
			// remote copy is still live.
		case rr.IsDeleted() || rr.NewerThan(lr):
			if err := e.local.Update(rr.ID, rr.Clone()); err != nil {
				e.logger.WithError(err).WithField("record_id", rr.ID).Error("Failed to merge remote record")
				failed++
				continue
			}
			merged++
		case lr.NewerThan(rr):
			// Local wins; push carries it up.
		default:
			if !recordsEqual(lr, rr) {
				e.logger.WithFields(map[string]interface{}{
					"record_id":  lr.ID,
					"updated_at": lr.UpdatedAt,
				}).Warn("Merge ambiguity: identical timestamps with different content, keeping local copy")
			}
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"remote":  len(remoteRecs),
		"adopted": adopted,
		"merged":  merged,
		"failed":  failed,
	}).Info("Pull complete")

	if failed > 0 {
		e.setStatus(models.StatusError)
		return fmt.Errorf("pull: %d of %d records failed to merge", failed, len(remoteRecs))
	}

	e.setStatus(models.StatusSynced)
	return nil
}

// PushAllToCloud uploads every local record the remote is missing or has an
// older copy of, and propagates local tombstones. Per-record failures are
// isolated: one bad record never blocks the rest of the batch.
func (e *Engine) PushAllToCloud(ctx context.Context) error {
	if err := e.beginSync(); err != nil {
		return err
	}
	defer e.endSync()

	return e.push(ctx)
}

func (e *Engine) push(ctx context.Context) error {
	if !e.monitor.Online() {
		e.setStatus(models.StatusOffline)
		return nil
	}

	e.setStatus(models.StatusSyncing)

	remoteRecs, err := e.remote.GetAll(ctx)
	if err != nil {
		e.reportRemoteFailure(err, "Push failed")
		return err
	}

	remotes := make(map[string]*models.Record, len(remoteRecs))
	for _, rec := range remoteRecs {
		remotes[rec.ID] = rec
	}

	localRecs, err := e.local.GetAllRaw()
	if err != nil {
		e.setStatus(models.StatusError)
		return err
	}

	var pushed, failed int
	for _, lr := range localRecs {
		rr, exists := remotes[lr.ID]

		var pushErr error
		switch {
		case lr.IsDeleted():
			if exists && rr.IsDeleted() {
				continue
			}
			pushErr = e.remote.Delete(ctx, lr.ID)
		case !exists:
			_, pushErr = e.remote.Add(ctx, lr.Clone())
		case lr.NewerThan(rr):
			pushErr = e.remote.Update(ctx, lr.ID, lr.Clone())
		default:
			continue
		}

		if pushErr != nil {
			e.logger.WithError(pushErr).WithField("record_id", lr.ID).Error("Failed to push record")
			failed++
			continue
		}
		pushed++
	}

	e.logger.WithFields(map[string]interface{}{
		"local":  len(localRecs),
		"pushed": pushed,
		"failed": failed,
	}).Info("Push complete")

	if failed > 0 {
		e.setStatus(models.StatusError)
		return fmt.Errorf("push: %d of %d records failed", failed, len(localRecs))
	}

	e.setStatus(models.StatusSynced)
	return nil
}

// SyncAll runs a pull-merge followed by a push-all as one guarded cycle.
// The pull happens first so local merge results are what gets pushed.
func (e *Engine) SyncAll(ctx context.Context) error {
	if err := e.beginSync(); err != nil {
		return err
	}
	defer e.endSync()

	if err := e.pull(ctx); err != nil {
		return err
	}
	return e.push(ctx)
}

// GetAll returns live local records.
func (e *Engine) GetAll() ([]*models.Record, error) {
	return e.local.GetAll()
}

// Get returns a live local record by ID.
func (e *Engine) Get(id string) (*models.Record, error) {
	rec, err := e.local.Get(id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted() {
		return nil, models.ErrRecordNotFound
	}
	return rec, nil
}

// CreateRecord writes the record locally and returns immediately; the remote
// write happens in the background. Local write failures surface to the
// caller, remote failures go to the sync queue.
func (e *Engine) CreateRecord(record *models.Record) (*models.Record, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	stored, err := e.local.Add(record)
	if err != nil {
		return nil, err
	}

	e.dispatch(Mutation{Op: OpCreate, RecordID: stored.ID, Payload: stored.Clone()})
	return stored, nil
}

// UpdateRecord replaces a record locally, bumping UpdatedAt past the stored
// value, and pushes in the background. Updating a tombstoned or missing
// record fails with models.ErrRecordNotFound.
func (e *Engine) UpdateRecord(id string, record *models.Record) (*models.Record, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	existing, err := e.local.Get(id)
	if err != nil {
		return nil, err
	}
	if existing.IsDeleted() {
		return nil, models.ErrRecordNotFound
	}

	updated := record.Clone()
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = existing.UpdatedAt
	updated.Touch()

	if err := e.local.Update(id, updated); err != nil {
		return nil, err
	}

	e.dispatch(Mutation{Op: OpUpdate, RecordID: id, Payload: updated.Clone()})
	return updated, nil
}

// DeleteRecord tombstones a record locally and propagates the delete in the
// background. Deleting an already-deleted record is a no-op.
func (e *Engine) DeleteRecord(id string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	if err := e.local.Delete(id); err != nil {
		return err
	}

	e.dispatch(Mutation{Op: OpDelete, RecordID: id})
	return nil
}

// DrainQueue pushes queued mutations if online and authenticated. Returns
// how many were pushed and how many failed this pass.
func (e *Engine) DrainQueue(ctx context.Context) (pushed, failed int) {
	e.mu.Lock()
	ready := !e.closed && e.authenticated
	e.mu.Unlock()

	if !ready || !e.monitor.Online() || e.queue.Len() == 0 {
		return 0, 0
	}

	e.setStatus(models.StatusSyncing)
	pushed, failed = e.queue.Drain(ctx, e.pushMutation)

	if failed > 0 {
		e.setStatus(models.StatusError)
	} else {
		e.setStatus(models.StatusSynced)
	}
	return pushed, failed
}

// checkOpen fails fast once the engine is closed.
func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return models.ErrEngineClosed
	}
	return nil
}

// dispatch sends a mutation to the remote in the background, or straight to
// the queue when the remote is known unreachable.
func (e *Engine) dispatch(m Mutation) {
	e.mu.Lock()
	ready := e.authenticated && !e.closed
	e.mu.Unlock()

	if !ready || !e.monitor.Online() {
		e.queue.Enqueue(m)
		if !e.monitor.Online() {
			e.setStatus(models.StatusOffline)
		}
		return
	}

	e.spawn(func() {
		e.setStatus(models.StatusSyncing)
		if err := e.pushMutation(context.Background(), m); err != nil {
			e.queue.Enqueue(m)
			if models.IsUnreachable(err) {
				e.setStatus(models.StatusOffline)
			} else {
				e.setStatus(models.StatusError)
			}
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"op":        string(m.Op),
				"record_id": m.RecordID,
			}).Warn("Background push failed, queued for retry")
			return
		}
		e.setStatus(models.StatusSynced)
	})
}

// pushMutation replays one mutation against the remote store. Creates that
// collide fall back to updates, and updates for records the remote never saw
// fall back to creates, so replay order does not matter across retries.
func (e *Engine) pushMutation(ctx context.Context, m Mutation) error {
	switch m.Op {
	case OpCreate:
		_, err := e.remote.Add(ctx, m.Payload)
		if err != nil && isStatusCode(err, http.StatusConflict) {
			return e.remote.Update(ctx, m.RecordID, m.Payload)
		}
		return err
	case OpUpdate:
		err := e.remote.Update(ctx, m.RecordID, m.Payload)
		if err != nil && isStatusCode(err, http.StatusNotFound) {
			_, err = e.remote.Add(ctx, m.Payload)
		}
		return err
	case OpDelete:
		return e.remote.Delete(ctx, m.RecordID)
	default:
		return fmt.Errorf("unknown queued operation %q", m.Op)
	}
}

// reportRemoteFailure maps a remote error to the right status.
func (e *Engine) reportRemoteFailure(err error, msg string) {
	if models.IsUnreachable(err) {
		e.logger.WithError(err).Warn(msg)
		e.setStatus(models.StatusOffline)
		return
	}
	e.logger.WithError(err).Error(msg)
	e.setStatus(models.StatusError)
}

func isStatusCode(err error, status int) bool {
	var re *models.RemoteError
	return errors.As(err, &re) && re.StatusCode == status
}

// recordsEqual compares record content ignoring nothing: two records are
// equal only if every field matches.
func recordsEqual(a, b *models.Record) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}
