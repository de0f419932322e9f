package sync

import (
	"context"

	"github.com/gatherly/gathersync/internal/backup"
	"github.com/gatherly/gathersync/internal/models"
)

// Backup snapshots the full local record set, tombstones included, tagged
// with a reason.
func (e *Engine) Backup(reason string) (*backup.Info, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if e.backups == nil {
		return nil, models.ErrBackupNotFound
	}

	records, err := e.local.GetAllRaw()
	if err != nil {
		return nil, err
	}
	return e.backups.Create(reason, records)
}

// RestoreBackup replaces the local record set with a snapshot. The current
// state is backed up first, so a restore is itself recoverable. Restored
// records go through the normal push pipeline: each one is queued and the
// queue drained, so the restoration propagates to the remote like any other
// local edit.
func (e *Engine) RestoreBackup(ctx context.Context, id string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if e.backups == nil {
		return models.ErrBackupNotFound
	}

	snap, err := e.backups.Load(id)
	if err != nil {
		return err
	}

	if _, err := e.Backup("pre-restore"); err != nil {
		return err
	}

	if err := e.local.Reset(); err != nil {
		return err
	}

	for _, rec := range snap.Records {
		if _, err := e.local.AddWithID(rec.Clone()); err != nil {
			return err
		}

		if rec.IsDeleted() {
			e.queue.Enqueue(Mutation{Op: OpDelete, RecordID: rec.ID})
		} else {
			e.queue.Enqueue(Mutation{Op: OpUpdate, RecordID: rec.ID, Payload: rec.Clone()})
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"backup_id": id,
		"records":   len(snap.Records),
	}).Info("Backup restored")

	e.DrainQueue(ctx)
	return nil
}

// ResetLocal purges all local records after taking a safety backup. The
// remote store is untouched; a later pull re-adopts whatever lives there.
func (e *Engine) ResetLocal() error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	if e.backups != nil {
		if _, err := e.Backup("pre-reset"); err != nil {
			return err
		}
	}

	e.queue.Clear()
	return e.local.Reset()
}
