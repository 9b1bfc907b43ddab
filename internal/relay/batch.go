package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/sraza-onshape/OnshapeExperiments/internal/config"
	"github.com/sraza-onshape/OnshapeExperiments/internal/export"
	"github.com/sraza-onshape/OnshapeExperiments/internal/ledger"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

const timeFormat = time.RFC3339

// count dumps the progress ledger and counts the entries still in progress
func (c *Correlator) count(
	ctx context.Context,
) ([]ledger.Record[api.Entry], int, error) {
	recs, err := c.stores.Progress.Dump(ctx)
	if err != nil {
		return nil, 0, err
	}
	n := 0
	for _, r := range recs {
		if r.Value.Status == api.StatusInProgress {
			n++
		}
	}
	return recs, n, nil
}

// closeBatch moves a drained batch to Closed. The closure record is the
// guard: only the caller that inserts it dispatches. Reports whether this
// call dispatched
func (c *Correlator) closeBatch(
	ctx context.Context, recs []ledger.Record[api.Entry],
) (bool, error) {
	batch, err := c.buildBatch(ctx, recs)
	if err != nil {
		return false, err
	}
	if len(batch.TranslatedFiles) == 0 {
		return false, nil
	}
	if batch.ID == "" {
		// settled by another instance after its batch was cleared
		c.discard(ctx, batch)
		return false, nil
	}

	won, err := c.stores.Closures.SetIfAbsent(
		ctx, batch.ID, batch.ClosedAt.Format(timeFormat),
	)
	if err != nil {
		return false, err
	}
	if !won {
		slog.Debug("Batch already closed", log.BatchID(batch.ID))
		return false, nil
	}

	if c.clearPolicy == config.ClearOnSuccess {
		if err := c.exporter.Dispatch(ctx, batch); err != nil {
			c.reopen(ctx, batch, err)
			return false, err
		}
		c.clear(ctx, batch)
		return true, nil
	}

	c.queue.Enqueue(batch, c.dispatched)
	c.clear(ctx, batch)
	return true, nil
}

func (c *Correlator) buildBatch(
	ctx context.Context, recs []ledger.Record[api.Entry],
) (*export.Batch, error) {
	settings, err := c.settings(ctx)
	if err != nil {
		return nil, err
	}

	b := &export.Batch{
		ID:              markerValue(recs, batchIDKey),
		ReleaseID:       markerValue(recs, batchReleaseKey),
		FolderName:      markerValue(recs, batchFolderKey),
		Settings:        settings,
		TranslatedFiles: map[string]string{},
		ClosedAt:        c.now().UTC(),
	}
	for _, r := range recs {
		if r.Value.Status == api.StatusMarker {
			continue
		}
		b.TranslatedFiles[r.Key] = r.Value.ExportValue()
	}
	return b, nil
}

// reopen undoes a close whose dispatch failed. The ledger is left intact
// so a re-delivered completion can close the batch again
func (c *Correlator) reopen(ctx context.Context, b *export.Batch, err error) {
	if derr := c.stores.Closures.Delete(ctx, b.ID); derr != nil {
		slog.Error("Failed to reopen batch",
			log.BatchID(b.ID),
			log.Error(derr))
	}
	c.publish(&api.ProgressEvent{
		Type:      api.ProgressDispatchFailed,
		BatchID:   b.ID,
		ReleaseID: b.ReleaseID,
		Error:     err.Error(),
	})
}

func (c *Correlator) discard(ctx context.Context, b *export.Batch) {
	for key := range b.TranslatedFiles {
		if err := c.stores.Progress.Delete(ctx, key); err != nil {
			slog.Error("Failed to discard stray entry",
				log.TranslationID(key),
				log.Error(err))
		}
	}
	slog.Warn("Discarded entries outside any batch",
		slog.Int("entries", len(b.TranslatedFiles)))
}

func (c *Correlator) clear(ctx context.Context, b *export.Batch) {
	if err := c.stores.Progress.Clear(ctx); err != nil {
		slog.Error("Failed to clear progress ledger",
			log.BatchID(b.ID),
			log.Error(err))
	}
	if err := c.stores.Settings.Clear(ctx); err != nil {
		slog.Error("Failed to clear settings",
			log.BatchID(b.ID),
			log.Error(err))
	}
	slog.Info("Batch closed",
		log.BatchID(b.ID),
		log.ReleaseID(b.ReleaseID),
		slog.Int("files", len(b.TranslatedFiles)))
	c.publish(&api.ProgressEvent{
		Type:      api.ProgressBatchClosed,
		BatchID:   b.ID,
		ReleaseID: b.ReleaseID,
	})
}

// dispatched observes queued dispatches. The ledger is already cleared, so
// a failure can only be reported
func (c *Correlator) dispatched(b *export.Batch, err error) {
	if err == nil {
		return
	}
	c.publish(&api.ProgressEvent{
		Type:      api.ProgressDispatchFailed,
		BatchID:   b.ID,
		ReleaseID: b.ReleaseID,
		Error:     err.Error(),
	})
}

func markerValue(recs []ledger.Record[api.Entry], key string) string {
	for _, r := range recs {
		if r.Key == key && r.Value.Status == api.StatusMarker {
			return r.Value.Value
		}
	}
	return ""
}
