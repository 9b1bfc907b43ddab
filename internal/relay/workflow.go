package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
	"github.com/sraza-onshape/OnshapeExperiments/internal/translate"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

// Reserved progress keys. Their entries carry StatusMarker
const (
	releaseKeyPrefix = "release/"
	batchIDKey       = "batch/id"
	batchFolderKey   = "batch/folder"
	batchReleaseKey  = "batch/release"
)

func (c *Correlator) handleWorkflow(
	ctx context.Context, ev *api.Event,
) Outcome {
	if ev.ObjectType != api.ObjectTypeRelease {
		return ok(api.OutputResponse{
			Output: fmt.Sprintf("Ignoring workflow event for %s", ev.ObjectType),
		})
	}
	if ev.ObjectID == "" {
		return fail(http.StatusBadRequest,
			fmt.Errorf("%w: release event without objectId", ErrCorrelation))
	}
	releaseID := ev.ObjectID

	audit, err := c.platform.Do(ctx, &platform.Request{
		Verb: http.MethodGet,
		Path: fmt.Sprintf("workflow/obj/%s/auditlog", releaseID),
	})
	if err != nil {
		return outboundFailure(err)
	}
	auditLog := audit.JSON()
	if !isReleased(auditLog) {
		return ok(api.OutputResponse{Output: auditLog.Value()})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	claimKey := releaseKeyPrefix + releaseID
	won, err := c.stores.Progress.SetIfAbsent(
		ctx, claimKey, api.Marker(c.now().UTC().Format(timeFormat)),
	)
	if err != nil {
		return ledgerFailure(err)
	}
	if !won {
		slog.Info("Duplicate release notification", log.ReleaseID(releaseID))
		return ok(api.OutputResponse{
			Output: fmt.Sprintf("Release %s is already being exported", releaseID),
		})
	}

	res, err := c.openBatch(ctx, releaseID)
	if err != nil {
		if derr := c.stores.Progress.Delete(ctx, claimKey); derr != nil {
			slog.Error("Failed to release claim",
				log.ReleaseID(releaseID),
				log.Error(derr))
		}
		slog.Error("Failed to open batch",
			log.ReleaseID(releaseID),
			log.Error(err))
		return outboundFailure(err)
	}
	return ok(res)
}

// openBatch fetches the release, triggers its translations and records
// them. Nothing is written unless the trigger succeeds
func (c *Correlator) openBatch(
	ctx context.Context, releaseID string,
) (*api.TriggerResponse, error) {
	pkgResp, err := c.platform.Do(ctx, &platform.Request{
		Verb: http.MethodGet,
		Path: fmt.Sprintf("releasepackages/%s?detailed=true", releaseID),
	})
	if err != nil {
		return nil, err
	}
	pkg := pkgResp.JSON()

	ids, err := c.trigger.Trigger(ctx, &translate.Request{
		ReleaseID:   releaseID,
		Targets:     translate.TargetsFromRelease(pkg),
		Params:      c.params,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return nil, err
	}

	progress := c.stores.Progress
	folder := fmt.Sprintf("Release-%s-Export", pkg.Get("name").String())
	markers := []struct{ key, value string }{
		{batchIDKey, uuid.NewString()},
		{batchFolderKey, folder},
		{batchReleaseKey, releaseID},
	}
	// a release arriving while another batch drains joins that batch
	for _, m := range markers {
		if _, err := progress.SetIfAbsent(
			ctx, m.key, api.Marker(m.value),
		); err != nil {
			return nil, err
		}
	}

	for _, id := range ids {
		if _, err := progress.SetIfAbsent(
			ctx, string(id), api.InProgress(),
		); err != nil {
			return nil, err
		}
	}

	batchID := c.marker(ctx, batchIDKey)
	slog.Info("Batch opened",
		log.BatchID(batchID),
		log.ReleaseID(releaseID),
		slog.Int("translations", len(ids)))
	c.publish(&api.ProgressEvent{
		Type:      api.ProgressBatchOpened,
		BatchID:   batchID,
		ReleaseID: releaseID,
		Remaining: len(ids),
	})

	return &api.TriggerResponse{
		BatchID:        batchID,
		ReleaseID:      releaseID,
		FolderName:     c.marker(ctx, batchFolderKey),
		TranslationIDs: ids,
	}, nil
}

func (c *Correlator) marker(ctx context.Context, key string) string {
	e, _, err := c.stores.Progress.Get(ctx, key)
	if err != nil {
		slog.Warn("Failed to read batch marker",
			slog.String("key", key),
			log.Error(err))
	}
	return e.Value
}

func isReleased(auditLog gjson.Result) bool {
	released := false
	auditLog.Get("entries").ForEach(func(_, e gjson.Result) bool {
		if e.Get("workflowState").String() == api.ReleaseStateCompleted {
			released = true
			return false
		}
		return true
	})
	return released
}
