package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

const noResultReason = "translation completed without result data"

func (c *Correlator) handleCompletion(
	ctx context.Context, ev *api.Event,
) Outcome {
	id := ev.TranslationID
	if id == "" {
		return fail(http.StatusBadRequest,
			fmt.Errorf("%w: completion without translationId", ErrCorrelation))
	}

	c.registrar.Unregister(ctx, ev.WebhookID)

	// waits out a release whose trigger is still recording its jobs
	c.mu.Lock()
	cur, found, err := c.stores.Progress.Get(ctx, string(id))
	c.mu.Unlock()
	if err != nil {
		return ledgerFailure(err)
	}
	if !found || cur.Status == api.StatusMarker {
		return unknownTranslation(id)
	}

	var result *api.Entry
	if cur.Status == api.StatusInProgress {
		resp, err := c.platform.Do(ctx, &platform.Request{
			Verb: http.MethodGet,
			Path: "translations/" + string(id),
		})
		if err != nil {
			return outboundFailure(err)
		}
		result = classify(resp.JSON())
		if result == nil {
			slog.Info("Translation reported complete but still active",
				log.TranslationID(id))
			return ok(api.SettledResponse{
				TranslationID: id,
				Entry:         &cur,
			})
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settle(ctx, id, result)
}

// settle writes result over an in-progress entry, then runs the drain
// check. A nil result, or an entry that already settled, only re-runs the
// drain check
func (c *Correlator) settle(
	ctx context.Context, id api.TranslationID, result *api.Entry,
) Outcome {
	cur, found, err := c.stores.Progress.Get(ctx, string(id))
	if err != nil {
		return ledgerFailure(err)
	}
	if !found {
		// the batch closed while the result was being fetched
		return unknownTranslation(id)
	}

	entry := cur
	if cur.Status == api.StatusInProgress && result != nil {
		if err := c.stores.Progress.Set(ctx, string(id), *result); err != nil {
			return ledgerFailure(err)
		}
		entry = *result
		slog.Info("Translation settled",
			log.TranslationID(id),
			log.Status(entry.Status),
			slog.String("value", entry.Value))
	} else {
		slog.Debug("Duplicate completion", log.TranslationID(id))
	}

	recs, remaining, err := c.count(ctx)
	if err != nil {
		return ledgerFailure(err)
	}
	c.publish(&api.ProgressEvent{
		Type:          api.ProgressTranslationSettled,
		BatchID:       markerValue(recs, batchIDKey),
		TranslationID: id,
		Entry:         &entry,
		Remaining:     remaining,
	})

	res := api.SettledResponse{
		TranslationID: id,
		Entry:         &entry,
		Remaining:     remaining,
	}
	if remaining > 0 {
		return ok(res)
	}

	dispatched, err := c.closeBatch(ctx, recs)
	if err != nil {
		return outboundFailure(err)
	}
	res.Dispatched = dispatched
	return ok(res)
}

// classify maps a translation record onto its terminal entry. It returns
// nil while the platform still reports the job as running
func classify(tr gjson.Result) *api.Entry {
	state := tr.Get("requestState").String()
	if state == api.TranslationStateFailed {
		e := api.Failed(tr.Get("failureReason").String())
		return &e
	}
	if state == "ACTIVE" {
		return nil
	}
	docID := tr.Get("documentId").String()
	dataID := tr.Get("resultExternalDataIds.0").String()
	if docID == "" || dataID == "" {
		e := api.Failed(noResultReason)
		return &e
	}
	e := api.Completed(assetPath(docID, dataID))
	return &e
}

func assetPath(documentID, externalDataID string) string {
	return strings.Join([]string{
		"documents", "d", documentID, "externaldata", externalDataID,
	}, "/")
}

func unknownTranslation(id api.TranslationID) Outcome {
	slog.Warn("Completion for unknown translation", log.TranslationID(id))
	return ok(api.OutputResponse{
		Output: fmt.Sprintf("Translation %s is not tracked", id),
	})
}
