package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

type (
	// Flow delegates translation to an automation Flow, which registers the
	// completion webhooks and reports the job ids it started
	Flow struct {
		http *platform.HTTPClient
		url  string
	}

	flowRequest struct {
		WebhookCallbackURL string `json:"webhookCallbackUrl"`
		ReleasePackageID   string `json:"releasePackageId"`
	}
)

var (
	ErrFlowUnsuccessful = errors.New("trigger flow returned success=false")

	_ Trigger = (*Flow)(nil)
)

// NewFlow creates a Trigger that posts to the trigger Flow at url
func NewFlow(c *platform.HTTPClient, url string) *Flow {
	return &Flow{
		http: c,
		url:  url,
	}
}

func (f *Flow) Trigger(
	ctx context.Context, req *Request,
) ([]api.TranslationID, error) {
	if req.ReleaseID == "" {
		return nil, fmt.Errorf("%w: release id is required", ErrTrigger)
	}

	resp, err := f.http.PostJSON(ctx, f.url, &flowRequest{
		WebhookCallbackURL: req.CallbackURL,
		ReleasePackageID:   req.ReleaseID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTrigger, err)
	}

	res := resp.JSON()
	if !res.Get("success").Bool() {
		slog.Error("Trigger flow unsuccessful",
			log.ReleaseID(req.ReleaseID),
			slog.String("response_body", string(resp.Body)))
		return nil, fmt.Errorf("%w: %w", ErrTrigger, ErrFlowUnsuccessful)
	}

	results := res.Get("data.translationRequestResults")
	if !results.IsArray() {
		return nil, fmt.Errorf("%w: missing translationRequestResults",
			ErrTrigger)
	}

	var ids []api.TranslationID
	for _, r := range results.Array() {
		id := r.Get("id").String()
		if id == "" {
			return nil, fmt.Errorf("%w: translation result without id",
				ErrTrigger)
		}
		ids = append(ids, api.TranslationID(id))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrTrigger, ErrNoTargets)
	}
	return ids, nil
}
