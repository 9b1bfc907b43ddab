package translate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
	"github.com/sraza-onshape/OnshapeExperiments/internal/webhook"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

type (
	// Direct requests each translation from the platform itself, after
	// subscribing to completion events for every target
	Direct struct {
		client     platform.Client
		subscriber Subscriber
	}

	// Subscriber registers translation-complete webhooks, and retires them
	// when the translations they cover are abandoned
	Subscriber interface {
		Register(context.Context, webhook.Scope, string) (string, error)
		Unregister(context.Context, string)
	}

	translationBody struct {
		IncludeExportIDs        bool    `json:"includeExportIds"`
		FormatName              string  `json:"formatName"`
		FlattenAssemblies       bool    `json:"flattenAssemblies"`
		YAxisIsUp               bool    `json:"yAxisIsUp"`
		TriggerAutoDownload     bool    `json:"triggerAutoDownload"`
		StoreInDocument         bool    `json:"storeInDocument"`
		Grouping                bool    `json:"grouping"`
		Configuration           string  `json:"configuration"`
		EmailLink               bool    `json:"emailLink"`
		LinkDocumentWorkspaceID string  `json:"linkDocumentWorkspaceId,omitempty"`
		ElementID               string  `json:"elementId,omitempty"`
		PartIDs                 string  `json:"partIds,omitempty"`
		Resolution              string  `json:"resolution"`
		DistanceTolerance       float64 `json:"distanceTolerance"`
		AngularTolerance        float64 `json:"angularTolerance"`
		MaximumChordLength      float64 `json:"maximumChordLength"`
	}
)

var _ Trigger = (*Direct)(nil)

// NewDirect creates a Trigger that calls the platform translation API.
// subscriber may be nil when completion webhooks are managed elsewhere
func NewDirect(client platform.Client, subscriber Subscriber) *Direct {
	return &Direct{
		client:     client,
		subscriber: subscriber,
	}
}

func (d *Direct) Trigger(
	ctx context.Context, req *Request,
) ([]api.TranslationID, error) {
	if err := req.Params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTrigger, err)
	}
	if len(req.Targets) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrTrigger, ErrNoTargets)
	}
	for _, t := range req.Targets {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTrigger, err)
		}
	}

	hooks, err := d.subscribe(ctx, req)
	if err != nil {
		d.unsubscribe(ctx, hooks)
		return nil, fmt.Errorf("%w: %w", ErrTrigger, err)
	}

	ids := make([]api.TranslationID, 0, len(req.Targets))
	for _, t := range req.Targets {
		id, err := d.start(ctx, t, req.Params)
		if err != nil {
			if len(ids) > 0 {
				slog.Warn("Abandoning partially triggered translations",
					log.ReleaseID(req.ReleaseID),
					slog.Any("translation_ids", ids))
			}
			d.unsubscribe(ctx, hooks)
			return nil, fmt.Errorf("%w: %w", ErrTrigger, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// subscribe registers one webhook per target, so each completion retires
// its own. It returns the ids registered before any failure
func (d *Direct) subscribe(
	ctx context.Context, req *Request,
) ([]string, error) {
	if d.subscriber == nil {
		return nil, nil
	}
	hooks := make([]string, 0, len(req.Targets))
	for _, t := range req.Targets {
		scope := webhook.DocumentScope(t.DocumentID, t.Workspace(), t.ElementID)
		id, err := d.subscriber.Register(ctx, scope, req.CallbackURL)
		if err != nil {
			return hooks, err
		}
		hooks = append(hooks, id)
	}
	return hooks, nil
}

func (d *Direct) unsubscribe(ctx context.Context, hooks []string) {
	if len(hooks) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, id := range hooks {
		d.subscriber.Unregister(ctx, id)
	}
}

func (d *Direct) start(
	ctx context.Context, t Target, p Params,
) (api.TranslationID, error) {
	body := newTranslationBody(p)
	body.LinkDocumentWorkspaceID = t.Workspace()
	if t.IsPart() {
		body.PartIDs = t.PartID
	} else {
		body.ElementID = t.ElementID
	}

	resp, err := d.client.Do(ctx, &platform.Request{
		Verb: http.MethodPost,
		Path: t.Path(),
		Body: body,
	})
	if err != nil {
		return "", err
	}

	id := resp.JSON().Get("id").String()
	if id == "" {
		return "", fmt.Errorf("no translation id returned for %s", t.Path())
	}
	slog.Info("Translation requested",
		log.TranslationID(id),
		slog.String("path", t.Path()))
	return api.TranslationID(id), nil
}

func newTranslationBody(p Params) *translationBody {
	return &translationBody{
		FormatName:         p.FormatName,
		Grouping:           true,
		Configuration:      "default",
		Resolution:         p.Resolution,
		DistanceTolerance:  p.DistanceTolerance,
		AngularTolerance:   p.AngularTolerance,
		MaximumChordLength: p.MaximumChordLength,
	}
}
