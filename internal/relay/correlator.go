package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sraza-onshape/OnshapeExperiments/internal/config"
	"github.com/sraza-onshape/OnshapeExperiments/internal/export"
	"github.com/sraza-onshape/OnshapeExperiments/internal/ledger"
	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
	"github.com/sraza-onshape/OnshapeExperiments/internal/translate"
	"github.com/sraza-onshape/OnshapeExperiments/internal/webhook"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

type (
	// Correlator is the batch state machine behind the event endpoint
	Correlator struct {
		stores      *ledger.Stores
		platform    platform.Client
		registrar   Registrar
		trigger     translate.Trigger
		exporter    Exporter
		queue       *export.Queue
		feed        *Feed
		params      translate.Params
		callbackURL string
		clearPolicy string
		now         func() time.Time
		mu          sync.Mutex
	}

	// Dependencies are the collaborators a Correlator is built from
	Dependencies struct {
		Stores    *ledger.Stores
		Platform  platform.Client
		Registrar Registrar
		Trigger   translate.Trigger
		Exporter  Exporter
		Queue     *export.Queue
		Feed      *Feed
	}

	// Registrar manages webhook subscriptions
	Registrar interface {
		Register(context.Context, webhook.Scope, string) (string, error)
		Unregister(context.Context, string)
	}

	// Exporter delivers a closed batch
	Exporter interface {
		Dispatch(context.Context, *export.Batch) error
	}

	// Outcome is the status and body returned to the platform
	Outcome struct {
		Status int
		Body   any
	}
)

var (
	ErrCorrelation        = errors.New("malformed event")
	ErrMissingDependency  = errors.New("missing correlator dependency")
	ErrQueueRequired      = errors.New("clear policy always needs a queue")
	ErrLedgerAccessFailed = errors.New("ledger access failed")
)

// New creates a Correlator
func New(cfg *config.Config, deps Dependencies) (*Correlator, error) {
	if deps.Stores == nil || deps.Platform == nil ||
		deps.Registrar == nil || deps.Trigger == nil ||
		deps.Exporter == nil {
		return nil, ErrMissingDependency
	}
	if cfg.Export.ClearPolicy == config.ClearAlways && deps.Queue == nil {
		return nil, ErrQueueRequired
	}
	feed := deps.Feed
	if feed == nil {
		feed = NewFeed()
	}

	return &Correlator{
		stores:      deps.Stores,
		platform:    deps.Platform,
		registrar:   deps.Registrar,
		trigger:     deps.Trigger,
		exporter:    deps.Exporter,
		queue:       deps.Queue,
		feed:        feed,
		params:      paramsFromConfig(cfg.Translation),
		callbackURL: cfg.CallbackURL(),
		clearPolicy: cfg.Export.ClearPolicy,
		now:         time.Now,
	}, nil
}

// Feed returns the progress feed transitions are published on
func (c *Correlator) Feed() *Feed {
	return c.feed
}

// Handle runs the transition for one inbound event
func (c *Correlator) Handle(ctx context.Context, ev *api.Event) Outcome {
	switch {
	case ev.IsProbe():
		slog.Info("Webhook probe acknowledged", log.Event(ev.Name))
		return ok(api.OutputResponse{Output: api.ReadyMessage})
	case ev.Name == api.EventWorkflowTransition:
		return c.handleWorkflow(ctx, ev)
	case ev.Name == api.EventTranslationComplete:
		return c.handleCompletion(ctx, ev)
	default:
		slog.Debug("Ignoring unrecognized event", log.Event(ev.Name))
		return Outcome{Status: http.StatusNotFound}
	}
}

// Subscribe stores the export settings for the next batch and registers
// the company webhook that reports release transitions
func (c *Correlator) Subscribe(
	ctx context.Context, req *api.NotificationRequest,
) Outcome {
	if req.CompanyID == "" {
		return fail(http.StatusBadRequest,
			fmt.Errorf("%w: companyId is required", ErrCorrelation))
	}

	settings := map[string]string{
		api.SettingExportDestination: req.ExportDestination,
		api.SettingEmailAddress:      req.EmailAddress,
		api.SettingEmailMessage:      req.EmailMessage,
	}
	for k, v := range settings {
		if err := c.stores.Settings.Set(ctx, k, v); err != nil {
			return ledgerFailure(err)
		}
	}

	id, err := c.registrar.Register(
		ctx, webhook.CompanyScope(req.CompanyID), c.callbackURL,
	)
	if err != nil {
		slog.Error("Failed to register company webhook",
			slog.String("company_id", req.CompanyID),
			log.Error(err))
		return fail(http.StatusInternalServerError, err)
	}
	return ok(api.NotificationResponse{WebhookID: id})
}

// Status reports a single translation: 404 when unknown, 202 while in
// progress and 200 once settled
func (c *Correlator) Status(ctx context.Context, id api.TranslationID) Outcome {
	entry, found, err := c.stores.Progress.Get(ctx, string(id))
	if err != nil {
		return ledgerFailure(err)
	}
	if !found || entry.Status == api.StatusMarker {
		return fail(http.StatusNotFound,
			fmt.Errorf("unknown translation: %s", id))
	}
	res := api.TranslationStatusResponse{ID: id, Entry: entry}
	if entry.Status == api.StatusInProgress {
		return Outcome{Status: http.StatusAccepted, Body: res}
	}
	return ok(res)
}

// Snapshot dumps the progress and settings ledgers
func (c *Correlator) Snapshot(ctx context.Context) (*api.SnapshotResponse, error) {
	recs, err := c.stores.Progress.Dump(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := c.settings(ctx)
	if err != nil {
		return nil, err
	}

	res := &api.SnapshotResponse{
		Entries:  make(map[string]api.Entry, len(recs)),
		Settings: settings,
	}
	for _, r := range recs {
		res.Entries[r.Key] = r.Value
		if r.Value.Status == api.StatusInProgress {
			res.InProgress++
		}
	}
	return res, nil
}

func (c *Correlator) settings(ctx context.Context) (api.Settings, error) {
	var res api.Settings
	fields := map[string]*string{
		api.SettingExportDestination: &res.ExportDestination,
		api.SettingEmailAddress:      &res.EmailAddress,
		api.SettingEmailMessage:      &res.EmailMessage,
	}
	for k, dst := range fields {
		v, _, err := c.stores.Settings.Get(ctx, k)
		if err != nil {
			return res, err
		}
		*dst = v
	}
	return res, nil
}

func (c *Correlator) publish(ev *api.ProgressEvent) {
	ev.Timestamp = c.now().UnixMilli()
	c.feed.Publish(ev)
}

func paramsFromConfig(t config.TranslationConfig) translate.Params {
	return translate.Params{
		FormatName:         t.Format,
		Resolution:         t.Resolution,
		DistanceTolerance:  t.DistanceTolerance,
		AngularTolerance:   t.AngularTolerance,
		MaximumChordLength: t.MaximumChordLength,
	}
}

func ok(body any) Outcome {
	return Outcome{Status: http.StatusOK, Body: body}
}

func fail(status int, err error) Outcome {
	return Outcome{
		Status: status,
		Body: api.ErrorResponse{
			Error:  err.Error(),
			Status: status,
		},
	}
}

func ledgerFailure(err error) Outcome {
	slog.Error("Ledger access failed", log.Error(err))
	return fail(http.StatusInternalServerError,
		fmt.Errorf("%w: %w", ErrLedgerAccessFailed, err))
}

func outboundFailure(err error) Outcome {
	return fail(http.StatusBadGateway, err)
}
