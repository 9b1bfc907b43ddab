package relay_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	testify "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sraza-onshape/OnshapeExperiments/internal/assert"
	"github.com/sraza-onshape/OnshapeExperiments/internal/assert/helpers"
	"github.com/sraza-onshape/OnshapeExperiments/internal/config"
	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
	"github.com/sraza-onshape/OnshapeExperiments/internal/relay"
	"github.com/sraza-onshape/OnshapeExperiments/internal/translate"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
)

const waitTimeout = 2 * time.Second

var (
	itemA = helpers.ReleaseItem{
		DocumentID: "d1", WorkspaceID: "w1", ElementID: "e1",
		TranslationID: "t1",
	}
	itemB = helpers.ReleaseItem{
		DocumentID: "d1", WorkspaceID: "w1", ElementID: "e2", PartID: "JHD",
		TranslationID: "t2",
	}
)

func onSuccess(c *config.Config) {
	c.Export.ClearPolicy = config.ClearOnSuccess
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := relay.New(helpers.NewTestConfig(), relay.Dependencies{})
	testify.ErrorIs(t, err, relay.ErrMissingDependency)
}

func TestNewRequiresQueueForAlwaysPolicy(t *testing.T) {
	env := helpers.NewTestRelay(t)
	_, err := relay.New(env.Config, relay.Dependencies{
		Stores:    env.Stores,
		Platform:  env.Platform,
		Registrar: env.Registrar,
		Trigger:   &failingTrigger{},
		Exporter:  env.Exporter,
	})
	testify.ErrorIs(t, err, relay.ErrQueueRequired)
}

func TestProbeAcknowledged(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()

	for _, name := range []api.EventName{
		api.EventWebhookRegister, api.EventWebhookPing,
	} {
		out := env.Relay.Handle(ctx, &api.Event{Name: name})
		as.OutcomeStatus(out, http.StatusOK)
		as.Equal(api.OutputResponse{Output: api.ReadyMessage}, out.Body)
	}
	as.LedgerEmpty(ctx, env.Stores)
	as.Empty(env.Platform.Requests())
}

func TestUnknownEventNotFound(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()

	out := env.Relay.Handle(ctx, &api.Event{Name: "onshape.document.lifecycle"})
	as.OutcomeStatus(out, http.StatusNotFound)
	as.Nil(out.Body)
	as.LedgerEmpty(ctx, env.Stores)
	as.Empty(env.Platform.Requests())
}

func TestProbeLeavesOpenBatchAlone(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA)
	as.OutcomeStatus(env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1")),
		http.StatusOK)

	before, err := env.Relay.Snapshot(ctx)
	require.NoError(t, err)
	calls := len(env.Platform.Requests())

	for _, name := range []api.EventName{
		api.EventWebhookRegister, api.EventWebhookPing,
	} {
		out := env.Relay.Handle(ctx, &api.Event{Name: name})
		as.OutcomeStatus(out, http.StatusOK)
		as.Equal(api.OutputResponse{Output: api.ReadyMessage}, out.Body)
	}

	after, err := env.Relay.Snapshot(ctx)
	require.NoError(t, err)
	as.Equal(before, after)
	as.Len(env.Platform.Requests(), calls)
}

func TestUnknownEventLeavesOpenBatchAlone(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA)
	as.OutcomeStatus(env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1")),
		http.StatusOK)

	before, err := env.Relay.Snapshot(ctx)
	require.NoError(t, err)
	calls := len(env.Platform.Requests())

	out := env.Relay.Handle(ctx, &api.Event{
		Name:          "onshape.document.lifecycle",
		TranslationID: "t1",
	})
	as.OutcomeStatus(out, http.StatusNotFound)
	as.Nil(out.Body)

	after, err := env.Relay.Snapshot(ctx)
	require.NoError(t, err)
	as.Equal(before, after)
	as.Equal(1, after.InProgress)
	as.Len(env.Platform.Requests(), calls)
}

func TestWorkflowIgnored(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()

	out := env.Relay.Handle(ctx, &api.Event{
		Name:       api.EventWorkflowTransition,
		ObjectType: "TASK",
		ObjectID:   "task1",
	})
	as.OutcomeStatus(out, http.StatusOK)
	as.Empty(env.Platform.Requests())

	out = env.Relay.Handle(ctx, &api.Event{
		Name:       api.EventWorkflowTransition,
		ObjectType: api.ObjectTypeRelease,
	})
	as.OutcomeStatus(out, http.StatusBadRequest)
}

func TestReleaseNotYetReleased(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubPending("rp1")

	out := env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	as.OutcomeStatus(out, http.StatusOK)
	as.LedgerEmpty(ctx, env.Stores)
	as.Equal(0, env.Platform.Calls("GET", "releasepackages/rp1?detailed=true"))
}

func TestFullBatch(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "Bracket", itemA, itemB)
	env.StubTranslationDone("t1", "d1", "x1")
	env.StubTranslationFailed("t2", "mesh error")

	out := env.Relay.Subscribe(ctx, &api.NotificationRequest{
		CompanyID:         "c1",
		ExportDestination: "s3://bucket",
		EmailAddress:      "ops@example.com",
		EmailMessage:      "done",
	})
	as.OutcomeStatus(out, http.StatusOK)
	as.Equal(api.NotificationResponse{WebhookID: "wh-1"}, out.Body)

	out = env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	as.OutcomeStatus(out, http.StatusOK)
	trig, ok := out.Body.(*api.TriggerResponse)
	require.True(t, ok)
	as.Equal([]api.TranslationID{"t1", "t2"}, trig.TranslationIDs)
	as.Equal("Release-Bracket-Export", trig.FolderName)
	as.NotEmpty(trig.BatchID)
	as.EntryStatus(ctx, env.Stores, "t1", api.StatusInProgress)
	as.EntryStatus(ctx, env.Stores, "t2", api.StatusInProgress)
	as.OutcomeStatus(env.Relay.Status(ctx, "t1"), http.StatusAccepted)

	out = env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-2"))
	as.OutcomeStatus(out, http.StatusOK)
	as.Equal(api.SettledResponse{
		TranslationID: "t1",
		Entry:         &api.Entry{Status: api.StatusCompleted, Value: "documents/d/d1/externaldata/x1"},
		Remaining:     1,
	}, out.Body)
	as.EntryStatus(ctx, env.Stores, "t1", api.StatusCompleted)
	as.OutcomeStatus(env.Relay.Status(ctx, "t1"), http.StatusOK)
	as.Equal(1, env.Platform.Calls("DELETE", "webhooks/wh-2"))

	out = env.Relay.Handle(ctx, helpers.CompletionEvent("t2", "wh-3"))
	as.OutcomeStatus(out, http.StatusOK)
	settled := out.Body.(api.SettledResponse)
	as.True(settled.Dispatched)
	as.Equal(0, settled.Remaining)

	as.Eventually(func() bool {
		return env.Exporter.Count() == 1
	}, waitTimeout, "batch was not dispatched")

	b := env.Exporter.Batches()[0]
	as.Equal(trig.BatchID, b.ID)
	as.Equal("rp1", b.ReleaseID)
	as.Equal("Release-Bracket-Export", b.FolderName)
	as.Equal(map[string]string{
		"t1": "documents/d/d1/externaldata/x1",
		"t2": "mesh error",
	}, b.TranslatedFiles)
	as.Equal(api.Settings{
		ExportDestination: "s3://bucket",
		EmailAddress:      "ops@example.com",
		EmailMessage:      "done",
	}, b.Settings)

	as.LedgerEmpty(ctx, env.Stores)
	as.OutcomeStatus(env.Relay.Status(ctx, "t1"), http.StatusNotFound)
}

func TestDrainScenarios(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	itemC := helpers.ReleaseItem{
		DocumentID: "d2", WorkspaceID: "w2", ElementID: "e3",
		TranslationID: "t3",
	}
	env.StubRelease("rp1", "R1", itemA, itemB, itemC)
	env.StubTranslationDone("t1", "d1", "x1")
	env.StubTranslationDone("t2", "d1", "x2")
	env.StubTranslationDone("t3", "d2", "x3")
	env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))

	// two completions and a duplicate of the first leave one in flight
	env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-2"))
	env.Relay.Handle(ctx, helpers.CompletionEvent("t2", "wh-3"))
	env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-2"))

	snap, err := env.Relay.Snapshot(ctx)
	as.NoError(err)
	as.Equal(1, snap.InProgress)
	as.Equal(0, env.Exporter.Count())

	// the last completion drains the batch
	out := env.Relay.Handle(ctx, helpers.CompletionEvent("t3", "wh-4"))
	as.OutcomeStatus(out, http.StatusOK)
	as.LedgerEmpty(ctx, env.Stores)

	as.Eventually(func() bool {
		return env.Exporter.Count() == 1
	}, waitTimeout, "batch was not dispatched")
	as.Equal(map[string]string{
		"t1": "documents/d/d1/externaldata/x1",
		"t2": "documents/d/d1/externaldata/x2",
		"t3": "documents/d/d2/externaldata/x3",
	}, env.Exporter.Batches()[0].TranslatedFiles)

	// a late duplicate after the close changes nothing
	out = env.Relay.Handle(ctx, helpers.CompletionEvent("t3", "wh-4"))
	as.OutcomeStatus(out, http.StatusOK)
	as.LedgerEmpty(ctx, env.Stores)
	time.Sleep(50 * time.Millisecond)
	as.Equal(1, env.Exporter.Count())
}

func TestDuplicateRelease(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA)

	as.OutcomeStatus(env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1")), 200)
	as.OutcomeStatus(env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1")), 200)

	as.Equal(1, env.Platform.Calls("POST", "assemblies/d/d1/w/w1/e/e1/translations"))
	snap, err := env.Relay.Snapshot(ctx)
	as.NoError(err)
	as.Equal(1, snap.InProgress)
}

func TestSecondReleaseJoinsOpenBatch(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA)
	env.StubRelease("rp2", "R2", itemB)
	env.StubTranslationDone("t1", "d1", "x1")
	env.StubTranslationDone("t2", "d1", "x2")

	first := env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	second := env.Relay.Handle(ctx, helpers.ReleaseEvent("rp2"))
	as.OutcomeStatus(second, http.StatusOK)
	as.Equal(
		first.Body.(*api.TriggerResponse).BatchID,
		second.Body.(*api.TriggerResponse).BatchID,
	)

	env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-1"))
	as.Equal(0, env.Exporter.Count())
	env.Relay.Handle(ctx, helpers.CompletionEvent("t2", "wh-2"))

	as.Eventually(func() bool {
		return env.Exporter.Count() == 1
	}, waitTimeout, "batch was not dispatched")
	as.Len(env.Exporter.Batches()[0].TranslatedFiles, 2)
}

func TestDuplicateCompletion(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA, itemB)
	env.StubTranslationDone("t1", "d1", "x1")

	env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	first := env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-1"))
	again := env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-1"))

	as.OutcomeStatus(again, http.StatusOK)
	as.Equal(first.Body, again.Body)
	as.Equal(1, env.Platform.Calls("GET", "translations/t1"))
	as.Equal(1, env.Platform.Calls("DELETE", "webhooks/wh-1"))
	as.Equal(0, env.Exporter.Count())
}

func TestCompletionEdgeCases(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()

	out := env.Relay.Handle(ctx, &api.Event{
		Name: api.EventTranslationComplete,
	})
	as.OutcomeStatus(out, http.StatusBadRequest)

	out = env.Relay.Handle(ctx, helpers.CompletionEvent("ghost", "wh-9"))
	as.OutcomeStatus(out, http.StatusOK)
	as.Equal(0, env.Platform.Calls("GET", "translations/ghost"))
	as.LedgerEmpty(ctx, env.Stores)
}

func TestCompletionStillActive(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA)
	env.Platform.SetJSON("GET", "translations/t1",
		`{"id":"t1","requestState":"ACTIVE"}`)

	env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	out := env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-1"))
	as.OutcomeStatus(out, http.StatusOK)
	as.EntryStatus(ctx, env.Stores, "t1", api.StatusInProgress)
}

func TestCompletionFetchFails(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA)
	env.Platform.SetError("GET", "translations/t1", platform.ErrRequestTimedOut)

	env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	out := env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-1"))
	as.OutcomeStatus(out, http.StatusBadGateway)
	as.EntryStatus(ctx, env.Stores, "t1", api.StatusInProgress)
}

func TestCompletionWithoutResultData(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA, itemB)
	env.Platform.SetJSON("GET", "translations/t1",
		`{"id":"t1","requestState":"DONE","documentId":"d1"}`)

	env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-1"))
	as.EntryStatus(ctx, env.Stores, "t1", api.StatusFailed)
}

func TestTriggerFailureReleasesClaim(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA)
	env.Platform.SetError("POST", "assemblies/d/d1/w/w1/e/e1/translations",
		platform.ErrHTTPStatus)

	out := env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	as.OutcomeStatus(out, http.StatusBadGateway)
	as.LedgerEmpty(ctx, env.Stores)

	env.StubRelease("rp1", "R1", itemA)
	out = env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	as.OutcomeStatus(out, http.StatusOK)
	as.EntryStatus(ctx, env.Stores, "t1", api.StatusInProgress)
}

func TestTriggerFailureRetiresWebhooks(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA, itemB)
	env.Platform.SetError("POST", itemB.Target().Path(), platform.ErrHTTPStatus)

	out := env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	as.OutcomeStatus(out, http.StatusBadGateway)
	as.LedgerEmpty(ctx, env.Stores)

	as.Equal(2, env.WebhooksRegistered())
	as.Equal(1, env.Platform.Calls(http.MethodDelete, "webhooks/wh-1"))
	as.Equal(1, env.Platform.Calls(http.MethodDelete, "webhooks/wh-2"))
}

func TestCompletionDuringTrigger(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t, onSuccess)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA)
	env.StubTranslationDone("t1", "d1", "x1")

	// the platform finishes the job before the trigger call returns
	early := make(chan relay.Outcome, 1)
	env.Platform.SetHandler(http.MethodPost, itemA.Target().Path(),
		func(*platform.Request) (*platform.Response, error) {
			go func() {
				early <- env.Relay.Handle(ctx,
					helpers.CompletionEvent("t1", "wh-1"))
			}()
			return &platform.Response{
				Status:      http.StatusOK,
				ContentType: "application/json",
				Body:        []byte(`{"id":"t1"}`),
			}, nil
		},
	)

	out := env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	as.OutcomeStatus(out, http.StatusOK)

	var done relay.Outcome
	select {
	case done = <-early:
	case <-time.After(waitTimeout):
		t.Fatal("completion never returned")
	}
	as.OutcomeStatus(done, http.StatusOK)
	res, ok := done.Body.(api.SettledResponse)
	require.True(t, ok)
	as.True(res.Dispatched)
	as.Equal(1, env.Exporter.Count())
	as.LedgerEmpty(ctx, env.Stores)
}

func TestEmptyReleaseIsTriggerError(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1")

	out := env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	as.OutcomeStatus(out, http.StatusBadGateway)
	as.LedgerEmpty(ctx, env.Stores)
}

func TestOnSuccessPolicyKeepsLedgerOnFailure(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t, onSuccess)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA)
	env.StubTranslationDone("t1", "d1", "x1")
	env.Exporter.SetError(errors.New("destination offline"))

	env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	out := env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-1"))
	as.OutcomeStatus(out, http.StatusBadGateway)
	as.EntryStatus(ctx, env.Stores, "t1", api.StatusCompleted)
	closures, err := env.Stores.Closures.Dump(ctx)
	as.NoError(err)
	as.Empty(closures)

	env.Exporter.SetError(nil)
	out = env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-1"))
	as.OutcomeStatus(out, http.StatusOK)
	as.True(out.Body.(api.SettledResponse).Dispatched)
	as.Equal(2, env.Exporter.Count())
	as.LedgerEmpty(ctx, env.Stores)
}

func TestAlwaysPolicyClearsOnFailure(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA)
	env.StubTranslationDone("t1", "d1", "x1")
	env.Exporter.SetError(errors.New("destination offline"))

	cons := env.Relay.Feed().NewConsumer()
	defer cons.Close()

	env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	out := env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-1"))
	as.OutcomeStatus(out, http.StatusOK)
	as.LedgerEmpty(ctx, env.Stores)

	ev := waitForProgress(t, cons, api.ProgressDispatchFailed)
	as.Equal("destination offline", ev.Error)
}

func TestConcurrentCompletionsDispatchOnce(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	other := env.NewRelayInstance(t)
	ctx := context.Background()

	var items []helpers.ReleaseItem
	for _, e := range []string{"e1", "e2", "e3", "e4", "e5", "e6"} {
		id := api.TranslationID("t-" + e)
		items = append(items, helpers.ReleaseItem{
			DocumentID: "d1", WorkspaceID: "w1", ElementID: e,
			TranslationID: id,
		})
		env.StubTranslationDone(id, "d1", "x-"+e)
	}
	env.StubRelease("rp1", "R1", items...)
	as.OutcomeStatus(env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1")), 200)

	var wg sync.WaitGroup
	for i, it := range items {
		c := env.Relay
		if i%2 == 1 {
			c = other
		}
		for range 2 {
			wg.Go(func() {
				c.Handle(ctx, helpers.CompletionEvent(it.TranslationID, ""))
			})
		}
	}
	wg.Wait()

	as.Eventually(func() bool {
		return env.Exporter.Count() >= 1
	}, waitTimeout, "batch was not dispatched")
	time.Sleep(50 * time.Millisecond)
	as.Equal(1, env.Exporter.Count())
	as.Len(env.Exporter.Batches()[0].TranslatedFiles, len(items))
}

func TestSubscribe(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()

	out := env.Relay.Subscribe(ctx, &api.NotificationRequest{})
	as.OutcomeStatus(out, http.StatusBadRequest)

	env.Platform.SetError("POST", "webhooks", platform.ErrHTTPStatus)
	out = env.Relay.Subscribe(ctx, &api.NotificationRequest{CompanyID: "c1"})
	as.OutcomeStatus(out, http.StatusInternalServerError)

	reqs := env.Platform.Requests()
	require.Len(t, reqs, 1)
	body := helpers.ToJSON(t, reqs[0].Body)
	as.Equal("c1", body.Get("companyId").String())
	as.Equal("http://localhost:8080/api/event", body.Get("url").String())
	as.Equal(string(api.EventWorkflowTransition), body.Get("events.0").String())
}

func TestSnapshot(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestRelay(t)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA, itemB)

	env.Relay.Subscribe(ctx, &api.NotificationRequest{
		CompanyID: "c1", ExportDestination: "dest",
	})
	env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))

	snap, err := env.Relay.Snapshot(ctx)
	as.NoError(err)
	as.Equal(2, snap.InProgress)
	as.Equal("dest", snap.Settings.ExportDestination)
	as.Equal(api.StatusMarker, snap.Entries["release/rp1"].Status)
	as.Equal(api.InProgress(), snap.Entries["t1"])
}

func TestRedisBackedBatch(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewRedisTestRelay(t, onSuccess)
	ctx := context.Background()
	env.StubRelease("rp1", "R1", itemA)
	env.StubTranslationDone("t1", "d1", "x1")

	env.Relay.Handle(ctx, helpers.ReleaseEvent("rp1"))
	as.True(env.Redis.Exists("test-relay:progress"))

	out := env.Relay.Handle(ctx, helpers.CompletionEvent("t1", "wh-1"))
	as.OutcomeStatus(out, http.StatusOK)
	as.Equal(1, env.Exporter.Count())
	as.LedgerEmpty(ctx, env.Stores)
	as.True(env.Redis.Exists("test-relay:closures"))
}

type failingTrigger struct{}

func (*failingTrigger) Trigger(
	context.Context, *translate.Request,
) ([]api.TranslationID, error) {
	return nil, translate.ErrTrigger
}
