package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sraza-onshape/OnshapeExperiments/internal/config"
	"github.com/sraza-onshape/OnshapeExperiments/internal/export"
	"github.com/sraza-onshape/OnshapeExperiments/internal/ledger"
	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
	"github.com/sraza-onshape/OnshapeExperiments/internal/relay"
	"github.com/sraza-onshape/OnshapeExperiments/internal/translate"
	"github.com/sraza-onshape/OnshapeExperiments/internal/webhook"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
)

type (
	// TestRelayEnv holds all the components needed for correlator testing.
	// The platform is mocked; the registrar and trigger are real
	TestRelayEnv struct {
		Relay     *relay.Correlator
		Stores    *ledger.Stores
		Platform  *MockPlatform
		Exporter  *MockExporter
		Registrar *webhook.Registrar
		Queue     *export.Queue
		Config    *config.Config
		Redis     *miniredis.Miniredis
		Cleanup   func()
		webhooks  atomic.Int64
	}

	// ReleaseItem is one element of a stubbed release package, with the
	// translation id the platform assigns it
	ReleaseItem struct {
		DocumentID    string
		WorkspaceID   string
		ElementID     string
		PartID        string
		TranslationID api.TranslationID
	}
)

const defaultQueueTimeout = 5 * time.Second

// NewTestRelay creates a correlator environment backed by in-memory stores
func NewTestRelay(
	t *testing.T, mods ...func(*config.Config),
) *TestRelayEnv {
	t.Helper()
	return newTestRelay(t, ledger.NewMemoryStores(), nil, mods)
}

// NewRedisTestRelay creates a correlator environment backed by miniredis
func NewRedisTestRelay(
	t *testing.T, mods ...func(*config.Config),
) *TestRelayEnv {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	stores := ledger.NewRedisStores(client, "test-relay")
	return newTestRelay(t, stores, server, mods)
}

func newTestRelay(
	t *testing.T, stores *ledger.Stores, server *miniredis.Miniredis,
	mods []func(*config.Config),
) *TestRelayEnv {
	t.Helper()

	cfg := NewTestConfig()
	for _, mod := range mods {
		mod(cfg)
	}

	env := &TestRelayEnv{
		Stores:   stores,
		Platform: NewMockPlatform(),
		Exporter: NewMockExporter(),
		Config:   cfg,
		Redis:    server,
	}
	env.Registrar = webhook.NewRegistrar(env.Platform)
	env.Platform.SetHandler(http.MethodPost, "webhooks", env.registerWebhook)

	if cfg.Export.ClearPolicy == config.ClearAlways {
		env.Queue = export.NewQueue(env.Exporter.Dispatch, defaultQueueTimeout)
		env.Queue.Start()
	}

	env.Relay = env.NewRelayInstance(t)
	env.Cleanup = func() {
		if env.Queue != nil {
			env.Queue.Flush()
		}
		env.Relay.Feed().Close()
		_ = stores.Close()
		if server != nil {
			server.Close()
		}
	}
	t.Cleanup(env.Cleanup)
	return env
}

// NewRelayInstance creates another correlator sharing the same stores,
// platform and exporter. Used to simulate a second relay process
func (e *TestRelayEnv) NewRelayInstance(t *testing.T) *relay.Correlator {
	t.Helper()
	c, err := relay.New(e.Config, relay.Dependencies{
		Stores:    e.Stores,
		Platform:  e.Platform,
		Registrar: e.Registrar,
		Trigger:   translate.NewDirect(e.Platform, e.Registrar),
		Exporter:  e.Exporter,
		Queue:     e.Queue,
	})
	require.NoError(t, err)
	return c
}

// StubRelease makes the platform report releaseID as released, with one
// package item per ReleaseItem
func (e *TestRelayEnv) StubRelease(
	releaseID, name string, items ...ReleaseItem,
) {
	e.Platform.SetJSON(http.MethodGet,
		fmt.Sprintf("workflow/obj/%s/auditlog", releaseID),
		`{"entries":[{"workflowState":"PENDING"},{"workflowState":"RELEASED"}]}`)

	pkgItems := make([]map[string]string, 0, len(items))
	for _, it := range items {
		pkgItems = append(pkgItems, map[string]string{
			"documentId":  it.DocumentID,
			"workspaceId": it.WorkspaceID,
			"elementId":   it.ElementID,
			"partId":      it.PartID,
		})
		e.Platform.SetJSON(http.MethodPost, it.Target().Path(),
			fmt.Sprintf(`{"id":%q}`, it.TranslationID))
	}
	pkg, _ := json.Marshal(map[string]any{
		"id":    releaseID,
		"name":  name,
		"items": pkgItems,
	})
	e.Platform.SetJSON(http.MethodGet,
		fmt.Sprintf("releasepackages/%s?detailed=true", releaseID),
		string(pkg))
}

// StubPending makes the platform report releaseID as not yet released
func (e *TestRelayEnv) StubPending(releaseID string) {
	e.Platform.SetJSON(http.MethodGet,
		fmt.Sprintf("workflow/obj/%s/auditlog", releaseID),
		`{"entries":[{"workflowState":"PENDING"}]}`)
}

// StubTranslationDone makes a translation report a finished result
func (e *TestRelayEnv) StubTranslationDone(
	id api.TranslationID, documentID, externalDataID string,
) {
	e.Platform.SetJSON(http.MethodGet, "translations/"+string(id),
		fmt.Sprintf(
			`{"id":%q,"requestState":"DONE","documentId":%q,`+
				`"resultExternalDataIds":[%q]}`,
			id, documentID, externalDataID,
		))
}

// StubTranslationFailed makes a translation report a failure
func (e *TestRelayEnv) StubTranslationFailed(
	id api.TranslationID, reason string,
) {
	e.Platform.SetJSON(http.MethodGet, "translations/"+string(id),
		fmt.Sprintf(`{"id":%q,"requestState":"FAILED","failureReason":%q}`,
			id, reason))
}

// WebhooksRegistered reports how many webhooks the platform has issued
func (e *TestRelayEnv) WebhooksRegistered() int {
	return int(e.webhooks.Load())
}

// Target is the translation target the relay derives from the item
func (it ReleaseItem) Target() translate.Target {
	return translate.Target{
		DocumentID:  it.DocumentID,
		WorkspaceID: it.WorkspaceID,
		WVM:         translate.WVMWorkspace,
		WVMID:       it.WorkspaceID,
		ElementID:   it.ElementID,
		PartID:      it.PartID,
	}
}

func (e *TestRelayEnv) registerWebhook(
	*platform.Request,
) (*platform.Response, error) {
	n := e.webhooks.Add(1)
	return &platform.Response{
		Status:      http.StatusOK,
		ContentType: "application/json",
		Body:        fmt.Appendf(nil, `{"id":"wh-%d"}`, n),
	}, nil
}

// ReleaseEvent builds a workflow transition for a release package
func ReleaseEvent(releaseID string) *api.Event {
	return &api.Event{
		Name:       api.EventWorkflowTransition,
		WebhookID:  "wh-company",
		ObjectType: api.ObjectTypeRelease,
		ObjectID:   releaseID,
	}
}

// CompletionEvent builds a translation-complete notification
func CompletionEvent(id api.TranslationID, webhookID string) *api.Event {
	return &api.Event{
		Name:          api.EventTranslationComplete,
		WebhookID:     webhookID,
		TranslationID: id,
	}
}
