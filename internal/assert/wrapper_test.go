package assert_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sraza-onshape/OnshapeExperiments/internal/assert"
	"github.com/sraza-onshape/OnshapeExperiments/internal/assert/helpers"
	"github.com/sraza-onshape/OnshapeExperiments/internal/ledger"
	"github.com/sraza-onshape/OnshapeExperiments/internal/relay"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
)

func TestNew(t *testing.T) {
	w := assert.New(t)

	if w.T != t {
		t.Error("Wrapper.T should be set to the testing.T instance")
	}
	if w.Assertions == nil {
		t.Error("Wrapper.Assertions should be initialized")
	}
	if w.Require == nil {
		t.Error("Wrapper.Require should be initialized")
	}
}

func TestConfigValid(t *testing.T) {
	w := assert.New(t)
	w.ConfigValid(helpers.NewTestConfig())

	cfg := helpers.NewTestConfig()
	cfg.APIPort = -1
	w.ConfigInvalid(cfg, "invalid API port")
}

func TestOutcomeStatus(t *testing.T) {
	w := assert.New(t)
	w.OutcomeStatus(relay.Outcome{Status: http.StatusAccepted}, 202)
}

func TestLedgerHelpers(t *testing.T) {
	w := assert.New(t)
	ctx := context.Background()
	stores := ledger.NewMemoryStores()

	w.LedgerEmpty(ctx, stores)

	w.NoError(stores.Progress.Set(ctx, "t1", api.InProgress()))
	w.EntryStatus(ctx, stores, "t1", api.StatusInProgress)
}

func TestEventually(t *testing.T) {
	w := assert.New(t)
	start := time.Now()
	w.Eventually(func() bool {
		return time.Since(start) > 30*time.Millisecond
	}, time.Second, "condition never passed")
}
