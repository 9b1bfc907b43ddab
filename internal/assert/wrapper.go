package assert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sraza-onshape/OnshapeExperiments/internal/config"
	"github.com/sraza-onshape/OnshapeExperiments/internal/ledger"
	"github.com/sraza-onshape/OnshapeExperiments/internal/relay"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
)

// Wrapper wraps testify assertions with relay-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 20 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus relay-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= config.MaxTCPPort)
	w.True(cfg.Platform.Timeout > 0)
	w.NotEmpty(cfg.Export.FlowURL)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// OutcomeStatus asserts the HTTP status of a correlator outcome
func (w *Wrapper) OutcomeStatus(o relay.Outcome, expected int) {
	w.Helper()
	w.Equal(expected, o.Status, "unexpected outcome body: %+v", o.Body)
}

// EntryStatus asserts the ledger status recorded for a translation
func (w *Wrapper) EntryStatus(
	ctx context.Context, stores *ledger.Stores, id api.TranslationID,
	expected api.EntryStatus,
) {
	w.Helper()
	e, ok, err := stores.Progress.Get(ctx, string(id))
	w.NoError(err)
	w.True(ok, "translation should be tracked: %s", id)
	w.Equal(expected, e.Status)
}

// LedgerEmpty asserts that the progress and settings ledgers were cleared
func (w *Wrapper) LedgerEmpty(ctx context.Context, stores *ledger.Stores) {
	w.Helper()
	recs, err := stores.Progress.Dump(ctx)
	w.NoError(err)
	w.Empty(recs, "progress ledger should be empty")
	settings, err := stores.Settings.Dump(ctx)
	w.NoError(err)
	w.Empty(settings, "settings ledger should be empty")
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}
