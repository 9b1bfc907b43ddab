package log_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

type errStub string

func TestTranslationID(t *testing.T) {
	attr := log.TranslationID("tr-123")
	assertAttrEqual(t, attr, "translation_id", "tr-123")
}

func TestWebhookID(t *testing.T) {
	attr := log.WebhookID("wh-abc")
	assertAttrEqual(t, attr, "webhook_id", "wh-abc")
}

func TestReleaseID(t *testing.T) {
	attr := log.ReleaseID("rp-1")
	assertAttrEqual(t, attr, "release_id", "rp-1")
}

func TestBatchID(t *testing.T) {
	attr := log.BatchID("batch-9")
	assertAttrEqual(t, attr, "batch_id", "batch-9")
}

func TestEvent(t *testing.T) {
	attr := log.Event(api.EventTranslationComplete)
	assertAttrEqual(t, attr, "event", "onshape.model.translation.complete")
}

func TestStatus(t *testing.T) {
	attr := log.Status(api.StatusCompleted)
	assertAttrEqual(t, attr, "status", "completed")
}

func TestError(t *testing.T) {
	attr := log.Error(nil)
	assertAttrEqual(t, attr, "error", "")

	attr = log.Error(errStub("boom"))
	assertAttrEqual(t, attr, "error", "boom")
}

func TestErrorString(t *testing.T) {
	attr := log.ErrorString("badness")
	assertAttrEqual(t, attr, "error", "badness")
}

func (e errStub) Error() string { return string(e) }

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
