package api

type (
	// ProgressType names a batch lifecycle transition
	ProgressType string

	// ProgressEvent is published on every ledger transition and streamed to
	// websocket subscribers
	ProgressEvent struct {
		Type          ProgressType  `json:"type"`
		BatchID       string        `json:"batch_id,omitempty"`
		ReleaseID     string        `json:"release_id,omitempty"`
		TranslationID TranslationID `json:"translation_id,omitempty"`
		Entry         *Entry        `json:"entry,omitempty"`
		Remaining     int           `json:"remaining"`
		Error         string        `json:"error,omitempty"`
		Timestamp     int64         `json:"timestamp"`
	}

	// SubscribeRequest is sent by websocket clients to narrow the stream
	SubscribeRequest struct {
		Type string             `json:"type"`
		Data ClientSubscription `json:"data"`
	}

	// ClientSubscription selects the progress types a client receives. An
	// empty selection receives everything
	ClientSubscription struct {
		Types   []ProgressType `json:"types,omitempty"`
		BatchID string         `json:"batch_id,omitempty"`
	}
)

const (
	ProgressBatchOpened        ProgressType = "batch_opened"
	ProgressTranslationSettled ProgressType = "translation_settled"
	ProgressBatchClosed        ProgressType = "batch_closed"
	ProgressDispatchFailed     ProgressType = "dispatch_failed"
)
