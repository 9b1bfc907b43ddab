package api

type (
	// EventName identifies the kind of notification the CAD platform sent
	EventName string

	// ObjectType identifies the workflow object a transition refers to
	ObjectType string

	// TranslationID identifies a single translation job on the platform
	TranslationID string

	// Event is the inbound webhook notification body. Only the fields the
	// relay acts on are decoded
	Event struct {
		Name          EventName     `json:"event"`
		WebhookID     string        `json:"webhookId,omitempty"`
		ObjectType    ObjectType    `json:"objectType,omitempty"`
		ObjectID      string        `json:"objectId,omitempty"`
		TranslationID TranslationID `json:"translationId,omitempty"`
		DocumentID    string        `json:"documentId,omitempty"`
		WorkspaceID   string        `json:"workspaceId,omitempty"`
		ElementID     string        `json:"elementId,omitempty"`
		CompanyID     string        `json:"companyId,omitempty"`
		Timestamp     string        `json:"timestamp,omitempty"`
	}
)

const (
	EventWebhookRegister     EventName = "webhook.register"
	EventWebhookPing         EventName = "webhook.ping"
	EventWorkflowTransition  EventName = "onshape.workflow.transition"
	EventTranslationComplete EventName = "onshape.model.translation.complete"

	ObjectTypeRelease ObjectType = "RELEASE"

	// ReleaseStateCompleted is the audit log workflow state that marks a
	// release package as finished
	ReleaseStateCompleted = "RELEASED"

	// TranslationStateFailed is the requestState of a failed translation
	TranslationStateFailed = "FAILED"

	// ReadyMessage is the body the platform expects when it probes a newly
	// registered webhook
	ReadyMessage = "Ready to receive webhook notifications!"
)

// IsProbe reports whether the event is a registration trial or a ping
func (e *Event) IsProbe() bool {
	return e.Name == EventWebhookRegister || e.Name == EventWebhookPing
}
