package api

type (
	// NotificationRequest carries the query parameters of a subscription
	NotificationRequest struct {
		CompanyID         string `form:"companyId"`
		ExportDestination string `form:"exportDestination"`
		EmailAddress      string `form:"emailAddress"`
		EmailMessage      string `form:"emailMessage"`
	}

	// NotificationResponse is returned once the company webhook is registered
	NotificationResponse struct {
		WebhookID string `json:"webhookId"`
	}

	// OutputResponse wraps an informational payload for the platform
	OutputResponse struct {
		Output any `json:"output"`
	}

	// TriggerResponse summarizes a newly opened batch
	TriggerResponse struct {
		BatchID        string          `json:"batchId"`
		ReleaseID      string          `json:"releasePackageId"`
		FolderName     string          `json:"exportFolderName"`
		TranslationIDs []TranslationID `json:"translationIds"`
	}

	// SettledResponse reports the outcome of a completion event
	SettledResponse struct {
		TranslationID TranslationID `json:"translationId"`
		Entry         *Entry        `json:"entry,omitempty"`
		Remaining     int           `json:"remaining"`
		Dispatched    bool          `json:"dispatched"`
	}

	// TranslationStatusResponse reports a single ledger entry
	TranslationStatusResponse struct {
		ID    TranslationID `json:"id"`
		Entry Entry         `json:"entry"`
	}

	// SnapshotResponse is a diagnostic dump of the relay's stores
	SnapshotResponse struct {
		Entries    map[string]Entry `json:"entries"`
		Settings   Settings         `json:"settings"`
		InProgress int              `json:"inProgress"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)
