package api

type (
	// EntryStatus is the lifecycle state of a ledger entry
	EntryStatus string

	// Entry is the value stored against a translation id. Value carries the
	// asset path once Completed, or the failure reason once Failed
	Entry struct {
		Status EntryStatus `json:"status"`
		Value  string      `json:"value,omitempty"`
	}

	// Settings is the export configuration captured when a subscription is
	// registered and read back once a batch drains
	Settings struct {
		ExportDestination string `json:"exportDestination"`
		EmailAddress      string `json:"emailAddress"`
		EmailMessage      string `json:"emailMessage"`
	}
)

const (
	StatusInProgress EntryStatus = "in-progress"
	StatusCompleted  EntryStatus = "completed"
	StatusFailed     EntryStatus = "failed"

	// StatusMarker tags batch bookkeeping keys. Markers never count toward
	// the in-progress total and are left out of exported results
	StatusMarker EntryStatus = "marker"
)

const (
	SettingExportDestination = "exportDestination"
	SettingEmailAddress      = "emailAddress"
	SettingEmailMessage      = "emailMessage"
)

func InProgress() Entry {
	return Entry{Status: StatusInProgress}
}

func Completed(assetPath string) Entry {
	return Entry{Status: StatusCompleted, Value: assetPath}
}

func Failed(reason string) Entry {
	return Entry{Status: StatusFailed, Value: reason}
}

func Marker(value string) Entry {
	return Entry{Status: StatusMarker, Value: value}
}

// IsTerminal reports whether the entry has settled and may no longer change
func (e Entry) IsTerminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusFailed
}

// ExportValue renders the entry the way the export destination receives it:
// the asset path, the failure reason, or the in-progress status name
func (e Entry) ExportValue() string {
	if e.IsTerminal() {
		return e.Value
	}
	return string(e.Status)
}
