package export

import (
	"context"
	"encoding/json"

	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
)

type (
	// FlowSink posts the batch to the export Flow, which forwards the files
	// to the configured destination and notifies the recipient
	FlowSink struct {
		http *platform.HTTPClient
		url  string
	}

	flowRequest struct {
		ExportDestination string `json:"exportDestination"`
		Email             string `json:"email"`
		EmailMessage      string `json:"emailMessage"`
		TranslatedFiles   string `json:"translatedFiles"`
	}
)

// Entries the export Flow reads alongside the job results
const (
	FolderNameKey = "exportFolderName"
	ReleaseIDKey  = "releasePackageId"
)

var _ Sink = (*FlowSink)(nil)

// NewFlowSink creates a Sink for the export Flow at url
func NewFlowSink(c *platform.HTTPClient, url string) *FlowSink {
	return &FlowSink{
		http: c,
		url:  url,
	}
}

func (f *FlowSink) Name() string {
	return "flow"
}

func (f *FlowSink) Send(ctx context.Context, b *Batch) error {
	// the Flow expects translatedFiles as a JSON-encoded string
	files, err := json.Marshal(wireFiles(b))
	if err != nil {
		return err
	}
	_, err = f.http.PostJSON(ctx, f.url, &flowRequest{
		ExportDestination: b.Settings.ExportDestination,
		Email:             b.Settings.EmailAddress,
		EmailMessage:      b.Settings.EmailMessage,
		TranslatedFiles:   string(files),
	})
	return err
}

// wireFiles is the translated files map as the export Flow reads it: the
// job results plus the folder name and release id entries
func wireFiles(b *Batch) map[string]string {
	res := make(map[string]string, len(b.TranslatedFiles)+2)
	for k, v := range b.TranslatedFiles {
		res[k] = v
	}
	if b.FolderName != "" {
		res[FolderNameKey] = b.FolderName
	}
	if b.ReleaseID != "" {
		res[ReleaseIDKey] = b.ReleaseID
	}
	return res
}
