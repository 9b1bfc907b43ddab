package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

type (
	// Batch is the aggregated result of a drained set of translations
	Batch struct {
		ID              string            `json:"batchId"`
		ReleaseID       string            `json:"releasePackageId,omitempty"`
		FolderName      string            `json:"exportFolderName,omitempty"`
		Settings        api.Settings      `json:"settings"`
		TranslatedFiles map[string]string `json:"translatedFiles"`
		ClosedAt        time.Time         `json:"closedAt"`
	}

	// Sink delivers a batch to one destination
	Sink interface {
		Name() string
		Send(context.Context, *Batch) error
	}

	// Dispatcher delivers a batch to every configured sink
	Dispatcher struct {
		sinks []Sink
	}
)

var (
	ErrDispatch = errors.New("export dispatch failed")
	ErrNoSinks  = errors.New("no export sinks configured")
)

// NewDispatcher creates a Dispatcher over the given sinks
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks: sinks,
	}
}

// Dispatch sends the batch to every sink. Every sink is attempted; the
// returned error joins the failures
func (d *Dispatcher) Dispatch(ctx context.Context, b *Batch) error {
	if len(d.sinks) == 0 {
		return fmt.Errorf("%w: %w", ErrDispatch, ErrNoSinks)
	}

	var errs []error
	for _, s := range d.sinks {
		if err := s.Send(ctx, b); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		slog.Info("Batch exported",
			log.BatchID(b.ID),
			slog.String("sink", s.Name()),
			slog.Int("files", len(b.TranslatedFiles)))
	}
	if len(errs) == 0 {
		return nil
	}

	err := fmt.Errorf("%w: %w", ErrDispatch, errors.Join(errs...))
	contents, _ := json.Marshal(b)
	slog.Error("Export dispatch failed",
		log.BatchID(b.ID),
		slog.String("batch", string(contents)),
		log.Error(err))
	return err
}
