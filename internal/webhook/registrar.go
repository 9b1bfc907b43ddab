package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
	"github.com/sraza-onshape/OnshapeExperiments/internal/util"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

type (
	// Scope selects what a webhook listens to. A company scope receives
	// release workflow transitions; a document scope receives translation
	// completions for one element
	Scope struct {
		CompanyID   string
		DocumentID  string
		WorkspaceID string
		ElementID   string
	}

	// Registrar registers and removes webhook subscriptions
	Registrar struct {
		client  platform.Client
		retired util.Set[string]
		order   []string
		mu      sync.Mutex
	}

	registerRequest struct {
		Events     []api.EventName `json:"events"`
		Filter     string          `json:"filter"`
		Options    registerOptions `json:"options"`
		URL        string          `json:"url"`
		CompanyID  string          `json:"companyId,omitempty"`
		DocumentID string          `json:"documentId,omitempty"`
	}

	registerOptions struct {
		CollapseEvents bool `json:"collapseEvents"`
	}
)

const webhooksPath = "webhooks"

// RetiredLimit bounds how many unregistered ids are remembered for
// deduplication. The oldest are forgotten first
const RetiredLimit = 1024

var (
	ErrRegistration = errors.New("webhook registration failed")
	ErrInvalidScope = errors.New("invalid webhook scope")
)

// NewRegistrar creates a Registrar that talks to the platform via client
func NewRegistrar(client platform.Client) *Registrar {
	return &Registrar{
		client:  client,
		retired: util.Set[string]{},
	}
}

// CompanyScope subscribes to workflow transitions of every release in the
// company
func CompanyScope(companyID string) Scope {
	return Scope{CompanyID: companyID}
}

// DocumentScope subscribes to translation completions for one element
func DocumentScope(documentID, workspaceID, elementID string) Scope {
	return Scope{
		DocumentID:  documentID,
		WorkspaceID: workspaceID,
		ElementID:   elementID,
	}
}

// Register creates a subscription that posts to callbackURL and returns the
// webhook id assigned by the platform
func (r *Registrar) Register(
	ctx context.Context, scope Scope, callbackURL string,
) (string, error) {
	if err := scope.validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	resp, err := r.client.Do(ctx, &platform.Request{
		Verb: http.MethodPost,
		Path: webhooksPath,
		Body: scope.request(callbackURL),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	id := resp.JSON().Get("id").String()
	if id == "" {
		return "", fmt.Errorf("%w: response carried no webhook id",
			ErrRegistration)
	}

	slog.Info("Webhook registered",
		log.WebhookID(id),
		slog.String("scope", scope.String()),
		slog.String("callback_url", callbackURL))
	return id, nil
}

// Unregister removes a subscription. Failures and repeated calls are logged
// and otherwise ignored
func (r *Registrar) Unregister(ctx context.Context, id string) {
	if id == "" {
		return
	}

	r.mu.Lock()
	first := r.retire(id)
	r.mu.Unlock()
	if !first {
		slog.Debug("Webhook already unregistered", log.WebhookID(id))
		return
	}

	_, err := r.client.Do(ctx, &platform.Request{
		Verb: http.MethodDelete,
		Path: webhooksPath + "/" + id,
	})
	if err != nil {
		slog.Warn("Failed to unregister webhook",
			log.WebhookID(id),
			log.Error(err))
		return
	}
	slog.Info("Webhook unregistered", log.WebhookID(id))
}

func (r *Registrar) retire(id string) bool {
	if !r.retired.Add(id) {
		return false
	}
	r.order = append(r.order, id)
	if len(r.order) > RetiredLimit {
		r.retired.Remove(r.order[0])
		r.order = r.order[1:]
	}
	return true
}

func (s Scope) IsCompany() bool {
	return s.CompanyID != ""
}

func (s Scope) String() string {
	if s.IsCompany() {
		return "company/" + s.CompanyID
	}
	return fmt.Sprintf("document/%s/w/%s/e/%s",
		s.DocumentID, s.WorkspaceID, s.ElementID)
}

func (s Scope) validate() error {
	if s.IsCompany() {
		return nil
	}
	if s.DocumentID == "" || s.WorkspaceID == "" || s.ElementID == "" {
		return ErrInvalidScope
	}
	return nil
}

func (s Scope) request(callbackURL string) *registerRequest {
	req := &registerRequest{
		Options: registerOptions{CollapseEvents: false},
		URL:     callbackURL,
	}
	if s.IsCompany() {
		req.Events = []api.EventName{api.EventWorkflowTransition}
		req.Filter = fmt.Sprintf("{$CompanyId} = '%s'", s.CompanyID)
		req.CompanyID = s.CompanyID
		return req
	}
	req.Events = []api.EventName{api.EventTranslationComplete}
	req.Filter = fmt.Sprintf(
		"{$DocumentId} = '%s' && {$WorkspaceId} = '%s' && {$ElementId} = '%s'",
		s.DocumentID, s.WorkspaceID, s.ElementID,
	)
	req.DocumentID = s.DocumentID
	return req
}
