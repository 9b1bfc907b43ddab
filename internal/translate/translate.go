package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
)

type (
	// Trigger starts the translation jobs for a release and returns the
	// job ids. It either returns every id or fails as a whole
	Trigger interface {
		Trigger(context.Context, *Request) ([]api.TranslationID, error)
	}

	// Request describes one batch of translations
	Request struct {
		ReleaseID   string
		Targets     []Target
		Params      Params
		CallbackURL string
	}

	// Params are the caller-supplied translation settings. All of them are
	// required
	Params struct {
		FormatName         string
		Resolution         string
		DistanceTolerance  float64
		AngularTolerance   float64
		MaximumChordLength float64
	}

	// Target is one element, or one part of an element, to translate.
	// WorkspaceID names the workspace the element lives in even when the
	// target is pinned to a version
	Target struct {
		DocumentID  string
		WorkspaceID string
		WVM         string
		WVMID       string
		ElementID   string
		PartID      string
	}
)

const (
	WVMWorkspace = "w"
	WVMVersion   = "v"
)

var (
	ErrTrigger       = errors.New("translation trigger failed")
	ErrInvalidTarget = errors.New("malformed translation target")
	ErrInvalidParams = errors.New("invalid translation parameters")
	ErrNoTargets     = errors.New("no translation targets")
)

// Validate checks that every parameter has been supplied
func (p Params) Validate() error {
	switch {
	case p.FormatName == "":
		return fmt.Errorf("%w: format name is required", ErrInvalidParams)
	case p.Resolution == "":
		return fmt.Errorf("%w: resolution is required", ErrInvalidParams)
	case p.DistanceTolerance <= 0, p.AngularTolerance <= 0,
		p.MaximumChordLength <= 0:
		return fmt.Errorf("%w: tolerances must be positive", ErrInvalidParams)
	}
	return nil
}

// IsPart reports whether the target names a single part
func (t Target) IsPart() bool {
	return t.PartID != ""
}

// Path is the platform path that starts a translation of the target
func (t Target) Path() string {
	kind := "assemblies"
	if t.IsPart() {
		kind = "partstudios"
	}
	return fmt.Sprintf("%s/d/%s/%s/%s/e/%s/translations",
		kind, t.DocumentID, t.WVM, t.WVMID, t.ElementID)
}

// Workspace is the workspace completion events for the target come from
func (t Target) Workspace() string {
	if t.WorkspaceID == "" && t.WVM == WVMWorkspace {
		return t.WVMID
	}
	return t.WorkspaceID
}

// Validate checks that the target carries every path component
func (t Target) Validate() error {
	if t.DocumentID == "" || t.WVMID == "" || t.ElementID == "" ||
		t.Workspace() == "" {
		return fmt.Errorf("%w: %+v", ErrInvalidTarget, t)
	}
	if t.WVM != WVMWorkspace && t.WVM != WVMVersion {
		return fmt.Errorf("%w: unknown wvm %q", ErrInvalidTarget, t.WVM)
	}
	return nil
}

// TargetsFromRelease extracts the items of a detailed release package.
// Items pinned to a version are translated at that version
func TargetsFromRelease(pkg gjson.Result) []Target {
	var res []Target
	pkg.Get("items").ForEach(func(_, item gjson.Result) bool {
		t := Target{
			DocumentID:  item.Get("documentId").String(),
			WorkspaceID: item.Get("workspaceId").String(),
			ElementID:   item.Get("elementId").String(),
			PartID:      item.Get("partId").String(),
		}
		if v := item.Get("versionId").String(); v != "" {
			t.WVM, t.WVMID = WVMVersion, v
		} else {
			t.WVM, t.WVMID = WVMWorkspace, t.WorkspaceID
		}
		res = append(res, t)
		return true
	})
	return res
}
