package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
)

const eventSchemaURL = "event.schema.json"

const eventSchema = `{
	"type": "object",
	"required": ["event"],
	"properties": {
		"event": {"type": "string", "minLength": 1},
		"webhookId": {"type": "string"},
		"objectType": {"type": "string"},
		"objectId": {"type": "string"},
		"translationId": {"type": "string"},
		"documentId": {"type": "string"},
		"workspaceId": {"type": "string"},
		"elementId": {"type": "string"},
		"companyId": {"type": "string"},
		"timestamp": {"type": "string"}
	}
}`

var compileEventSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(eventSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(eventSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(eventSchemaURL)
})

// DecodeEvent validates a raw webhook body and decodes it
func DecodeEvent(raw []byte) (*api.Event, error) {
	sch, err := compileEventSchema()
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrelation, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrelation, err)
	}

	var ev api.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrelation, err)
	}
	return &ev, nil
}
