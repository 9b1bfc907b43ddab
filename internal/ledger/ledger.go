package ledger

import (
	"context"
	"encoding/json"
	"errors"
)

type (
	// Ledger is a keyed store with insert-if-absent semantics. It provides
	// per-call atomicity only. Multi-step transitions are serialized by the
	// caller
	Ledger[V any] interface {
		Set(ctx context.Context, key string, value V) error
		SetIfAbsent(ctx context.Context, key string, value V) (bool, error)
		Get(ctx context.Context, key string) (V, bool, error)
		Delete(ctx context.Context, key string) error
		Dump(ctx context.Context) ([]Record[V], error)
		Clear(ctx context.Context) error
	}

	// Record is a single key/value pair returned by Dump
	Record[V any] struct {
		Key   string
		Value V
	}
)

// Namespaces used by the relay
const (
	ProgressNamespace = "progress"
	SettingsNamespace = "settings"
	ClosureNamespace  = "closures"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported ledger scheme")
	ErrInvalidDSN        = errors.New("invalid ledger DSN")
	ErrEmptyKey          = errors.New("ledger key is required")
)

func encode[V any](value V) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decode[V any](data string) (V, error) {
	var res V
	err := json.Unmarshal([]byte(data), &res)
	return res, err
}
