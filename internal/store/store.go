package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/xkilldash9x/cadence/internal/config"
	"go.uber.org/zap"
)

// Keys used by the automation core.
const (
	KeyActions    = "actions_list"
	KeyWaitTime   = "waitTime"
	KeyRandomTime = "randomTime"
	KeyLogLevel   = "logLevel"
)

// Store is a durable key/value store. Values are JSON encoded.
type Store interface {
	// Get decodes the value stored under key into dst. found is false, with
	// a nil error, when the key has never been set.
	Get(ctx context.Context, key string, dst any) (found bool, err error)
	// Set encodes value and writes it under key before returning.
	Set(ctx context.Context, key string, value any) error
	Close() error
}

// Error reports a failed store operation. It is never retried internally.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsStorageError reports whether err came from a store operation.
func IsStorageError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

func wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Key: key, Err: err}
}

// codec matches encoding/json behavior while avoiding its reflection cost.
var codec = jsoniter.ConfigCompatibleWithStandardLibrary

func encode(key string, value any) ([]byte, error) {
	data, err := codec.Marshal(value)
	if err != nil {
		return nil, wrap("encode", key, err)
	}
	return data, nil
}

func decode(key string, data []byte, dst any) error {
	if err := codec.Unmarshal(data, dst); err != nil {
		return wrap("decode", key, err)
	}
	return nil
}

// GetOr returns the value stored under key, or def when the key is absent.
func GetOr[T any](ctx context.Context, s Store, key string, def T) (T, error) {
	out := def
	found, err := s.Get(ctx, key, &out)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	return out, nil
}

// Open constructs the backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(cfg.Backend) {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendFile:
		return NewFile(afero.NewOsFs(), cfg.Path, logger), nil
	case config.BackendSQLite:
		s, err := OpenSQLite(ctx, cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		s, err := OpenPostgres(ctx, cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
