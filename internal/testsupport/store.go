package testsupport

import (
	"context"
	"errors"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/eventlog"
)

// MustOpenSQLite opens a durable backend for tests and registers cleanup.
func MustOpenSQLite(t testing.TB, cfg *config.Config) *eventlog.SQLite {
	t.Helper()

	store, err := eventlog.OpenSQLite(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open sqlite backend: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// ErrBackendDown is the failure FailingBackend returns from every operation.
var ErrBackendDown = errors.New("backend unavailable")

// FailingBackend simulates a primary store outage. Every operation fails so
// fallback paths can be exercised.
type FailingBackend struct{}

func (FailingBackend) Create(context.Context, string, eventlog.Document) (string, error) {
	return "", ErrBackendDown
}

func (FailingBackend) Get(context.Context, string, string) (eventlog.Document, error) {
	return nil, ErrBackendDown
}

func (FailingBackend) AppendEvent(context.Context, string, eventlog.Event) error {
	return ErrBackendDown
}

func (FailingBackend) Delete(context.Context, string, string) error {
	return ErrBackendDown
}

func (FailingBackend) Events(context.Context, string) ([]eventlog.Event, error) {
	return nil, ErrBackendDown
}

func (FailingBackend) Ping(context.Context) error { return ErrBackendDown }

func (FailingBackend) Close() error { return nil }
