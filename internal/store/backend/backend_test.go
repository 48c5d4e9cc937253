package backend_test

import (
	"context"
	"testing"

	"bomstudio/internal/store/backend"
	"bomstudio/internal/store/sqlite"
	"bomstudio/internal/testsupport"
)

func TestOpenDefaultsToSQLite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s, err := backend.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", s)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.Driver = "mysql"
	if _, err := backend.Open(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
