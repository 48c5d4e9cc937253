package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"bomstudio/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRender, "render", "ffmpeg", "encode failed", base)
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"render", "ffmpeg", "encode failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetailsSurvivesFurtherWrapping(t *testing.T) {
	err := services.Wrap(services.ErrConflict, "store", "create client", "email already registered", nil)
	outer := fmt.Errorf("intake: %w", err)

	details := services.Details(outer)
	if details.Kind != services.KindConflict {
		t.Fatalf("expected conflict kind, got %q", details.Kind)
	}
	if details.Operation != "create client" {
		t.Fatalf("unexpected operation %q", details.Operation)
	}
}

func TestKindClassification(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{services.Wrap(services.ErrValidation, "", "", "bad", nil), services.KindValidation},
		{fmt.Errorf("x: %w", services.ErrNotFound), services.KindNotFound},
		{services.Wrap(services.ErrTimeout, "images", "poll", "exhausted", nil), services.KindTimeout},
		{context.DeadlineExceeded, services.KindTimeout},
		{errors.New("plain"), services.KindInternal},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestWrapDefaultsToInternal(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrInternal) {
		t.Fatalf("expected internal marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}
