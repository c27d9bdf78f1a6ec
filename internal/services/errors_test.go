package services_test

import (
	"errors"
	"strings"
	"testing"

	"postcast/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalAPI, "youtube", "update snippet", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalAPI) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"youtube", "update snippet", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "gemini", "generate", "timed out", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", services.Wrap(services.ErrValidation, "metadata", "chapters", "bad format", nil), true},
		{"external api", services.Wrap(services.ErrExternalAPI, "youtube", "captions", "rejected", nil), true},
		{"not found", services.Wrap(services.ErrNotFound, "youtube", "video", "missing", nil), true},
		{"transient", services.Wrap(services.ErrTransient, "youtube", "search", "503", nil), false},
		{"unavailable", services.Wrap(services.ErrUnavailable, "transcript", "fetch", "not ready", nil), false},
		{"plain", errors.New("anything"), false},
	}
	for _, tc := range cases {
		if got := services.IsPermanent(tc.err); got != tc.want {
			t.Errorf("%s: IsPermanent = %v, want %v", tc.name, got, tc.want)
		}
	}
}
