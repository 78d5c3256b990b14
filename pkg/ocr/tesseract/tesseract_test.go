package tesseract

import (
	"context"
	"errors"
	"testing"
)

func TestRecognize_CancelledContext(t *testing.T) {
	r, err := New(DefaultConfig())
	if err != nil {
		t.Skipf("tesseract unavailable: %v", err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Recognize(ctx, []byte("not an image")); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	if cfg := DefaultConfig(); cfg.Language != "eng" {
		t.Errorf("Language = %q, want eng", cfg.Language)
	}
}
