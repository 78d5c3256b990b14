// Package tesseract provides an ocr.Recognizer backed by Tesseract.
package tesseract

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Whitelist restricts recognition to timer glyphs.
const Whitelist = "0123456789:"

// Config holds recognizer settings.
type Config struct {
	Language       string // Tesseract language (default "eng")
	TessdataPrefix string // Directory holding traineddata files (empty = system default)
}

// DefaultConfig returns the recognizer defaults.
func DefaultConfig() Config {
	return Config{Language: "eng"}
}

// Recognizer reads single-line digit text. The underlying client is not
// safe for concurrent use, so calls are serialized.
type Recognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a recognizer in single-line mode with the timer whitelist.
func New(cfg Config) (*Recognizer, error) {
	client := gosseract.NewClient()

	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("tesseract: set tessdata prefix: %w", err)
		}
	}
	if cfg.Language != "" {
		if err := client.SetLanguage(cfg.Language); err != nil {
			client.Close()
			return nil, fmt.Errorf("tesseract: set language: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract: set page mode: %w", err)
	}
	if err := client.SetWhitelist(Whitelist); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract: set whitelist: %w", err)
	}

	return &Recognizer{client: client}, nil
}

// Recognize returns the text found in png.
func (r *Recognizer) Recognize(ctx context.Context, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("tesseract: load image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: recognize: %w", err)
	}
	return text, nil
}

// Close releases the Tesseract client.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}
