// Package transform turns a source image and a prompt into a new image.
// Backends are strategies picked per run by Mode.
package transform

import (
	"context"
	"fmt"
	"strings"

	"nanodrive/common"
)

type Mode string

const (
	// ModeTest returns a deterministic placeholder and never calls out.
	ModeTest Mode = "test"
	// ModeFull calls the configured generative backend.
	ModeFull Mode = "full"
)

// ParseMode accepts "test" or "full"; empty means full.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeTest:
		return ModeTest, nil
	default:
		return "", common.Validation("parse mode", s, "mode must be 'test' or 'full'")
	}
}

type Image struct {
	Data     []byte
	MimeType string
}

type Request struct {
	Source Image
	Prompt string
}

type Transformer interface {
	Transform(ctx context.Context, req Request) (Image, error)
}

// Selector maps a Mode to the Transformer serving it.
type Selector struct {
	transformers map[Mode]Transformer
}

func NewSelector() *Selector {
	return &Selector{transformers: make(map[Mode]Transformer)}
}

// Register binds mode to t; a nil t leaves the mode unavailable.
func (s *Selector) Register(mode Mode, t Transformer) *Selector {
	if t != nil {
		s.transformers[mode] = t
	}
	return s
}

func (s *Selector) For(mode Mode) (Transformer, error) {
	t, ok := s.transformers[mode]
	if !ok {
		return nil, common.Validation("select transformer", string(mode), fmt.Sprintf("mode %q is not configured", mode))
	}
	return t, nil
}
