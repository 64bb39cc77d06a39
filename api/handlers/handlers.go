package handlers

import (
	"context"

	"github.com/devadigapratham/printquote/quote"
)

// Quoter prices uploaded meshes
type Quoter interface {
	Quote(ctx context.Context, in quote.Input) (float64, error)
	InFlight() int64
}

// Options tunes the API handlers
type Options struct {
	ServiceName    string
	MaxUploadBytes int64
	// MaxMemory is the part of a multipart body kept in memory before
	// spilling to disk
	MaxMemory int64
}

// Handler represents the API handlers
type Handler struct {
	Quoter Quoter
	opts   Options
}

// NewHandler creates a new Handler
func NewHandler(quoter Quoter, opts Options) *Handler {
	if opts.MaxMemory <= 0 {
		opts.MaxMemory = 32 << 20
	}
	return &Handler{
		Quoter: quoter,
		opts:   opts,
	}
}
