// Package quote prices uploaded meshes.
package quote

import (
	"context"
	"io"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/devadigapratham/printquote/mesh"
	"github.com/devadigapratham/printquote/pricing"
	"github.com/devadigapratham/printquote/upload"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

const tracerName = "github.com/devadigapratham/printquote/quote"

// ErrTimeout is returned when an analysis exceeds the configured timeout
var ErrTimeout = errors.New("mesh analysis timed out")

// AnalysisError reports that no volume could be extracted from the upload.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error
func (e *AnalysisError) Unwrap() error { return e.Err }

// Cause returns the underlying error for errors.Cause
func (e *AnalysisError) Cause() error { return e.Err }

// IsTimeout reports whether err comes from an analysis timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Input is a single quote request
type Input struct {
	File     io.Reader
	Filename string
	Material string
	Infill   int
}

// Config bounds the analysis work
type Config struct {
	MaxConcurrent int64
	Timeout       time.Duration
}

// Service stores the upload, extracts its volume and prices it
type Service struct {
	store    *upload.Store
	analyzer mesh.Analyzer
	sem      *semaphore.Weighted
	timeout  time.Duration
	inFlight atomic.Int64
}

// NewService creates a new Service
func NewService(store *upload.Store, analyzer mesh.Analyzer, cfg Config) *Service {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Service{
		store:    store,
		analyzer: analyzer,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		timeout:  cfg.Timeout,
	}
}

// InFlight returns the number of analyses currently running
func (s *Service) InFlight() int64 {
	return s.inFlight.Load()
}

// Quote returns the price of the uploaded mesh. Failures to get a usable
// volume are returned as *AnalysisError.
func (s *Service) Quote(ctx context.Context, in Input) (float64, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "quote.Quote")
	defer span.End()
	span.SetAttributes(
		attribute.String("quote.material", in.Material),
		attribute.Int("quote.infill", in.Infill),
	)

	logger := zerolog.Ctx(ctx)

	var volume, price float64
	err := s.store.WithFile(in.File, filepath.Ext(in.Filename), func(path string) error {
		var err error
		volume, err = s.analyse(ctx, path)
		return err
	})
	if err == nil {
		// Price rejects volumes the formula cannot take
		price, err = pricing.Price(volume, in.Material, in.Infill)
	}
	if err != nil {
		observeFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Str("filename", in.Filename).Msg("mesh analysis failed")
		return 0, &AnalysisError{Err: err}
	}

	observeQuote(in.Material, price)
	span.SetAttributes(
		attribute.Float64("quote.volume_mm3", volume),
		attribute.Float64("quote.price", price),
	)
	logger.Info().
		Float64("volume_mm3", volume).
		Str("material", in.Material).
		Int("infill", in.Infill).
		Float64("price", price).
		Msg("quote computed")

	return price, nil
}

type analysisResult struct {
	volume float64
	err    error
}

// analyse runs the analyzer on its own goroutine so a timeout returns
// promptly even if the analyzer ignores its context. The semaphore slot is
// held until the analyzer actually returns.
func (s *Service) analyse(ctx context.Context, path string) (float64, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return 0, errors.Wrap(err, "waiting for an analysis slot")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.inFlight.Add(1)
	analysesInFlight.Inc()

	done := make(chan analysisResult, 1)
	go func() {
		defer func() {
			analysesInFlight.Dec()
			s.inFlight.Add(-1)
			s.sem.Release(1)
		}()
		v, err := s.analyzer.Volume(ctx, path)
		done <- analysisResult{volume: v, err: err}
	}()

	var res analysisResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if errors.Is(res.err, context.DeadlineExceeded) {
		res.err = errors.Wrapf(ErrTimeout, "after %s", s.timeout)
	}

	observeAnalysis(time.Since(start))
	return res.volume, res.err
}
