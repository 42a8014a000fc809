// Package chain walks an ordered list of interchangeable providers until one
// of them produces an acceptable result.
//
// Translation and speech synthesis both use it. A provider failure is logged
// and the walk advances immediately; there are no retries inside the chain.
// Each attempt runs under its own timeout, and a timeout counts as a failure of
// that provider only. Cancellation of the parent context stops the walk.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"slidecast/internal/logging"
	"slidecast/internal/services"
)

// Provider is one entry in a chain.
type Provider[Req, Res any] interface {
	Name() string
	Attempt(ctx context.Context, req Req) (Res, error)
}

// ErrExhausted is matched by the error returned when every provider failed.
var ErrExhausted = errors.New("provider chain exhausted")

// Failure records one failed provider attempt.
type Failure struct {
	Provider string
	Err      error
	Elapsed  time.Duration
}

// ExhaustedError lists the failures of a fully walked chain.
type ExhaustedError struct {
	Chain    string
	Failures []Failure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Provider, f.Err)
	}
	return fmt.Sprintf("%s chain exhausted (%s)", e.Chain, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Result is the outcome of a successful walk.
type Result[Res any] struct {
	Value    Res
	Provider string
	Failures []Failure
}

type settings struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option customizes a Chain.
type Option func(*settings)

// WithTimeout bounds each provider attempt. Zero disables the per-attempt bound.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithLogger sets the logger used for provider_failed and chain_exhausted events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// Chain is an ordered capability chain.
type Chain[Req, Res any] struct {
	name      string
	providers []Provider[Req, Res]
	validate  func(Res) error
	settings  settings
}

// New builds a chain. validate may be nil; when set, a result it rejects is a
// provider failure.
func New[Req, Res any](name string, providers []Provider[Req, Res], validate func(Res) error, opts ...Option) (*Chain[Req, Res], error) {
	if len(providers) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, name, "build chain", "no providers configured", nil)
	}
	cfg := settings{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	return &Chain[Req, Res]{
		name:      name,
		providers: append([]Provider[Req, Res](nil), providers...),
		validate:  validate,
		settings:  cfg,
	}, nil
}

// Names lists the providers in walk order.
func (c *Chain[Req, Res]) Names() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Run walks the chain. It returns the first accepted result, ctx.Err() when the
// parent context ends, or an *ExhaustedError when every provider failed.
func (c *Chain[Req, Res]) Run(ctx context.Context, req Req) (Result[Res], error) {
	var failures []Failure
	logger := logging.WithContext(ctx, c.settings.logger)
	for _, provider := range c.providers {
		if err := ctx.Err(); err != nil {
			return Result[Res]{Failures: failures}, err
		}
		name := provider.Name()
		started := time.Now()
		value, err := c.attempt(ctx, provider, req)
		if err == nil {
			return Result[Res]{Value: value, Provider: name, Failures: failures}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result[Res]{Failures: failures}, ctxErr
		}
		failure := Failure{Provider: name, Err: err, Elapsed: time.Since(started)}
		failures = append(failures, failure)
		attrs := append([]logging.Attr{
			logging.String("chain", c.name),
			logging.Provider(name),
			logging.Duration("attempt_duration", failure.Elapsed),
			logging.String(logging.FieldImpact, "falling back to the next provider"),
		}, logging.ErrorAttrs(err)...)
		logging.WarnWithContext(logger, "provider attempt failed", logging.EventProviderFailed, attrs...)
	}

	exhausted := &ExhaustedError{Chain: c.name, Failures: failures}
	logging.WarnWithContext(logger, "provider chain exhausted", logging.EventChainExhausted,
		logging.String("chain", c.name),
		logging.Int("providers_tried", len(failures)),
		logging.String(logging.FieldErrorHint, "check provider credentials and network access"),
		logging.String(logging.FieldImpact, "slide output degraded"),
	)
	return Result[Res]{Failures: failures}, exhausted
}

func (c *Chain[Req, Res]) attempt(ctx context.Context, provider Provider[Req, Res], req Req) (Res, error) {
	callCtx := ctx
	if c.settings.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.settings.timeout)
		defer cancel()
	}
	callCtx = services.WithProvider(callCtx, provider.Name())

	value, err := provider.Attempt(callCtx, req)
	if err == nil && c.validate != nil {
		err = c.validate(value)
	}
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = services.Wrap(services.ErrTimeout, c.name, provider.Name(), fmt.Sprintf("no result within %s", c.settings.timeout), err)
	}
	return value, err
}
