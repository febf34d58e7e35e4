package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/internal/resilience"
)

// Provider fetches one enrichment fragment for a lead from a named
// secondary source. A not-found lead returns an empty fragment, not an
// error.
type Provider interface {
	Name() string
	Domain() model.SourceDomain
	Fetch(ctx context.Context, lead model.Lead) (model.EnrichmentFragment, error)
}

// Config tunes the fan-out stage.
type Config struct {
	// Workers bounds how many leads enrich concurrently. Default: 4.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// CallTimeout bounds each provider call. Default: 20s.
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`

	// RatePerSecond throttles calls per provider. Default: 2.
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 20 * time.Second
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 2
	}
	return c
}

// Engine fans enrichment calls out across providers with bounded
// concurrency and per-provider rate limits, then merges fragments per
// lead. Provider failures are soft: they surface on the profile, never
// abort the batch.
type Engine struct {
	providers []Provider
	limiters  map[string]*rate.Limiter
	retry     resilience.RetryConfig
	cfg       Config
	now       func() time.Time
}

// NewEngine creates an Engine over the given providers. Provider order is
// significant: it is the merge input order for scalar conflicts.
func NewEngine(providers []Provider, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	limiters := make(map[string]*rate.Limiter, len(providers))
	for _, p := range providers {
		limiters[p.Name()] = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Engine{
		providers: providers,
		limiters:  limiters,
		retry:     resilience.DefaultRetryConfig(),
		cfg:       cfg,
		now:       time.Now,
	}
}

// EnrichAll enriches a batch of leads. Cancellation returns the profiles
// completed so far; partial completion is a normal outcome.
func (e *Engine) EnrichAll(ctx context.Context, leads []model.Lead) []model.EnrichedProfile {
	log := zap.L().With(zap.String("phase", "enrich"))
	log.Info("starting enrichment fan-out",
		zap.Int("leads", len(leads)),
		zap.Int("providers", len(e.providers)),
		zap.Int("workers", e.cfg.Workers),
	)

	results := make([]*model.EnrichedProfile, len(leads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := range leads {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			p := e.EnrichOne(gctx, leads[i])
			results[i] = &p
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	profiles := make([]model.EnrichedProfile, 0, len(leads))
	for _, r := range results {
		if r != nil {
			profiles = append(profiles, *r)
		}
	}
	log.Info("enrichment complete",
		zap.Int("profiles", len(profiles)),
		zap.Int("skipped", len(leads)-len(profiles)),
	)
	return profiles
}

// EnrichOne fans out across all providers for a single lead and merges
// whatever came back. Fragments are collected in provider registration
// order regardless of completion order, keeping the merge deterministic.
func (e *Engine) EnrichOne(ctx context.Context, lead model.Lead) model.EnrichedProfile {
	fragments := make([]*model.EnrichmentFragment, len(e.providers))
	failures := make([]*model.SoftFailure, len(e.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range e.providers {
		g.Go(func() error {
			frag, err := e.fetchFragment(gctx, p, lead)
			if err != nil {
				zap.L().Warn("enrichment source unavailable",
					zap.String("lead_id", lead.ID),
					zap.String("source", p.Name()),
					zap.Error(err),
				)
				failures[i] = &model.SoftFailure{Source: p.Name(), Reason: err.Error()}
				return nil
			}
			if !frag.Empty() {
				fragments[i] = &frag
			}
			return nil
		})
	}
	_ = g.Wait()

	collected := make([]model.EnrichmentFragment, 0, len(e.providers))
	for _, f := range fragments {
		if f != nil {
			collected = append(collected, *f)
		}
	}
	var soft []model.SoftFailure
	for _, f := range failures {
		if f != nil {
			soft = append(soft, *f)
		}
	}

	return Merge(lead, collected, soft, e.now())
}

// fetchFragment applies the provider's rate limit, call timeout, and
// transient-error retry around a single fetch.
func (e *Engine) fetchFragment(ctx context.Context, p Provider, lead model.Lead) (model.EnrichmentFragment, error) {
	limiter := e.limiters[p.Name()]
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return model.EnrichmentFragment{}, eris.Wrap(model.ErrSourceUnavailable, err.Error())
		}
	}

	var frag model.EnrichmentFragment
	err := resilience.Do(ctx, e.retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()

		f, fetchErr := p.Fetch(callCtx, lead)
		if fetchErr != nil {
			return fetchErr
		}
		frag = f
		return nil
	})
	if err != nil {
		return model.EnrichmentFragment{}, eris.Wrapf(model.ErrSourceUnavailable, "%s: %v", p.Name(), err)
	}

	if frag.Source == "" {
		frag.Source = p.Name()
	}
	if frag.Domain == "" {
		frag.Domain = p.Domain()
	}
	if frag.FetchedAt.IsZero() {
		frag.FetchedAt = e.now().UTC()
	}
	return frag, nil
}
