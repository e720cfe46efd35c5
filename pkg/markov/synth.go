package markov

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
)

// Synthesizer wraps a Model with best-of-N sampling: single attempts have
// high variance (weighted draws plus the keyword-bias heuristic), so it runs
// several independent attempts and keeps the highest-scoring one. Attempts
// within one call are sequential and read-only against the model.
//
// Generate is safe for concurrent use: the held random source is only ever
// touched under a lock, to seed an independent per-call stream. Concurrent
// callers must still keep Analyze exclusive, per Model's contract.
type Synthesizer struct {
	model  *Model
	mu     sync.Mutex
	rng    *rand.Rand
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer over model. A nil rng gets a fresh
// PCG-seeded source; pass a seeded rand.Rand for reproducible output.
func NewSynthesizer(model *Model, rng *rand.Rand) *Synthesizer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Synthesizer{
		model:  model,
		rng:    rng,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Synthesizer. By default, all logs are
// discarded.
func (s *Synthesizer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Model returns the underlying chain.
func (s *Synthesizer) Model() *Model {
	return s.model
}

// Generate runs the configured number of independent GenerateOnce attempts
// with identical parameters and returns the one with the strictly highest
// score. If no attempt scores above 0 it returns the zero Result, per the
// output contract: empty text and score 0 exactly when nothing valid was
// produced.
func (s *Synthesizer) Generate(opts ...GenerateOption) Result {
	o := defaultGenOptions()
	for _, opt := range opts {
		opt(o)
	}
	samples := o.samples
	if samples < 1 {
		samples = 1
	}

	// rand.Rand is not safe for concurrent use, so each call draws from its
	// own stream, seeded from the shared source under the lock. A seeded
	// Synthesizer stays reproducible for sequential callers.
	s.mu.Lock()
	rng := rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
	s.mu.Unlock()

	var best Result
	for i := 0; i < samples; i++ {
		if r := s.model.GenerateOnce(rng, opts...); r.Score > best.Score {
			best = r
		}
	}

	s.logger.Debug("Synthesis complete",
		slog.Int("samples", samples),
		slog.Int("keywords", len(o.keywords)),
		slog.Float64("best_score", best.Score),
		slog.Int("text_length", len(best.Text)),
	)

	return best
}
