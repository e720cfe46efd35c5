package markov

import (
	"math"
	"math/rand/v2"
	"strings"
)

const (
	// TuneMin is the lower clamp bound for the alpha and beta tunables.
	TuneMin = 0.0625
	// TuneMax is the upper clamp bound for the alpha and beta tunables.
	TuneMax = 16.0
)

// Result is one synthesized sentence and its score. The zero Result (empty
// text, score 0) means no attempt reached a valid stop.
type Result struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// genOptions is used by the generate functions to configure default options.
type genOptions struct {
	targetLength int
	maxLength    int
	keywords     []string
	alpha        float64
	beta         float64
	samples      int
}

// GenerateOption is a function that configures generation parameters. It's
// used as a variadic argument in GenerateOnce and Synthesizer.Generate.
type GenerateOption func(*genOptions)

// WithTargetLength sets the step count an attempt aims for before it is
// allowed to stop at an exit context.
func WithTargetLength(n int) GenerateOption {
	return func(o *genOptions) { o.targetLength = n }
}

// WithMaxLength sets the hard cap on generation steps. An attempt that
// exhausts it without a valid stop returns the zero Result.
func WithMaxLength(n int) GenerateOption {
	return func(o *genOptions) { o.maxLength = n }
}

// WithKeywords sets the keywords generation is biased toward. Keywords are
// deduplicated case-insensitively before use.
func WithKeywords(keywords ...string) GenerateOption {
	return func(o *genOptions) { o.keywords = keywords }
}

// WithAlpha sets the rarity exponent: each sampled choice adds
// (1/chance)^alpha to the score, so higher alpha amplifies the reward for
// statistically unlikely paths. Clamped to [TuneMin, TuneMax].
func WithAlpha(a float64) GenerateOption {
	return func(o *genOptions) { o.alpha = a }
}

// WithBeta sets the keyword bonus exponent: the final score is multiplied by
// found^beta, where found is the number of distinct keywords matched.
// Clamped to [TuneMin, TuneMax].
func WithBeta(b float64) GenerateOption {
	return func(o *genOptions) { o.beta = b }
}

// WithSamples sets how many independent attempts Synthesizer.Generate makes
// before keeping the best. Ignored by GenerateOnce.
func WithSamples(n int) GenerateOption {
	return func(o *genOptions) { o.samples = n }
}

func defaultGenOptions() *genOptions {
	return &genOptions{
		targetLength: 15,
		maxLength:    100,
		alpha:        1.0,
		beta:         1.0,
		samples:      5,
	}
}

// clampTune bounds a tunable exponent to [TuneMin, TuneMax].
func clampTune(v float64) float64 {
	if v < TuneMin {
		return TuneMin
	}
	if v > TuneMax {
		return TuneMax
	}
	return v
}

// GenerateOnce makes a single stochastic attempt at synthesizing a sentence,
// walking the chain from the start context and sampling one continuation per
// step. The random source is supplied by the caller so that attempts can be
// reproduced with a seeded rand.Rand. Degenerate situations are signalled by
// value: an unseen start context, or maxLength exhausted without a valid
// stop, yield the zero Result.
//
// GenerateOnce never mutates the model and must not run concurrently with
// Analyze.
func (m *Model) GenerateOnce(rng *rand.Rand, opts ...GenerateOption) Result {
	o := defaultGenOptions()
	for _, opt := range opts {
		opt(o)
	}
	alpha := clampTune(o.alpha)
	beta := clampTune(o.beta)

	kw := newKeywordState(o.keywords)
	w := newWindow(m.order)

	var b strings.Builder
	var lastWord string
	var score float64
	first := true

	for step := 0; step < o.maxLength; step++ {
		node := m.nodes[w.key()]
		if node == nil || node.Weight == 0 {
			// Unseen context: nothing was ever observed here.
			return Result{}
		}

		if step >= o.targetLength && node.IsExit {
			b.WriteString(m.tokenizer.EOC(lastWord))
			return finalizeResult(b.String(), score, kw.distinct(), beta)
		}

		links, freqs, weight := node.Links, node.Freqs, node.Weight
		if kw.active() {
			// Prefer keyword-bearing continuations when any exist at this
			// context; otherwise fall through to the unfiltered draw.
			if fl, ff, fw := kw.filter(links, freqs); fw > 0 {
				links, freqs, weight = fl, ff, fw
			}
		}

		idx, chance := sampleLink(rng, freqs, weight)
		if chance > 0 {
			score += math.Pow(1/chance, alpha)
		}

		if idx < 0 {
			// The draw landed in the termination share.
			if step < o.targetLength {
				// Too short to stop: close the clause and start a new one.
				if eoc := m.tokenizer.EOC(lastWord); !first && eoc != "" {
					b.WriteString(eoc)
					lastWord = eoc
				}
				w.reset()
				continue
			}
			// Exit contexts stop before sampling, so a termination draw at or
			// past the target only happens when a non-exit node carries a
			// termination share (e.g. a hand-built snapshot). Close the
			// sentence the same way the exit stop does.
			b.WriteString(m.tokenizer.EOC(lastWord))
			return finalizeResult(b.String(), score, kw.distinct(), beta)
		}

		word := links[idx]
		if first {
			first = false
		} else {
			b.WriteString(m.tokenizer.Separator(lastWord, word))
		}
		b.WriteString(word)
		lastWord = word
		w.push(word)
		kw.record(word)
	}

	return Result{}
}

// sampleLink draws uniformly across weight and walks the cumulative frequency
// ranges, returning the index of the chosen link and the probability of that
// choice. A draw beyond all link ranges is the termination outcome, returned
// as index -1 with the termination share's probability. A non-positive weight
// is the deterministic "no link" outcome with chance 1.
func sampleLink(rng *rand.Rand, freqs []int, weight int) (int, float64) {
	if weight <= 0 {
		return -1, 1.0
	}
	pick := rng.IntN(weight)
	var acc int
	for i, f := range freqs {
		acc += f
		if pick < acc {
			return i, float64(f) / float64(weight)
		}
	}
	return -1, float64(weight-acc) / float64(weight)
}

// finalizeResult builds the Result for a successful stop from explicit
// values: the assembled sentence, the accumulated rarity score, and the
// number of distinct keywords matched. Zero matches collapse the score to 0,
// so keyword-free attempts always lose best-of-N selection.
func finalizeResult(text string, score float64, found int, beta float64) Result {
	return Result{
		Text:  text,
		Score: score * math.Pow(float64(found), beta),
	}
}

// keywordState tracks keyword bias bookkeeping for one attempt. remaining
// holds the keywords still unmatched in the current lap; found holds the
// words that matched, in order of appearance; matched counts distinct
// keywords across laps for the beta bonus.
type keywordState struct {
	all       []string
	remaining []string
	found     []string
	matched   map[string]struct{}
}

// newKeywordState deduplicates keywords case-insensitively, preserving first
// occurrence order, and starts the first lap.
func newKeywordState(keywords []string) *keywordState {
	k := &keywordState{matched: make(map[string]struct{})}
	seen := make(map[string]struct{}, len(keywords))
	for _, raw := range keywords {
		lower := strings.ToLower(raw)
		if lower == "" {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		k.all = append(k.all, lower)
	}
	k.remaining = append(k.remaining, k.all...)
	return k
}

// active reports whether any keyword is still wanted this lap.
func (k *keywordState) active() bool {
	return len(k.remaining) > 0
}

// filter builds the biased view of a node: only links that are not already
// recorded in found and contain at least one remaining keyword as a
// case-insensitive substring. The returned weight is the sum of the included
// frequencies, so a filtered draw can never land in the termination share.
func (k *keywordState) filter(links []string, freqs []int) ([]string, []int, int) {
	var (
		fLinks  []string
		fFreqs  []int
		fWeight int
	)
	for i, link := range links {
		lower := strings.ToLower(link)
		if k.isFound(lower) {
			continue
		}
		for _, want := range k.remaining {
			if strings.Contains(lower, want) {
				fLinks = append(fLinks, link)
				fFreqs = append(fFreqs, freqs[i])
				fWeight += freqs[i]
				break
			}
		}
	}
	return fLinks, fFreqs, fWeight
}

// record tests an emitted word against the remaining keywords. The first
// keyword it contains is consumed; once every keyword has been matched the
// lap refills, so long outputs keep being biased toward the same set.
func (k *keywordState) record(word string) {
	lower := strings.ToLower(word)
	if k.isFound(lower) {
		return
	}
	for i, want := range k.remaining {
		if strings.Contains(lower, want) {
			k.found = append(k.found, lower)
			k.matched[want] = struct{}{}
			k.remaining = append(k.remaining[:i], k.remaining[i+1:]...)
			break
		}
	}
	if len(k.remaining) == 0 {
		k.remaining = append(k.remaining, k.all...)
	}
}

func (k *keywordState) isFound(lower string) bool {
	for _, f := range k.found {
		if f == lower {
			return true
		}
	}
	return false
}

// distinct returns the number of distinct keywords matched so far.
func (k *keywordState) distinct() int {
	return len(k.matched)
}
