package markov

import "regexp"

// Tokenizer is the contract between the chain and whatever turns prose into
// tokens and generated tokens back into prose. The model itself treats tokens
// as opaque labels; the tokenizer decides where they split and how they join.
type Tokenizer interface {
	// Split breaks raw text into tokens. Punctuation may appear as its own
	// token.
	Split(text string) []string
	// Separator returns the string to place between two adjacent tokens when
	// assembling generated output.
	Separator(prev, next string) string
	// EOC returns the string that ends a generated sentence, given the last
	// token emitted.
	EOC(last string) string
}

// DefaultTokenizer is a regex-based Tokenizer. It splits text into word runs
// and single punctuation marks, joins tokens with a space, and closes
// sentences with a period. Its behavior can be customized with functional
// options.
type DefaultTokenizer struct {
	separator   string
	eoc         string
	splitRegex  *regexp.Regexp
	sepExcRegex *regexp.Regexp
	eocExcRegex *regexp.Regexp
}

// Option is a function that configures a DefaultTokenizer.
type Option func(*DefaultTokenizer)

// WithSeparator sets the string used for joining tokens during generation.
// Default: " "
func WithSeparator(sep string) Option {
	return func(t *DefaultTokenizer) {
		t.separator = sep
	}
}

// WithEOC sets the string appended at the end of a generated sentence.
// Default: "."
func WithEOC(eoc string) Option {
	return func(t *DefaultTokenizer) {
		t.eoc = eoc
	}
}

// WithSplitRegex sets the regex used to extract tokens from input text.
// Default: `[\w']+|[.,!?;]`
func WithSplitRegex(splitRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.splitRegex = regexp.MustCompile(splitRegex)
	}
}

// WithSeparatorExcRegex sets the regex for tokens that get no separator
// placed before them.
func WithSeparatorExcRegex(sepExcRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.sepExcRegex = regexp.MustCompile(sepExcRegex)
	}
}

// WithEOCExcRegex sets the regex for tokens that suppress the end-of-sentence
// string when they are the last token.
func WithEOCExcRegex(eocExcRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.eocExcRegex = regexp.MustCompile(eocExcRegex)
	}
}

// NewDefaultTokenizer creates a tokenizer with default settings, which can be
// overridden by providing one or more Option functions.
func NewDefaultTokenizer(opts ...Option) *DefaultTokenizer {
	t := &DefaultTokenizer{
		separator: " ",
		eoc:       ".",
		// Sequences of word characters OR single instances of common punctuation.
		splitRegex: regexp.MustCompile(`[\w']+|[.,!?;]`),
		// Punctuation tokens don't get a separator put before them.
		sepExcRegex: regexp.MustCompile(`^[.,!?;]`),
		// A trailing punctuation token doesn't get an EOC put after it.
		eocExcRegex: regexp.MustCompile(`^[.,!?;]`),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Split extracts all tokens from text using the configured split regex.
func (t *DefaultTokenizer) Split(text string) []string {
	return t.splitRegex.FindAllString(text, -1)
}

// Separator returns the configured separator, or "" when the next token is
// punctuation that attaches directly to the previous one.
func (t *DefaultTokenizer) Separator(_, next string) string {
	if t.sepExcRegex.MatchString(next) {
		return ""
	}
	return t.separator
}

// EOC returns the configured end-of-sentence string, or "" when the last
// token already is one.
func (t *DefaultTokenizer) EOC(last string) string {
	if last != "" && t.eocExcRegex.MatchString(last) {
		return ""
	}
	return t.eoc
}
