package markov

import "strings"

// Node holds the observed continuations of a single context. Links and Freqs
// are parallel: Freqs[i] is the number of times Links[i] followed this context.
// Weight is the sum of all frequencies plus one for each time the context
// ended an ingested sequence, so "stop here" competes with every continuation
// during sampling. A Node with Weight == 0 has never been observed.
type Node struct {
	Links  []string `json:"links"`
	Freqs  []int    `json:"freqs"`
	Weight int      `json:"weight"`
	IsExit bool     `json:"isExit"`
}

// observe records one transition from this node to word, either bumping an
// existing link's frequency or appending a new link with frequency 1.
func (n *Node) observe(word string) {
	for i, link := range n.Links {
		if link == word {
			n.Freqs[i]++
			n.Weight++
			return
		}
	}
	n.Links = append(n.Links, word)
	n.Freqs = append(n.Freqs, 1)
	n.Weight++
}

// linkWeight returns the portion of Weight attributable to outgoing links.
// Weight minus this is the termination share.
func (n *Node) linkWeight() int {
	var sum int
	for _, f := range n.Freqs {
		sum += f
	}
	return sum
}

// Model is an order-k Markov chain over opaque string tokens. Contexts are
// keyed by their tail: the lowercase, separator-less join of the most recent
// up-to-k tokens. The empty tail is the start-of-sequence context. Nodes are
// created lazily on first observation and never deleted.
//
// A Model is not safe for concurrent use. Analyze mutates the chain and must
// not run while any generation call is in flight; callers that share a Model
// across goroutines must enforce single-writer/multi-reader discipline
// themselves.
type Model struct {
	order     int
	nodes     map[string]*Node
	tokenizer Tokenizer
}

// NewModel creates an empty model of the given order. Orders below 1 are
// floored to 1. A nil tokenizer falls back to NewDefaultTokenizer; the
// tokenizer is only used by AnalyzeText and for joining generated output,
// never for ingestion of pre-tokenized input.
func NewModel(order int, tokenizer Tokenizer) *Model {
	if order < 1 {
		order = 1
	}
	if tokenizer == nil {
		tokenizer = NewDefaultTokenizer()
	}
	return &Model{
		order:     order,
		nodes:     make(map[string]*Node),
		tokenizer: tokenizer,
	}
}

// Order returns the model's context length.
func (m *Model) Order() int {
	return m.order
}

// node returns the node at the given tail, creating it if absent.
func (m *Model) node(tail string) *Node {
	n, ok := m.nodes[tail]
	if !ok {
		n = &Node{}
		m.nodes[tail] = n
	}
	return n
}

// Analyze ingests one ordered token sequence, updating transition frequencies
// along the way and marking the final context as an exit. Tokens are opaque;
// original case is preserved in links, and lowercasing only happens in tail
// keys. An empty sequence is a no-op.
func (m *Model) Analyze(tokens []string) {
	if len(tokens) == 0 {
		return
	}
	w := newWindow(m.order)
	for _, tok := range tokens {
		m.node(w.key()).observe(tok)
		w.push(tok)
	}
	final := m.node(w.key())
	final.Weight++
	final.IsExit = true
}

// AnalyzeText splits raw text with the model's tokenizer and ingests the
// resulting tokens. Convenience for callers holding prose rather than tokens.
func (m *Model) AnalyzeText(text string) {
	m.Analyze(m.tokenizer.Split(text))
}

// window is the bounded queue of recent tokens a tail is derived from.
type window struct {
	order  int
	tokens []string
}

func newWindow(order int) *window {
	return &window{order: order, tokens: make([]string, 0, order)}
}

// push appends a token, evicting the oldest once the window exceeds its order.
func (w *window) push(tok string) {
	w.tokens = append(w.tokens, tok)
	if len(w.tokens) > w.order {
		w.tokens = w.tokens[1:]
	}
}

// reset empties the window, returning the context to start-of-sequence.
func (w *window) reset() {
	w.tokens = w.tokens[:0]
}

// key derives the tail for the current window contents. Tokens are joined
// without a separator, so windows whose contents concatenate to the same
// string share a node.
func (w *window) key() string {
	return strings.ToLower(strings.Join(w.tokens, ""))
}
