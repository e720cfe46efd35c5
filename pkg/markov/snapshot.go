package markov

import (
	"encoding/json"
	"fmt"
	"io"
)

// Snapshot is the persistence-ready representation of a model: its order and
// the full tail-to-node mapping. Reconstructing a model from a snapshot and
// snapshotting it again yields a structurally equal snapshot, and the
// reconstructed model samples identically to the one that produced it.
type Snapshot struct {
	Order int              `json:"order"`
	Graph map[string]*Node `json:"graph"`
}

// Snapshot deep-copies the model's state. The returned value shares nothing
// with the model and stays valid across later Analyze calls.
func (m *Model) Snapshot() *Snapshot {
	graph := make(map[string]*Node, len(m.nodes))
	for tail, n := range m.nodes {
		graph[tail] = cloneNode(n)
	}
	return &Snapshot{Order: m.order, Graph: graph}
}

// FromSnapshot reconstructs a model from a snapshot. The snapshot is
// deep-copied in, so callers may keep mutating or discarding it. Orders below
// 1 are floored to 1, matching NewModel.
func FromSnapshot(s *Snapshot, tokenizer Tokenizer) *Model {
	m := NewModel(s.Order, tokenizer)
	for tail, n := range s.Graph {
		m.nodes[tail] = cloneNode(n)
	}
	return m
}

// Export serializes the model's snapshot as indented JSON to w. This is
// useful for backups or for transferring models between instances.
func (m *Model) Export(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(m.Snapshot())
}

// Import reads a JSON snapshot from r and reconstructs a model from it.
func Import(r io.Reader, tokenizer Tokenizer) (*Model, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode json snapshot: %w", err)
	}
	return FromSnapshot(&snap, tokenizer), nil
}

func cloneNode(n *Node) *Node {
	c := &Node{Weight: n.Weight, IsExit: n.IsExit}
	if n.Links != nil {
		c.Links = append([]string(nil), n.Links...)
	}
	if n.Freqs != nil {
		c.Freqs = append([]int(nil), n.Freqs...)
	}
	return c
}
