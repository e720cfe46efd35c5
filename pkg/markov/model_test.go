package markov

import (
	"math/rand/v2"
	"reflect"
	"testing"
)

// testRNG returns a deterministically seeded random source so generation
// tests are reproducible.
func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(7, 13))
}

// newCatModel builds the canonical three-token model used across tests.
func newCatModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel(2, nil)
	m.Analyze([]string{"the", "cat", "sat"})
	return m
}

// newFishModel builds a model with real branching for sampling tests.
func newFishModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel(2, nil)
	m.AnalyzeText("one fish two fish. red fish blue fish.")
	return m
}

func TestAnalyzeCreatesExpectedTransitions(t *testing.T) {
	m := newCatModel(t)
	graph := m.Snapshot().Graph

	cases := []struct {
		tail   string
		links  []string
		freqs  []int
		weight int
		isExit bool
	}{
		{tail: "", links: []string{"the"}, freqs: []int{1}, weight: 1},
		{tail: "the", links: []string{"cat"}, freqs: []int{1}, weight: 1},
		{tail: "thecat", links: []string{"sat"}, freqs: []int{1}, weight: 1},
		{tail: "catsat", weight: 1, isExit: true},
	}

	if len(graph) != len(cases) {
		t.Errorf("expected %d nodes, got %d", len(cases), len(graph))
	}
	for _, tc := range cases {
		node, ok := graph[tc.tail]
		if !ok {
			t.Errorf("expected a node at tail %q", tc.tail)
			continue
		}
		if !reflect.DeepEqual(node.Links, tc.links) {
			t.Errorf("tail %q: expected links %v, got %v", tc.tail, tc.links, node.Links)
		}
		if !reflect.DeepEqual(node.Freqs, tc.freqs) {
			t.Errorf("tail %q: expected freqs %v, got %v", tc.tail, tc.freqs, node.Freqs)
		}
		if node.Weight != tc.weight {
			t.Errorf("tail %q: expected weight %d, got %d", tc.tail, tc.weight, node.Weight)
		}
		if node.IsExit != tc.isExit {
			t.Errorf("tail %q: expected isExit %v, got %v", tc.tail, tc.isExit, node.IsExit)
		}
	}
}

func TestAnalyzeAccumulatesFrequency(t *testing.T) {
	m := NewModel(1, nil)
	m.Analyze([]string{"a", "b"})
	m.Analyze([]string{"a", "b"})

	node := m.Snapshot().Graph["a"]
	if node == nil {
		t.Fatal("expected a node at tail \"a\"")
	}
	if len(node.Links) != 1 || node.Links[0] != "b" {
		t.Errorf("expected exactly one link \"b\", got %v", node.Links)
	}
	if node.Freqs[0] != 2 {
		t.Errorf("expected frequency 2, got %d", node.Freqs[0])
	}
	if node.Weight != 2 {
		t.Errorf("expected weight 2, got %d", node.Weight)
	}
}

func TestAnalyzeEmptyIsNoOp(t *testing.T) {
	m := NewModel(2, nil)
	m.Analyze(nil)
	m.Analyze([]string{})
	if got := m.Stats().Nodes; got != 0 {
		t.Errorf("expected no nodes after empty ingestion, got %d", got)
	}
}

func TestAnalyzePreservesCaseInLinks(t *testing.T) {
	m := NewModel(1, nil)
	m.Analyze([]string{"The", "Cat"})
	graph := m.Snapshot().Graph

	if node := graph[""]; node == nil || node.Links[0] != "The" {
		t.Errorf("expected original case \"The\" in links, got %+v", node)
	}
	// Tail keys are lowercased.
	if _, ok := graph["the"]; !ok {
		t.Error("expected the tail key to be lowercased")
	}
	if _, ok := graph["The"]; ok {
		t.Error("did not expect an original-case tail key")
	}
}

func TestOrderFlooredToOne(t *testing.T) {
	for _, order := range []int{0, -3} {
		m := NewModel(order, nil)
		if m.Order() != 1 {
			t.Errorf("NewModel(%d) order = %d, want 1", order, m.Order())
		}
	}

	m := FromSnapshot(&Snapshot{Order: -1, Graph: map[string]*Node{}}, nil)
	if m.Order() != 1 {
		t.Errorf("FromSnapshot order = %d, want 1", m.Order())
	}
}

func TestWindowEviction(t *testing.T) {
	w := newWindow(2)
	keys := []string{"", "a", "ab", "bc", "cd"}
	if got := w.key(); got != keys[0] {
		t.Errorf("empty window key = %q, want %q", got, keys[0])
	}
	for i, tok := range []string{"a", "b", "c", "d"} {
		w.push(tok)
		if got := w.key(); got != keys[i+1] {
			t.Errorf("after push %q: key = %q, want %q", tok, got, keys[i+1])
		}
	}
	w.reset()
	if got := w.key(); got != "" {
		t.Errorf("after reset: key = %q, want \"\"", got)
	}
}

func TestStats(t *testing.T) {
	m := newCatModel(t)
	stats := m.Stats()

	want := ModelStats{Nodes: 4, Links: 3, TotalWeight: 4, ExitNodes: 1}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
}

func TestAnalyzeText(t *testing.T) {
	m := newFishModel(t)
	graph := m.Snapshot().Graph

	// "fish" follows both "one" and "red" contexts; "." is its own token.
	node := graph["twofish"]
	if node == nil {
		t.Fatal("expected a node at tail \"twofish\"")
	}
	if !reflect.DeepEqual(node.Links, []string{"."}) {
		t.Errorf("expected \"two fish\" to be followed by \".\", got %v", node.Links)
	}
}
