package markov

import (
	"reflect"
	"testing"
)

func TestPruneRemovesRareLinks(t *testing.T) {
	m := NewModel(1, nil)
	m.Analyze([]string{"a", "b"})
	m.Analyze([]string{"a", "b"})
	m.Analyze([]string{"a", "c"})

	removed := m.Prune(1)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	node := m.Snapshot().Graph["a"]
	if !reflect.DeepEqual(node.Links, []string{"b"}) {
		t.Errorf("links after prune = %v, want [b]", node.Links)
	}
	if node.Weight != 2 {
		t.Errorf("weight after prune = %d, want 2", node.Weight)
	}
}

func TestPrunePreservesWeightInvariant(t *testing.T) {
	m := NewModel(2, nil)
	m.AnalyzeText("one fish two fish. red fish blue fish. one fish two fish.")

	m.Prune(1)

	for tail, node := range m.Snapshot().Graph {
		if len(node.Links) != len(node.Freqs) {
			t.Errorf("tail %q: links and freqs diverged: %d vs %d", tail, len(node.Links), len(node.Freqs))
		}
		var sum int
		for _, f := range node.Freqs {
			if f <= 1 {
				t.Errorf("tail %q: rare link survived with frequency %d", tail, f)
			}
			sum += f
		}
		if node.Weight < sum {
			t.Errorf("tail %q: weight %d below link sum %d", tail, node.Weight, sum)
		}
	}
}

func TestPruneKeepsTerminationShare(t *testing.T) {
	m := NewModel(1, nil)
	m.Analyze([]string{"a"})
	m.Analyze([]string{"a"})

	// Node "a" is pure termination: weight 2, no links. Pruning must not
	// touch it.
	m.Prune(5)
	node := m.Snapshot().Graph["a"]
	if node.Weight != 2 || !node.IsExit {
		t.Errorf("termination node changed by prune: %+v", node)
	}
}
