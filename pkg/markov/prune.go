package markov

// Prune removes all links with a frequency less than or equal to minFreq.
// This is useful for reducing the size of a model by removing rare, and often
// noisy, transitions. Each node's termination share is preserved, so the
// weight invariant (weight = sum of frequencies + termination increments)
// holds afterwards. Returns the number of links removed.
func (m *Model) Prune(minFreq int) int {
	var removed int
	for _, n := range m.nodes {
		exitShare := n.Weight - n.linkWeight()

		kept := 0
		var keptWeight int
		for i, f := range n.Freqs {
			if f > minFreq {
				n.Links[kept] = n.Links[i]
				n.Freqs[kept] = f
				keptWeight += f
				kept++
			}
		}
		removed += len(n.Freqs) - kept
		n.Links = n.Links[:kept]
		n.Freqs = n.Freqs[:kept]
		n.Weight = keptWeight + exitShare
	}
	return removed
}
