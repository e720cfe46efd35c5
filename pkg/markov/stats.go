package markov

// ModelStats holds aggregated statistics for a single model.
type ModelStats struct {
	Nodes       int `json:"nodes"`        // The number of distinct contexts.
	Links       int `json:"links"`        // The number of unique context->word links.
	TotalWeight int `json:"total_weight"` // The sum of all node weights; trained transitions plus terminations.
	ExitNodes   int `json:"exit_nodes"`   // The number of contexts observed ending a sequence.
}

// Stats returns a snapshot of the model's aggregate counts.
func (m *Model) Stats() ModelStats {
	var s ModelStats
	s.Nodes = len(m.nodes)
	for _, n := range m.nodes {
		s.Links += len(n.Links)
		s.TotalWeight += n.Weight
		if n.IsExit {
			s.ExitNodes++
		}
	}
	return s
}
