package search

// BestPath is the result of rescoring a Dag with full trigram LM scores
// (Component H): the winning word sequence (as latnode indices, <s>
// first) and its total score.
type BestPath struct {
	Nodes []int32
	Score int32
}

// RescoreBestPath implements §4.H: a Kahn's-algorithm-style fan-in
// resolution over the DAG, exact trigram at every edge. Refuses to run
// (RenormalizationConflict) if the fwdtree pass ever renormalized,
// because renormalization invalidates cross-pass score comparisons.
func RescoreBestPath(dag *Dag, dict Dictionary, lm LanguageModel, cfg Config, renormalized bool) (*BestPath, error) {
	if renormalized {
		return nil, newError(RenormalizationConflict, "fwdtree renormalized; skipping bestpath")
	}
	if dag.Initial < 0 || dag.Final < 0 {
		return nil, newError(NoTerminalState, "lattice has no <s>/</s> node")
	}

	lw := logToLW(cfg.BestpathLanguageWeight)

	for i := range dag.Links {
		dag.Links[i].PathScr = WorstScore
		dag.Links[i].BestPrev = -1
	}

	fanin := make([]int, len(dag.Nodes))
	for i, n := range dag.Nodes {
		fanin[i] = len(n.RevLinks)
	}

	var queue []int32
	for _, li := range dag.Nodes[dag.Initial].Links {
		l := &dag.Links[li]
		to := dag.Nodes[l.To]
		bg := lm.Bg(dag.Nodes[dag.Initial].Wid, to.Wid)
		l.PathScr = l.LinkScr + scaleLW(bg, lw)
		fanin[l.To]--
		if fanin[l.To] == 0 {
			queue = append(queue, l.To)
		}
	}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		vWid := dag.Nodes[v].Wid
		for _, li := range dag.Nodes[v].Links {
			l := &dag.Links[li]
			w := dag.Nodes[l.To].Wid
			// Every incoming edge into v is already resolved (v's fanin
			// reached zero to get here); take the best over all of them,
			// since the trigram context depends on which one is chosen.
			for _, ri := range dag.Nodes[v].RevLinks {
				in := &dag.Links[ri]
				tg := lm.Tg(dag.Nodes[in.From].Wid, vWid, w)
				cand := in.PathScr + l.LinkScr + scaleLW(tg, lw)
				if cand > l.PathScr {
					l.PathScr = cand
					l.BestPrev = ri
				}
			}
			fanin[l.To]--
			if fanin[l.To] == 0 {
				queue = append(queue, l.To)
			}
		}
	}

	var best int32 = -1
	for _, li := range dag.Nodes[dag.Final].RevLinks {
		if best < 0 || dag.Links[li].PathScr > dag.Links[best].PathScr {
			best = li
		}
	}
	if best < 0 {
		return nil, newError(NoTerminalState, "no path reached </s>")
	}

	var nodes []int32
	cur := best
	for cur >= 0 {
		nodes = append(nodes, dag.Links[cur].To)
		cur = dag.Links[cur].BestPrev
	}
	nodes = append(nodes, dag.Initial)
	reverse32(nodes)

	// The termination score adds final_node_ascr, the </s> node's own
	// acoustic score; it's constant across every candidate edge into
	// Final so it never changes which edge wins, only the reported total.
	return &BestPath{Nodes: nodes, Score: dag.Links[best].PathScr + dag.Nodes[dag.Final].Ascr}, nil
}

func reverse32(s []int32) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
