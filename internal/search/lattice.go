package search

// LatNode is a lattice node (§3 "Lattice node"): the set of all BPT
// entries sharing (Wid, Sf), with Fef/Lef bounding the end-frame span
// across that set.
type LatNode struct {
	Wid  WordId
	Sf   int32
	Fef  int32
	Lef  int32

	// Ascr is the node's own best acoustic score (the best underlying BPT
	// entry's Score - predecessor.Score - Lscr), §4.H's final_node_ascr
	// when this is the </s> node.
	Ascr int32

	Reachable bool

	Links    []int32 // outgoing DAG link indices
	RevLinks []int32 // incoming DAG link indices
}

// DagLink is a directed edge between two lattice nodes (§3 "DAG link").
// PathScr and BestPrev are only meaningful during bestpath rescoring.
type DagLink struct {
	From, To int32
	LinkScr  int32
	Ef       int32 // effective end frame this link represents

	PathScr  int32
	BestPrev int32
}

// Dag is the lattice built from one utterance's BPT (§4.F).
type Dag struct {
	Nodes []LatNode
	Links []DagLink

	Initial int32
	Final   int32
}

// nodeKey identifies a latnode by its (wid, start-frame) pair.
type nodeKey struct {
	Wid WordId
	Sf  int32
}

// BuildLattice implements §4.F: for every valid non-<s> BPT entry,
// locate or create a latnode keyed by (wid, sf), extending its
// [fef, lef] span; link candidate predecessor/successor pairs whose
// frame ranges overlap; thread edges around filler nodes (adding the
// configured silence/filler penalty) and delete the filler node; finally
// sweep nodes unreachable from </s>'s final node.
func BuildLattice(bpt *BPT, dict Dictionary, lm LanguageModel, cfg Config) *Dag {
	dag := &Dag{Initial: -1, Final: -1}
	nodeOf := make(map[nodeKey]int32)

	startWid := dict.StartWid()
	endWid := dict.EndWid()

	for i := int32(0); i < bpt.Len(); i++ {
		e := bpt.Entry(i)
		if !e.Valid {
			continue
		}
		if !dict.IsFiller(e.Wid) && !lm.KnownWid(e.Wid) && e.Wid != startWid && e.Wid != endWid {
			continue
		}
		sf := sourceFrameOf(bpt, e)
		key := nodeKey{e.Wid, sf}
		ascr := entryAscr(bpt, e)
		idx, ok := nodeOf[key]
		if !ok {
			idx = int32(len(dag.Nodes))
			dag.Nodes = append(dag.Nodes, LatNode{Wid: e.Wid, Sf: sf, Fef: e.Frame, Lef: e.Frame, Ascr: ascr})
			nodeOf[key] = idx
			if e.Wid == startWid {
				dag.Initial = idx
			}
		} else {
			n := &dag.Nodes[idx]
			if e.Frame < n.Fef {
				n.Fef = e.Frame
			}
			if e.Frame > n.Lef {
				n.Lef = e.Frame
			}
			if ascr > n.Ascr {
				n.Ascr = ascr
			}
		}
		if e.Wid == endWid {
			dag.Final = idx
		}
	}

	for toIdx := range dag.Nodes {
		to := &dag.Nodes[toIdx]
		if to.Wid == startWid {
			continue
		}
		for fromIdx := range dag.Nodes {
			if fromIdx == toIdx {
				continue
			}
			from := &dag.Nodes[fromIdx]
			if from.Fef+1 > to.Sf || to.Sf > from.Lef+1 {
				continue
			}
			bpIdx := findEntryEndingAt(bpt, from.Wid, to.Sf-1)
			if bpIdx < 0 {
				continue
			}
			ascr := bpt.RCScore(bpIdx, dict.FirstPhone(to.Wid))
			if ascr <= WorstScore/2 {
				continue
			}
			dag.Links = append(dag.Links, DagLink{From: int32(fromIdx), To: int32(toIdx), LinkScr: ascr, Ef: to.Sf - 1})
		}
	}

	threadFillers(dag, dict, cfg)
	pruneUnreachable(dag)
	return dag
}

// sourceFrameOf derives the effective start frame of e's word: the frame
// after its own predecessor's end frame, or 0 at <s>.
func sourceFrameOf(bpt *BPT, e *BPTEntry) int32 {
	if e.Bp < 0 {
		return 0
	}
	return bpt.Entry(e.Bp).Frame + 1
}

// entryAscr computes a BPT entry's own acoustic score, matching the
// ascr/lscr split Backtrace derives from Score/Lscr (§4.J).
func entryAscr(bpt *BPT, e *BPTEntry) int32 {
	prevScore := int32(0)
	if e.Bp >= 0 {
		prevScore = bpt.Entry(e.Bp).Score
	}
	return e.Score - prevScore - e.Lscr
}

// findEntryEndingAt returns the BPT index of the (first) valid entry for
// wid whose Frame equals ef, or -1.
func findEntryEndingAt(bpt *BPT, wid WordId, ef int32) int32 {
	start := bpt.BpStart(ef)
	end := bpt.BpStart(ef + 1)
	if end < start {
		end = bpt.Len()
	}
	for i := start; i < end; i++ {
		e := bpt.Entry(i)
		if e.Valid && e.Wid == wid {
			return i
		}
	}
	return -1
}

// threadFillers rewrites edges through filler nodes (other than <s>/</s>):
// any path a -> filler -> b becomes a -> b with the silence/filler
// penalty folded into the new link score, and the filler node is dropped.
func threadFillers(dag *Dag, dict Dictionary, cfg Config) {
	startWid := dict.StartWid()
	endWid := dict.EndWid()

	isBypassable := func(n *LatNode) bool {
		return dict.IsFiller(n.Wid) && n.Wid != startWid && n.Wid != endWid
	}

	var kept []DagLink
	incoming := make(map[int32][]int32) // filler node -> incoming link indices
	outgoing := make(map[int32][]int32)
	for li, l := range dag.Links {
		if isBypassable(&dag.Nodes[l.To]) {
			incoming[l.To] = append(incoming[l.To], int32(li))
			continue
		}
		if isBypassable(&dag.Nodes[l.From]) {
			outgoing[l.From] = append(outgoing[l.From], int32(li))
			continue
		}
		kept = append(kept, l)
	}

	for fillerIdx, ins := range incoming {
		penalty := cfg.FillerWordPenalty
		if dag.Nodes[fillerIdx].Wid == dict.SilWid() {
			penalty = cfg.SilenceWordPenalty
		}
		outs := outgoing[fillerIdx]
		for _, ii := range ins {
			in := dag.Links[ii]
			for _, oi := range outs {
				out := dag.Links[oi]
				kept = append(kept, DagLink{
					From:    in.From,
					To:      out.To,
					LinkScr: in.LinkScr + out.LinkScr + penalty,
					Ef:      out.Ef,
				})
			}
		}
	}

	dag.Links = kept
	rebuildAdjacency(dag)

	var survivors []LatNode
	remap := make(map[int32]int32)
	for i := range dag.Nodes {
		if isBypassable(&dag.Nodes[i]) {
			continue
		}
		remap[int32(i)] = int32(len(survivors))
		survivors = append(survivors, dag.Nodes[i])
	}
	for i := range dag.Links {
		dag.Links[i].From = remap[dag.Links[i].From]
		dag.Links[i].To = remap[dag.Links[i].To]
	}
	if dag.Initial >= 0 {
		dag.Initial = remap[dag.Initial]
	}
	if dag.Final >= 0 {
		dag.Final = remap[dag.Final]
	}
	dag.Nodes = survivors
	rebuildAdjacency(dag)
}

func rebuildAdjacency(dag *Dag) {
	for i := range dag.Nodes {
		dag.Nodes[i].Links = nil
		dag.Nodes[i].RevLinks = nil
	}
	for li, l := range dag.Links {
		dag.Nodes[l.From].Links = append(dag.Nodes[l.From].Links, int32(li))
		dag.Nodes[l.To].RevLinks = append(dag.Nodes[l.To].RevLinks, int32(li))
	}
}

// pruneUnreachable sweeps and deletes nodes not reachable backwards from
// the final (</s>) node, per §4.F.
func pruneUnreachable(dag *Dag) {
	if dag.Final < 0 {
		return
	}
	for i := range dag.Nodes {
		dag.Nodes[i].Reachable = false
	}
	stack := []int32{dag.Final}
	dag.Nodes[dag.Final].Reachable = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, li := range dag.Nodes[cur].RevLinks {
			from := dag.Links[li].From
			if !dag.Nodes[from].Reachable {
				dag.Nodes[from].Reachable = true
				stack = append(stack, from)
			}
		}
	}

	var survivors []LatNode
	remap := make(map[int32]int32)
	for i := range dag.Nodes {
		if !dag.Nodes[i].Reachable {
			continue
		}
		remap[int32(i)] = int32(len(survivors))
		survivors = append(survivors, dag.Nodes[i])
	}
	var kept []DagLink
	for _, l := range dag.Links {
		fr, fok := remap[l.From]
		to, tok := remap[l.To]
		if !fok || !tok {
			continue
		}
		l.From, l.To = fr, to
		kept = append(kept, l)
	}
	if dag.Initial >= 0 {
		dag.Initial = remap[dag.Initial]
	}
	if dag.Final >= 0 {
		dag.Final = remap[dag.Final]
	}
	dag.Nodes = survivors
	dag.Links = kept
	rebuildAdjacency(dag)
}
