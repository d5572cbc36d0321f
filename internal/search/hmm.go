package search

// maxEmitStates is the largest N_e this decoder supports (the 5-state
// left-to-right topology); the 3-state topology is the same code with
// NumEmitState set to 3. One extra slot holds the non-emitting exit state.
const maxEmitStates = 5

// HMMContext holds information shared by every HMM instance built on the
// same acoustic model: the emitting-state count, the tied transition
// matrices in log domain (tp[tmatid][from][to], from/to in
// 0..NumEmitState inclusive, NumEmitState itself being the exit state),
// and the senone-sequence table (sseq[ssid][state] -> senone id).
//
// This is Component A's "evaluator"; HMM instances (below) are cheap
// values that reference it.
type HMMContext struct {
	NumEmitState int
	Tmat         [][][]int32 // [tmatid][from][to]
	SenoneSeq    [][]Senone  // [ssid][state]
}

// NewHMMContext validates the transition matrices (every state must have
// a defined self-loop; the model is otherwise free to omit +1/+2 arcs)
// and returns a ready Evaluator. A phone whose tied transition matrix
// lacks a self-loop on some state is a build-time model bug, not a
// runtime condition, so this fails fast at construction rather than deep
// inside a frame update.
func NewHMMContext(numEmitState int, tmat [][][]int32, sseq [][]Senone) (*HMMContext, error) {
	if numEmitState != 3 && numEmitState != 5 {
		return nil, newError(BadTransition, "unsupported HMM topology: %d emitting states", numEmitState)
	}
	for id, tp := range tmat {
		if len(tp) != numEmitState || len(tp[0]) != numEmitState+1 {
			return nil, newError(BadTransition, "tmat %d: wrong shape", id)
		}
		for s := 0; s < numEmitState; s++ {
			if tp[s][s] <= WorstScore/2 {
				return nil, newError(BadTransition, "tmat %d: missing self-loop at state %d", id, s)
			}
		}
	}
	return &HMMContext{NumEmitState: numEmitState, Tmat: tmat, SenoneSeq: sseq}, nil
}

// HMM is one instance of a 3- or 5-state left-to-right HMM: per-state best
// path score (log domain), per-state history index, a frame stamp, a
// best-emitting-state cache, and a tagged shared/multiplex senone-sequence
// reference. Zero value is not ready to use; construct with NewHMM.
//
// Invariant: Score[i] == WorstScore implies History[i] == NoHistory.
type HMM struct {
	ctx    *HMMContext
	tmatID Tmat

	ssid     Ssid   // shared senone-sequence id; used when mpxSsid == nil
	mpxSsid  []Ssid // per-state senone-sequence ids; non-nil marks a multiplex HMM

	Score   [maxEmitStates + 1]int32
	History [maxEmitStates + 1]int32

	BestScore int32 // best among emitting states only (excludes exit)
	Frame     int32 // last frame this instance was touched; -1 if cleared
}

// NewHMM builds a shared-ssid HMM instance (the common case: interior and
// leaf tree nodes, and non-root fwdflat chain nodes).
func NewHMM(ctx *HMMContext, tmatID Tmat, ssid Ssid) *HMM {
	h := &HMM{ctx: ctx, tmatID: tmatID, ssid: ssid}
	h.Clear()
	return h
}

// NewMultiplexHMM builds a multiplex HMM instance: a cross-word
// left-context root whose entry-state senone-sequence id can be
// rewritten per incoming left context via SetEntrySsid.
func NewMultiplexHMM(ctx *HMMContext, tmatID Tmat) *HMM {
	h := &HMM{ctx: ctx, tmatID: tmatID, mpxSsid: make([]Ssid, ctx.NumEmitState)}
	h.Clear()
	return h
}

// IsMultiplex reports whether this instance's entry-state senone sequence
// can vary per incoming left context.
func (h *HMM) IsMultiplex() bool { return h.mpxSsid != nil }

// SetEntrySsid rewrites the entry state's (state 0) senone-sequence id.
// Only valid on a multiplex HMM; called when a new left context enters
// the root, before Evaluate is next called.
func (h *HMM) SetEntrySsid(ssid Ssid) {
	h.mpxSsid[0] = ssid
}

func (h *HMM) senoneOf(state int) Senone {
	if h.mpxSsid != nil {
		return h.ctx.SenoneSeq[h.mpxSsid[state]][state]
	}
	return h.ctx.SenoneSeq[h.ssid][state]
}

// Clear sets every score to WorstScore and every history to NoHistory,
// and resets the frame stamp. This is the only operation allowed to make
// Frame go backwards.
func (h *HMM) Clear() {
	for i := range h.Score {
		h.Score[i] = WorstScore
		h.History[i] = NoHistory
	}
	h.BestScore = WorstScore
	h.Frame = -1
}

// Alive reports whether this instance holds any live (non-WorstScore) state.
func (h *HMM) Alive() bool {
	return h.BestScore > WorstScore/2
}

// Enter applies the non-emitting entry transition into state 0:
// Score[0] = max(Score[0], score), History[0] = hist iff improved. Bumps
// Frame regardless, matching the C hmm_enter's unconditional frame stamp.
func (h *HMM) Enter(score int32, hist int32, frame int32) {
	if score > h.Score[0] {
		h.Score[0] = score
		h.History[0] = hist
		if score > h.BestScore {
			h.BestScore = score
		}
	}
	h.Frame = frame
}

// Normalize subtracts base from every finite (non-WorstScore) score, to
// cap dynamic range before a 32-bit accumulator could overflow. Callers
// invoke this when the best live score across all active HMMs gets too
// close to WorstScore (see Decoder.maybeRenormalize).
func (h *HMM) Normalize(base int32) {
	for i, s := range h.Score {
		if s > WorstScore/2 {
			h.Score[i] = s - base
		}
	}
	if h.BestScore > WorstScore/2 {
		h.BestScore -= base
	}
}

// Evaluate performs one Viterbi update: for each emitting state s,
// Score'[s] = senscr[senone_of(s)] + max over predecessors p in {s, s-1,
// s-2} (clamped to the model) of (Score[p] + tp[p][s]); the exit state
// receives max over emitting states of (Score[s] + tp[s][exit]). Returns
// the new BestScore (best among emitting states, excluding the exit).
//
// senscr is the full per-frame senone score vector, indexed by Senone id;
// it is shared read-only across every HMM evaluated this frame (see
// senone.go).
func (h *HMM) Evaluate(senscr []int32, frame int32) int32 {
	ne := h.ctx.NumEmitState
	tp := h.ctx.Tmat[h.tmatID]

	var newScore [maxEmitStates]int32
	var newHist [maxEmitStates]int32

	for s := 0; s < ne; s++ {
		best := WorstScore
		bestHist := int32(NoHistory)
		lo := s - 2
		if lo < 0 {
			lo = 0
		}
		for p := lo; p <= s; p++ {
			if h.Score[p] <= WorstScore/2 {
				continue
			}
			tpv := tp[p][s]
			if tpv <= WorstScore/2 {
				continue // transition not defined for this phone
			}
			cand := h.Score[p] + tpv
			if cand > best {
				best = cand
				bestHist = h.History[p]
			}
		}
		if best > WorstScore/2 {
			best = addScore(best, senscr[h.senoneOf(s)])
		}
		newScore[s] = best
		newHist[s] = bestHist
	}

	bestExit := WorstScore
	bestExitHist := int32(NoHistory)
	bestEmit := WorstScore
	for s := 0; s < ne; s++ {
		if newScore[s] > bestEmit {
			bestEmit = newScore[s]
		}
		if newScore[s] <= WorstScore/2 {
			continue
		}
		tpv := tp[s][ne]
		if tpv <= WorstScore/2 {
			continue
		}
		cand := newScore[s] + tpv
		if cand > bestExit {
			bestExit = cand
			bestExitHist = newHist[s]
		}
	}

	copy(h.Score[:ne], newScore[:ne])
	copy(h.History[:ne], newHist[:ne])
	h.Score[ne] = bestExit
	h.History[ne] = bestExitHist
	h.BestScore = bestEmit
	h.Frame = frame

	return h.BestScore
}

// ExitScore returns the current non-emitting exit-state score: the value
// a downstream transition (word-exit, new-phone, inter-word) reads to
// decide whether this instance's path beats its own beam.
func (h *HMM) ExitScore() int32 { return h.Score[h.ctx.NumEmitState] }

// ExitHistory returns the history index attached to the current exit score.
func (h *HMM) ExitHistory() int32 { return h.History[h.ctx.NumEmitState] }

// MarkActive sets, in as, the senone id of every emitting state that
// currently holds a live score. For a multiplex instance that is one
// senone per state; for a shared instance it is (up to) the full
// length-N_e senone sequence.
func (h *HMM) MarkActive(as *ActiveSenoneSet) {
	ne := h.ctx.NumEmitState
	for s := 0; s < ne; s++ {
		if h.Score[s] > WorstScore/2 {
			as.Mark(h.senoneOf(s))
		}
	}
}
