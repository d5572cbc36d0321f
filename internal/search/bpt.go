package search

import "sort"

// LexiconView is the subset of the dictionary collaborator (§6) the
// backpointer table needs on its own: filler/base-word resolution for LM
// history bookkeeping, and the per-word right-context fan-out shape
// (rcpermtab) for the score stack.
type LexiconView interface {
	IsFiller(wid WordId) bool
	BaseWid(wid WordId) WordId
	// RCCount returns the number of distinct right-context classes wid's
	// final diphone actually reaches (the deduplicated rcpermtab range).
	RCCount(wid WordId) int
	// RCIndex maps a right-context CI phone to its slot within RCCount(wid).
	RCIndex(wid WordId, rc CIPhone) int
}

// BPTEntry is one backpointer-table record: a word exit, its predecessor,
// its path score, and the bookkeeping needed to query the LM and to
// rebuild the per-right-context score needed by the lexical tree's
// cross-word fan-in.
type BPTEntry struct {
	Frame int32
	Wid   WordId
	Bp    int32 // predecessor entry index; -1 at the utterance root
	Score int32 // best path score seen for (Wid, Frame) so far
	Lscr  int32 // LM (or filler-penalty) score applied at this word's entry
	Ascr  int32 // acoustic score: Score - predecessor.Score - Lscr

	SIdx int32 // start offset into the shared right-context score stack; -1 if none

	RealWid     WordId // base wid of the nearest non-filler predecessor (NoWordId at <s>)
	PrevRealWid WordId // base wid one further back (NoWordId if unavailable)

	Valid bool // false once absolute per-frame pruning (CapWordExits) drops it
}

// BPT is the append-only, per-frame-indexed backpointer table (Component
// C). Entries are never removed or reordered; CapWordExits only flips
// Valid. The whole table (plus its score stack) is an arena: Reset drops
// it as a unit, matching the "pools are dropped as a unit at utterance
// end" design note.
type BPT struct {
	lex LexiconView

	entries    []BPTEntry
	scoreStack []int32
	bpStart    []int32 // bpStart[f] == index of the first entry of frame f

	curFrame int32
	wordIdx  map[WordId]int32 // last entry index for wid within curFrame

	maxEntries int
	overflowed bool

	lmEnabled bool

	onCapacityWarning func()
}

// NewBPT allocates a table with room for maxEntries word exits (the
// "latsize" config option). lmEnabled controls whether PrevRealWid is
// ever populated (bigram-only configurations never need the second hop).
func NewBPT(lex LexiconView, maxEntries int, lmEnabled bool) *BPT {
	return &BPT{
		lex:        lex,
		entries:    make([]BPTEntry, 0, maxEntries),
		scoreStack: make([]int32, 0, maxEntries*2),
		bpStart:    make([]int32, 0, 4096),
		wordIdx:    make(map[WordId]int32, 256),
		maxEntries: maxEntries,
		lmEnabled:  lmEnabled,
	}
}

// Reset drops every entry and the score stack, for the start of a fresh
// utterance. Capacity is retained.
func (b *BPT) Reset() {
	b.entries = b.entries[:0]
	b.scoreStack = b.scoreStack[:0]
	b.bpStart = b.bpStart[:0]
	b.curFrame = 0
	b.overflowed = false
	for k := range b.wordIdx {
		delete(b.wordIdx, k)
	}
}

// Len returns the number of entries recorded so far.
func (b *BPT) Len() int32 { return int32(len(b.entries)) }

// Entry returns a pointer to entry i. Valid for 0 <= i < Len().
func (b *BPT) Entry(i int32) *BPTEntry { return &b.entries[i] }

// Overflowed reports whether Save has ever silently dropped an exit this
// utterance (CapacityError).
func (b *BPT) Overflowed() bool { return b.overflowed }

// BeginFrame records bpStart[frame] = Len() and clears the per-frame
// WordLatIdx map, per the §8 invariant that WordLatIdx is "cleared to
// NONE at frame boundary".
func (b *BPT) BeginFrame(frame int32) {
	for int32(len(b.bpStart)) <= frame {
		b.bpStart = append(b.bpStart, b.Len())
	}
	b.bpStart[frame] = b.Len()
	b.curFrame = frame
	for k := range b.wordIdx {
		delete(b.wordIdx, k)
	}
}

// BpStart returns bpStart[frame], the index of the first entry recorded
// in that frame (or Len() if frame has not started yet).
func (b *BPT) BpStart(frame int32) int32 {
	if frame < 0 || int(frame) >= len(b.bpStart) {
		return b.Len()
	}
	return b.bpStart[frame]
}

// Save records (or, if wid already exited this frame, improves) a word
// exit. rc is the phone that will form the next word's left context; its
// per-right-context score is written into the score stack. lscr is the
// LM (or filler-penalty) score applied at this word's entry, cached on
// the entry for §4.J's ascr/lscr split. Returns the entry index, or -1
// if the table is full (CapacityError: the utterance continues with
// degraded recall).
func (b *BPT) Save(wid WordId, score int32, prevBp int32, rc CIPhone, lscr int32) int32 {
	if idx, ok := b.wordIdx[wid]; ok {
		e := &b.entries[idx]
		if e.SIdx >= 0 {
			slot := int(e.SIdx) + b.lex.RCIndex(wid, rc)
			if score > b.scoreStack[slot] {
				b.scoreStack[slot] = score
			}
		}
		if score > e.Score {
			e.Score = score
			e.Bp = prevBp
			e.Lscr = lscr
			e.Ascr = score - lscr
			if prevBp >= 0 {
				e.Ascr -= b.entries[prevBp].Score
			}
		}
		return idx
	}

	if len(b.entries) >= b.maxEntries {
		if !b.overflowed {
			b.overflowed = true
			if b.onCapacityWarning != nil {
				b.onCapacityWarning()
			}
		}
		return -1
	}

	realWid, prevRealWid := b.resolveLMHistory(prevBp)

	sIdx := int32(-1)
	if n := b.lex.RCCount(wid); n > 0 {
		sIdx = int32(len(b.scoreStack))
		for i := 0; i < n; i++ {
			b.scoreStack = append(b.scoreStack, WorstScore)
		}
		b.scoreStack[int(sIdx)+b.lex.RCIndex(wid, rc)] = score
	}

	ascr := score - lscr
	if prevBp >= 0 {
		ascr -= b.entries[prevBp].Score
	}

	idx := int32(len(b.entries))
	b.entries = append(b.entries, BPTEntry{
		Frame:       b.curFrame,
		Wid:         wid,
		Bp:          prevBp,
		Score:       score,
		Lscr:        lscr,
		Ascr:        ascr,
		SIdx:        sIdx,
		RealWid:     realWid,
		PrevRealWid: prevRealWid,
		Valid:       true,
	})
	b.wordIdx[wid] = idx
	return idx
}

// RCScore returns the best score recorded for wid's entry this frame in
// right-context class rc, or WorstScore if none was ever saved. An entry
// with no right-context slots (SIdx < 0) returns its Score.
func (b *BPT) RCScore(idx int32, rc CIPhone) int32 {
	e := &b.entries[idx]
	if e.SIdx < 0 {
		return e.Score
	}
	return b.scoreStack[int(e.SIdx)+b.lex.RCIndex(e.Wid, rc)]
}

// resolveLMHistory walks back from prevBp, skipping filler entries, to
// fill in RealWid/PrevRealWid. Filler words never contribute to either
// field: when every intervening predecessor is a filler, both fields end
// up NoWordId.
func (b *BPT) resolveLMHistory(prevBp int32) (realWid, prevRealWid WordId) {
	if prevBp < 0 {
		return NoWordId, NoWordId
	}
	pe := &b.entries[prevBp]
	if b.lex.IsFiller(pe.Wid) {
		return pe.RealWid, pe.PrevRealWid
	}
	realWid = b.lex.BaseWid(pe.Wid)
	if !b.lmEnabled {
		return realWid, NoWordId
	}
	return realWid, pe.RealWid
}

// CapWordExits implements absolute per-frame pruning: marks at most
// maxwpf best non-filler exits of the current frame Valid, and at most
// one (the best) filler exit. maxwpf < 0 means unlimited (every exit of
// the frame stays Valid). Must be called once per frame, after all
// Save calls for that frame.
func (b *BPT) CapWordExits(maxwpf int) {
	start := b.BpStart(b.curFrame)
	end := b.Len()
	if maxwpf < 0 {
		for i := start; i < end; i++ {
			b.entries[i].Valid = true
		}
		return
	}

	type scored struct {
		idx   int32
		score int32
	}
	var nonFiller, filler []scored
	for i := start; i < end; i++ {
		e := &b.entries[i]
		e.Valid = false
		if b.lex.IsFiller(e.Wid) {
			filler = append(filler, scored{i, e.Score})
		} else {
			nonFiller = append(nonFiller, scored{i, e.Score})
		}
	}
	sort.Slice(nonFiller, func(i, j int) bool { return nonFiller[i].score > nonFiller[j].score })
	if len(nonFiller) > maxwpf {
		nonFiller = nonFiller[:maxwpf]
	}
	for _, s := range nonFiller {
		b.entries[s.idx].Valid = true
	}
	if len(filler) > 0 {
		bestIdx := filler[0].idx
		bestScore := filler[0].score
		for _, s := range filler[1:] {
			if s.score > bestScore {
				bestScore = s.score
				bestIdx = s.idx
			}
		}
		b.entries[bestIdx].Valid = true
	}
}

// Iter returns the indices of every Valid entry in frame f, in creation order.
func (b *BPT) Iter(f int32) []int32 {
	start := b.BpStart(f)
	end := b.BpStart(f + 1)
	if end < start {
		end = b.Len()
	}
	var out []int32
	for i := start; i < end; i++ {
		if b.entries[i].Valid {
			out = append(out, i)
		}
	}
	return out
}
