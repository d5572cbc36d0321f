package search

// Segment is one word's entry in a hypothesis backtrace (§4.J): its
// word, frame span, and the acoustic/LM score split at that boundary.
type Segment struct {
	Wid WordId
	Sf  int32
	Ef  int32

	Ascr int32
	Lscr int32

	LatticeDensity float64 // average BPT-entries-per-frame over this segment
}

// Hypothesis is the full result of one utterance (§6 "Hypothesis API").
type Hypothesis struct {
	Words          []WordId
	Segments       []Segment
	TotalScore     int32
	FramesDecoded  int32
	Incomplete     bool // set when a CapacityError occurred mid-utterance
}

// Backtrace walks predecessors from terminalBp to the utterance root,
// computing per-segment ascr/lscr from each BPT entry's cached Score and
// Lscr fields (§4.J). density, if non-nil, gives the per-frame lattice
// density used to average §4.J's LatticeDensity.
func Backtrace(bpt *BPT, terminalBp int32, density []int32) []Segment {
	var rev []Segment
	cur := terminalBp
	for cur >= 0 {
		e := bpt.Entry(cur)
		prevScore := int32(0)
		sf := int32(0)
		if e.Bp >= 0 {
			prev := bpt.Entry(e.Bp)
			prevScore = prev.Score
			sf = prev.Frame + 1
		}
		ascr := e.Score - prevScore - e.Lscr
		seg := Segment{
			Wid:  e.Wid,
			Sf:   sf,
			Ef:   e.Frame,
			Ascr: ascr,
			Lscr: e.Lscr,
		}
		if density != nil {
			seg.LatticeDensity = averageDensity(density, sf, e.Frame)
		}
		rev = append(rev, seg)
		cur = e.Bp
	}
	// rev is root-to-terminal in reverse (terminal first); flip it.
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

func averageDensity(density []int32, sf, ef int32) float64 {
	if sf > ef || int(ef) >= len(density) {
		return 0
	}
	sum := int32(0)
	for f := sf; f <= ef; f++ {
		sum += density[f]
	}
	return float64(sum) / float64(ef-sf+1)
}

// BuildHypothesis assembles a Hypothesis from a backtrace, filtering out
// <s>/</s> from the printable word list (but keeping them as segments).
func BuildHypothesis(segments []Segment, startWid, endWid WordId, framesDecoded int32, totalScore int32, incomplete bool) *Hypothesis {
	h := &Hypothesis{Segments: segments, FramesDecoded: framesDecoded, TotalScore: totalScore, Incomplete: incomplete}
	for _, s := range segments {
		if s.Wid == startWid || s.Wid == endWid {
			continue
		}
		h.Words = append(h.Words, s.Wid)
	}
	return h
}
