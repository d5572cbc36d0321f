package search

import (
	"github.com/charmbracelet/log"
)

// state is the per-utterance lifecycle of §4.E / §5: Idle -> Started ->
// (Frame)* -> Finishing -> Idle.
type state int

const (
	stateIdle state = iota
	stateStarted
	stateFinishing
)

// candidate is the transient per-frame record of §3: a word that has
// entered its last phone this frame and is awaiting the LM transition
// and last-phone-alone beam.
type candidate struct {
	Wid WordId
	Bp  int32 // BPT index this path's LM history descends from
}

// Decoder is the fwdtree/fwdflat/bestpath/N-best engine (Components
// A-J), re-homed as an explicit value per §9's "global mutable state"
// design note: every module-level array of the original (root_chan,
// BPTable, active_chan_list, word_chan, senone_scores) is a field here.
type Decoder struct {
	ctx  *HMMContext
	tree *Tree
	dict Dictionary
	lm   LanguageModel
	cfg  Config
	log  *log.Logger

	bpt *BPT
	as  *ActiveSenoneSet

	st       state
	curFrame int32

	beam, phoneBeam, wordBeam int32
	lastPhoneBeam             int32
	lastPhoneOnlyBeam         int32

	// activeNonRoot is the double-buffered active list of §4.E step 4:
	// activeNonRoot[cur_frame%2] holds interior-node indices scheduled
	// for evaluation this frame.
	activeNonRoot [2][]int32

	// lastPhonePool is the arena of on-demand last-phone channels (§3);
	// activeLastPhone indexes into it for the channels scheduled this
	// frame.
	lastPhonePool   []LastPhoneChannel
	activeLastPhone []int32
	// lastPhoneHead maps a word to the head of its right-context-keyed
	// channel list, cleared at utterance start.
	lastPhoneHead map[WordId]int32

	candidates []candidate

	bestScore     int32 // best live score seen so far this frame
	lastBestScore int32 // best among last-phone/word-exit channels this frame
	renormalized  bool
	evaluated     int // HMMs evaluated this frame, for maxhmmpf

	lastFrame int32 // the highest frame index passed to Frame
}

// NewDecoder wires the collaborators of §6/§11 into a ready Decoder.
func NewDecoder(ctx *HMMContext, tree *Tree, dict Dictionary, lm LanguageModel, cfg Config, logger *log.Logger) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	beam, phoneBeam, wordBeam := cfg.logBeams()
	d := &Decoder{
		ctx:               ctx,
		tree:              tree,
		dict:              dict,
		lm:                lm,
		cfg:               cfg,
		log:               logger,
		bpt:               NewBPT(dict, cfg.LatticeSize, true),
		as:                NewActiveSenoneSet(countSenones(ctx)),
		beam:              beam,
		phoneBeam:         phoneBeam,
		wordBeam:          wordBeam,
		lastPhoneBeam:     logBeam(cfg.LastPhoneBeam),
		lastPhoneOnlyBeam: logBeam(cfg.LastPhoneOnlyBeam),
		lastPhoneHead:     make(map[WordId]int32),
	}
	return d, nil
}

func countSenones(ctx *HMMContext) int {
	max := 0
	for _, seq := range ctx.SenoneSeq {
		for _, s := range seq {
			if int(s) >= max {
				max = int(s) + 1
			}
		}
	}
	return max
}

// Start implements §4.E's start(): clears every HMM, primes the BPT with
// the configured LM context (zero, one or two words), and enters <s> at
// frame 0 with score 0.
func (d *Decoder) Start(contextWords ...WordId) error {
	d.tree.ClearAll()
	d.bpt.Reset()
	d.activeNonRoot[0] = d.activeNonRoot[0][:0]
	d.activeNonRoot[1] = d.activeNonRoot[1][:0]
	d.lastPhonePool = d.lastPhonePool[:0]
	d.activeLastPhone = d.activeLastPhone[:0]
	for k := range d.lastPhoneHead {
		delete(d.lastPhoneHead, k)
	}
	d.candidates = d.candidates[:0]
	d.curFrame = 0
	d.renormalized = false
	d.lastFrame = -1

	d.bpt.BeginFrame(0)
	prevBp := int32(-1)
	for _, w := range contextWords {
		prevBp = d.bpt.Save(w, 0, prevBp, NoCIPhone, 0)
	}
	startBp := d.bpt.Save(d.dict.StartWid(), 0, prevBp, NoCIPhone, 0)
	d.bpt.CapWordExits(-1)

	d.enterRootsFor(d.dict.StartWid(), startBp, 0, 0)

	d.st = stateStarted
	return nil
}

// enterRootsFor fans a word exit out to every tree root whose phone
// matches the exiting word's last phone (cross-word transition), entering
// each such root in enterFrame via Enter's frame convention. Start, its
// only caller, runs before frame 0 is processed and passes 0 for both
// fromFrame and enterFrame.
func (d *Decoder) enterRootsFor(fromWid WordId, fromBp int32, fromFrame, enterFrame int32) {
	lastPhone := d.lastCIPhoneOf(fromWid)
	for _, rIdx := range d.tree.Roots() {
		n := d.tree.Node(rIdx)
		if n.Phone != lastPhone {
			continue
		}
		score := d.bpt.RCScore(fromBp, n.Phone) + d.cfg.NewWordPenalty + d.cfg.PhoneInsertionPenalty
		if n.HMM.IsMultiplex() {
			n.HMM.SetEntrySsid(n.HMM.ssid)
		}
		n.HMM.Enter(score, fromBp, enterFrame)
	}
}

func (d *Decoder) lastCIPhoneOf(w WordId) CIPhone {
	if d.dict.IsSinglePhone(w) {
		return d.dict.FirstPhone(w)
	}
	variants := d.dict.LastPhoneVariants(w)
	if len(variants) == 0 {
		return NoCIPhone
	}
	return variants[0].RC
}

// Frame processes one frame's senone scores through the thirteen steps
// of §4.E.
func (d *Decoder) Frame(senscr []int32) error {
	if d.st != stateStarted {
		return newError(Abort, "Frame called outside Started state")
	}
	f := d.curFrame
	d.lastFrame = f

	// Step 1: renormalize if the best live score is drifting toward overflow.
	if d.bestScore != 0 && d.bestScore-WorstScore < -2*d.beam {
		d.maybeRenormalize(d.bestScore)
	}

	// Step 2.
	d.bpt.BeginFrame(f)

	d.bestScore = WorstScore
	d.lastBestScore = WorstScore
	d.evaluated = 0
	buf := d.activeNonRoot[f%2]
	next := d.activeNonRoot[(f+1)%2][:0]

	if !d.cfg.CompAllSenones {
		d.as.Clear()
	}

	// Step 3: roots scheduled for this frame.
	for _, rIdx := range d.tree.Roots() {
		n := d.tree.Node(rIdx)
		if n.HMM.Frame != f {
			continue
		}
		n.HMM.Evaluate(senscr, f)
		d.evaluated++
		if n.HMM.BestScore > d.bestScore {
			d.bestScore = n.HMM.BestScore
		}
		if !d.cfg.CompAllSenones {
			n.HMM.MarkActive(d.as)
		}
	}

	// Step 4: non-root interior channels from the active list.
	for _, idx := range buf {
		n := d.tree.Node(idx)
		if n.HMM.Frame != f || !n.HMM.Alive() {
			continue
		}
		n.HMM.Evaluate(senscr, f)
		d.evaluated++
		if n.HMM.BestScore > d.bestScore {
			d.bestScore = n.HMM.BestScore
		}
		if !d.cfg.CompAllSenones {
			n.HMM.MarkActive(d.as)
		}
	}

	// Step 5: word-last channels (per-word last-phone pool + single-phone flat words).
	for _, idx := range d.activeLastPhone {
		ch := &d.lastPhonePool[idx]
		if ch.HMM.Frame != f || !ch.HMM.Alive() {
			continue
		}
		ch.HMM.Evaluate(senscr, f)
		d.evaluated++
		if ch.HMM.BestScore > d.lastBestScore {
			d.lastBestScore = ch.HMM.BestScore
		}
		if ch.HMM.BestScore > d.bestScore {
			d.bestScore = ch.HMM.BestScore
		}
		if !d.cfg.CompAllSenones {
			ch.HMM.MarkActive(d.as)
		}
	}
	for _, h := range d.tree.SinglePhoneHMM {
		if h.Frame != f || !h.Alive() {
			continue
		}
		h.Evaluate(senscr, f)
		d.evaluated++
		if h.BestScore > d.lastBestScore {
			d.lastBestScore = h.BestScore
		}
		if h.BestScore > d.bestScore {
			d.bestScore = h.BestScore
		}
		if !d.cfg.CompAllSenones {
			h.MarkActive(d.as)
		}
	}

	// Step 6: dynamic beam via a 256-bin histogram of (best - bestscore)
	// when the evaluated population exceeds maxhmmpf.
	dynBeam := d.beam
	if d.cfg.MaxHmmPerFrame > 0 && d.evaluated > d.cfg.MaxHmmPerFrame {
		dynBeam = d.dynamicBeam(f, buf)
	}

	skipExits := d.cfg.SkipAlt && f%2 == 1

	// Step 7: prune/transition roots.
	for _, rIdx := range d.tree.Roots() {
		n := d.tree.Node(rIdx)
		if n.HMM.Frame != f {
			continue
		}
		if n.HMM.BestScore <= d.bestScore+dynBeam {
			n.HMM.Clear() // step 13: drop stale roots not kept active
			continue
		}
		n.HMM.Frame = f + 1 // survives into next frame
		if skipExits {
			continue
		}
		if n.HMM.ExitScore() > d.bestScore+d.phoneBeam {
			d.fanOutChildren(n, f)
		}
	}

	// Step 8: prune/transition non-root channels.
	for _, idx := range buf {
		n := d.tree.Node(idx)
		if n.HMM.Frame != f {
			continue
		}
		if n.HMM.BestScore <= d.bestScore+dynBeam {
			n.HMM.Clear()
			continue
		}
		n.HMM.Frame = f + 1
		next = append(next, idx)
		if skipExits {
			continue
		}
		if n.HMM.ExitScore() > d.bestScore+d.phoneBeam {
			d.fanOutChildren(n, f)
		}
	}
	d.activeNonRoot[(f+1)%2] = next

	if !skipExits {
		// Step 9: last-phone transition from this frame's candidates.
		d.lastPhoneTransition(f)
	}

	// Step 10: prune word-last channels, save surviving exits to the BPT.
	d.transitionWordLast(f, dynBeam)

	// Step 11: absolute per-frame word-exit cap.
	d.bpt.CapWordExits(d.cfg.MaxWordExitsPerFrame)

	// Step 12: inter-word transition into tree roots / single-phone words.
	d.interWordTransition(f)

	d.curFrame = f + 1
	return nil
}

// fanOutChildren propagates a surviving penultimate-or-earlier node's
// exit score to its tree children (step 7/8), and enqueues any
// penultimate homophones as candidates for the last-phone transition.
func (d *Decoder) fanOutChildren(n *TreeNode, f int32) {
	score := n.HMM.ExitScore() + d.cfg.PhoneInsertionPenalty
	hist := n.HMM.ExitHistory()
	child := n.Child
	for child >= 0 {
		cn := d.tree.Node(child)
		if score > cn.HMM.Score[0] {
			cn.HMM.Enter(score, hist, f+1)
			d.activeNonRoot[(f+1)%2] = append(d.activeNonRoot[(f+1)%2], child)
		}
		child = cn.Sibling
	}
	if len(n.PenultWid) > 0 {
		for _, w := range n.PenultWid {
			d.candidates = append(d.candidates, candidate{Wid: w, Bp: hist})
		}
	}
}

// lastPhoneTransition implements §4.E step 9: de-duplicate candidates by
// (bp.frame, word) into cand_sf buckets, then within each bucket rescan
// every valid BPT entry of that frame to find the best (dscr, bp) for the
// candidate word, keyed by the word's own first phone (not the
// predecessor's). Apply the last-phone-alone beam, and enter (allocating
// on demand) one last-phone channel per distinct right context.
func (d *Decoder) lastPhoneTransition(f int32) {
	type sfWord struct {
		frame int32
		wid   WordId
	}
	seen := make(map[sfWord]bool, len(d.candidates))
	buckets := make([]sfWord, 0, len(d.candidates))
	for _, c := range d.candidates {
		key := sfWord{d.bpt.Entry(c.Bp).Frame, c.Wid}
		if !seen[key] {
			seen[key] = true
			buckets = append(buckets, key)
		}
	}
	d.candidates = d.candidates[:0]

	lw := logToLW(d.cfg.LanguageWeight)
	frameEntries := make(map[int32][]int32, len(buckets))

	for _, sw := range buckets {
		variants := d.dict.LastPhoneVariants(sw.wid)
		if len(variants) == 0 {
			continue
		}
		entries, ok := frameEntries[sw.frame]
		if !ok {
			entries = d.bpt.Iter(sw.frame)
			frameEntries[sw.frame] = entries
		}

		fp := d.dict.FirstPhone(sw.wid)
		bestDscr := WorstScore
		bestBp := int32(-1)
		var bestLscr int32
		for _, idx := range entries {
			e := d.bpt.Entry(idx)
			tg := d.lm.Tg(e.PrevRealWid, e.RealWid, sw.wid)
			lscr := scaleLW(tg, lw)
			dscr := d.bpt.RCScore(idx, fp) + lscr
			if dscr > bestDscr {
				bestDscr = dscr
				bestBp = idx
				bestLscr = lscr
			}
		}
		if bestBp < 0 || bestDscr <= d.bestScore+d.lastPhoneOnlyBeam {
			continue
		}
		for _, v := range variants {
			idx := d.findOrCreateLastPhone(sw.wid, v)
			ch := &d.lastPhonePool[idx]
			ch.HMM.Enter(bestDscr, bestBp, f+1)
			ch.Lscr = bestLscr
			d.activeLastPhone = appendUnique(d.activeLastPhone, idx)
		}
	}
}

func (d *Decoder) findOrCreateLastPhone(w WordId, v RCVariant) int32 {
	head, ok := d.lastPhoneHead[w]
	if !ok {
		head = -1
	}
	var tail int32 = -1
	for cur := head; cur >= 0; {
		ch := &d.lastPhonePool[cur]
		if ch.RC == v.RC {
			return cur
		}
		tail = cur
		cur = ch.Next
	}

	idx := int32(len(d.lastPhonePool))
	d.lastPhonePool = append(d.lastPhonePool, LastPhoneChannel{
		HMM:  NewHMM(d.ctx, v.TmatID, v.Ssid),
		Wid:  w,
		RC:   v.RC,
		Next: -1,
	})
	if tail >= 0 {
		d.lastPhonePool[tail].Next = idx
	} else {
		d.lastPhoneHead[w] = idx
	}
	return idx
}

func appendUnique(s []int32, v int32) []int32 {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// transitionWordLast implements step 10: any word-last channel (or
// single-phone word) whose exit crosses the word-exit beam is saved to
// the BPT.
func (d *Decoder) transitionWordLast(f int32, dynBeam int32) {
	for _, idx := range d.activeLastPhone {
		ch := &d.lastPhonePool[idx]
		if ch.HMM.Frame != f {
			continue
		}
		if ch.HMM.ExitScore() <= d.bestScore+d.wordBeam {
			continue
		}
		d.bpt.Save(ch.Wid, ch.HMM.ExitScore(), ch.HMM.ExitHistory(), ch.RC, ch.Lscr)
	}
	for w, h := range d.tree.SinglePhoneHMM {
		if h.Frame != f {
			continue
		}
		if h.ExitScore() <= d.bestScore+d.wordBeam {
			continue
		}
		d.bpt.Save(w, h.ExitScore(), h.ExitHistory(), NoCIPhone, 0)
	}
}

// interWordTransition implements step 12: for every CI phone, find the
// single best (score, bp) among this frame's BPT entries scored into
// that phone as right context, and enter every tree root keyed by it.
// Single-phone in-LM words redo the transition with the full trigram
// score, since the per-phone best alone cannot capture word-identity-
// dependent LM scores. Silence/filler roots use the best exit plus the
// configured penalty.
func (d *Decoder) interWordTransition(f int32) {
	type best struct {
		score int32
		bp    int32
	}
	perPhone := make(map[CIPhone]best)
	entries := d.bpt.Iter(f)
	for _, idx := range entries {
		e := d.bpt.Entry(idx)
		if e.Wid == d.dict.EndWid() {
			continue
		}
		for _, rIdx := range d.tree.Roots() {
			n := d.tree.Node(rIdx)
			s := d.bpt.RCScore(idx, n.Phone)
			if s <= WorstScore/2 {
				continue
			}
			if b, ok := perPhone[n.Phone]; !ok || s > b.score {
				perPhone[n.Phone] = best{s, idx}
			}
		}
	}
	for _, rIdx := range d.tree.Roots() {
		n := d.tree.Node(rIdx)
		b, ok := perPhone[n.Phone]
		if !ok {
			continue
		}
		score := b.score + d.cfg.NewWordPenalty + d.cfg.PhoneInsertionPenalty
		n.HMM.Enter(score, b.bp, f+1)
	}

	lw := logToLW(d.cfg.LanguageWeight)
	for wid := WordId(0); int(wid) < d.dict.NumWords(); wid++ {
		if !d.dict.IsSinglePhone(wid) || !d.lm.KnownWid(wid) {
			continue
		}
		phone := d.dict.FirstPhone(wid)
		b, ok := perPhone[phone]
		if !ok {
			continue
		}
		e := d.bpt.Entry(b.bp)
		tg := d.lm.Tg(e.PrevRealWid, e.RealWid, wid)
		score := b.score + scaleLW(tg, lw) + d.cfg.NewWordPenalty
		h := d.tree.SinglePhoneHMM[wid]
		h.Enter(score, b.bp, f+1)
	}

	if sb, ok := perPhone[d.dict.FirstPhone(d.dict.SilWid())]; ok {
		if h, ok2 := d.tree.SinglePhoneHMM[d.dict.SilWid()]; ok2 {
			h.Enter(sb.score+d.cfg.SilenceWordPenalty, sb.bp, f+1)
		}
	}
}

// maybeRenormalize subtracts base from every live HMM's score (§4.A
// normalize). Renormalizing by a common constant within the same frame
// never changes the argmax of a subsequent decision (§8); bestpath is
// refused after this has happened (RenormalizationConflict).
func (d *Decoder) maybeRenormalize(base int32) {
	d.renormalized = true
	for i := range d.tree.nodes {
		d.tree.nodes[i].HMM.Normalize(base)
	}
	for i := range d.lastPhonePool {
		d.lastPhonePool[i].HMM.Normalize(base)
	}
	for _, h := range d.tree.SinglePhoneHMM {
		h.Normalize(base)
	}
	d.bestScore -= base
	if d.log != nil {
		d.log.Debug("renormalized active HMMs", "base", base, "frame", d.curFrame)
	}
}

// dynamicBeam implements step 6's 256-bin histogram: bins
// (best-hmm.bestscore)/(logbeam/256) over every evaluated HMM this
// frame, accumulating until the running count exceeds maxhmmpf, and
// returns that bin's edge as the dynamic beam (always at least as tight
// as the static beam).
func (d *Decoder) dynamicBeam(f int32, nonRoot []int32) int32 {
	const nbins = 256
	var hist [nbins]int
	binWidth := d.beam / nbins
	if binWidth == 0 {
		binWidth = -1
	}
	add := func(score int32) {
		diff := (d.bestScore - score)
		bin := int(diff / (-binWidth))
		if bin < 0 {
			bin = 0
		}
		if bin >= nbins {
			bin = nbins - 1
		}
		hist[bin]++
	}
	for _, rIdx := range d.tree.Roots() {
		n := d.tree.Node(rIdx)
		if n.HMM.Frame == f {
			add(n.HMM.BestScore)
		}
	}
	for _, idx := range nonRoot {
		n := d.tree.Node(idx)
		if n.HMM.Frame == f {
			add(n.HMM.BestScore)
		}
	}
	acc := 0
	for bin := 0; bin < nbins; bin++ {
		acc += hist[bin]
		if acc > d.cfg.MaxHmmPerFrame {
			return int32(bin) * binWidth
		}
	}
	return d.beam
}

// AbortUtt discards all search state and returns to Idle; no partial BPT
// survives (§5 cancellation).
func (d *Decoder) AbortUtt() {
	d.st = stateIdle
	d.tree.ClearAll()
	d.bpt.Reset()
}

// BPT exposes the backpointer table accumulated so far, for the lattice
// builder and diagnostics.
func (d *Decoder) BPT() *BPT { return d.bpt }

// Renormalized reports whether fwdtree renormalization ever fired this
// utterance (bestpath must refuse to run if so).
func (d *Decoder) Renormalized() bool { return d.renormalized }

// LastFrame returns the highest frame index passed to Frame this utterance.
func (d *Decoder) LastFrame() int32 { return d.lastFrame }

// minUtteranceFrames is the §7 ShortUtterance threshold.
const minUtteranceFrames = 10

// Finish implements §4.E's finish(): records the final bp_start, scans
// the last frame for a </s> exit, synthesizing one against the best
// entry of the last frame if none was reached, backtraces into segments,
// and returns to Idle.
func (d *Decoder) Finish() (*Hypothesis, error) {
	if d.st != stateStarted {
		return nil, newError(Abort, "Finish called outside Started state")
	}
	defer func() { d.st = stateIdle }()

	d.bpt.BeginFrame(d.lastFrame + 1)

	var warn error
	if d.lastFrame+1 < minUtteranceFrames {
		warn = newError(ShortUtterance, "only %d frames decoded", d.lastFrame+1)
		if d.log != nil {
			d.log.Warn(warn.Error())
		}
		return &Hypothesis{FramesDecoded: d.lastFrame + 1}, warn
	}

	endWid := d.dict.EndWid()
	terminal := int32(-1)
	for _, idx := range d.bpt.Iter(d.lastFrame) {
		if d.bpt.Entry(idx).Wid == endWid {
			terminal = idx
			break
		}
	}

	incomplete := d.bpt.Overflowed()

	if terminal < 0 {
		best := int32(-1)
		for _, idx := range d.bpt.Iter(d.lastFrame) {
			if best < 0 || d.bpt.Entry(idx).Score > d.bpt.Entry(best).Score {
				best = idx
			}
		}
		if best < 0 {
			return nil, newError(NoTerminalState, "no word exits in last frame")
		}
		e := d.bpt.Entry(best)
		lw := logToLW(d.cfg.LanguageWeight)
		tg := d.lm.Tg(e.PrevRealWid, e.RealWid, endWid)
		lscr := scaleLW(tg, lw)
		terminal = d.bpt.Save(endWid, e.Score+lscr, best, NoCIPhone, lscr)
		if d.log != nil {
			d.log.Warn("no </s> exit reached; synthesized best-prefix terminal", "frame", d.lastFrame)
		}
		warn = newError(NoTerminalState, "synthesized terminal </s>")
	}

	segments := Backtrace(d.bpt, terminal, nil)
	hyp := BuildHypothesis(segments, d.dict.StartWid(), endWid, d.lastFrame+1, d.bpt.Entry(terminal).Score, incomplete)
	if incomplete && d.log != nil {
		d.log.Warn("BPT capacity exceeded during utterance; result may be incomplete")
	}
	return hyp, warn
}

// logToLW and scaleLW apply a language weight to an already fixed-point
// log-domain LM score: lw is itself pre-scaled by 1<<16 so the
// multiply stays in integer domain without a float divide per call.
func logToLW(weight float64) int64 {
	return int64(weight * (1 << 16))
}

func scaleLW(lmScore int32, lw int64) int32 {
	return int32((int64(lmScore) * lw) >> 16)
}
