// Package search implements the frame-synchronous Viterbi beam search
// described for a semi-continuous-HMM, N-gram large-vocabulary continuous
// speech recognizer: the lexical-tree first pass ("fwdtree"), the
// flat-lexicon second pass ("fwdflat"), lattice construction, best-path
// DAG rescoring, and N-best enumeration.
//
// Every caller-visible mutable array of the original C decoder
// (root_chan, BPTable, active_chan_list, word_chan, senone_scores, ...) is
// re-homed as a field of a single Decoder value (decoder.go) that is
// passed explicitly, so two Decoders never share state and tests get
// isolation for free.
package search

// WordId identifies a dictionary word. NoWordId marks an absent or
// not-yet-resolved reference (the C decoder's BAD_S3WID / -1 idiom).
type WordId int32

// NoWordId is the sentinel for "no word" (C: BAD_S3WID).
const NoWordId WordId = -1

// CIPhone identifies a context-independent phone.
type CIPhone int16

// NoCIPhone is the sentinel CI-phone id.
const NoCIPhone CIPhone = -1

// Ssid indexes a senone-sequence: a length-N_emit vector of senone ids
// shared by every triphone HMM instance built on that sequence.
type Ssid int32

// Senone identifies a tied emission density.
type Senone int32

// Tmat indexes a tied transition matrix, shared by every HMM built on a
// given base phone.
type Tmat int16

// NoHistory marks an undefined per-state history index (score == WorstScore).
const NoHistory int32 = -1

// WorstScore is the large negative sentinel score used to mark dead
// states. It is chosen, per the original search_const.h, small enough
// that four times WorstScore does not overflow a 32-bit accumulator: the
// search does not check scores in a model before evaluating it, and it
// may take as many as four plies before a new "good" score overwrites the
// initial WorstScore seed.
//
//	#define WORST_SCORE ((int)0xE0000000)
const WorstScore int32 = -0x20000000

// LogZero is returned by a language-model query for an entry that is
// truly impossible (as opposed to merely backed off); in practice the LM
// collaborator never needs to return it, but components that combine LM
// scores treat it as absorbing.
const LogZero int32 = WorstScore

// addScore adds two log-domain scores while saturating at WorstScore so
// that a WorstScore operand poisons the sum instead of wrapping through
// int32 overflow.
func addScore(a, b int32) int32 {
	if a <= WorstScore/2 || b <= WorstScore/2 {
		return WorstScore
	}
	return a + b
}

// maxScore returns the better (higher) of two log-domain scores.
func maxScore(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
