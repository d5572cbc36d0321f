package search

// FwdflatWordList derives, from a completed fwdtree BPT, the set of
// words passing the minimum-end-frame-width filter of §4.G: at least one
// valid entry whose (lef - fef) >= minEndFrameWidth, with words ending
// within one frame of the last frame always admitted.
func FwdflatWordList(bpt *BPT, lastFrame int32, minEndFrameWidth int32) []WordId {
	type span struct{ fef, lef int32 }
	spans := make(map[WordId]span)
	for i := int32(0); i < bpt.Len(); i++ {
		e := bpt.Entry(i)
		if !e.Valid {
			continue
		}
		s, ok := spans[e.Wid]
		if !ok {
			s = span{fef: e.Frame, lef: e.Frame}
		} else {
			if e.Frame < s.fef {
				s.fef = e.Frame
			}
			if e.Frame > s.lef {
				s.lef = e.Frame
			}
		}
		spans[e.Wid] = s
	}

	var out []WordId
	for w, s := range spans {
		if s.lef-s.fef >= minEndFrameWidth || lastFrame-s.lef <= 1 {
			out = append(out, w)
		}
	}
	return out
}

// BuildFwdflatTree constructs the flat (non cross-word-shared) lexicon
// of §4.G from a word list: every word gets its own linear chain (a
// dedicated root plus interior nodes plus the existing last-phone
// fan-out), with no prefix sharing. Single-phone words are added to the
// new tree's own flat single-phone table, as in the fwdtree tree.
func BuildFwdflatTree(ctx *HMMContext, dict Dictionary, words []WordId, phoneSpecOf func(WordId) WordSpec) *Tree {
	t := NewTree(ctx)
	for _, w := range words {
		if dict.IsSinglePhone(w) {
			variants := dict.LastPhoneVariants(w)
			if len(variants) == 0 {
				continue
			}
			t.AddSinglePhoneWord(w, variants[0].TmatID, variants[0].Ssid)
			continue
		}
		spec := phoneSpecOf(w)
		// Give every word a distinct root diphone key (its own WordId
		// packed in) so BuildFwdflatTree never shares roots across
		// unrelated words the way the cross-word fwdtree tree does: the
		// flat pass has no cross-word left-context sharing (§4.G).
		spec.LeftCtx = CIPhone(int32(w) & 0x7fff)
		t.AddWord(spec)
	}
	return t
}

// expandWordList re-derives the set of successor words reachable from
// frame within a ±window frame band, per §4.G's expand_word_list. It
// only collects the words; neither the Decoder nor cmd/sphinxgo calls it.
func expandWordList(starts map[int32][]WordId, frame, window int32) []WordId {
	var out []WordId
	for f := frame - window; f <= frame+window; f++ {
		out = append(out, starts[f]...)
	}
	return out
}
