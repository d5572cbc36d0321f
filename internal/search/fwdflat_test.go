package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_FwdflatWordList_filtersByMinEndFrameWidthExceptNearEnd(t *testing.T) {
	lex := newFakeLexicon()
	b := NewBPT(lex, 1024, true)

	wordA := WordId(10) // narrow span, far from the end: excluded
	wordB := WordId(11) // wide span: included regardless of proximity
	wordC := WordId(12) // narrow span, but within 1 frame of the end: included

	b.BeginFrame(2)
	b.Save(wordA, -1, -1, NoCIPhone, 0)
	b.Save(wordB, -1, -1, NoCIPhone, 0)
	b.CapWordExits(-1)

	b.BeginFrame(6)
	b.Save(wordB, -1, -1, NoCIPhone, 0)
	b.CapWordExits(-1)

	b.BeginFrame(9)
	b.Save(wordC, -1, -1, NoCIPhone, 0)
	b.CapWordExits(-1)

	words := FwdflatWordList(b, 10, 3)
	assert.NotContains(t, words, wordA)
	assert.Contains(t, words, wordB)
	assert.Contains(t, words, wordC)
}

func Test_FwdflatWordList_ignoresInvalidEntries(t *testing.T) {
	lex := newFakeLexicon()
	b := NewBPT(lex, 1024, true)

	b.BeginFrame(0)
	b.Save(WordId(1), -10, -1, NoCIPhone, 0)
	b.Save(WordId(2), -20, -1, NoCIPhone, 0)
	b.CapWordExits(1) // only the better-scoring word stays Valid

	words := FwdflatWordList(b, 0, 0)
	assert.Contains(t, words, WordId(1))
	assert.NotContains(t, words, WordId(2))
}

func Test_BuildFwdflatTree_addsMultiPhoneWordWithOwnLeftContext(t *testing.T) {
	ctx := threeStateCtx(t)
	dict := newFakeDictionary()
	phoneSpecOf := func(w WordId) WordSpec {
		return WordSpec{Wid: w, Phones: []CIPhone{0, 0}, TmatID: []Tmat{0, 0}, Ssid: []Ssid{0, 0}, LeftCtx: 0}
	}

	tr := BuildFwdflatTree(ctx, dict, []WordId{dict.w1}, phoneSpecOf)
	require.Len(t, tr.Roots(), 1)

	root := tr.Node(tr.Roots()[0])
	wantKey := DiphoneKey(0, CIPhone(int32(dict.w1)&0x7fff))
	assert.Equal(t, wantKey, root.Diphone, "flat pass must seed its own left context, never the cross-word one")
	assert.Contains(t, root.PenultWid, dict.w1)
}

func Test_BuildFwdflatTree_skipsSinglePhoneWordWithNoVariants(t *testing.T) {
	ctx := threeStateCtx(t)
	dict := newFakeDictionary()
	phoneSpecOf := func(w WordId) WordSpec { return WordSpec{} }

	tr := BuildFwdflatTree(ctx, dict, []WordId{dict.end}, phoneSpecOf)
	assert.Equal(t, 0, tr.NumNodes())
	assert.Empty(t, tr.SinglePhoneHMM)
}

// flatSingleDict forces every word down the single-phone branch with a
// fixed right-context variant, exercising BuildFwdflatTree's
// AddSinglePhoneWord path.
type flatSingleDict struct{ *fakeDictionary }

func (flatSingleDict) IsSinglePhone(WordId) bool { return true }
func (flatSingleDict) LastPhoneVariants(WordId) []RCVariant {
	return []RCVariant{{RC: 0, TmatID: 0, Ssid: 0}}
}

func Test_BuildFwdflatTree_addsSinglePhoneWordWithVariants(t *testing.T) {
	ctx := threeStateCtx(t)
	dict := flatSingleDict{newFakeDictionary()}
	phoneSpecOf := func(w WordId) WordSpec { return WordSpec{} }

	tr := BuildFwdflatTree(ctx, dict, []WordId{WordId(42)}, phoneSpecOf)
	h, ok := tr.SinglePhoneHMM[WordId(42)]
	require.True(t, ok)
	assert.NotNil(t, h)
}

func Test_expandWordList_collectsWithinWindow(t *testing.T) {
	starts := map[int32][]WordId{
		3: {1, 2},
		5: {3},
		9: {4},
	}
	got := expandWordList(starts, 4, 1)
	assert.ElementsMatch(t, []WordId{1, 2, 3}, got)
}
