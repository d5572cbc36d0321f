package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Tree_AddWord_sharesCommonPrefix(t *testing.T) {
	ctx := threeStateCtx(t)
	tr := NewTree(ctx)

	// "cat" = [C A T], "cap" = [C A P]: the tree only stores phones up to
	// the penultimate one (the last phone is handled by dynamically
	// allocated LastPhoneChannels, never placed in the tree - §4.D), so
	// both words converge completely onto the same penultimate "A" node
	// and are distinguished only by their homophone list there.
	tr.AddWord(WordSpec{
		Wid:     1,
		Phones:  []CIPhone{0, 1, 2},
		TmatID:  []Tmat{0, 0, 0},
		Ssid:    []Ssid{0, 0, 0},
		LeftCtx: NoCIPhone,
	})
	tr.AddWord(WordSpec{
		Wid:     2,
		Phones:  []CIPhone{0, 1, 3},
		TmatID:  []Tmat{0, 0, 0},
		Ssid:    []Ssid{0, 0, 0},
		LeftCtx: NoCIPhone,
	})

	require.Len(t, tr.Roots(), 1, "both words share the same first diphone and must share one root")

	root := tr.Node(tr.Roots()[0])
	require.GreaterOrEqual(t, root.Child, int32(0))
	penult := tr.Node(root.Child)
	assert.Equal(t, CIPhone(1), penult.Phone)
	assert.ElementsMatch(t, []WordId{1, 2}, penult.PenultWid)
}

func Test_Tree_AddWord_differentLeftContextGetsDifferentRoot(t *testing.T) {
	ctx := threeStateCtx(t)
	tr := NewTree(ctx)

	tr.AddWord(WordSpec{Wid: 1, Phones: []CIPhone{0, 1}, TmatID: []Tmat{0, 0}, Ssid: []Ssid{0, 0}, LeftCtx: 5})
	tr.AddWord(WordSpec{Wid: 2, Phones: []CIPhone{0, 1}, TmatID: []Tmat{0, 0}, Ssid: []Ssid{0, 0}, LeftCtx: 6})

	assert.Len(t, tr.Roots(), 2, "distinct left contexts must multiplex into distinct roots")
}

func Test_Tree_AddWord_skipsSinglePhoneWords(t *testing.T) {
	ctx := threeStateCtx(t)
	tr := NewTree(ctx)
	before := tr.NumNodes()
	tr.AddWord(WordSpec{Wid: 1, Phones: []CIPhone{0}, TmatID: []Tmat{0}, Ssid: []Ssid{0}, LeftCtx: NoCIPhone})
	assert.Equal(t, before, tr.NumNodes(), "single-phone words must never enter the tree")
}

func Test_Tree_AddSinglePhoneWord_registersFlatHMM(t *testing.T) {
	ctx := threeStateCtx(t)
	tr := NewTree(ctx)
	tr.AddSinglePhoneWord(7, 0, 0)
	h, ok := tr.SinglePhoneHMM[7]
	require.True(t, ok)
	assert.NotNil(t, h)
}

func Test_Tree_ClearAll_resetsEveryHMM(t *testing.T) {
	ctx := threeStateCtx(t)
	tr := NewTree(ctx)
	tr.AddWord(WordSpec{Wid: 1, Phones: []CIPhone{0, 1}, TmatID: []Tmat{0, 0}, Ssid: []Ssid{0, 0}, LeftCtx: NoCIPhone})
	tr.AddSinglePhoneWord(2, 0, 0)

	root := tr.Node(tr.Roots()[0])
	root.HMM.Enter(-10, 0, 0)
	tr.SinglePhoneHMM[2].Enter(-10, 0, 0)

	tr.ClearAll()
	assert.False(t, root.HMM.Alive())
	assert.False(t, tr.SinglePhoneHMM[2].Alive())
}

func Test_DiphoneKey_distinctForDistinctPairs(t *testing.T) {
	a := DiphoneKey(1, 2)
	b := DiphoneKey(2, 1)
	c := DiphoneKey(1, 2)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
}
