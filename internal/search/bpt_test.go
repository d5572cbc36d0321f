package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fakeLexicon is a minimal LexiconView/Dictionary fake for testing the
// BPT/lattice/bestpath components in isolation, grounded on a tiny
// four-word fixture: <s>, </s>, a single filler <sil>, and "hello"
// with two right-context variants.
type fakeLexicon struct {
	filler map[WordId]bool
	altOf  map[WordId]WordId
	rcN    map[WordId]int
	rcIdx  map[WordId]map[CIPhone]int
}

func newFakeLexicon() *fakeLexicon {
	return &fakeLexicon{
		filler: map[WordId]bool{},
		altOf:  map[WordId]WordId{},
		rcN:    map[WordId]int{},
		rcIdx:  map[WordId]map[CIPhone]int{},
	}
}

func (f *fakeLexicon) IsFiller(w WordId) bool { return f.filler[w] }
func (f *fakeLexicon) BaseWid(w WordId) WordId {
	if b, ok := f.altOf[w]; ok {
		return b
	}
	return w
}
func (f *fakeLexicon) RCCount(w WordId) int { return f.rcN[w] }
func (f *fakeLexicon) RCIndex(w WordId, rc CIPhone) int {
	if m, ok := f.rcIdx[w]; ok {
		if i, ok := m[rc]; ok {
			return i
		}
	}
	return 0
}

const (
	wStart WordId = 0
	wEnd   WordId = 1
	wSil   WordId = 2
	wHello WordId = 3
)

func newTestBPT() (*BPT, *fakeLexicon) {
	lex := newFakeLexicon()
	lex.filler[wSil] = true
	lex.rcN[wHello] = 2
	lex.rcIdx[wHello] = map[CIPhone]int{0: 0, 1: 1}
	return NewBPT(lex, 1024, true), lex
}

func Test_BPT_SaveAndEntry(t *testing.T) {
	b, _ := newTestBPT()
	b.BeginFrame(0)
	idx := b.Save(wStart, 0, -1, NoCIPhone, 0)
	require.Equal(t, int32(0), idx)
	e := b.Entry(idx)
	assert.Equal(t, wStart, e.Wid)
	assert.Equal(t, int32(-1), e.Bp)
	assert.True(t, e.Valid)
}

func Test_BPT_Save_sameWordSameFrameImprovesInPlace(t *testing.T) {
	b, _ := newTestBPT()
	b.BeginFrame(0)
	idx1 := b.Save(wHello, -100, -1, 0, -5)
	idx2 := b.Save(wHello, -50, -1, 0, -5) // better score, same frame
	assert.Equal(t, idx1, idx2)
	assert.Equal(t, int32(-50), b.Entry(idx1).Score)

	idx3 := b.Save(wHello, -80, -1, 0, -5) // worse: must not regress
	assert.Equal(t, idx1, idx3)
	assert.Equal(t, int32(-50), b.Entry(idx1).Score)
}

func Test_BPT_Save_rightContextScoreStack(t *testing.T) {
	b, _ := newTestBPT()
	b.BeginFrame(0)
	idx := b.Save(wHello, -100, -1, 0, 0)
	b.Save(wHello, -30, -1, 1, 0) // different rc slot, same word/frame

	assert.Equal(t, int32(-100), b.RCScore(idx, 0))
	assert.Equal(t, int32(-30), b.RCScore(idx, 1))
}

func Test_BPT_BeginFrame_resetsPerFrameWordIndex(t *testing.T) {
	b, _ := newTestBPT()
	b.BeginFrame(0)
	idx0 := b.Save(wHello, -10, -1, 0, 0)
	b.BeginFrame(1)
	idx1 := b.Save(wHello, -20, idx0, 0, 0)
	assert.NotEqual(t, idx0, idx1, "a new frame must start a fresh entry for the same word")
}

func Test_BPT_resolveLMHistory_skipsFillers(t *testing.T) {
	b, lex := newTestBPT()
	b.BeginFrame(0)
	startIdx := b.Save(wStart, 0, -1, NoCIPhone, 0)

	b.BeginFrame(1)
	silIdx := b.Save(wSil, -5, startIdx, NoCIPhone, -1)
	assert.True(t, lex.IsFiller(wSil))

	b.BeginFrame(2)
	helloIdx := b.Save(wHello, -50, silIdx, 0, -2)
	e := b.Entry(helloIdx)
	// The filler in between must be transparent: RealWid/PrevRealWid
	// resolve through it to <s>, not to <sil>.
	assert.Equal(t, wStart, e.RealWid)
}

func Test_BPT_CapWordExits_limitsNonFillerAndKeepsBestFiller(t *testing.T) {
	b, _ := newTestBPT()
	b.BeginFrame(0)
	w1 := WordId(10)
	w2 := WordId(11)
	w3 := WordId(12)
	b.Save(w1, -10, -1, NoCIPhone, 0)
	b.Save(w2, -20, -1, NoCIPhone, 0)
	b.Save(w3, -5, -1, NoCIPhone, 0)
	b.Save(wSil, -1, -1, NoCIPhone, 0)
	b.Save(WordId(99), -2, -1, NoCIPhone, 0) // second filler isn't registered filler unless marked

	b.CapWordExits(2)

	valid := b.Iter(0)
	// At most 2 non-filler + 1 filler should remain valid.
	assert.LessOrEqual(t, len(valid), 3)
	// The best non-filler score (w3, -5) must survive.
	foundBest := false
	for _, idx := range valid {
		if b.Entry(idx).Wid == w3 {
			foundBest = true
		}
	}
	assert.True(t, foundBest)
}

func Test_BPT_CapWordExits_unlimitedKeepsEverything(t *testing.T) {
	b, _ := newTestBPT()
	b.BeginFrame(0)
	for i := 0; i < 10; i++ {
		b.Save(WordId(100+i), int32(-i), -1, NoCIPhone, 0)
	}
	b.CapWordExits(-1)
	assert.Len(t, b.Iter(0), 10)
}

func Test_BPT_Overflow_stopsAcceptingNewWordsButReportsOverflowed(t *testing.T) {
	lex := newFakeLexicon()
	b := NewBPT(lex, 2, true)
	b.BeginFrame(0)
	idx0 := b.Save(WordId(1), 0, -1, NoCIPhone, 0)
	idx1 := b.Save(WordId(2), 0, -1, NoCIPhone, 0)
	idx2 := b.Save(WordId(3), 0, -1, NoCIPhone, 0) // table full
	assert.GreaterOrEqual(t, idx0, int32(0))
	assert.GreaterOrEqual(t, idx1, int32(0))
	assert.Equal(t, int32(-1), idx2)
	assert.True(t, b.Overflowed())
}

func Test_BPT_Reset_clearsEverything(t *testing.T) {
	b, _ := newTestBPT()
	b.BeginFrame(0)
	b.Save(wHello, -1, -1, 0, 0)
	b.Reset()
	assert.Equal(t, int32(0), b.Len())
	assert.False(t, b.Overflowed())
}

// Test_BPT_Iter_onlyReturnsEntriesFromRequestedFrame is a property test:
// for any sequence of per-frame word saves, Iter(f) must return only
// entries whose Frame equals f.
func Test_BPT_Iter_onlyReturnsEntriesFromRequestedFrame(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lex := newFakeLexicon()
		b := NewBPT(lex, 4096, true)
		nFrames := rapid.IntRange(1, 20).Draw(t, "nFrames")
		for f := 0; f < nFrames; f++ {
			b.BeginFrame(int32(f))
			nWords := rapid.IntRange(0, 5).Draw(t, "nWords")
			for w := 0; w < nWords; w++ {
				b.Save(WordId(1000*f+w), int32(-w), -1, NoCIPhone, 0)
			}
			b.CapWordExits(-1)
		}
		for f := 0; f < nFrames; f++ {
			for _, idx := range b.Iter(int32(f)) {
				if b.Entry(idx).Frame != int32(f) {
					t.Fatalf("Iter(%d) returned entry from frame %d", f, b.Entry(idx).Frame)
				}
			}
		}
	})
}
