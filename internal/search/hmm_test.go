package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// threeStateCtx builds a minimal 3-state left-to-right HMMContext with
// one tied transition matrix and one shared senone sequence, for tests
// that only care about the Viterbi recursion itself.
func threeStateCtx(t *testing.T) *HMMContext {
	t.Helper()
	tmat := [][][]int32{
		{
			{-100, -200, WorstScore, -500},
			{WorstScore, -100, -300, -600},
			{WorstScore, WorstScore, -100, -400},
		},
	}
	sseq := [][]Senone{{0, 1, 2}}
	ctx, err := NewHMMContext(3, tmat, sseq)
	require.NoError(t, err)
	return ctx
}

func Test_NewHMMContext_rejectsMissingSelfLoop(t *testing.T) {
	tmat := [][][]int32{
		{
			{WorstScore, -200, WorstScore, -500},
			{WorstScore, -100, -300, -600},
			{WorstScore, WorstScore, -100, -400},
		},
	}
	_, err := NewHMMContext(3, tmat, [][]Senone{{0, 1, 2}})
	require.Error(t, err)
	assert.True(t, IsKind(err, BadTransition))
}

func Test_NewHMMContext_rejectsUnsupportedTopology(t *testing.T) {
	_, err := NewHMMContext(4, nil, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, BadTransition))
}

func Test_HMM_ClearThenAlive(t *testing.T) {
	ctx := threeStateCtx(t)
	h := NewHMM(ctx, 0, 0)
	assert.False(t, h.Alive())

	h.Enter(0, 42, 0)
	assert.True(t, h.Alive())
	assert.Equal(t, int32(42), h.History[0])

	h.Clear()
	assert.False(t, h.Alive())
	assert.Equal(t, int32(NoHistory), h.History[0])
}

func Test_HMM_Enter_onlyImprovingScoreWins(t *testing.T) {
	ctx := threeStateCtx(t)
	h := NewHMM(ctx, 0, 0)

	h.Enter(-10, 1, 0)
	assert.Equal(t, int32(-10), h.Score[0])
	assert.Equal(t, int32(1), h.History[0])

	h.Enter(-20, 2, 0) // worse score must not replace
	assert.Equal(t, int32(-10), h.Score[0])
	assert.Equal(t, int32(1), h.History[0])

	h.Enter(-5, 3, 1) // better score replaces, and Frame always bumps
	assert.Equal(t, int32(-5), h.Score[0])
	assert.Equal(t, int32(3), h.History[0])
	assert.Equal(t, int32(1), h.Frame)
}

func Test_HMM_Evaluate_propagatesThroughStates(t *testing.T) {
	ctx := threeStateCtx(t)
	h := NewHMM(ctx, 0, 0)
	h.Enter(0, 1, 0)

	senscr := []int32{0, 0, 0}
	best := h.Evaluate(senscr, 0)
	assert.Equal(t, h.BestScore, best)
	// Only state 0 was entered. After one frame state 0 (self-loop) and
	// state 1 (the -200 arc from state 0) are live; state 2 stays at
	// WorstScore because this matrix has no 0->2 arc.
	assert.Greater(t, h.Score[0], WorstScore/2)
	assert.Equal(t, int32(-200), h.Score[1])
	assert.Equal(t, WorstScore, h.Score[2])
}

func Test_HMM_Normalize_subtractsBaseFromLiveScoresOnly(t *testing.T) {
	ctx := threeStateCtx(t)
	h := NewHMM(ctx, 0, 0)
	h.Enter(-50, 1, 0)
	h.Normalize(-10)
	assert.Equal(t, int32(-40), h.Score[0])
	assert.Equal(t, WorstScore, h.Score[1]) // untouched, still dead
}

// Test_HMM_Evaluate_state0NeverExceedsSelfLoopBound is a property test:
// with only state 0 ever entered, state 0's score after Evaluate can
// never exceed entryScore + its own self-loop transition + the frame's
// senone score, since the self-loop is the only arc that can feed it.
func Test_HMM_Evaluate_state0NeverExceedsSelfLoopBound(t *testing.T) {
	ctx := threeStateCtx(t)
	selfLoop := ctx.Tmat[0][0][0]

	rapid.Check(t, func(t *rapid.T) {
		entryScore := rapid.Int32Range(-2000, 0).Draw(t, "entryScore")
		senscr := []int32{
			rapid.Int32Range(-2000, 0).Draw(t, "s0"),
			rapid.Int32Range(-2000, 0).Draw(t, "s1"),
			rapid.Int32Range(-2000, 0).Draw(t, "s2"),
		}

		h := NewHMM(ctx, 0, 0)
		h.Enter(entryScore, 0, 0)
		h.Evaluate(senscr, 0)

		want := entryScore + selfLoop + senscr[0]
		assert.Equal(t, want, h.Score[0])
	})
}
