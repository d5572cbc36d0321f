package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFixtureBPT constructs a tiny three-word BPT directly (bypassing
// the Decoder): <s> at frame 0, w1 spanning frames 1-3, </s> at frame
// 4-7, exactly the shape BuildLattice's §4.F overlap test expects.
func buildFixtureBPT(t *testing.T) (*BPT, *fakeDictionary) {
	t.Helper()
	dict := newFakeDictionary()
	b := NewBPT(dict, 1024, true)

	b.BeginFrame(0)
	startIdx := b.Save(dict.start, 0, -1, NoCIPhone, 0)
	b.CapWordExits(-1)

	b.BeginFrame(3)
	w1Idx := b.Save(dict.w1, -40, startIdx, 1, -5)
	b.CapWordExits(-1)

	b.BeginFrame(7)
	b.Save(dict.end, -60, w1Idx, NoCIPhone, -5)
	b.CapWordExits(-1)

	return b, dict
}

func Test_BuildLattice_threeWordChain(t *testing.T) {
	bpt, dict := buildFixtureBPT(t)
	dag := BuildLattice(bpt, dict, fakeLM{}, DefaultConfig())

	require.Len(t, dag.Nodes, 3)
	require.GreaterOrEqual(t, dag.Initial, int32(0))
	require.GreaterOrEqual(t, dag.Final, int32(0))
	assert.Equal(t, dict.start, dag.Nodes[dag.Initial].Wid)
	assert.Equal(t, dict.end, dag.Nodes[dag.Final].Wid)

	require.Len(t, dag.Links, 2)
	for _, l := range dag.Links {
		assert.NotEqual(t, l.From, l.To)
	}
}

func Test_BuildLattice_everyNodeReachableFromFinal(t *testing.T) {
	bpt, dict := buildFixtureBPT(t)
	dag := BuildLattice(bpt, dict, fakeLM{}, DefaultConfig())
	for i, n := range dag.Nodes {
		assert.True(t, n.Reachable, "node %d (%v) should be reachable from </s>", i, n.Wid)
	}
}

func Test_BuildLattice_fillerThreadedOutOfGraph(t *testing.T) {
	dict := newFakeDictionary()
	b := NewBPT(dict, 1024, true)

	b.BeginFrame(0)
	startIdx := b.Save(dict.start, 0, -1, NoCIPhone, 0)
	b.CapWordExits(-1)

	b.BeginFrame(2)
	silIdx := b.Save(dict.sil, -10, startIdx, NoCIPhone, -3)
	b.CapWordExits(-1)

	b.BeginFrame(5)
	w1Idx := b.Save(dict.w1, -40, silIdx, 1, -5)
	b.CapWordExits(-1)

	b.BeginFrame(9)
	b.Save(dict.end, -60, w1Idx, NoCIPhone, -5)
	b.CapWordExits(-1)

	dag := BuildLattice(b, dict, fakeLM{}, DefaultConfig())
	for _, n := range dag.Nodes {
		assert.NotEqual(t, dict.sil, n.Wid, "filler node must be threaded out of the final graph")
	}
}

func Test_rebuildAdjacency_populatesForwardAndReverseLinks(t *testing.T) {
	dag := &Dag{
		Nodes: []LatNode{{}, {}, {}},
		Links: []DagLink{{From: 0, To: 1}, {From: 1, To: 2}},
	}
	rebuildAdjacency(dag)
	assert.Equal(t, []int32{0}, dag.Nodes[0].Links)
	assert.Equal(t, []int32{0}, dag.Nodes[1].RevLinks)
	assert.Equal(t, []int32{1}, dag.Nodes[1].Links)
	assert.Equal(t, []int32{1}, dag.Nodes[2].RevLinks)
}
