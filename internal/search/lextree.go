package search

// TreeNode is one node of the prefix-sharing triphone lexical tree: a root
// or an interior node. Children and alternatives are stored as arena
// indices (see §9's "arena + 32-bit indices" design note) rather than
// pointers, so the whole tree can be dropped as a unit when the LM
// changes.
type TreeNode struct {
	HMM *HMM

	Phone CIPhone // CI phone this node represents

	Child   int32 // first-descendant index, -1 if this is a penultimate node
	Sibling int32 // next alternative triphone sharing the same left context, -1 if none

	// Diphone is only meaningful on root nodes: the (first-phone,
	// left-context) key used to index cross-word fan-in.
	Diphone int32

	// PenultWid holds the homophone list of words whose penultimate phone
	// is this node, or nil for a non-penultimate interior node.
	PenultWid []WordId
}

// LastPhoneChannel is a last phone of a multi-phone word, allocated on
// demand per distinct right context (the tree never stores last phones:
// see §3 "Last-phone channel"). Channels for one word form a singly
// linked list through Next, keyed by RC.
type LastPhoneChannel struct {
	HMM  *HMM
	Wid  WordId
	RC   CIPhone
	Lscr int32 // LM score applied when this word's last phone was entered
	Next int32 // index of next channel for the same word, -1 if none
}

// Tree is the full lexical tree for one active vocabulary: an arena of
// interior/root nodes plus the flat table of single-phone words, which
// are never placed in the tree (§4.D).
type Tree struct {
	ctx *HMMContext

	nodes []TreeNode
	roots []int32 // indices into nodes, one per distinct first diphone

	// SinglePhoneHMM holds one statically allocated root HMM per
	// single-phone word, keyed by WordId.
	SinglePhoneHMM map[WordId]*HMM

	// rootByDiphone indexes roots by (first-phone, left-context) key so
	// build and inter-word transition can find-or-create in O(1).
	rootByDiphone map[int32]int32
}

// NewTree allocates an empty tree bound to an HMM evaluation context.
func NewTree(ctx *HMMContext) *Tree {
	return &Tree{
		ctx:            ctx,
		SinglePhoneHMM: make(map[WordId]*HMM),
		rootByDiphone:  make(map[int32]int32),
	}
}

// DiphoneKey packs a (first phone, left-context phone) pair into the
// int32 key used by rootByDiphone.
func DiphoneKey(first, left CIPhone) int32 {
	return int32(first)<<16 | int32(uint16(left))
}

// Node returns a pointer to arena entry i.
func (t *Tree) Node(i int32) *TreeNode { return &t.nodes[i] }

// NumNodes returns the tree's interior+root node count (n_nonroot +
// n_root, per §4.D's active-channel-list sizing note).
func (t *Tree) NumNodes() int { return len(t.nodes) }

// Roots returns the arena indices of every root node.
func (t *Tree) Roots() []int32 { return t.roots }

// findOrCreateRoot returns the root node for (phone, leftCtx, tmatID,
// ssid), creating a new multiplex root if none exists yet.
func (t *Tree) findOrCreateRoot(phone, leftCtx CIPhone, tmatID Tmat, ssid Ssid) int32 {
	key := DiphoneKey(phone, leftCtx)
	if idx, ok := t.rootByDiphone[key]; ok {
		return idx
	}
	hmm := NewMultiplexHMM(t.ctx, tmatID)
	hmm.SetEntrySsid(ssid)
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, TreeNode{
		HMM:     hmm,
		Phone:   phone,
		Child:   -1,
		Sibling: -1,
		Diphone: key,
	})
	t.rootByDiphone[key] = idx
	t.roots = append(t.roots, idx)
	return idx
}

// findOrCreateChild looks among parent's children for a sibling sharing
// ssid, or appends a new one.
func (t *Tree) findOrCreateChild(parent int32, phone CIPhone, tmatID Tmat, ssid Ssid) int32 {
	p := &t.nodes[parent]
	cur := p.Child
	var last int32 = -1
	for cur >= 0 {
		n := &t.nodes[cur]
		if n.Phone == phone && n.HMM.ssid == ssid {
			return cur
		}
		last = cur
		cur = n.Sibling
	}
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, TreeNode{
		HMM:     NewHMM(t.ctx, tmatID, ssid),
		Phone:   phone,
		Child:   -1,
		Sibling: -1,
		Diphone: -1,
	})
	if last < 0 {
		t.nodes[parent].Child = idx
	} else {
		t.nodes[last].Sibling = idx
	}
	return idx
}

// WordSpec is the subset of a dictionary entry the tree builder needs:
// its phone sequence (CI phone ids, left-to-right) and tmat/ssid ids for
// each phone (produced by the acoustic-model/dictionary collaborators).
type WordSpec struct {
	Wid      WordId
	Phones   []CIPhone
	TmatID   []Tmat // one per phone
	Ssid     []Ssid // one per phone
	LeftCtx  CIPhone // silence/boundary context used to seed the first root
}

// AddWord inserts one multi-phone dictionary word into the tree (§4.D):
// find-or-create the root keyed by its first diphone, walk/create
// interior siblings for every non-penultimate phone, and attach wid to
// the penultimate node's homophone list. Single-phone words must be
// added via AddSinglePhoneWord instead.
func (t *Tree) AddWord(w WordSpec) {
	n := len(w.Phones)
	if n < 2 {
		return
	}
	cur := t.findOrCreateRoot(w.Phones[0], w.LeftCtx, w.TmatID[0], w.Ssid[0])
	for i := 1; i < n-1; i++ {
		cur = t.findOrCreateChild(cur, w.Phones[i], w.TmatID[i], w.Ssid[i])
	}
	node := &t.nodes[cur]
	node.PenultWid = append(node.PenultWid, w.Wid)
}

// AddSinglePhoneWord registers a single-phone word's statically
// allocated flat root HMM (never placed in the tree: §4.D).
func (t *Tree) AddSinglePhoneWord(wid WordId, tmatID Tmat, ssid Ssid) {
	t.SinglePhoneHMM[wid] = NewHMM(t.ctx, tmatID, ssid)
}

// ClearAll resets every HMM instance in the tree and every single-phone
// word's flat root, for the start of a fresh utterance.
func (t *Tree) ClearAll() {
	for i := range t.nodes {
		t.nodes[i].HMM.Clear()
	}
	for _, h := range t.SinglePhoneHMM {
		h.Clear()
	}
}
