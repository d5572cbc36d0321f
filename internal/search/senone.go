package search

import "math/bits"

// ActiveSenoneSet tracks which emission-density ids any live HMM needs
// scored this frame: a bitvector for O(1) marking plus, on demand, a
// packed ascending list for the external senone scorer to iterate
// without walking the whole density inventory.
type ActiveSenoneSet struct {
	words []uint32 // 32 senones per word
	n     int       // n_senones
	list  []Senone  // reused scratch buffer for FlagsToList
}

// NewActiveSenoneSet allocates a set sized for nSenones distinct densities.
func NewActiveSenoneSet(nSenones int) *ActiveSenoneSet {
	return &ActiveSenoneSet{
		words: make([]uint32, (nSenones+31)/32),
		n:     nSenones,
	}
}

// Clear zeros the bitvector (and drops the packed list, which is now stale).
func (a *ActiveSenoneSet) Clear() {
	for i := range a.words {
		a.words[i] = 0
	}
	a.list = a.list[:0]
}

// Mark sets the bit for senone id s.
func (a *ActiveSenoneSet) Mark(s Senone) {
	a.words[int(s)/32] |= 1 << uint(int(s)%32)
}

// IsMarked reports whether senone id s is currently active.
func (a *ActiveSenoneSet) IsMarked(s Senone) bool {
	return a.words[int(s)/32]&(1<<uint(int(s)%32)) != 0
}

// FlagsToList scans the bitvector in 32-bit chunks and returns the set bit
// indices in ascending order. The returned slice is reused across calls;
// callers must not retain it past the next Clear/FlagsToList.
func (a *ActiveSenoneSet) FlagsToList() []Senone {
	a.list = a.list[:0]
	for wi, w := range a.words {
		for w != 0 {
			b := bits.TrailingZeros32(w)
			a.list = append(a.list, Senone(wi*32+b))
			w &= w - 1 // clear lowest set bit
		}
	}
	return a.list
}

// Count returns the number of currently active senones without building
// the packed list.
func (a *ActiveSenoneSet) Count() int {
	n := 0
	for _, w := range a.words {
		n += bits.OnesCount32(w)
	}
	return n
}

// MarkAll marks every senone active, so a request built from the set is
// full-width. The Decoder does not call it.
func (a *ActiveSenoneSet) MarkAll() {
	for i := range a.words {
		a.words[i] = 0xFFFFFFFF
	}
}
