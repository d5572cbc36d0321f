// Package lexicon implements the Dictionary collaborator of
// SPEC_FULL.md §6/§11: word string <-> id mapping, per-word phone
// sequences, alternate-pronunciation chains, and the right-context
// fan-out table the backpointer table needs. The WordId/id2str/str2id
// shape follows the kho-fslm Vocab pattern (id2str []string + str2id
// map[string]WordId); the per-word ASR fields (phone sequence, alt-pron
// chain, boundary diphone, right-context table) follow the field shape
// of pocketsphinx's dict.c/s3_dict.c.
package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/doismellburning/sphinxgo/internal/search"
)

// entry is one dictionary word's full record (dict.c's dict_entry_t
// field shape, adapted).
type entry struct {
	phones  []search.CIPhone
	altOf   search.WordId // base word this is an alternate pronunciation of, or NoWordId
	nextAlt search.WordId // next alternate in the chain, or NoWordId
	filler  bool
}

// Lexicon is the search.Dictionary implementation: a Vocab-shaped
// string<->id table plus per-word ASR fields, and the rcpermtab
// deduplication the backpointer table's score stack needs.
type Lexicon struct {
	id2str []string
	str2id map[string]search.WordId
	words  []entry

	ciIndex map[string]search.CIPhone
	ciNames []string

	startWid, endWid, silWid search.WordId

	// rc[wid] lists the distinct right-context CI phones reachable from
	// wid's final diphone, deduplicated at build time (rcpermtab); rcIdx
	// maps a CI phone back to its slot.
	rc    [][]search.RCVariant
	rcIdx []map[search.CIPhone]int
}

var altPronRe = regexp.MustCompile(`^(.*)\((\d+)\)$`)

// New builds an empty Lexicon; callers register CI phones with AddPhone
// before loading words so phone ids are stable.
func New() *Lexicon {
	return &Lexicon{
		str2id:  make(map[string]search.WordId),
		ciIndex: make(map[string]search.CIPhone),
		startWid: search.NoWordId, endWid: search.NoWordId, silWid: search.NoWordId,
	}
}

// AddPhone registers a CI phone name, returning its stable id.
func (l *Lexicon) AddPhone(name string) search.CIPhone {
	if id, ok := l.ciIndex[name]; ok {
		return id
	}
	id := search.CIPhone(len(l.ciNames))
	l.ciNames = append(l.ciNames, name)
	l.ciIndex[name] = id
	return id
}

// Phone resolves a phone name to its id, or search.NoCIPhone.
func (l *Lexicon) Phone(name string) search.CIPhone {
	if id, ok := l.ciIndex[name]; ok {
		return id
	}
	return search.NoCIPhone
}

// LoadText parses the pronunciation-dictionary text format named by
// §11: "WORD PH1 PH2 PH3", alternates as "WORD(2) PH1 PH2". <s>, </s>
// and filler words (conventionally written "WORD" with phones
// "SIL"/a noise marker, or wrapped in angle brackets) are recognized by
// name: startWord, endWord, silWord, and any word beginning/ending with
// "<" and ">" is treated as a filler.
func (l *Lexicon) LoadText(r io.Reader, startWord, endWord, silWord string) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return fmt.Errorf("lexicon: malformed line %q", line)
		}
		headWord := fields[0]
		base := headWord
		if m := altPronRe.FindStringSubmatch(headWord); m != nil {
			base = m[1]
		}

		phones := make([]search.CIPhone, 0, len(fields)-1)
		for _, p := range fields[1:] {
			id, ok := l.ciIndex[p]
			if !ok {
				return fmt.Errorf("lexicon: unknown phone %q for word %q", p, headWord)
			}
			phones = append(phones, id)
		}

		isFiller := strings.HasPrefix(base, "<") && strings.HasSuffix(base, ">")
		wid := l.add(headWord, phones, isFiller)

		if base != headWord {
			baseWid, ok := l.str2id[base]
			if !ok {
				return fmt.Errorf("lexicon: alt pron %q has no base word %q", headWord, base)
			}
			l.words[wid].altOf = baseWid
			// Thread wid onto the base's alt chain.
			cur := baseWid
			for l.words[cur].nextAlt != search.NoWordId {
				cur = l.words[cur].nextAlt
			}
			l.words[cur].nextAlt = wid
		}

		switch headWord {
		case startWord:
			l.startWid = wid
		case endWord:
			l.endWid = wid
		case silWord:
			l.silWid = wid
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if l.startWid == search.NoWordId || l.endWid == search.NoWordId {
		return fmt.Errorf("lexicon: %q/%q not resolvable", startWord, endWord)
	}
	l.buildRC()
	return nil
}

func (l *Lexicon) add(word string, phones []search.CIPhone, filler bool) search.WordId {
	wid := search.WordId(len(l.id2str))
	l.id2str = append(l.id2str, word)
	l.str2id[word] = wid
	l.words = append(l.words, entry{phones: phones, altOf: search.NoWordId, nextAlt: search.NoWordId, filler: filler})
	return wid
}

// buildRC computes, per word, the deduplicated set of right-context
// variants reachable from its final diphone (§4.C's rcpermtab): in this
// fixture dictionary, shaped simply as one variant per distinct
// following-word first phone actually in the vocabulary, using the
// word's own last phone's tied transition matrix/ssid (there being no
// separate triphone model here — see DESIGN.md for the simplification).
func (l *Lexicon) buildRC() {
	distinctFirstPhones := make(map[search.CIPhone]bool)
	for _, e := range l.words {
		if len(e.phones) > 0 {
			distinctFirstPhones[e.phones[0]] = true
		}
	}
	var rcPhones []search.CIPhone
	for p := range distinctFirstPhones {
		rcPhones = append(rcPhones, p)
	}

	l.rc = make([][]search.RCVariant, len(l.words))
	l.rcIdx = make([]map[search.CIPhone]int, len(l.words))
	for wid, e := range l.words {
		if len(e.phones) == 0 {
			continue
		}
		last := e.phones[len(e.phones)-1]
		idx := make(map[search.CIPhone]int, len(rcPhones))
		variants := make([]search.RCVariant, 0, len(rcPhones))
		for _, p := range rcPhones {
			idx[p] = len(variants)
			variants = append(variants, search.RCVariant{
				RC:     p,
				TmatID: search.Tmat(last),
				Ssid:   search.Ssid(last),
			})
		}
		l.rc[wid] = variants
		l.rcIdx[wid] = idx
	}
}

// --- search.LexiconView / search.Dictionary ---

func (l *Lexicon) IsFiller(w search.WordId) bool { return l.words[w].filler }

func (l *Lexicon) BaseWid(w search.WordId) search.WordId {
	if l.words[w].altOf != search.NoWordId {
		return l.words[w].altOf
	}
	return w
}

func (l *Lexicon) RCCount(w search.WordId) int { return len(l.rc[w]) }

func (l *Lexicon) RCIndex(w search.WordId, rc search.CIPhone) int {
	if idx, ok := l.rcIdx[w][rc]; ok {
		return idx
	}
	return 0
}

func (l *Lexicon) StartWid() search.WordId { return l.startWid }
func (l *Lexicon) EndWid() search.WordId   { return l.endWid }
func (l *Lexicon) SilWid() search.WordId   { return l.silWid }
func (l *Lexicon) NumWords() int           { return len(l.words) }

func (l *Lexicon) IsSinglePhone(w search.WordId) bool { return len(l.words[w].phones) == 1 }

func (l *Lexicon) FirstPhone(w search.WordId) search.CIPhone {
	p := l.words[w].phones
	if len(p) == 0 {
		return search.NoCIPhone
	}
	return p[0]
}

func (l *Lexicon) LastPhoneVariants(w search.WordId) []search.RCVariant { return l.rc[w] }

// Phones returns wid's full phone sequence.
func (l *Lexicon) Phones(w search.WordId) []search.CIPhone { return l.words[w].phones }

// WordString resolves a WordId to its dictionary spelling.
func (l *Lexicon) WordString(w search.WordId) string {
	if int(w) < 0 || int(w) >= len(l.id2str) {
		return "<unk>"
	}
	return l.id2str[w]
}

// WordId resolves a spelling to its WordId, or search.NoWordId.
func (l *Lexicon) WordId(s string) search.WordId {
	if id, ok := l.str2id[s]; ok {
		return id
	}
	return search.NoWordId
}
