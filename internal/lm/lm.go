// Package lm implements the LanguageModel collaborator of SPEC_FULL.md
// §6/§11: an in-memory trigram/bigram/unigram table with backoff, shaped
// after kho-fslm's Vocab pattern for word identity and pocketsphinx's
// lm_3g.c query/backoff shape (original_source/src/libpocketsphinx/lm_3g.c).
package lm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/doismellburning/sphinxgo/internal/search"
)

// LM is an in-memory backoff n-gram table in the same fixed-point log
// domain the search core uses throughout.
type LM struct {
	ug map[search.WordId]int32
	bg map[[2]search.WordId]int32
	tg map[[3]search.WordId]int32

	// backoff weights applied when a higher-order entry is absent,
	// keyed by the (n-1)-gram context; 0 if unspecified.
	bowUg map[search.WordId]int32
	bowBg map[[2]search.WordId]int32

	known map[search.WordId]bool
	vocab []search.WordId
}

// New returns an empty LM.
func New() *LM {
	return &LM{
		ug:    make(map[search.WordId]int32),
		bg:    make(map[[2]search.WordId]int32),
		tg:    make(map[[3]search.WordId]int32),
		bowUg: make(map[search.WordId]int32),
		bowBg: make(map[[2]search.WordId]int32),
		known: make(map[search.WordId]bool),
	}
}

// LoadText parses a simple ARPA-like text format, grounded on lm_3g.c's
// ngram_t record shape: sections "\1-grams", "\2-grams", "\3-grams",
// each line "logprob w1 [w2 [w3]] [backoff]", word ids given as plain
// integers (resolved upstream by the caller's dictionary).
func (m *LM) LoadText(r io.Reader) error {
	sc := bufio.NewScanner(r)
	section := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch line {
		case `\1-grams:`:
			section = 1
			continue
		case `\2-grams:`:
			section = 2
			continue
		case `\3-grams:`:
			section = 3
			continue
		case `\end\`:
			section = 0
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 1+section {
			return fmt.Errorf("lm: malformed %d-gram line %q", section, line)
		}
		logprob, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("lm: bad logprob %q: %w", fields[0], err)
		}
		ws := make([]search.WordId, section)
		for i := 0; i < section; i++ {
			v, err := strconv.Atoi(fields[1+i])
			if err != nil {
				return fmt.Errorf("lm: bad word id %q: %w", fields[1+i], err)
			}
			ws[i] = search.WordId(v)
		}
		var backoff int32
		if len(fields) > 1+section {
			b, err := strconv.Atoi(fields[1+section])
			if err == nil {
				backoff = int32(b)
			}
		}

		switch section {
		case 1:
			m.ug[ws[0]] = int32(logprob)
			m.bowUg[ws[0]] = backoff
			m.known[ws[0]] = true
			m.vocab = append(m.vocab, ws[0])
		case 2:
			m.bg[[2]search.WordId{ws[0], ws[1]}] = int32(logprob)
			m.bowBg[[2]search.WordId{ws[0], ws[1]}] = backoff
		case 3:
			m.tg[[3]search.WordId{ws[0], ws[1], ws[2]}] = int32(logprob)
		default:
			return fmt.Errorf("lm: data line outside any n-gram section: %q", line)
		}
	}
	return sc.Err()
}

// Ug returns the unigram log-probability of w, or a large negative
// out-of-vocabulary score.
func (m *LM) Ug(w search.WordId) int32 {
	if v, ok := m.ug[w]; ok {
		return v
	}
	return search.WorstScore / 2
}

// Bg returns the bigram log-probability of (w1, w2), backing off to
// Ug(w2) + bow(w1) when the bigram is absent (lm_3g.c's backoff shape).
func (m *LM) Bg(w1, w2 search.WordId) int32 {
	if v, ok := m.bg[[2]search.WordId{w1, w2}]; ok {
		return v
	}
	return m.Ug(w2) + m.bowUg[w1]
}

// Tg returns the trigram log-probability of (w1, w2, w3), backing off
// through Bg(w2, w3) + bow(w1, w2) when the trigram is absent.
func (m *LM) Tg(w1, w2, w3 search.WordId) int32 {
	if w1 == search.NoWordId {
		return m.Bg(w2, w3)
	}
	if v, ok := m.tg[[3]search.WordId{w1, w2, w3}]; ok {
		return v
	}
	return m.Bg(w2, w3) + m.bowBg[[2]search.WordId{w1, w2}]
}

// KnownWid reports whether w has a unigram entry.
func (m *LM) KnownWid(w search.WordId) bool { return m.known[w] }

// Vocab returns the base-vocabulary iterator named by §6.
func (m *LM) Vocab() []search.WordId { return m.vocab }
