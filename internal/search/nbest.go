package search

import "sort"

// maxPaths and maxHypTries are the hard caps of §4.I: paths beyond
// maxPaths in the sorted frontier, or beyond maxHypTries total
// extensions attempted, are discarded.
const (
	maxPaths    = 500
	maxHypTries = 10000
)

// NBestHyp is one returned N-best hypothesis: the word sequence and its
// total score.
type NBestHyp struct {
	Words []WordId
	Score int32
}

type nbestPath struct {
	words []WordId
	node  int32
	score int32
}

// NBest enumerates up to K distinct word sequences between two lattice
// points (§4.I), via a best-first search ordered by
// path.score + bestRemScore(path.node), where bestRemScore is a
// Dijkstra-like admissible estimate of the optimal cost from node to
// the final node, memoized lazily.
type NBest struct {
	dag *Dag
	lm  LanguageModel
	lw  int64

	remScore map[int32]int32
}

// NewNBest prepares an enumerator over dag.
func NewNBest(dag *Dag, lm LanguageModel, languageWeight float64) *NBest {
	return &NBest{
		dag:      dag,
		lm:       lm,
		lw:       logToLW(languageWeight),
		remScore: make(map[int32]int32),
	}
}

// bestRemScore computes (and memoizes) the optimal bigram-LM remaining
// score from node to the dag's Final node, via backward Dijkstra
// relaxation computed lazily and cached per node.
func (nb *NBest) bestRemScore(node int32) int32 {
	if v, ok := nb.remScore[node]; ok {
		return v
	}
	if node == nb.dag.Final {
		nb.remScore[node] = 0
		return 0
	}
	best := int32(WorstScore)
	for _, li := range nb.dag.Nodes[node].Links {
		l := &nb.dag.Links[li]
		bg := nb.lm.Bg(nb.dag.Nodes[node].Wid, nb.dag.Nodes[l.To].Wid)
		cand := l.LinkScr + scaleLW(bg, nb.lw) + nb.bestRemScore(l.To)
		if cand > best {
			best = cand
		}
	}
	nb.remScore[node] = best
	return best
}

// GetAlt implements §4.I's get_alt: enumerate up to n distinct word
// sequences from the dag's Initial node to its Final node. It takes no
// start or end node, so every sequence spans the whole lattice. w1/w2
// seed the initial trigram context, w2 being the word immediately before
// the first path word and w1 the one before it; pass NoWordId for both to
// mean "no seeded context".
func (nb *NBest) GetAlt(n int, w1, w2 WordId) []NBestHyp {
	start := nb.dag.Initial
	frontier := []nbestPath{{words: nil, node: start, score: 0}}

	var results []NBestHyp
	seen := make(map[string]bool)
	tries := 0

	for len(frontier) > 0 && len(results) < n && tries < maxHypTries {
		sort.Slice(frontier, func(i, j int) bool {
			return frontier[i].score+nb.bestRemScore(frontier[i].node) >
				frontier[j].score+nb.bestRemScore(frontier[j].node)
		})
		best := frontier[0]
		frontier = frontier[1:]
		tries++

		if best.node == nb.dag.Final {
			key := wordKey(best.words)
			if !seen[key] {
				seen[key] = true
				results = append(results, NBestHyp{Words: append([]WordId(nil), best.words...), Score: best.score})
			}
			continue
		}

		prev1, prev2 := w2, w1
		if len(best.words) >= 1 {
			prev1 = best.words[len(best.words)-1]
		}
		if len(best.words) >= 2 {
			prev2 = best.words[len(best.words)-2]
		}

		for _, li := range nb.dag.Nodes[best.node].Links {
			l := &nb.dag.Links[li]
			toWid := nb.dag.Nodes[l.To].Wid
			tg := nb.lm.Tg(prev2, prev1, toWid)
			words := append(append([]WordId(nil), best.words...), toWid)
			cand := nbestPath{
				words: words,
				node:  l.To,
				score: best.score + l.LinkScr + scaleLW(tg, nb.lw),
			}
			if len(frontier) >= maxPaths {
				continue
			}
			frontier = append(frontier, cand)
		}
	}

	return results
}

func wordKey(words []WordId) string {
	b := make([]byte, 0, len(words)*5)
	for _, w := range words {
		b = append(b, byte(w), byte(w>>8), byte(w>>16), byte(w>>24), ',')
	}
	return string(b)
}
