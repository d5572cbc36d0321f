package asrmodel

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TextSenoneScorer reads a per-utterance text matrix of per-frame senone
// log-probabilities, one row per frame (grounded on the shape of a
// Sphinx .senscr dump): whitespace-separated fixed-point integers,
// already in the same log domain the search core expects.
type TextSenoneScorer struct {
	frames [][]int32
}

// LoadTextSenoneScorer parses r into a scorer.
func LoadTextSenoneScorer(r io.Reader) (*TextSenoneScorer, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var frames [][]int32
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		row := make([]int32, len(fields))
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("asrmodel: bad senone score %q: %w", f, err)
			}
			row[i] = int32(v)
		}
		frames = append(frames, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &TextSenoneScorer{frames: frames}, nil
}

// NumFrames returns the number of frames available.
func (s *TextSenoneScorer) NumFrames() int { return len(s.frames) }

// Score returns the full per-senone score vector for frame idx. It takes
// no active-list argument: this fixture always does full evaluation, one
// of the two supported modes.
func (s *TextSenoneScorer) Score(idx int) ([]int32, error) {
	if idx < 0 || idx >= len(s.frames) {
		return nil, fmt.Errorf("asrmodel: frame %d out of range (0..%d)", idx, len(s.frames)-1)
	}
	return s.frames[idx], nil
}
