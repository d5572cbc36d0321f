// Package asrmodel provides small, concrete, in-memory stand-ins for the
// acoustic model and senone scorer of SPEC_FULL.md §6/§11: a YAML-fixture
// acoustic topology and a text-matrix senone score reader. Neither claims
// acoustic modeling fidelity; they exist to drive the search engine's
// tests and the CLI demo without a live multi-gigabyte Sphinx model
// directory.
package asrmodel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/doismellburning/sphinxgo/internal/search"
)

// modelYAML is the on-disk shape of a TextAcousticModel fixture.
type modelYAML struct {
	NumEmitState int        `yaml:"num_emit_state"`
	CIPhones     []string   `yaml:"ci_phones"`
	Tmat         [][][]int32 `yaml:"tmat"`    // [tmatid][from][to], log domain already
	SenoneSeq    [][]int32   `yaml:"sseq"`    // [ssid][state] -> senone id
}

// TextAcousticModel is a YAML-described acoustic model (§11): CI-phone
// inventory, tied transition matrices, and a senone-sequence table.
type TextAcousticModel struct {
	CIPhones []string
	ciIndex  map[string]search.CIPhone
	ctx      *search.HMMContext
}

// LoadTextAcousticModel reads a YAML fixture from path and validates its
// topology via search.NewHMMContext.
func LoadTextAcousticModel(path string) (*TextAcousticModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("asrmodel: reading %s: %w", path, err)
	}
	var my modelYAML
	if err := yaml.Unmarshal(raw, &my); err != nil {
		return nil, fmt.Errorf("asrmodel: parsing %s: %w", path, err)
	}

	sseq := make([][]search.Senone, len(my.SenoneSeq))
	for i, row := range my.SenoneSeq {
		s := make([]search.Senone, len(row))
		for j, v := range row {
			s[j] = search.Senone(v)
		}
		sseq[i] = s
	}

	ctx, err := search.NewHMMContext(my.NumEmitState, my.Tmat, sseq)
	if err != nil {
		return nil, err
	}

	ciIndex := make(map[string]search.CIPhone, len(my.CIPhones))
	for i, p := range my.CIPhones {
		ciIndex[p] = search.CIPhone(i)
	}

	return &TextAcousticModel{CIPhones: my.CIPhones, ciIndex: ciIndex, ctx: ctx}, nil
}

// Context returns the HMM evaluation context this model produces.
func (m *TextAcousticModel) Context() *search.HMMContext { return m.ctx }

// CIPhoneID resolves a phone's string form to its CIPhone id, or
// search.NoCIPhone if unknown.
func (m *TextAcousticModel) CIPhoneID(name string) search.CIPhone {
	if id, ok := m.ciIndex[name]; ok {
		return id
	}
	return search.NoCIPhone
}

// NumEmitState returns the model's emitting-state count (3 or 5).
func (m *TextAcousticModel) NumEmitState() int { return m.ctx.NumEmitState }
