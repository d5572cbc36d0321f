package asrmodel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/sphinxgo/internal/search"
)

const sampleModelYAML = `
num_emit_state: 3
ci_phones: [SIL, HH, AH]
tmat:
  - - [-100, -200, -2000000000, -500]
    - [-2000000000, -100, -300, -600]
    - [-2000000000, -2000000000, -100, -400]
sseq:
  - [0, 1, 2]
`

func writeModelFixture(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func Test_LoadTextAcousticModel_parsesTopologyAndPhones(t *testing.T) {
	path := writeModelFixture(t, sampleModelYAML)
	m, err := LoadTextAcousticModel(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"SIL", "HH", "AH"}, m.CIPhones)
	assert.Equal(t, search.CIPhone(1), m.CIPhoneID("HH"))
	assert.Equal(t, search.NoCIPhone, m.CIPhoneID("ZZ"))
	assert.Equal(t, 3, m.NumEmitState())
	require.NotNil(t, m.Context())
}

func Test_LoadTextAcousticModel_rejectsInvalidTopology(t *testing.T) {
	const badYAML = `
num_emit_state: 3
ci_phones: [SIL]
tmat:
  - - [-2000000000, -200, -2000000000, -500]
    - [-2000000000, -100, -300, -600]
    - [-2000000000, -2000000000, -100, -400]
sseq:
  - [0, 1, 2]
`
	path := writeModelFixture(t, badYAML)
	_, err := LoadTextAcousticModel(path)
	require.Error(t, err)
}

func Test_LoadTextAcousticModel_missingFileErrors(t *testing.T) {
	_, err := LoadTextAcousticModel(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
}

func Test_LoadTextAcousticModel_malformedYAMLErrors(t *testing.T) {
	path := writeModelFixture(t, "not: [valid yaml")
	_, err := LoadTextAcousticModel(path)
	require.Error(t, err)
}
