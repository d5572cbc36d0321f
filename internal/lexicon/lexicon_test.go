package lexicon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/sphinxgo/internal/search"
)

func newSampleLexicon(t *testing.T) *Lexicon {
	t.Helper()
	l := New()
	for _, p := range []string{"SIL", "HH", "AH", "L", "OW"} {
		l.AddPhone(p)
	}
	const text = `<s> SIL
</s> SIL
<sil> SIL
hello HH AH L OW
hello(2) HH AH L
`
	require.NoError(t, l.LoadText(strings.NewReader(text), "<s>", "</s>", "<sil>"))
	return l
}

func Test_Lexicon_LoadText_resolvesBoundaryWords(t *testing.T) {
	l := newSampleLexicon(t)
	assert.Equal(t, l.WordId("<s>"), l.StartWid())
	assert.Equal(t, l.WordId("</s>"), l.EndWid())
	assert.Equal(t, l.WordId("<sil>"), l.SilWid())
}

func Test_Lexicon_LoadText_marksAngleBracketWordsAsFillers(t *testing.T) {
	l := newSampleLexicon(t)
	assert.True(t, l.IsFiller(l.WordId("<sil>")))
	assert.False(t, l.IsFiller(l.WordId("hello")))
}

func Test_Lexicon_LoadText_threadsAlternatePronunciations(t *testing.T) {
	l := newSampleLexicon(t)
	base := l.WordId("hello")
	alt := l.WordId("hello(2)")
	require.NotEqual(t, search.NoWordId, alt)
	assert.Equal(t, base, l.BaseWid(alt))
	assert.Equal(t, base, l.BaseWid(base), "a base word is its own BaseWid")
}

func Test_Lexicon_WordString_WordId_roundTrip(t *testing.T) {
	l := newSampleLexicon(t)
	wid := l.WordId("hello")
	assert.Equal(t, "hello", l.WordString(wid))
	assert.Equal(t, search.NoWordId, l.WordId("nonexistent"))
	assert.Equal(t, "<unk>", l.WordString(search.WordId(9999)))
}

func Test_Lexicon_Phones_andFirstPhone(t *testing.T) {
	l := newSampleLexicon(t)
	wid := l.WordId("hello")
	phones := l.Phones(wid)
	require.Len(t, phones, 4)
	assert.Equal(t, l.Phone("HH"), phones[0])
	assert.Equal(t, l.Phone("HH"), l.FirstPhone(wid))
}

func Test_Lexicon_IsSinglePhone(t *testing.T) {
	l := newSampleLexicon(t)
	assert.True(t, l.IsSinglePhone(l.WordId("<s>")))
	assert.False(t, l.IsSinglePhone(l.WordId("hello")))
}

func Test_Lexicon_buildRC_givesEveryWordTheSameDistinctRightContextSet(t *testing.T) {
	l := newSampleLexicon(t)
	hello := l.WordId("hello")
	variants := l.LastPhoneVariants(hello)
	assert.NotEmpty(t, variants)
	assert.Equal(t, len(variants), l.RCCount(hello))

	for i, v := range variants {
		assert.Equal(t, i, l.RCIndex(hello, v.RC))
	}

	end := l.WordId("</s>")
	assert.Equal(t, l.RCCount(hello), l.RCCount(end))
	for _, v := range variants {
		assert.Equal(t, l.RCIndex(hello, v.RC), l.RCIndex(end, v.RC))
	}
}

func Test_Lexicon_LoadText_rejectsUnknownPhone(t *testing.T) {
	l := New()
	l.AddPhone("SIL")
	err := l.LoadText(strings.NewReader("<s> SIL\n</s> SIL\nfoo ZZ\n"), "<s>", "</s>", "<sil>")
	require.Error(t, err)
}

func Test_Lexicon_LoadText_rejectsMissingBoundaryWords(t *testing.T) {
	l := New()
	l.AddPhone("SIL")
	err := l.LoadText(strings.NewReader("only SIL\n"), "<s>", "</s>", "<sil>")
	require.Error(t, err)
}

func Test_Lexicon_AddPhone_isIdempotent(t *testing.T) {
	l := New()
	a := l.AddPhone("AH")
	b := l.AddPhone("AH")
	assert.Equal(t, a, b)
	assert.Equal(t, search.NoCIPhone, l.Phone("ZZ"))
}
