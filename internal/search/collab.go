package search

// LanguageModel is the consumed language-model interface of §6: unigram,
// bigram and trigram log-probability queries plus vocabulary membership.
// All return values are in the same fixed-point log domain as the rest
// of the search (see config.go's logBeam).
type LanguageModel interface {
	Ug(w WordId) int32
	Bg(w1, w2 WordId) int32
	Tg(w1, w2, w3 WordId) int32
	KnownWid(w WordId) bool
}

// RCVariant describes one distinct last-phone right-context instance of a
// multi-phone word: the CI phone that forms the next word's left
// context, and the tied transition-matrix/senone-sequence ids to build
// its on-demand HMM (§3 "Last-phone channel").
type RCVariant struct {
	RC     CIPhone
	TmatID Tmat
	Ssid   Ssid
}

// Dictionary is the consumed dictionary interface of §6, extended with
// the per-word shape the tree builder and last-phone channel allocator
// need. Implementations are expected to be the `lexicon` package's
// Lexicon (§11), but the search core depends only on this interface.
type Dictionary interface {
	LexiconView

	StartWid() WordId
	EndWid() WordId
	SilWid() WordId
	NumWords() int

	IsSinglePhone(w WordId) bool
	FirstPhone(w WordId) CIPhone
	LastPhoneVariants(w WordId) []RCVariant
}
