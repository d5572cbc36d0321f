package search

import "math"

// Config is the typed configuration struct referenced by the design notes
// ("configuration flows through a typed config struct, not a name-keyed
// bag"). Every field corresponds to one of the recognized options listed
// in the external-interfaces section of the specification. Beams are
// accepted from the caller as probabilities in (0,1) and converted to
// log-domain thresholds by NewDecoder (logBeam/logBeams); internally the
// search only ever compares log-domain integers.
type Config struct {
	// Beam is the main per-frame HMM survival beam, 0 < Beam < 1.
	Beam float64
	// PhoneBeam ("pbeam") gates new-phone transitions out of a surviving HMM.
	PhoneBeam float64
	// WordBeam ("wbeam") gates word-exit transitions.
	WordBeam float64
	// LastPhoneBeam ("lpbeam") gates transitions into a last-phone (right-context) HMM.
	LastPhoneBeam float64
	// LastPhoneOnlyBeam ("lponlybeam") gates whether a last-phone-alone
	// candidate is instantiated at all.
	LastPhoneOnlyBeam float64

	// FwdflatBeam and FwdflatWordBeam are the tighter second-pass beams.
	FwdflatBeam     float64
	FwdflatWordBeam float64

	// MaxHmmPerFrame ("maxhmmpf") hard-caps HMM evaluations per frame; -1 disables.
	MaxHmmPerFrame int
	// MaxWordExitsPerFrame ("maxwpf") hard-caps word exits recorded per frame.
	MaxWordExitsPerFrame int

	// LanguageWeight ("lw"), FwdflatLanguageWeight ("fwdflatlw") and
	// BestpathLanguageWeight ("bestpathlw") scale LM log-probabilities
	// relative to acoustic scores, per pass.
	LanguageWeight         float64
	FwdflatLanguageWeight  float64
	BestpathLanguageWeight float64

	// Word/silence/filler/phone/new-word insertion penalties, already in
	// log domain (i.e. additive, not multiplicative probabilities).
	WordInsertionPenalty   int32 // wip
	SilenceWordPenalty     int32 // silpen
	FillerWordPenalty      int32 // fillpen
	PhoneInsertionPenalty  int32 // pip
	NewWordPenalty         int32 // nwpen

	// Pass-enable booleans.
	EnableFwdtree  bool
	EnableFwdflat  bool
	EnableBestpath bool

	// CompAllSenones, when true, skips the active-senone set and scores
	// every senone every frame.
	CompAllSenones bool

	// SkipAlt, when true, skips word-exit/phone-exit transitions on odd
	// frames as a speed/accuracy trade-off. The spec notes (§9, open
	// questions) that no invariant establishes that skipalt=1 results are
	// a strict subset of skipalt=0; this is preserved verbatim as an
	// approximate mode rather than "fixed".
	SkipAlt bool

	// FwdflatMinEndFrameWidth ("fwdflatefwid") and FwdflatMaxStartFrameWindow
	// ("fwdflatsfwin") gate which first-pass words are admitted to the
	// second-pass word list, and how far forward a successor may start.
	FwdflatMinEndFrameWidth int
	FwdflatMaxStartFrameWindow int

	// LatticeSize ("latsize") is the initial BPT capacity.
	LatticeSize int

	// Backtrace and ReportPron are diagnostic-output controls. They are
	// carried here and set by the config loaders; the Decoder does not
	// read them.
	Backtrace  bool
	ReportPron bool
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		Beam:              1e-48,
		PhoneBeam:         1e-40,
		WordBeam:          1e-35,
		LastPhoneBeam:     1e-40,
		LastPhoneOnlyBeam: 1e-30,

		FwdflatBeam:     1e-44,
		FwdflatWordBeam: 1e-30,

		MaxHmmPerFrame:       30000,
		MaxWordExitsPerFrame: -1,

		LanguageWeight:         6.5,
		FwdflatLanguageWeight:  8.5,
		BestpathLanguageWeight: 6.5,

		WordInsertionPenalty:  logPenalty(0.65),
		SilenceWordPenalty:    logPenalty(0.005),
		FillerWordPenalty:     logPenalty(1e-8),
		PhoneInsertionPenalty: logPenalty(1.0),
		NewWordPenalty:        logPenalty(1.0),

		EnableFwdtree:  true,
		EnableFwdflat:  true,
		EnableBestpath: true,

		CompAllSenones: false,
		SkipAlt:        false,

		FwdflatMinEndFrameWidth:    4,
		FwdflatMaxStartFrameWindow: 25,

		LatticeSize: 32768,

		Backtrace:  false,
		ReportPron: false,
	}
}

// logPenalty converts a linear-domain insertion penalty in (0,1] to the
// same fixed-point log domain used for beams (see logBeam).
func logPenalty(p float64) int32 {
	return logBeam(p)
}

// logBeam converts a probability in (0,1] to a log-domain integer score
// using the same natural-log, 1<<10 fixed-point scale as the rest of the
// search's score arithmetic (so that beam thresholds and senone/LM scores
// are directly comparable and summable).
func logBeam(p float64) int32 {
	if p <= 0 {
		return WorstScore
	}
	v := math.Log(p) * fixedPointScale
	if v < float64(WorstScore) {
		return WorstScore
	}
	return int32(v)
}

// fixedPointScale is the natural-log-to-fixed-point conversion factor
// shared by beams, penalties, and externally supplied senone/LM scores.
const fixedPointScale = 1 << 10

// Validate checks every numeric option is within its documented range and
// returns a ConfigError describing the first violation found, or nil.
func (c *Config) Validate() error {
	type rangeCheck struct {
		name string
		v    float64
		lo   float64
		hi   float64
	}
	checks := []rangeCheck{
		{"beam", c.Beam, 0, 1},
		{"pbeam", c.PhoneBeam, 0, 1},
		{"wbeam", c.WordBeam, 0, 1},
		{"lpbeam", c.LastPhoneBeam, 0, 1},
		{"lponlybeam", c.LastPhoneOnlyBeam, 0, 1},
		{"fwdflatbeam", c.FwdflatBeam, 0, 1},
		{"fwdflatwbeam", c.FwdflatWordBeam, 0, 1},
	}
	for _, rc := range checks {
		if rc.v <= rc.lo || rc.v > rc.hi {
			return newError(ConfigError, "%s must be in (0,1], got %g", rc.name, rc.v)
		}
	}
	if c.LanguageWeight < 0 || c.FwdflatLanguageWeight < 0 || c.BestpathLanguageWeight < 0 {
		return newError(ConfigError, "language weights must be non-negative")
	}
	if c.MaxWordExitsPerFrame == 0 {
		return newError(ConfigError, "maxwpf must be -1 (unlimited) or positive, got 0")
	}
	if c.FwdflatMinEndFrameWidth < 0 {
		return newError(ConfigError, "fwdflatefwid must be non-negative")
	}
	if c.FwdflatMaxStartFrameWindow <= 0 {
		return newError(ConfigError, "fwdflatsfwin must be positive")
	}
	if c.LatticeSize <= 0 {
		return newError(ConfigError, "latsize must be positive")
	}
	return nil
}

// logBeams returns the log-domain (fixed-point) thresholds for the main,
// phone, and word beams, mirroring search_get_logbeams's (b, pb, wb) triple.
func (c *Config) logBeams() (beam, phoneBeam, wordBeam int32) {
	return logBeam(c.Beam), logBeam(c.PhoneBeam), logBeam(c.WordBeam)
}
