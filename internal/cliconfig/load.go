// Package cliconfig loads a search.Config the way the teacher loads its
// own settings: an optional YAML file (src/deviceid.go's tocalls.yaml
// pattern: try a short list of candidate paths, yaml.Unmarshal into a
// struct) overridable by pflag command-line flags (src/appserver.go,
// src/kissutil.go's StringP/Float64P/BoolP-plus-custom-Usage pattern).
package cliconfig

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/doismellburning/sphinxgo/internal/search"
)

// fileConfig is the YAML on-disk shape; zero fields mean "not set, use
// the compiled-in default or whatever pflag produced".
type fileConfig struct {
	Beam              *float64 `yaml:"beam"`
	PhoneBeam         *float64 `yaml:"pbeam"`
	WordBeam          *float64 `yaml:"wbeam"`
	LastPhoneBeam     *float64 `yaml:"lpbeam"`
	LastPhoneOnlyBeam *float64 `yaml:"lponlybeam"`
	FwdflatBeam       *float64 `yaml:"fwdflatbeam"`
	FwdflatWordBeam   *float64 `yaml:"fwdflatwbeam"`

	MaxHmmPerFrame       *int `yaml:"maxhmmpf"`
	MaxWordExitsPerFrame *int `yaml:"maxwpf"`

	LanguageWeight         *float64 `yaml:"lw"`
	FwdflatLanguageWeight  *float64 `yaml:"fwdflatlw"`
	BestpathLanguageWeight *float64 `yaml:"bestpathlw"`

	EnableFwdtree  *bool `yaml:"fwdtree"`
	EnableFwdflat  *bool `yaml:"fwdflat"`
	EnableBestpath *bool `yaml:"bestpath"`

	CompAllSenones *bool `yaml:"compallsen"`
	SkipAlt        *bool `yaml:"skipalt"`

	FwdflatMinEndFrameWidth    *int `yaml:"fwdflatefwid"`
	FwdflatMaxStartFrameWindow *int `yaml:"fwdflatsfwin"`

	LatticeSize *int `yaml:"latsize"`

	Backtrace  *bool `yaml:"backtrace"`
	ReportPron *bool `yaml:"reportpron"`
}

// LoadYAML searches candidate paths in order (mirroring deviceid.go's
// "try a short list of likely locations") and merges the first one
// found onto base. A missing file at every candidate path is not an
// error; an unparsable file, or one with an unknown key, is.
func LoadYAML(base search.Config, candidates ...string) (search.Config, error) {
	for _, path := range candidates {
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return base, fmt.Errorf("cliconfig: reading %s: %w", path, err)
		}
		var fc fileConfig
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && err != io.EOF {
			return base, search.WrapConfigError(fmt.Errorf("cliconfig: parsing %s: %w", path, err))
		}
		fc.applyTo(&base)
		break
	}
	return base, nil
}

func (fc *fileConfig) applyTo(c *search.Config) {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	set(&c.Beam, fc.Beam)
	set(&c.PhoneBeam, fc.PhoneBeam)
	set(&c.WordBeam, fc.WordBeam)
	set(&c.LastPhoneBeam, fc.LastPhoneBeam)
	set(&c.LastPhoneOnlyBeam, fc.LastPhoneOnlyBeam)
	set(&c.FwdflatBeam, fc.FwdflatBeam)
	set(&c.FwdflatWordBeam, fc.FwdflatWordBeam)

	setInt(&c.MaxHmmPerFrame, fc.MaxHmmPerFrame)
	setInt(&c.MaxWordExitsPerFrame, fc.MaxWordExitsPerFrame)

	set(&c.LanguageWeight, fc.LanguageWeight)
	set(&c.FwdflatLanguageWeight, fc.FwdflatLanguageWeight)
	set(&c.BestpathLanguageWeight, fc.BestpathLanguageWeight)

	setBool(&c.EnableFwdtree, fc.EnableFwdtree)
	setBool(&c.EnableFwdflat, fc.EnableFwdflat)
	setBool(&c.EnableBestpath, fc.EnableBestpath)

	setBool(&c.CompAllSenones, fc.CompAllSenones)
	setBool(&c.SkipAlt, fc.SkipAlt)

	setInt(&c.FwdflatMinEndFrameWidth, fc.FwdflatMinEndFrameWidth)
	setInt(&c.FwdflatMaxStartFrameWindow, fc.FwdflatMaxStartFrameWindow)

	setInt(&c.LatticeSize, fc.LatticeSize)

	setBool(&c.Backtrace, fc.Backtrace)
	setBool(&c.ReportPron, fc.ReportPron)
}

// Flags is the pflag-backed override layer (appserver.go/kissutil.go's
// pattern): call RegisterFlags before pflag.Parse, then Apply after, to
// merge whatever the user passed on the command line onto cfg.
type Flags struct {
	beam, pbeam, wbeam               *float64
	lw, fwdflatlw, bestpathlw        *float64
	maxhmmpf, maxwpf                 *int
	fwdtree, fwdflat, bestpath       *bool
	compallsen, skipalt              *bool
	backtrace, reportpron            *bool
}

// RegisterFlags declares the CLI flags, following the teacher's
// StringP/Float64P/BoolP style.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	f.beam = fs.Float64("beam", 0, "Main HMM survival beam (0 < beam < 1); 0 means use the config/default.")
	f.pbeam = fs.Float64("pbeam", 0, "New-phone transition beam.")
	f.wbeam = fs.Float64("wbeam", 0, "Word-exit transition beam.")
	f.lw = fs.Float64("lw", 0, "Fwdtree language weight.")
	f.fwdflatlw = fs.Float64("fwdflatlw", 0, "Fwdflat language weight.")
	f.bestpathlw = fs.Float64("bestpathlw", 0, "Bestpath language weight.")
	f.maxhmmpf = fs.Int("maxhmmpf", 0, "Max HMMs evaluated per frame (-1 disables); 0 means use the config/default.")
	f.maxwpf = fs.Int("maxwpf", 0, "Max word exits recorded per frame (-1 unlimited); 0 means use the config/default.")
	f.fwdtree = fs.Bool("fwdtree", true, "Enable the fwdtree pass.")
	f.fwdflat = fs.Bool("fwdflat", true, "Enable the fwdflat pass.")
	f.bestpath = fs.Bool("bestpath", true, "Enable the bestpath pass.")
	f.compallsen = fs.Bool("compallsen", false, "Score every senone every frame; skip the active-set.")
	f.skipalt = fs.Bool("skipalt", false, "Skip word/phone-exit transitions on odd frames.")
	f.backtrace = fs.Bool("backtrace", false, "Log per-word backtrace detail.")
	f.reportpron = fs.Bool("reportpron", false, "Log pronunciation detail.")
	return f
}

// Apply merges parsed flag values onto cfg. Flags whose value is the
// registered default (0 for numbers, the declared default for booleans)
// are left untouched, so an unset flag never clobbers a YAML-file or
// compiled-in setting.
func (f *Flags) Apply(cfg *search.Config) {
	if *f.beam != 0 {
		cfg.Beam = *f.beam
	}
	if *f.pbeam != 0 {
		cfg.PhoneBeam = *f.pbeam
	}
	if *f.wbeam != 0 {
		cfg.WordBeam = *f.wbeam
	}
	if *f.lw != 0 {
		cfg.LanguageWeight = *f.lw
	}
	if *f.fwdflatlw != 0 {
		cfg.FwdflatLanguageWeight = *f.fwdflatlw
	}
	if *f.bestpathlw != 0 {
		cfg.BestpathLanguageWeight = *f.bestpathlw
	}
	if *f.maxhmmpf != 0 {
		cfg.MaxHmmPerFrame = *f.maxhmmpf
	}
	if *f.maxwpf != 0 {
		cfg.MaxWordExitsPerFrame = *f.maxwpf
	}
	// Booleans are applied only when they differ from their registered default.
	setBool := func(dst *bool, v *bool, def bool) {
		if *v != def {
			*dst = *v
		}
	}
	setBool(&cfg.EnableFwdtree, f.fwdtree, true)
	setBool(&cfg.EnableFwdflat, f.fwdflat, true)
	setBool(&cfg.EnableBestpath, f.bestpath, true)
	setBool(&cfg.CompAllSenones, f.compallsen, false)
	setBool(&cfg.SkipAlt, f.skipalt, false)
	setBool(&cfg.Backtrace, f.backtrace, false)
	setBool(&cfg.ReportPron, f.reportpron, false)
}
