// Command sphinxgo drives the fwdtree/fwdflat/bestpath search engine
// over a precomputed senone-score file, the way cmd/direwolf wires a
// top-level logger and configuration for the whole process: parse
// flags, load the YAML config, build the collaborators, build the
// Decoder, drive it frame-by-frame, and print the result.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/doismellburning/sphinxgo/internal/asrmodel"
	"github.com/doismellburning/sphinxgo/internal/cliconfig"
	"github.com/doismellburning/sphinxgo/internal/lexicon"
	"github.com/doismellburning/sphinxgo/internal/lm"
	"github.com/doismellburning/sphinxgo/internal/search"
)

func main() {
	modelPath := pflag.StringP("model", "m", "", "Path to the acoustic model YAML fixture (required).")
	dictPath := pflag.StringP("dict", "d", "", "Path to the pronunciation dictionary text file (required).")
	lmPath := pflag.StringP("lm", "l", "", "Path to the language model text file (required).")
	senscrPath := pflag.StringP("senscr", "s", "", "Path to the per-frame senone score matrix (required).")
	configPath := pflag.StringP("config", "c", "", "Optional YAML file overriding decoder defaults.")
	latOut := pflag.String("dump-lattice", "", "If set, write the fwdtree lattice to this path.")
	verbose := pflag.BoolP("verbose", "v", false, "Debug-level logging.")
	help := pflag.Bool("help", false, "Display help text.")

	flags := cliconfig.RegisterFlags(pflag.CommandLine)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: sphinxgo -m model.yaml -d dict.txt -l lm.txt -s utt.senscr\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return
	}
	if *modelPath == "" || *dictPath == "" || *lmPath == "" || *senscrPath == "" {
		pflag.Usage()
		os.Exit(1)
	}

	logger := log.New(os.Stderr)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg := search.DefaultConfig()
	var candidates []string
	if *configPath != "" {
		candidates = []string{*configPath}
	}
	cfg, err := cliconfig.LoadYAML(cfg, candidates...)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}
	flags.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", "err", err)
	}

	model, err := asrmodel.LoadTextAcousticModel(*modelPath)
	if err != nil {
		logger.Fatal("loading acoustic model", "err", err)
	}

	dict := lexicon.New()
	for _, p := range model.CIPhones {
		dict.AddPhone(p)
	}
	dictFile, err := os.Open(*dictPath)
	if err != nil {
		logger.Fatal("opening dictionary", "err", err)
	}
	defer dictFile.Close()
	if err := dict.LoadText(dictFile, "<s>", "</s>", "<sil>"); err != nil {
		logger.Fatal("loading dictionary", "err", err)
	}

	languageModel := lm.New()
	lmFile, err := os.Open(*lmPath)
	if err != nil {
		logger.Fatal("opening language model", "err", err)
	}
	defer lmFile.Close()
	if err := languageModel.LoadText(lmFile); err != nil {
		logger.Fatal("loading language model", "err", err)
	}

	senscrFile, err := os.Open(*senscrPath)
	if err != nil {
		logger.Fatal("opening senone scores", "err", err)
	}
	defer senscrFile.Close()
	scorer, err := asrmodel.LoadTextSenoneScorer(senscrFile)
	if err != nil {
		logger.Fatal("loading senone scores", "err", err)
	}

	tree := buildTree(model, dict)

	dec, err := search.NewDecoder(model.Context(), tree, dict, languageModel, cfg, logger)
	if err != nil {
		logger.Fatal("building decoder", "err", err)
	}
	if err := dec.Start(); err != nil {
		logger.Fatal("starting utterance", "err", err)
	}

	for f := 0; f < scorer.NumFrames(); f++ {
		senscr, err := scorer.Score(f)
		if err != nil {
			logger.Fatal("reading frame", "err", err)
		}
		if err := dec.Frame(senscr); err != nil {
			logger.Fatal("processing frame", "frame", f, "err", err)
		}
	}

	hyp, err := dec.Finish()
	if err != nil && !search.IsKind(err, search.NoTerminalState) && !search.IsKind(err, search.ShortUtterance) {
		logger.Fatal("finishing utterance", "err", err)
	} else if err != nil {
		logger.Warn(err.Error())
	}

	fmt.Println(hypString(hyp, dict))

	if *latOut != "" {
		dag := search.BuildLattice(dec.BPT(), dict, languageModel, cfg)
		out, err := os.Create(*latOut)
		if err != nil {
			logger.Fatal("creating lattice dump", "err", err)
		}
		defer out.Close()
		if err := search.DumpLattice(out, dag, hyp.FramesDecoded, dict.WordString); err != nil {
			logger.Fatal("dumping lattice", "err", err)
		}
	}
}

func hypString(hyp *search.Hypothesis, dict *lexicon.Lexicon) string {
	if hyp == nil {
		return ""
	}
	s := ""
	for i, w := range hyp.Words {
		if i > 0 {
			s += " "
		}
		s += dict.WordString(w)
	}
	return s
}

// buildTree constructs the fwdtree lexical tree for every word the
// dictionary knows, single-phone words going into the flat table and
// multi-phone words into the prefix-sharing tree (§4.D).
func buildTree(model *asrmodel.TextAcousticModel, dict *lexicon.Lexicon) *search.Tree {
	silCtx := search.NoCIPhone
	if sp := dict.Phones(dict.SilWid()); len(sp) > 0 {
		silCtx = sp[len(sp)-1]
	}

	t := search.NewTree(model.Context())
	for wid := search.WordId(0); int(wid) < dict.NumWords(); wid++ {
		phones := dict.Phones(wid)
		if len(phones) == 0 {
			continue
		}
		if len(phones) == 1 {
			variants := dict.LastPhoneVariants(wid)
			if len(variants) == 0 {
				continue
			}
			t.AddSinglePhoneWord(wid, variants[0].TmatID, variants[0].Ssid)
			continue
		}
		tmatIDs := make([]search.Tmat, len(phones))
		ssids := make([]search.Ssid, len(phones))
		for i, p := range phones {
			tmatIDs[i] = search.Tmat(p)
			ssids[i] = search.Ssid(p)
		}
		t.AddWord(search.WordSpec{
			Wid:     wid,
			Phones:  phones,
			TmatID:  tmatIDs,
			Ssid:    ssids,
			LeftCtx: silCtx,
		})
	}
	return t
}
