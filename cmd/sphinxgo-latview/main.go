// Command sphinxgo-latview loads a dumped lattice (search.LoadLattice),
// re-applies bestpath trigram rescoring over it, and prints the
// resulting word sequence and score — exercising the round-trip of the
// lattice dump format independently of a live decode.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/doismellburning/sphinxgo/internal/lexicon"
	"github.com/doismellburning/sphinxgo/internal/lm"
	"github.com/doismellburning/sphinxgo/internal/search"
)

func main() {
	latPath := pflag.StringP("lattice", "f", "", "Path to a lattice dumped by sphinxgo --dump-lattice (required).")
	dictPath := pflag.StringP("dict", "d", "", "Path to the pronunciation dictionary text file (required).")
	lmPath := pflag.StringP("lm", "l", "", "Path to the language model text file (required).")
	lw := pflag.Float64("bestpathlw", 6.5, "Bestpath language weight.")
	help := pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: sphinxgo-latview -f utt.lat -d dict.txt -l lm.txt\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return
	}
	if *latPath == "" || *dictPath == "" || *lmPath == "" {
		pflag.Usage()
		os.Exit(1)
	}

	dict := lexicon.New()
	dictFile, err := os.Open(*dictPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "opening dictionary:", err)
		os.Exit(1)
	}
	defer dictFile.Close()
	if err := dict.LoadText(dictFile, "<s>", "</s>", "<sil>"); err != nil {
		fmt.Fprintln(os.Stderr, "loading dictionary:", err)
		os.Exit(1)
	}

	languageModel := lm.New()
	lmFile, err := os.Open(*lmPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "opening language model:", err)
		os.Exit(1)
	}
	defer lmFile.Close()
	if err := languageModel.LoadText(lmFile); err != nil {
		fmt.Fprintln(os.Stderr, "loading language model:", err)
		os.Exit(1)
	}

	latFile, err := os.Open(*latPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "opening lattice:", err)
		os.Exit(1)
	}
	defer latFile.Close()

	dag, _, err := search.LoadLattice(latFile, dict.WordId)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading lattice:", err)
		os.Exit(1)
	}

	cfg := search.DefaultConfig()
	cfg.BestpathLanguageWeight = *lw

	bp, err := search.RescoreBestPath(dag, dict, languageModel, cfg, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rescoring:", err)
		os.Exit(1)
	}

	for i, n := range bp.Nodes {
		if i > 0 {
			fmt.Print(" ")
		}
		fmt.Print(dict.WordString(dag.Nodes[n].Wid))
	}
	fmt.Println()
	fmt.Fprintln(os.Stderr, "score:", bp.Score)
}
