package search

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// dumpTimestampFormat mirrors tq.go/xmit.go's strftime-formatted save
// filename: a human-readable generation stamp on the lattice dump, not
// parsed back by LoadLattice (a "#"-prefixed line is a comment).
const dumpTimestampFormat = "%Y-%m-%d %H:%M:%S"

// DumpLattice persists dag in the text format named by §6/§12: a header
// line with frame and node counts, one "(nodeid word sf fef lef ascr)"
// line per node, Initial/Final markers, then one "(from to ascr)" line
// per edge. wordOf resolves a WordId to its printable form. Each node's
// ascr is carried so a reload can reproduce RescoreBestPath's
// final_node_ascr termination bonus exactly.
func DumpLattice(w io.Writer, dag *Dag, frameCount int32, wordOf func(WordId) string) error {
	bw := bufio.NewWriter(w)
	if stamp, err := strftime.Format(dumpTimestampFormat, time.Now()); err == nil {
		if _, err := fmt.Fprintf(bw, "# generated %s\n", stamp); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(bw, "Frames %d\nNodes %d\n", frameCount, len(dag.Nodes)); err != nil {
		return err
	}
	for i, n := range dag.Nodes {
		if _, err := fmt.Fprintf(bw, "(%d %s %d %d %d %d)\n", i, wordOf(n.Wid), n.Sf, n.Fef, n.Lef, n.Ascr); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(bw, "Initial %d\nFinal %d\n", dag.Initial, dag.Final); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "Edges %d\n", len(dag.Links)); err != nil {
		return err
	}
	for _, l := range dag.Links {
		if _, err := fmt.Fprintf(bw, "(%d %d %d)\n", l.From, l.To, l.LinkScr); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadLattice reverses DumpLattice. wordOf's inverse, wordFrom, maps a
// printed word back to its WordId.
func LoadLattice(r io.Reader, wordFrom func(string) WordId) (*Dag, int32, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	readKV := func(expect string) (int, error) {
		for sc.Scan() {
			line := sc.Text()
			if strings.HasPrefix(line, "#") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) != 2 || fields[0] != expect {
				return 0, fmt.Errorf("expected %q line, got %q", expect, line)
			}
			return strconv.Atoi(fields[1])
		}
		return 0, fmt.Errorf("unexpected EOF reading %s", expect)
	}

	frames, err := readKV("Frames")
	if err != nil {
		return nil, 0, err
	}
	nNodes, err := readKV("Nodes")
	if err != nil {
		return nil, 0, err
	}

	dag := &Dag{}
	for i := 0; i < nNodes; i++ {
		if !sc.Scan() {
			return nil, 0, fmt.Errorf("unexpected EOF reading node %d", i)
		}
		line := strings.Trim(sc.Text(), "()")
		fields := strings.Fields(line)
		if len(fields) != 6 {
			return nil, 0, fmt.Errorf("malformed node line %q", sc.Text())
		}
		sf, _ := strconv.Atoi(fields[2])
		fef, _ := strconv.Atoi(fields[3])
		lef, _ := strconv.Atoi(fields[4])
		ascr, _ := strconv.Atoi(fields[5])
		dag.Nodes = append(dag.Nodes, LatNode{
			Wid: wordFrom(fields[1]),
			Sf:  int32(sf), Fef: int32(fef), Lef: int32(lef), Ascr: int32(ascr),
		})
	}

	initial, err := readKV("Initial")
	if err != nil {
		return nil, 0, err
	}
	final, err := readKV("Final")
	if err != nil {
		return nil, 0, err
	}
	dag.Initial, dag.Final = int32(initial), int32(final)

	nEdges, err := readKV("Edges")
	if err != nil {
		return nil, 0, err
	}
	for i := 0; i < nEdges; i++ {
		if !sc.Scan() {
			return nil, 0, fmt.Errorf("unexpected EOF reading edge %d", i)
		}
		line := strings.Trim(sc.Text(), "()")
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, 0, fmt.Errorf("malformed edge line %q", sc.Text())
		}
		from, _ := strconv.Atoi(fields[0])
		to, _ := strconv.Atoi(fields[1])
		ascr, _ := strconv.Atoi(fields[2])
		dag.Links = append(dag.Links, DagLink{From: int32(from), To: int32(to), LinkScr: int32(ascr)})
	}

	rebuildAdjacency(dag)
	return dag, int32(frames), sc.Err()
}
