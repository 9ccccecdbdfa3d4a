package refindex

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// Contig describes one sequence of the reference genome.
type Contig struct {
	Name            string
	Length          int64
	KaryotypeOrder  int
	MD5             string // optional, "" if absent from the metadata file.
}

// Metadata is the parsed contig table of a pre-indexed reference (spec §6
// "A metadata file enumerates contigs"). Contigs are retained in both
// declaration order (Contigs) and karyotype order (KaryotypeOrder), since
// the two differ for human-style references (chr1..chr22, X, Y, MT vs.
// lexical declaration order). binner.AssignBins lays out bins in contig-id
// (declaration) order and does not consult KaryotypeOrder.
type Metadata struct {
	Contigs        []Contig // declaration order; Contigs[i].id == i
	KaryotypeOrder []int    // contig ids, sorted by KaryotypeOrder
}

// ByName returns the contig id for name, or -1 if unknown.
func (m *Metadata) ByName(name string) int {
	for i, c := range m.Contigs {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ReadMetadata parses the reference's contig table: one tab-separated line
// per contig, "name\tlength\tkaryotypeOrder[\tmd5]". Malformed lines are
// fatal (spec §7 InvalidInput): the reference is a fixed external artifact,
// never repaired in place.
func ReadMetadata(ctx context.Context, path string) (*Metadata, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "refindex: open contig metadata %s", path)
	}
	defer in.Close(ctx)

	m := &Metadata{}
	scanner := bufio.NewScanner(in.Reader(ctx))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, errors.Errorf("refindex: %s:%d: expected at least 3 tab-separated fields, got %d", path, lineNo, len(fields))
		}
		length, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "refindex: %s:%d: bad contig length", path, lineNo)
		}
		order, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "refindex: %s:%d: bad karyotype order", path, lineNo)
		}
		c := Contig{Name: fields[0], Length: length, KaryotypeOrder: order}
		if len(fields) > 3 {
			c.MD5 = fields[3]
		}
		m.Contigs = append(m.Contigs, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "refindex: reading %s", path)
	}
	if len(m.Contigs) == 0 {
		return nil, errors.Errorf("refindex: %s: no contigs", path)
	}

	m.KaryotypeOrder = make([]int, len(m.Contigs))
	for i := range m.KaryotypeOrder {
		m.KaryotypeOrder[i] = i
	}
	// Stable insertion sort: the table is small (tens to low hundreds of
	// contigs), and stability keeps declaration-order ties deterministic.
	for i := 1; i < len(m.KaryotypeOrder); i++ {
		for j := i; j > 0 && m.Contigs[m.KaryotypeOrder[j-1]].KaryotypeOrder > m.Contigs[m.KaryotypeOrder[j]].KaryotypeOrder; j-- {
			m.KaryotypeOrder[j-1], m.KaryotypeOrder[j] = m.KaryotypeOrder[j], m.KaryotypeOrder[j-1]
		}
	}
	return m, nil
}
