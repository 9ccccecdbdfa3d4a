package refindex

import (
	"strings"

	"github.com/fenwick-bio/aligncore/encoding/fasta"
	"github.com/pkg/errors"
)

// SequenceSource adapts a fasta.Fasta (contig bases indexed by name) to
// lookup by the dense integer contig ids the rest of the pipeline uses
// (spec §3 ReferencePosition "contig id"), using Metadata for the id <->
// name mapping. Its consumers are the selector's candidate-alignment step
// and binbuild.Realign (SPEC_FULL.md §B wires encoding/fasta here).
type SequenceSource struct {
	meta *Metadata
	fa   fasta.Fasta
}

// NewSequenceSource pairs a parsed contig table with the FASTA accessor
// for the same reference. The caller is responsible for ensuring both
// describe the same reference build.
func NewSequenceSource(meta *Metadata, fa fasta.Fasta) *SequenceSource {
	return &SequenceSource{meta: meta, fa: fa}
}

// Fetch returns the upper-cased reference bases of contig id over the
// half-open interval [start, end), clamped to the contig's declared
// length. A contig id outside the metadata table is a programmer error
// (InconsistentState, spec §7), not a malformed-input condition, since
// contig ids only ever originate from this same Metadata.
func (s *SequenceSource) Fetch(contigID int, start, end int64) ([]byte, error) {
	if contigID < 0 || contigID >= len(s.meta.Contigs) {
		return nil, errors.Errorf("refindex: contig id %d out of range", contigID)
	}
	c := s.meta.Contigs[contigID]
	if end > c.Length {
		end = c.Length
	}
	if start < 0 || start > end {
		return nil, errors.Errorf("refindex: invalid fetch range [%d,%d) for contig %s", start, end, c.Name)
	}
	seq, err := s.fa.Get(c.Name, uint64(start), uint64(end))
	if err != nil {
		return nil, errors.Wrapf(err, "refindex: fetch %s:%d-%d", c.Name, start, end)
	}
	return []byte(strings.ToUpper(seq)), nil
}
