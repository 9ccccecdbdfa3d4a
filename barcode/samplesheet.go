package barcode

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// SampleSheet is a per-(flowcell, lane) table mapping barcode sequences to
// samples (spec §6 "Sample sheet. Per-barcode record (flowcell, lane,
// barcode sequence possibly hyphen-separated for multi-component, sample,
// project, reference, adapters)"). Sample index 0 is reserved for
// "unknown" within each lane and is never assigned by a sample sheet row.
type SampleSheet struct {
	Rows []Row
}

// Row is one sample sheet entry. Barcode holds each component verbatim
// (e.g. "ACGTACGT-TGCATGCA" for dual indexing); components are split on
// '-' by Components().
type Row struct {
	Flowcell string
	Lane     int
	Barcode  string
	Sample   int
	Project  string
	Ref      string
	Adapters []string
}

// Components splits a (possibly multi-component) barcode string on '-'.
func (r Row) Components() []string { return strings.Split(r.Barcode, "-") }

// ReadSampleSheet parses a tab-separated sample sheet:
// flowcell\tlane\tbarcode\tsample\tproject\treference\tadapters(csv)
func ReadSampleSheet(ctx context.Context, path string) (*SampleSheet, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "barcode: open sample sheet %s", path)
	}
	defer f.Close(ctx)

	ss := &SampleSheet{}
	scanner := bufio.NewScanner(f.Reader(ctx))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 6 {
			return nil, errors.Errorf("barcode: %s:%d: expected at least 6 fields, got %d", path, lineNo, len(fields))
		}
		lane, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "barcode: %s:%d: bad lane", path, lineNo)
		}
		sample, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, errors.Wrapf(err, "barcode: %s:%d: bad sample index", path, lineNo)
		}
		if sample == 0 {
			return nil, errors.Errorf("barcode: %s:%d: sample index 0 is reserved for 'unknown'", path, lineNo)
		}
		row := Row{
			Flowcell: fields[0],
			Lane:     lane,
			Barcode:  fields[2],
			Sample:   sample,
			Project:  fields[4],
			Ref:      fields[5],
		}
		if len(fields) > 6 && fields[6] != "" {
			row.Adapters = strings.Split(fields[6], ",")
		}
		ss.Rows = append(ss.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "barcode: reading %s", path)
	}
	return ss, nil
}

// ForLane returns the rows belonging to (flowcell, lane).
func (s *SampleSheet) ForLane(flowcell string, lane int) []Row {
	var out []Row
	for _, r := range s.Rows {
		if r.Flowcell == flowcell && r.Lane == lane {
			out = append(out, r)
		}
	}
	return out
}
