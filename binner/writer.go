package binner

import (
	"context"
	"regexp"
	"sync"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// bufferFlushThreshold bounds how much a per-bin buffer accumulates
// before being drained synchronously (spec §4.5 "when the buffer fills
// it is drained synchronously").
const bufferFlushThreshold = 1 << 20 // 1 MiB

// FragmentWriter buffers one bin's fragment bytes and flushes them,
// snappy-compressed, to the bin's backing file once the buffer fills or
// Close is called. One FragmentWriter exists per bin and is used by
// exactly one worker thread at a time (spec §4.5 "each worker thread
// writes fragments destined for one bin").
type FragmentWriter struct {
	f   file.File
	w   *snappy.Writer
	buf []byte
}

// NewFragmentWriter creates (truncating) the bin file at path.
func NewFragmentWriter(ctx context.Context, path string) (*FragmentWriter, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "binner: create bin file", path)
	}
	return &FragmentWriter{f: f, w: snappy.NewBufferedWriter(f.Writer(ctx))}, nil
}

// Write appends one fragment's serialized bytes, draining the buffer
// first if this write would exceed bufferFlushThreshold.
func (w *FragmentWriter) Write(ctx context.Context, data []byte) error {
	if len(w.buf)+len(data) > bufferFlushThreshold {
		if err := w.flush(); err != nil {
			return err
		}
	}
	w.buf = append(w.buf, data...)
	return nil
}

func (w *FragmentWriter) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	if _, err := w.w.Write(w.buf); err != nil {
		return errors.E(errors.Temporary, err, "binner: write bin buffer")
	}
	w.buf = w.buf[:0]
	return nil
}

// Close flushes any remaining buffered bytes and closes the bin file.
func (w *FragmentWriter) Close(ctx context.Context) error {
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.w.Close(); err != nil {
		return errors.E(errors.Temporary, err, "binner: close snappy writer")
	}
	return w.f.Close(ctx)
}

// WriterSet owns one FragmentWriter per live bin plus the unaligned
// bin, opening them lazily and closing them all together.
type WriterSet struct {
	mu      sync.Mutex
	ctx     context.Context
	dir     string
	open    map[int]*FragmentWriter
	newPath func(binID int) string
}

// NewWriterSet prepares a lazily-opening set of per-bin writers rooted
// at dir, naming each bin's file via newPath.
func NewWriterSet(ctx context.Context, dir string, newPath func(binID int) string) *WriterSet {
	return &WriterSet{ctx: ctx, dir: dir, open: map[int]*FragmentWriter{}, newPath: newPath}
}

// WriteFragment appends data to the writer for binID (UnalignedBinID
// included), opening it on first use.
func (s *WriterSet) WriteFragment(binID int, data []byte) error {
	s.mu.Lock()
	w, ok := s.open[binID]
	if !ok {
		var err error
		w, err = NewFragmentWriter(s.ctx, s.newPath(binID))
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.open[binID] = w
	}
	s.mu.Unlock()
	return w.Write(s.ctx, data)
}

// Close closes every writer opened so far, returning the first error
// encountered (spec §7 "workers capture the first exception").
func (s *WriterSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, w := range s.open {
		if err := w.Close(s.ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FilterBins applies a caller-supplied merge/drop policy to bins by
// contig name (spec §4.5 "optionally merged or dropped by a
// caller-supplied regex"). dropPattern removes bins whose contig name
// matches; mergePattern coalesces consecutive matching bins on the same
// contig into one.
func FilterBins(bins []Bin, contigName func(int) string, dropPattern, mergePattern *regexp.Regexp) []Bin {
	var kept []Bin
	for _, b := range bins {
		if dropPattern != nil && dropPattern.MatchString(contigName(b.ContigID)) {
			continue
		}
		kept = append(kept, b)
	}
	if mergePattern == nil {
		return kept
	}

	var merged []Bin
	for _, b := range kept {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.ContigID == b.ContigID && last.End == b.Start && mergePattern.MatchString(contigName(b.ContigID)) {
				last.End = b.End
				continue
			}
		}
		merged = append(merged, b)
	}
	return merged
}
