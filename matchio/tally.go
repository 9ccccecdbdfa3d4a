package matchio

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
)

type tallyKey struct {
	iteration, tile, barcode int
}

// Tally tracks the running match-record count per (iteration, tile,
// barcode), serialized verbatim into the workflow checkpoint (spec
// §4.3). It is safe for concurrent use.
type Tally struct {
	mu     sync.Mutex
	counts map[tallyKey]int64
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{counts: map[tallyKey]int64{}}
}

func (t *Tally) incr(iteration, tile, barcode int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[tallyKey{iteration, tile, barcode}]++
}

// Count returns the current count for (iteration, tile, barcode).
func (t *Tally) Count(iteration, tile, barcode int) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[tallyKey{iteration, tile, barcode}]
}

// TileTotal sums counts across all barcodes for (iteration, tile), used
// to verify the "sum of match records per (iteration, tile) equals the
// tally files' totals" invariant (spec §3, §8).
func (t *Tally) TileTotal(iteration, tile int) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total int64
	for k, v := range t.counts {
		if k.iteration == iteration && k.tile == tile {
			total += v
		}
	}
	return total
}

// Marshal serializes the tally deterministically: entries are sorted by
// key before encoding, so Marshal(Unmarshal(Marshal(t))) is byte-identical
// (spec §8 property 8, checkpoint idempotence).
func (t *Tally) Marshal() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]tallyKey, 0, len(t.counts))
	for k := range t.counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].iteration != keys[j].iteration {
			return keys[i].iteration < keys[j].iteration
		}
		if keys[i].tile != keys[j].tile {
			return keys[i].tile < keys[j].tile
		}
		return keys[i].barcode < keys[j].barcode
	})

	buf := make([]byte, 8+len(keys)*32)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(keys)))
	off := 8
	for _, k := range keys {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(k.iteration))
		binary.LittleEndian.PutUint64(buf[off+8:off+16], uint64(k.tile))
		binary.LittleEndian.PutUint64(buf[off+16:off+24], uint64(k.barcode))
		binary.LittleEndian.PutUint64(buf[off+24:off+32], uint64(t.counts[k]))
		off += 32
	}
	return buf
}

// UnmarshalTally decodes a Tally previously produced by Marshal.
func UnmarshalTally(buf []byte) (*Tally, error) {
	if len(buf) < 8 {
		return nil, errors.E(errors.Invalid, "matchio: truncated tally header")
	}
	n := binary.LittleEndian.Uint64(buf[0:8])
	want := 8 + int(n)*32
	if len(buf) != want {
		return nil, errors.E(errors.Invalid, "matchio: tally length mismatch")
	}
	t := NewTally()
	off := 8
	for i := uint64(0); i < n; i++ {
		k := tallyKey{
			iteration: int(binary.LittleEndian.Uint64(buf[off : off+8])),
			tile:      int(binary.LittleEndian.Uint64(buf[off+8 : off+16])),
			barcode:   int(binary.LittleEndian.Uint64(buf[off+16 : off+24])),
		}
		t.counts[k] = int64(binary.LittleEndian.Uint64(buf[off+24 : off+32]))
		off += 32
	}
	return t, nil
}
