package workflow

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/minio/highwayhash"

	"github.com/grailbio/base/errors"

	"github.com/fenwick-bio/aligncore/binner"
	"github.com/fenwick-bio/aligncore/cluster"
	"github.com/fenwick-bio/aligncore/matchio"
)

// digestKey is the fixed all-zero highwayhash key used to stamp a
// checksum into each checkpoint, matching fusion/postprocess.go's use of
// a zero seed for a content-addressing digest rather than a secret MAC.
var digestKey [highwayhash.Size]byte

// Checkpoint is everything the workflow controller persists between
// stages so a run can resume (spec §4.7, §6 "A checkpoint file encoding
// workflow state, tile list, match tally, bin list, and output file
// mapping").
type Checkpoint struct {
	State      State
	Tiles      []cluster.TileID
	Tally      *matchio.Tally
	Bins       []binner.Bin
	BamMapping map[string]string // decimal bin ID -> block-compressed ".out" output path
}

func putString(buf *bytes.Buffer, s string) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

func readString(r io.Reader) (string, error) {
	var n [8]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", err
	}
	l := binary.LittleEndian.Uint64(n[:])
	b := make([]byte, l)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Marshal encodes the checkpoint deterministically: tiles are written in
// the order given (the controller always stores them pre-sorted), and
// BamMapping keys are sorted before encoding, so Marshal is idempotent
// under save/load/save (spec §8 property 8).
func (c *Checkpoint) Marshal() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(c.State))

	var n8 [8]byte
	binary.LittleEndian.PutUint64(n8[:], uint64(len(c.Tiles)))
	buf.Write(n8[:])
	for _, t := range c.Tiles {
		putString(&buf, t.Flowcell)
		binary.LittleEndian.PutUint64(n8[:], uint64(t.Lane))
		buf.Write(n8[:])
		binary.LittleEndian.PutUint64(n8[:], uint64(t.Tile))
		buf.Write(n8[:])
	}

	var tallyBytes []byte
	if c.Tally != nil {
		tallyBytes = c.Tally.Marshal()
	}
	binary.LittleEndian.PutUint64(n8[:], uint64(len(tallyBytes)))
	buf.Write(n8[:])
	buf.Write(tallyBytes)

	binary.LittleEndian.PutUint64(n8[:], uint64(len(c.Bins)))
	buf.Write(n8[:])
	for _, b := range c.Bins {
		binary.LittleEndian.PutUint64(n8[:], uint64(int64(b.ID)))
		buf.Write(n8[:])
		binary.LittleEndian.PutUint64(n8[:], uint64(int64(b.ContigID)))
		buf.Write(n8[:])
		binary.LittleEndian.PutUint64(n8[:], uint64(b.Start))
		buf.Write(n8[:])
		binary.LittleEndian.PutUint64(n8[:], uint64(b.End))
		buf.Write(n8[:])
	}

	keys := make([]string, 0, len(c.BamMapping))
	for k := range c.BamMapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	binary.LittleEndian.PutUint64(n8[:], uint64(len(keys)))
	buf.Write(n8[:])
	for _, k := range keys {
		putString(&buf, k)
		putString(&buf, c.BamMapping[k])
	}

	digest := highwayhash.Sum(buf.Bytes(), digestKey[:])
	buf.Write(digest[:])
	return buf.Bytes()
}

// UnmarshalCheckpoint decodes a Checkpoint previously produced by
// Marshal, verifying the trailing digest so a truncated or corrupted
// checkpoint is rejected rather than silently mis-parsed (spec §7
// InvalidInput: "malformed on-disk formats").
func UnmarshalCheckpoint(data []byte) (*Checkpoint, error) {
	if len(data) < highwayhash.Size {
		return nil, errors.E(errors.Invalid, "workflow: truncated checkpoint")
	}
	body, wantDigest := data[:len(data)-highwayhash.Size], data[len(data)-highwayhash.Size:]
	gotDigest := highwayhash.Sum(body, digestKey[:])
	if !bytes.Equal(gotDigest, wantDigest) {
		return nil, errors.E(errors.Invalid, "workflow: checkpoint digest mismatch")
	}

	r := bytes.NewReader(body)
	stateByte, err := r.ReadByte()
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "workflow: read checkpoint state")
	}
	c := &Checkpoint{State: State(stateByte), BamMapping: map[string]string{}}

	var n8 [8]byte
	readN := func() (uint64, error) {
		if _, err := io.ReadFull(r, n8[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(n8[:]), nil
	}

	nTiles, err := readN()
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "workflow: read tile count")
	}
	for i := uint64(0); i < nTiles; i++ {
		flowcell, err := readString(r)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "workflow: read tile flowcell")
		}
		lane, err := readN()
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "workflow: read tile lane")
		}
		tile, err := readN()
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "workflow: read tile id")
		}
		c.Tiles = append(c.Tiles, cluster.TileID{Flowcell: flowcell, Lane: int(lane), Tile: int(tile)})
	}

	tallyLen, err := readN()
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "workflow: read tally length")
	}
	if tallyLen > 0 {
		tallyBytes := make([]byte, tallyLen)
		if _, err := io.ReadFull(r, tallyBytes); err != nil {
			return nil, errors.E(errors.Invalid, err, "workflow: read tally")
		}
		tally, err := matchio.UnmarshalTally(tallyBytes)
		if err != nil {
			return nil, err
		}
		c.Tally = tally
	}

	nBins, err := readN()
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "workflow: read bin count")
	}
	for i := uint64(0); i < nBins; i++ {
		id, err := readN()
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "workflow: read bin id")
		}
		contigID, err := readN()
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "workflow: read bin contig")
		}
		start, err := readN()
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "workflow: read bin start")
		}
		end, err := readN()
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "workflow: read bin end")
		}
		c.Bins = append(c.Bins, binner.Bin{ID: int(int64(id)), ContigID: int(int64(contigID)), Start: int64(start), End: int64(end)})
	}

	nMap, err := readN()
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "workflow: read bam mapping count")
	}
	for i := uint64(0); i < nMap; i++ {
		k, err := readString(r)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "workflow: read bam mapping key")
		}
		v, err := readString(r)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "workflow: read bam mapping value")
		}
		c.BamMapping[k] = v
	}
	return c, nil
}

