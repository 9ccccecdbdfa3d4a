package alignpb

import "encoding/binary"

// MatchRecordSize is the fixed on-disk size of a MatchRecord: SeedId (8
// bytes) + ReferencePosition (8 bytes) + a farm-hash checksum of the first
// two fields (8 bytes), used by matchio to detect truncated or corrupted
// tile files without needing a separate sidecar (spec §4.3).
const MatchRecordSize = 24

// MatchRecord is the wire form of a single match emitted by the matcher
// (spec §3 "Match record"). The checksum is opaque to this package; see
// matchio for how it is computed and verified.
type MatchRecord struct {
	Seed     SeedId
	Ref      ReferencePosition
	Checksum uint64
}

// Marshal writes the record's 24-byte little-endian encoding to buf, which
// must be at least MatchRecordSize bytes. It never allocates.
func (m MatchRecord) Marshal(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(m.Seed))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(m.Ref))
	binary.LittleEndian.PutUint64(buf[16:24], m.Checksum)
}

// UnmarshalMatchRecord decodes a MatchRecord from a MatchRecordSize-byte slice.
func UnmarshalMatchRecord(buf []byte) MatchRecord {
	return MatchRecord{
		Seed:     SeedId(binary.LittleEndian.Uint64(buf[0:8])),
		Ref:      ReferencePosition(binary.LittleEndian.Uint64(buf[8:16])),
		Checksum: binary.LittleEndian.Uint64(buf[16:24]),
	}
}
