package cluster

import "context"

// TileSource discovers the tiles available from an input, used by the
// workflow controller to plan the sorted (flowcell, lane, tile) iteration
// order required by spec §5.
type TileSource interface {
	// Tiles returns every (flowcell, lane, tile) triple this source can
	// produce clusters for, in no particular order; callers sort.
	Tiles(ctx context.Context) ([]TileID, error)
}

// TileID identifies one tile.
type TileID struct {
	Flowcell string
	Lane     int
	Tile     int
}

// Less implements the sorted (flowcell, lane, tile) order of spec §5.
func (t TileID) Less(o TileID) bool {
	if t.Flowcell != o.Flowcell {
		return t.Flowcell < o.Flowcell
	}
	if t.Lane != o.Lane {
		return t.Lane < o.Lane
	}
	return t.Tile < o.Tile
}

// Source fills a Batch with every cluster belonging to one tile. A Source
// is not required to be safe for concurrent use by multiple goroutines on
// the same tile, but distinct tiles may be read concurrently.
type Source interface {
	TileSource

	// ReadTile reads every cluster of the given tile into a freshly
	// allocated Batch. Implementations must produce clusters in a stable,
	// deterministic order for a given tile so that seed generation (spec
	// §8 property 1) is reproducible.
	ReadTile(ctx context.Context, tile TileID, layout FlowcellLayout) (*Batch, error)
}
