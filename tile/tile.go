package tile

import (
	"math"
	"strconv"

	"github.com/paulmach/orb/maptile"

	"github.com/cadastral/tiler/tileerr"
)

// ZoomMin 最小级别
const ZoomMin = 0

// ZoomMax is the deepest zoom whose row range still fits in a uint32.
const ZoomMax = 30

// Record is one archived tile. T is in archive (TMS) scheme; C is the
// pre-compressed payload exactly as stored, never decoded here.
type Record struct {
	T maptile.Tile
	C []byte
}

// Constants representing TileFormat types
const (
	GZIP string = "gzip" // encoding = gzip
	PBF         = "pbf"
	MVT         = "mvt"
)

// Content types and cache directives for published and served objects.
const (
	ContentTypeVectorTile = "application/x-protobuf"
	ContentTypeJSON       = "application/json"

	CacheControlTile        = "public, max-age=31536000" // one year, published objects
	CacheControlServedTile  = "public, max-age=2592000"  // 30 days, served tiles
	CacheControlMetadata    = "public, max-age=86400"    // one day
	CacheControlMissingTile = CacheControlMetadata
)

// New builds a tile from plain integers.
func New(z, x, y uint32) maptile.Tile {
	return maptile.New(x, y, maptile.Zoom(z))
}

// MaxRow is the largest valid row or column index at zoom z.
func MaxRow(z maptile.Zoom) uint32 {
	return uint32(1)<<uint32(z) - 1
}

// Validate checks zoom against ZoomMax and x, y against [0, 2^z-1].
func Validate(t maptile.Tile) error {
	if t.Z > ZoomMax {
		return tileerr.Newf(tileerr.CodeInvalidCoordinate, "zoom %d exceeds %d", t.Z, ZoomMax)
	}
	limit := MaxRow(t.Z)
	if t.X > limit {
		return tileerr.Newf(tileerr.CodeInvalidCoordinate, "column %d out of range [0, %d] at zoom %d", t.X, limit, t.Z)
	}
	if t.Y > limit {
		return tileerr.Newf(tileerr.CodeInvalidCoordinate, "row %d out of range [0, %d] at zoom %d", t.Y, limit, t.Z)
	}
	return nil
}

// flipY mirrors the row about the grid's horizontal midline. It is its own inverse.
func flipY(t maptile.Tile) maptile.Tile {
	t.Y = MaxRow(t.Z) - t.Y
	return t
}

// ToPublic converts an archive (TMS, bottom-left origin) coordinate to the
// public (XYZ, top-left origin) scheme.
func ToPublic(archive maptile.Tile) (maptile.Tile, error) {
	if err := Validate(archive); err != nil {
		return archive, err
	}
	return flipY(archive), nil
}

// ToArchive converts a public (XYZ) coordinate to the archive (TMS) scheme.
func ToArchive(public maptile.Tile) (maptile.Tile, error) {
	if err := Validate(public); err != nil {
		return public, err
	}
	return flipY(public), nil
}

// Parse reads z/x/y path segments. A segment that is not a base-10 integer
// is MalformedCoordinate; a negative or out-of-range value is InvalidCoordinate.
func Parse(z, x, y string) (maptile.Tile, error) {
	var vals [3]uint32
	for i, s := range [3]string{z, x, y} {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return maptile.Tile{}, tileerr.Wrapf(err, tileerr.CodeMalformedCoordinate, "bad tile path segment %q", s)
		}
		if v < 0 || v > math.MaxUint32 {
			return maptile.Tile{}, tileerr.Newf(tileerr.CodeInvalidCoordinate, "tile path segment %d out of range", v)
		}
		vals[i] = uint32(v)
	}
	t := New(vals[0], vals[1], vals[2])
	if err := Validate(t); err != nil {
		return maptile.Tile{}, err
	}
	return t, nil
}
