// Package tilejson turns archive metadata rows into a TileJSON 3.0.0 service
// descriptor. Nothing here fails: a value that cannot be decoded falls back to
// its default or is passed through as a literal string.
package tilejson

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/cadastral/tiler/tileerr"
)

const Version = "3.0.0"

// Defaults for keys that are absent or empty in the archive.
const (
	DefaultName        = "BLM PLSS CadNSDI"
	DefaultDescription = "BLM National Public Land Survey System"
	DefaultVersion     = "1.0.0"
	DefaultFormat      = "pbf"
	DefaultMinZoom     = 0
	DefaultMaxZoom     = 14
)

var (
	DefaultBounds       = json.RawMessage(`[-180,-85.0511,180,85.0511]`)
	DefaultCenter       = json.RawMessage(`[-98.5795,39.8283,4]`)
	DefaultVectorLayers = json.RawMessage(`[]`)
)

// Metadata keys recognised in the archive's metadata relation.
const (
	KeyName        = "name"
	KeyDescription = "description"
	KeyVersion     = "version"
	KeyFormat      = "format"
	KeyMinZoom     = "minzoom"
	KeyMaxZoom     = "maxzoom"
	KeyBounds      = "bounds"
	KeyCenter      = "center"
	KeyJSON        = "json"
)

// Metadata is the archive's metadata relation, one field per recognised key,
// values as stored. Empty means absent.
type Metadata struct {
	Name        string
	Description string
	Version     string
	Format      string
	MinZoom     string
	MaxZoom     string
	Bounds      string
	Center      string
	JSON        string
}

// FromMap picks the recognised keys out of the raw name/value rows.
func FromMap(m map[string]string) Metadata {
	return Metadata{
		Name:        m[KeyName],
		Description: m[KeyDescription],
		Version:     m[KeyVersion],
		Format:      m[KeyFormat],
		MinZoom:     m[KeyMinZoom],
		MaxZoom:     m[KeyMaxZoom],
		Bounds:      m[KeyBounds],
		Center:      m[KeyCenter],
		JSON:        m[KeyJSON],
	}
}

// TileJSON is the service descriptor. It is derived on demand and never stored
// back into the archive.
type TileJSON struct {
	TileJSON     string          `json:"tilejson"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Version      string          `json:"version"`
	Format       string          `json:"format"`
	MinZoom      int             `json:"minzoom"`
	MaxZoom      int             `json:"maxzoom"`
	Bounds       json.RawMessage `json:"bounds"`
	Center       json.RawMessage `json:"center"`
	Tiles        []string        `json:"tiles"`
	VectorLayers json.RawMessage `json:"vector_layers"`
}

// Translate builds the descriptor for md with tileURL as its only tile endpoint.
func Translate(md Metadata, tileURL string) TileJSON {
	return TileJSON{
		TileJSON:     Version,
		Name:         orString(md.Name, DefaultName),
		Description:  orString(md.Description, DefaultDescription),
		Version:      orString(md.Version, DefaultVersion),
		Format:       orString(md.Format, DefaultFormat),
		MinZoom:      decodeZoom(md.MinZoom, DefaultMinZoom),
		MaxZoom:      decodeZoom(md.MaxZoom, DefaultMaxZoom),
		Bounds:       decodeList(md.Bounds, DefaultBounds),
		Center:       decodeList(md.Center, DefaultCenter),
		Tiles:        []string{tileURL},
		VectorLayers: decodeVectorLayers(md.JSON),
	}
}

// Marshal encodes the descriptor, indented the way it is published.
func (tj TileJSON) Marshal() ([]byte, error) {
	return json.MarshalIndent(tj, "", "  ")
}

// Bound returns the bounds as an orb.Bound when they decoded to four numbers.
func (tj TileJSON) Bound() (orb.Bound, bool) {
	v := numbers(tj.Bounds)
	if len(v) != 4 {
		return orb.Bound{}, false
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, true
}

// CenterPoint returns the center position and zoom when center decoded to three numbers.
func (tj TileJSON) CenterPoint() (orb.Point, int, bool) {
	v := numbers(tj.Center)
	if len(v) != 3 {
		return orb.Point{}, 0, false
	}
	return orb.Point{v[0], v[1]}, int(v[2]), true
}

func numbers(raw json.RawMessage) []float64 {
	res := gjson.ParseBytes(raw)
	if !res.IsArray() {
		return nil
	}
	var out []float64
	for _, v := range res.Array() {
		if v.Type != gjson.Number {
			return nil
		}
		out = append(out, v.Float())
	}
	return out
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func decodeZoom(v string, def int) int {
	res := gjson.Parse(strings.TrimSpace(v))
	if v == "" || res.Type != gjson.Number {
		if v != "" {
			log.WithError(tileerr.ErrMetadataDecodeFailure).Debugf("zoom %q is not a number, using %d", v, def)
		}
		return def
	}
	return int(res.Int())
}

// decode is the decode-with-default helper: JSON values come back as is, an
// empty or null value yields def, anything else is passed through as a
// JSON string literal.
func decode(v string, def json.RawMessage) json.RawMessage {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	if gjson.Valid(v) {
		if gjson.Parse(v).Type == gjson.Null {
			return def
		}
		return json.RawMessage(v)
	}
	log.WithError(tileerr.ErrMetadataDecodeFailure).Debugf("metadata value %q is not JSON, passing through", v)
	return literal(v)
}

// decodeList also accepts the comma-separated form ("-180,-85,180,85") the
// archive format itself uses for bounds and center.
func decodeList(v string, def json.RawMessage) json.RawMessage {
	if nums, ok := commaNumbers(v); ok {
		b, err := json.Marshal(nums)
		if err == nil {
			return b
		}
	}
	return decode(v, def)
}

func commaNumbers(v string) ([]float64, bool) {
	parts := strings.Split(v, ",")
	if len(parts) < 2 {
		return nil, false
	}
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// decodeVectorLayers reads the json key. The compiler writes an object with a
// vector_layers member; a bare array is taken as the layer list itself.
func decodeVectorLayers(v string) json.RawMessage {
	raw := decode(v, DefaultVectorLayers)
	res := gjson.ParseBytes(raw)
	if res.IsObject() {
		if layers := res.Get("vector_layers"); layers.Exists() && layers.IsArray() {
			return json.RawMessage(layers.Raw)
		}
	}
	return raw
}

func literal(v string) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return b
}
