package tile

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// KeyTemplate is the sink and URL layout for public-scheme tiles.
const KeyTemplate = "{z}/{x}/{y}.pbf"

// Expand 填充瓦片模板 {z}/{x}/{y}
func Expand(tmpl string, t maptile.Tile) string {
	s := strings.Replace(tmpl, "{x}", strconv.Itoa(int(t.X)), -1)
	s = strings.Replace(s, "{y}", strconv.Itoa(int(t.Y)), -1)
	s = strings.Replace(s, "{z}", strconv.Itoa(int(t.Z)), -1)
	return s
}

// Join joins a prefix and a relative path with exactly one slash between them.
// An empty prefix yields rel unchanged.
func Join(prefix, rel string) string {
	prefix = strings.TrimRight(prefix, "/")
	rel = strings.TrimLeft(rel, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

// Key returns "{prefix}/{z}/{x}/{y}.pbf" for a public-scheme tile.
func Key(prefix string, public maptile.Tile) string {
	return Expand(Join(prefix, KeyTemplate), public)
}
