package tile

import (
	"errors"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadastral/tiler/tileerr"
)

func TestToPublic(t *testing.T) {
	cases := []struct {
		name    string
		archive maptile.Tile
		public  maptile.Tile
	}{
		{"zoom0", New(0, 0, 0), New(0, 0, 0)},
		{"z3", New(3, 5, 2), New(3, 5, 5)},
		{"z1 bottom", New(1, 0, 0), New(1, 0, 1)},
		{"z1 top", New(1, 0, 1), New(1, 0, 0)},
		{"z14 edge", New(14, 100, 16383), New(14, 100, 0)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ToPublic(c.archive)
			require.NoError(t, err)
			assert.Equal(t, c.public, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for z := uint32(0); z <= 10; z++ {
		for y := uint32(0); y <= MaxRow(maptile.Zoom(z)); y++ {
			a := New(z, 0, y)
			p, err := ToPublic(a)
			require.NoError(t, err)
			back, err := ToArchive(p)
			require.NoError(t, err)
			require.Equal(t, a, back)
		}
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	_, err := ToPublic(New(2, 0, 4))
	require.Error(t, err)
	assert.True(t, errors.Is(err, tileerr.ErrInvalidCoordinate))

	_, err = ToArchive(New(2, 4, 0))
	assert.True(t, errors.Is(err, tileerr.ErrInvalidCoordinate))

	_, err = ToArchive(New(ZoomMax+1, 0, 0))
	assert.True(t, errors.Is(err, tileerr.ErrInvalidCoordinate))
}

func TestParse(t *testing.T) {
	got, err := Parse("3", "5", "2")
	require.NoError(t, err)
	assert.Equal(t, New(3, 5, 2), got)

	for _, bad := range [][3]string{
		{"1", "-1", "0"},
		{"1", "0", "2"},
		{"31", "0", "0"},
		{"1", "0", "99999999999"},
	} {
		_, err := Parse(bad[0], bad[1], bad[2])
		assert.Truef(t, errors.Is(err, tileerr.ErrInvalidCoordinate), "%v: %v", bad, err)
	}

	for _, bad := range [][3]string{
		{"a", "0", "0"},
		{"1", "0", "1.5"},
		{"", "0", "0"},
		{"1", "0x1", "0"},
	} {
		_, err := Parse(bad[0], bad[1], bad[2])
		assert.Truef(t, errors.Is(err, tileerr.ErrMalformedCoordinate), "%v: %v", bad, err)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "tiles/1/0/1.pbf", Key("tiles", New(1, 0, 1)))
	assert.Equal(t, "tiles/1/0/1.pbf", Key("tiles/", New(1, 0, 1)))
	assert.Equal(t, "0/0/0.pbf", Key("", New(0, 0, 0)))
	assert.Equal(t, "https://cdn.example.com/tiles/{z}/{x}/{y}.pbf", Join("https://cdn.example.com/", Join("tiles", KeyTemplate)))
}

func TestExpand(t *testing.T) {
	assert.Equal(t, "/12/654/1583.mvt", Expand("/{z}/{x}/{y}.mvt", New(12, 654, 1583)))
}
