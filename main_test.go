package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/cadastral/tiler/mbtiles"
	"github.com/cadastral/tiler/tile"
)

func TestInitConfDefaults(t *testing.T) {
	c, err := InitConf(viper.New(), filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "tiles", c.Publish.Prefix)
	assert.Equal(t, "metadata.json", c.Publish.MetadataKey)
	assert.Equal(t, 20, c.Publish.Workers)
	assert.Equal(t, "s3", c.Sink.Kind)
	assert.Equal(t, 30*time.Second, c.Sink.Timeout)
	assert.Equal(t, ":8080", c.Server.Address)
}

func TestInitConfFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[archive]
path = "/data/plss.mbtiles"

[publish]
workers = 50
baseURL = "https://d38r6gz80i2tvd.cloudfront.net"

[sink]
kind = "s3"
bucket = "from-file"
timeout = "5s"
`), 0o644))
	t.Setenv("TILER_SINK_BUCKET", "from-env")

	c, err := InitConf(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/data/plss.mbtiles", c.Archive.Path)
	assert.Equal(t, 50, c.Publish.Workers)
	assert.Equal(t, "https://d38r6gz80i2tvd.cloudfront.net", c.Publish.BaseURL)
	assert.Equal(t, "from-env", c.Sink.Bucket)
	assert.Equal(t, 5*time.Second, c.Sink.Timeout)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitTilesFailed, exitCode(fmt.Errorf("%w: 1 of 3", errTilesFailed)))
	assert.Equal(t, exitError, exitCode(errors.New("archive gone")))
}

func TestNewSinkUnknownKind(t *testing.T) {
	c := new(Conf)
	c.Sink.Kind = "ftp"
	_, err := newSink(c)
	assert.Error(t, err)
}

func TestRunPublishToDir(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "plss.mbtiles")
	w, err := mbtiles.Create(archive)
	require.NoError(t, err)
	require.NoError(t, w.WriteTile(tile.New(0, 0, 0), []byte("root")))
	require.NoError(t, w.WriteTile(tile.New(1, 0, 0), []byte("sw")))
	require.NoError(t, w.WriteMetadata("bounds", "-125,24,-66,49"))
	require.NoError(t, w.Close())

	c, err := InitConf(viper.New(), "")
	require.NoError(t, err)
	c.Archive.Path = archive
	c.Sink.Kind = "dir"
	c.Sink.Directory = filepath.Join(dir, "out")
	c.Publish.BaseURL = "https://tiles.example.com"
	c.Publish.Journal = filepath.Join(dir, "journal.log")
	conf = c
	SafeExitInst = &SafeExit{ctx: context.Background(), cancel: func() {}}

	require.NoError(t, runPublish())

	got, err := os.ReadFile(filepath.Join(dir, "out", "tiles", "1", "0", "1.pbf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("sw"), got)

	md, err := os.ReadFile(filepath.Join(dir, "out", "metadata.json"))
	require.NoError(t, err)
	assert.Equal(t, "https://tiles.example.com/tiles/{z}/{x}/{y}.pbf", gjson.GetBytes(md, "tiles.0").String())
	assert.Equal(t, float64(-125), gjson.GetBytes(md, "bounds.0").Float())

	journal, err := os.ReadFile(c.Publish.Journal)
	require.NoError(t, err)
	assert.Contains(t, string(journal), "tiles/0/0/0.pbf\n")
}

func TestSafeExitRunsRegisteredFuncs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &SafeExit{ctx: ctx, cancel: cancel}
	var order []int
	s.Register(func() { order = append(order, 1) })
	s.Register(func() { order = append(order, 2) })
	s.exit()
	s.exit()
	assert.Equal(t, []int{2, 1}, order)
	assert.Error(t, s.Context().Err())
}
