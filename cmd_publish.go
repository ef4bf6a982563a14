package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cadastral/tiler/mbtiles"
	"github.com/cadastral/tiler/publish"
	"github.com/cadastral/tiler/sink"
)

// errTilesFailed marks a run that finished but could not write every tile.
var errTilesFailed = errors.New("some tiles failed to upload")

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Extract every tile from the archive into the sink",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPublish()
	},
}

func newSink(c *Conf) (sink.Sink, error) {
	switch c.Sink.Kind {
	case "s3":
		return sink.NewS3(sink.S3Config{
			Bucket:     c.Sink.Bucket,
			Region:     c.Sink.Region,
			Endpoint:   c.Sink.Endpoint,
			MaxRetries: c.Sink.MaxRetries,
			Timeout:    c.Sink.Timeout,
		})
	case "dir":
		return sink.NewDir(c.Sink.Directory)
	}
	return nil, fmt.Errorf("unknown sink kind %q (want s3 or dir)", c.Sink.Kind)
}

func runPublish() error {
	ctx := SafeExitInst.Context()

	reader, err := mbtiles.Open(conf.Archive.Path)
	if err != nil {
		return err
	}
	defer reader.Close()

	dst, err := newSink(conf)
	if err != nil {
		return err
	}

	var journal *publish.Journal
	if conf.Publish.Journal != "" {
		journal, err = publish.OpenJournal(conf.Publish.Journal, log)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := journal.Close(); cerr != nil {
				log.Warnf("journal %s: %s", conf.Publish.Journal, cerr)
			}
		}()
		log.Infof("journal %s: %d keys already written", conf.Publish.Journal, journal.Len())
	}

	cfg := publish.Config{
		Prefix:      conf.Publish.Prefix,
		MetadataKey: conf.Publish.MetadataKey,
		BaseURL:     conf.Publish.BaseURL,
		Workers:     conf.Publish.Workers,
		Journal:     journal,
		Logger:      log,
	}
	if conf.Publish.Progress {
		cfg.Progress = os.Stderr
	}
	task := publish.NewTask(reader, dst, cfg)
	log.Infof("task %s: %s -> %s (%d workers)", task.ID, conf.Archive.Path, describeSink(dst), conf.Publish.Workers)

	rec, err := task.Run(ctx)
	log.Infof("Upload complete! %s", rec)
	log.Infof("Tile URL: %s", task.TileURL)
	if err != nil {
		return err
	}
	if !rec.OK() {
		return fmt.Errorf("%w: %d of %d", errTilesFailed, rec.Failed, rec.Attempted)
	}
	return nil
}

func describeSink(s sink.Sink) string {
	switch s := s.(type) {
	case *sink.S3:
		return "s3://" + s.Bucket()
	case *sink.Dir:
		return s.Root()
	}
	return fmt.Sprintf("%T", s)
}

func init() {
	flags := publishCmd.Flags()
	flags.String("sink", "", "sink kind: s3 or dir")
	flags.String("bucket", "", "S3 bucket")
	flags.String("dir", "", "output directory for the dir sink")
	flags.String("prefix", "", "key prefix for tiles")
	flags.String("base-url", "", "public URL root written into metadata.json")
	flags.Int("workers", 0, "parallel uploads")
	flags.String("journal", "", "resume journal path")
	flags.Bool("progress", false, "show a progress bar")
	bind(flags, map[string]string{
		"sink":     "sink.kind",
		"bucket":   "sink.bucket",
		"dir":      "sink.directory",
		"prefix":   "publish.prefix",
		"base-url": "publish.baseURL",
		"workers":  "publish.workers",
		"journal":  "publish.journal",
		"progress": "publish.progress",
	})
	rootCmd.AddCommand(publishCmd)
}
