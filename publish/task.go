// Package publish copies every tile in an archive to a sink as its own
// object, keyed by its public (XYZ) coordinate, and writes the TileJSON
// descriptor beside them.
package publish

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/cadastral/tiler/mbtiles"
	"github.com/cadastral/tiler/metrics"
	"github.com/cadastral/tiler/sink"
	"github.com/cadastral/tiler/tile"
	"github.com/cadastral/tiler/tilejson"
)

const (
	DefaultWorkers     = 20
	DefaultPrefix      = "tiles"
	DefaultMetadataKey = "metadata.json"
	progressEvery      = 1000
)

// Config 发布任务配置
type Config struct {
	// Prefix is prepended to every tile key: {prefix}/{z}/{x}/{y}.pbf.
	Prefix string
	// MetadataKey is where the TileJSON document goes.
	MetadataKey string
	// BaseURL is the public root the sink is served from; it seeds the
	// TileJSON tiles template. Empty leaves the template relative.
	BaseURL string
	// Workers bounds concurrent sink writes.
	Workers int
	// Journal, when set, skips keys written by an earlier run and records new ones.
	Journal *Journal
	// Progress, when set, receives a progress bar.
	Progress io.Writer
	Logger   logrus.FieldLogger
	Metrics  *metrics.Metrics
}

// Record counts one run. Skipped tiles were found in the journal and are
// included in Attempted and Succeeded.
type Record struct {
	Attempted uint64
	Succeeded uint64
	Failed    uint64
	Skipped   uint64
	Bytes     uint64
	Elapsed   time.Duration
}

// OK reports whether every attempted tile was written.
func (r Record) OK() bool {
	return r.Failed == 0
}

func (r Record) String() string {
	return fmt.Sprintf("attempted %s, succeeded %s (skipped %s), failed %s, %s in %s",
		humanize.Comma(int64(r.Attempted)), humanize.Comma(int64(r.Succeeded)),
		humanize.Comma(int64(r.Skipped)), humanize.Comma(int64(r.Failed)),
		humanize.Bytes(r.Bytes), r.Elapsed.Round(time.Millisecond))
}

// Task 发布任务. A Task runs once.
type Task struct {
	ID      string
	Total   uint64
	Bar     *pb.ProgressBar
	TileURL string

	reader *mbtiles.Reader
	sink   sink.Sink
	cfg    Config
	log    logrus.FieldLogger

	tileWG  sync.WaitGroup
	workers chan struct{}

	attempted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
	bytes     atomic.Uint64
}

// NewTask 创建发布任务
func NewTask(reader *mbtiles.Reader, dst sink.Sink, cfg Config) *Task {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MetadataKey == "" {
		cfg.MetadataKey = DefaultMetadataKey
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	id, err := shortid.Generate()
	if err != nil {
		id = fmt.Sprintf("%x", time.Now().UnixNano())
	}

	task := &Task{
		ID:      id,
		TileURL: tile.Join(cfg.BaseURL, tile.Join(cfg.Prefix, tile.KeyTemplate)),
		reader:  reader,
		sink:    dst,
		cfg:     cfg,
		log:     cfg.Logger.WithField("task", id),
		workers: make(chan struct{}, cfg.Workers),
	}
	return task
}

// Run publishes the descriptor and then every tile. Per-tile write failures
// are logged and counted; the returned error is reserved for failures that
// stop the run: the archive cannot be read, the descriptor cannot be written,
// or ctx is cancelled. The Record is valid in every case.
func (task *Task) Run(ctx context.Context) (Record, error) {
	start := time.Now()
	rec, err := task.run(ctx)
	rec.Elapsed = time.Since(start)
	return rec, err
}

func (task *Task) run(ctx context.Context) (Record, error) {
	total, err := task.reader.Count(ctx)
	if err != nil {
		return task.record(), err
	}
	task.Total = total
	task.log.Infof("found %s tiles in %s", humanize.Comma(int64(total)), task.reader.Path())

	if err := task.publishMetadata(ctx); err != nil {
		return task.record(), err
	}

	sc, err := task.reader.Scan(ctx)
	if err != nil {
		return task.record(), err
	}
	defer sc.Close()

	if task.cfg.Progress != nil {
		task.Bar = pb.New64(int64(total)).Prefix("Uploading tiles ")
		task.Bar.Output = task.cfg.Progress
		task.Bar.SetRefreshRate(time.Second)
		task.Bar.Start()
	}

	// In-flight writes outlive a cancelled run so that no object is left half written.
	writeCtx := context.WithoutCancel(ctx)
	cancelled := false
scan:
	for sc.Next() {
		r := sc.Record()
		public, err := tile.ToPublic(r.T)
		if err != nil {
			task.log.Warnf("skip archive tile %v: %s", r.T, err)
			task.failed.Add(1)
			task.cfg.Metrics.ObservePublish(metrics.ResultFailed, 0, 0)
			task.progress(task.attempted.Add(1))
			continue
		}
		key := tile.Key(task.cfg.Prefix, public)
		if task.cfg.Journal.Has(key) {
			task.succeeded.Add(1)
			task.skipped.Add(1)
			task.cfg.Metrics.ObservePublish(metrics.ResultSkipped, 0, 0)
			task.progress(task.attempted.Add(1))
			continue
		}
		select {
		case task.workers <- struct{}{}:
			task.tileWG.Add(1)
			go task.writeTile(writeCtx, key, r.C)
		case <-ctx.Done():
			cancelled = true
			break scan
		}
	}
	task.tileWG.Wait()
	if task.Bar != nil {
		task.Bar.FinishPrint(fmt.Sprintf("Task %s finished ~", task.ID))
	}

	if cancelled {
		task.log.Warnf("task %s cancelled after %d of %d tiles", task.ID, task.attempted.Load(), total)
		return task.record(), ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return task.record(), err
	}
	return task.record(), nil
}

func (task *Task) publishMetadata(ctx context.Context) error {
	md, err := task.reader.Metadata(ctx)
	if err != nil {
		return err
	}
	tj := tilejson.Translate(tilejson.FromMap(md), task.TileURL)
	if b, ok := tj.Bound(); ok {
		task.log.Debugf("archive bounds %v, zoom %d-%d", b, tj.MinZoom, tj.MaxZoom)
	}
	if c, z, ok := tj.CenterPoint(); ok {
		task.log.Debugf("archive center %v at zoom %d", c, z)
	}
	body, err := tj.Marshal()
	if err != nil {
		return err
	}
	if err := task.sink.Put(ctx, sink.MetadataObject(task.cfg.MetadataKey, body)); err != nil {
		return fmt.Errorf("write %s: %w", task.cfg.MetadataKey, err)
	}
	task.log.Infof("wrote %s", task.cfg.MetadataKey)
	return nil
}

// writeTile 瓦片写入器
func (task *Task) writeTile(ctx context.Context, key string, data []byte) {
	start := time.Now()
	//workers完成并清退
	defer func() {
		task.tileWG.Done()
		<-task.workers
	}()

	err := task.safePut(ctx, sink.TileObject(key, data))
	cost := time.Since(start)
	if err != nil {
		task.failed.Add(1)
		task.cfg.Metrics.ObservePublish(metrics.ResultFailed, len(data), cost)
		task.log.Warnf("error uploading %s: %s", key, err)
		task.progress(task.attempted.Add(1))
		return
	}
	task.succeeded.Add(1)
	task.bytes.Add(uint64(len(data)))
	task.cfg.Metrics.ObservePublish(metrics.ResultOK, len(data), cost)
	task.cfg.Journal.Done(key)
	task.log.Debugf("tile %s, %dms, %.2f kb", key, cost.Milliseconds(), float32(len(data))/1024.0)
	task.progress(task.attempted.Add(1))
}

// safePut keeps a panicking sink from taking the run down with it.
func (task *Task) safePut(ctx context.Context, obj sink.Object) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return task.sink.Put(ctx, obj)
}

// progress takes the attempted count returned by the caller's own increment,
// so each multiple of progressEvery is logged exactly once.
func (task *Task) progress(done uint64) {
	if task.Bar != nil {
		task.Bar.Increment()
	}
	if done%progressEvery != 0 || done == 0 {
		return
	}
	pct := 0.0
	if task.Total > 0 {
		pct = float64(done) / float64(task.Total) * 100
	}
	task.log.Infof("Progress: %d/%d (%.1f%%) - Uploaded: %d, Failed: %d",
		done, task.Total, pct, task.succeeded.Load(), task.failed.Load())
}

func (task *Task) record() Record {
	return Record{
		Attempted: task.attempted.Load(),
		Succeeded: task.succeeded.Load(),
		Failed:    task.failed.Load(),
		Skipped:   task.skipped.Load(),
		Bytes:     task.bytes.Load(),
	}
}
