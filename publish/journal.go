package publish

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Journal is an append-only log of keys already written to the sink, one per
// line. A rerun that opens the same journal skips those keys. Re-publishing is
// idempotent anyway; the journal only saves the round trips.
// A nil *Journal is valid: Has reports false and Done does nothing.
type Journal struct {
	file     *os.File
	saveChan chan string
	done     map[string]struct{}
	log      logrus.FieldLogger
	err      error // first write error, owned by start until wg is done
	wg       sync.WaitGroup
	once     sync.Once
}

// OpenJournal 获取断点记录. Write errors go to logger; a nil logger means
// the standard logger.
func OpenJournal(path string, logger logrus.FieldLogger) (*Journal, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	done, err := readJournal(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read journal %s: %w", path, err)
	}

	j := &Journal{
		file:     file,
		saveChan: make(chan string, 256),
		done:     done,
		log:      logger.WithField("journal", path),
	}
	j.wg.Add(1)
	go j.start()
	return j, nil
}

func readJournal(file *os.File) (map[string]struct{}, error) {
	res := make(map[string]struct{})
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			res[line] = struct{}{}
		}
	}
	return res, sc.Err()
}

// Len is the number of keys recorded before this run.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.done)
}

// Has reports whether key was recorded by an earlier run.
func (j *Journal) Has(key string) bool {
	if j == nil {
		return false
	}
	_, ok := j.done[key]
	return ok
}

// Done records key as written. It must not be called after Close.
func (j *Journal) Done(key string) {
	if j == nil {
		return
	}
	j.saveChan <- key
}

func (j *Journal) start() {
	defer j.wg.Done()
	w := bufio.NewWriter(j.file)
	for key := range j.saveChan {
		if _, err := w.WriteString(key + "\n"); err != nil {
			j.fail(err)
			continue
		}
		if len(j.saveChan) == 0 {
			j.fail(w.Flush())
		}
	}
	j.fail(w.Flush())
}

// fail keeps and logs the first write error. Later keys are lost the same
// way, so one warning is enough.
func (j *Journal) fail(err error) {
	if err == nil || j.err != nil {
		return
	}
	j.err = err
	j.log.Warnf("journal write failed, a rerun will repeat uploads: %s", err)
}

// Close flushes pending keys and closes the file. It returns the first write
// error, if any.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	var err error
	j.once.Do(func() {
		close(j.saveChan)
		j.wg.Wait()
		err = j.file.Close()
		if j.err != nil {
			err = fmt.Errorf("write journal: %w", j.err)
		}
	})
	return err
}
