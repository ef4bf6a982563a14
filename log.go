package main

import (
	"io"
	"os"
	"path/filepath"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// InitLog 初始化日志. The package-level logrus logger used by library
// packages gets the same formatter, output and level.
func InitLog(c *Conf, logLevel string) error {
	logIO := make([]io.Writer, 0)
	if c.Output.LogDir != "" {
		if err := os.MkdirAll(c.Output.LogDir, os.ModePerm); err != nil {
			return err
		}
		filename := filepath.Join(c.Output.LogDir, time.Now().Format("2006-01-02.log"))
		file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return err
		}
		logIO = append(logIO, file)
	}
	if c.Output.OutputTerminal || len(logIO) == 0 {
		logIO = append(logIO, os.Stdout)
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	for _, l := range []*logrus.Logger{log, logrus.StandardLogger()} {
		l.SetFormatter(&nested.Formatter{
			HideKeys:        true,
			ShowFullLevel:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
		// 融合日志输出
		l.SetOutput(ansicolor.NewAnsiColorWriter(io.MultiWriter(logIO...)))
		l.SetLevel(level)
	}
	if err != nil {
		log.Warnf("unknown log level %q, using info", logLevel)
	}
	return nil
}
