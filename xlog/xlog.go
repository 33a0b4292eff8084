// Package xlog holds the process-wide zap logger.
package xlog

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	timeKey         = "time"
	EncodingJson    = "json"
	EncodingConsole = "console"
	FileMode        = "file"
	StdoutMode      = "stdout"
	StderrMode      = "stderr"
)

var (
	current *XLog
	mutex   sync.RWMutex
)

type (
	XLogConf struct {
		ServiceName string
		// log path
		Path string
		// log file name
		Filename string
		// file, stdout or stderr
		Mode string
		// json or console
		Encoding   string
		TimeFormat string
		// debug, info, warn, error, dpanic, panic, fatal
		Level    string
		Compress bool
		KeepDays int
		// megabytes before rotation
		MaxSize    int
		MaxBackups int
	}
	XLog struct {
		conf     XLogConf
		instance *zap.Logger
		closer   func() error
	}
)

func init() {
	conf := XLogConf{Mode: StderrMode, Level: "info"}
	defaultConf(&conf)
	current = newXLog(conf)
}

// Load rebuilds the process logger from conf. The previous logger is synced
// and, in file mode, its file is closed.
func Load(conf *XLogConf) {
	defaultConf(conf)
	next := newXLog(*conf)

	mutex.Lock()
	prev := current
	current = next
	mutex.Unlock()

	prev.close()
}

// Write returns the process logger.
func Write() *zap.Logger {
	mutex.RLock()
	defer mutex.RUnlock()

	return current.instance
}

// Replace installs l as the process logger and returns a func restoring the
// previous one.
func Replace(l *zap.Logger) func() {
	mutex.Lock()
	prev := current
	current = &XLog{conf: prev.conf, instance: l}
	mutex.Unlock()

	return func() {
		mutex.Lock()
		current = prev
		mutex.Unlock()
	}
}

// Sync flushes buffered entries.
func Sync() error {
	return Write().Sync()
}

func newXLog(conf XLogConf) *XLog {
	x := &XLog{conf: conf}

	var write zapcore.WriteSyncer
	switch conf.Mode {
	case FileMode:
		lj := rotate(conf)
		write = zapcore.AddSync(lj)
		x.closer = lj.Close
	case StdoutMode:
		write = zapcore.Lock(os.Stdout)
	default:
		write = zapcore.Lock(os.Stderr)
	}

	level, err := zapcore.ParseLevel(conf.Level)
	if err != nil {
		level = zap.DebugLevel
	}

	opts := []zap.Option{
		zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel),
	}
	if len(conf.ServiceName) > 0 {
		opts = append(opts, zap.Fields(zap.String("service", conf.ServiceName)))
	}
	x.instance = zap.New(zapcore.NewCore(encoder(conf), write, level), opts...)
	return x
}

func (x *XLog) close() {
	_ = x.instance.Sync()
	if x.closer != nil {
		_ = x.closer()
	}
}

func rotate(conf XLogConf) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(conf.Path, conf.Filename),
		Compress:   conf.Compress,
		MaxAge:     conf.KeepDays,
		MaxSize:    conf.MaxSize,
		MaxBackups: conf.MaxBackups,
	}
}

func encoder(conf XLogConf) zapcore.Encoder {
	econf := zap.NewProductionEncoderConfig()
	econf.TimeKey = timeKey
	econf.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(conf.TimeFormat))
	}
	econf.EncodeLevel = zapcore.LowercaseLevelEncoder

	if conf.Encoding == EncodingJson {
		return zapcore.NewJSONEncoder(econf)
	}
	// colors only make sense on a terminal
	if conf.Mode != FileMode {
		econf.EncodeLevel = zapcore.LowercaseColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(econf)
}

func defaultConf(conf *XLogConf) {
	if len(conf.Path) == 0 {
		path, _ := os.Getwd()
		conf.Path = filepath.Join(path, "logs")
	}

	if len(conf.Level) == 0 {
		conf.Level = "info"
	}

	if len(conf.Filename) == 0 {
		conf.Filename = "matchbridge.log"
	}

	if len(conf.Encoding) == 0 {
		conf.Encoding = EncodingConsole
	}

	if len(conf.TimeFormat) == 0 {
		conf.TimeFormat = "2006-01-02 15:04:05.000"
	}

	if len(conf.Mode) == 0 {
		conf.Mode = StderrMode
	}
}
