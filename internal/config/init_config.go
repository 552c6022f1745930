package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// InitLogging 初始化logrus：文本格式、完整时间戳；配置了log.file时同时写入文件。
// 返回的关闭函数用于在退出前关闭日志文件。
func InitLogging(c LogConfig, console io.Writer) (func() error, error) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.Level, err)
	}
	logrus.SetLevel(level)

	if console == nil {
		console = os.Stderr
	}
	if c.File == "" {
		logrus.SetOutput(console)
		return func() error { return nil }, nil
	}

	if dir := filepath.Dir(c.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	logFile, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logrus.SetOutput(io.MultiWriter(console, logFile))
	return logFile.Close, nil
}
