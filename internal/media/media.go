// Package media 文生图、语音合成和文生视频三个素材生成器。
// 每个生成器把结果保存到指定目录，返回文件路径；任何失败都以error返回。
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Downloader 把远程地址（或data URL）保存为本地文件
type Downloader interface {
	Download(ctx context.Context, url, path string) error
}

// FileName 素材文件名：等级_时分秒.扩展名
func FileName(level string, now time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", SafeName(level), now.Format("150405"), ext)
}

// SafeName 替换路径分隔符和空白，保证可以作为单个文件名使用
func SafeName(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		case unicode.IsSpace(r) || unicode.IsControl(r):
			return '_'
		}
		return r
	}, s)
}

func ensureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("empty output dir")
	}
	return os.MkdirAll(dir, 0o755)
}

func nowFunc(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

func outputPath(dir, level, ext string, now func() time.Time) string {
	return filepath.Join(dir, FileName(level, nowFunc(now)(), ext))
}
