package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrEmptyText = errors.New("empty lesson text")

// Synthesizer 流式语音合成
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, w io.Writer) error
}

// XunfeiAudio 把课文朗读为mp3
type XunfeiAudio struct {
	TTS Synthesizer
	Now func() time.Time
}

func (g *XunfeiAudio) Generate(ctx context.Context, text, level, dir string) (path string, err error) {
	if text == "" {
		return "", ErrEmptyText
	}
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	path = outputPath(dir, level, "mp3", g.Now)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
			path = ""
		}
	}()

	if err := g.TTS.Synthesize(ctx, text, f); err != nil {
		return path, fmt.Errorf("synthesize: %w", err)
	}
	logrus.WithFields(logrus.Fields{"level": level, "path": path}).Info("音频合成成功")
	return path, nil
}
