package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"lessonmedia/internal/dashscope"
	"lessonmedia/internal/volc"
)

var ErrEmptyPrompt = errors.New("empty prompt")

// WanxTasks 通义万相异步任务接口
type WanxTasks interface {
	CreateImageTask(ctx context.Context, p dashscope.ImageParams) (string, error)
	GetTask(ctx context.Context, taskID string) (*dashscope.Task, error)
}

// WanxImage 使用通义万相生成单张图片
type WanxImage struct {
	Tasks      WanxTasks
	Downloader Downloader
	Poller     *Poller
	Model      string
	Size       string
	Now        func() time.Time
}

// Engine 记录到提示词库中的引擎名
func (g *WanxImage) Engine() string { return "WanX-2.5" }

// Generate 提交任务、等待完成并下载到dir
func (g *WanxImage) Generate(ctx context.Context, prompt, level, dir string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	taskID, err := g.Tasks.CreateImageTask(ctx, dashscope.ImageParams{
		Model:        g.Model,
		Prompt:       prompt,
		Size:         g.Size,
		N:            1,
		PromptExtend: true,
		Watermark:    false,
	})
	if err != nil {
		return "", err
	}

	obs, err := g.Poller.Wait(ctx, taskID, func(ctx context.Context) (Observation, error) {
		task, err := g.Tasks.GetTask(ctx, taskID)
		if err != nil {
			return Observation{}, err
		}
		return wanxObservation(task), nil
	})
	if err != nil {
		return "", fmt.Errorf("wanx task %s: %w", taskID, err)
	}

	path := outputPath(dir, level, "png", g.Now)
	if err := g.Downloader.Download(ctx, obs.URL, path); err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	logrus.WithFields(logrus.Fields{"level": level, "path": path}).Info("图片已保存")
	return path, nil
}

func wanxObservation(task *dashscope.Task) Observation {
	obs := Observation{Status: task.Status}
	switch task.Status {
	case dashscope.TaskSucceeded:
		obs.Phase = PhaseSucceeded
		if len(task.URLs) > 0 {
			obs.URL = task.URLs[0]
		}
	case dashscope.TaskFailed, dashscope.TaskCanceled, dashscope.TaskUnknown:
		obs.Phase = PhaseFailed
		obs.Detail = fmt.Sprintf("%s %s %s", task.Status, task.Code, task.Message)
	default:
		obs.Phase = PhasePolling
	}
	return obs
}

// SeedreamImages Ark图片接口
type SeedreamImages interface {
	GenerateImages(ctx context.Context, p volc.ImageGenParams) ([]string, error)
}

// SeedreamImage 使用Seedream同步生成图片
type SeedreamImage struct {
	Ark        SeedreamImages
	Downloader Downloader
	Model      string
	Size       string
	Now        func() time.Time
}

func (g *SeedreamImage) Engine() string { return "Seedream" }

func (g *SeedreamImage) Generate(ctx context.Context, prompt, level, dir string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	urls, err := g.Ark.GenerateImages(ctx, volc.ImageGenParams{
		Model:  g.Model,
		Prompt: prompt,
		Size:   g.Size,
	})
	if err != nil {
		return "", err
	}
	path := outputPath(dir, level, "png", g.Now)
	if err := g.Downloader.Download(ctx, urls[0], path); err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	logrus.WithFields(logrus.Fields{"level": level, "path": path}).Info("图片已保存")
	return path, nil
}
