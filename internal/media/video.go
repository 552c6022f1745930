package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lessonmedia/internal/volc"
)

// VideoTasks Ark视频任务接口
type VideoTasks interface {
	CreateVideoTask(ctx context.Context, p volc.VideoTaskParams) (string, error)
	GetVideoTask(ctx context.Context, taskID string) (*volc.VideoTask, error)
}

// VideoOptions 附加在提示词末尾的Seedance参数
type VideoOptions struct {
	Duration    int
	CameraFixed bool
	Watermark   bool
}

// Suffix 形如 --duration 5 --camerafixed false --watermark true
func (o VideoOptions) Suffix() string {
	d := o.Duration
	if d <= 0 {
		d = 5
	}
	return fmt.Sprintf("--duration %d --camerafixed %t --watermark %t", d, o.CameraFixed, o.Watermark)
}

// SeedanceVideo 提交视频任务并轮询至完成
type SeedanceVideo struct {
	Tasks      VideoTasks
	Downloader Downloader
	Poller     *Poller
	Model      string
	Options    VideoOptions
	Now        func() time.Time
}

func (g *SeedanceVideo) Engine() string { return "Seedance" }

func (g *SeedanceVideo) Generate(ctx context.Context, prompt, level, dir string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	if err := ensureDir(dir); err != nil {
		return "", err
	}

	taskID, err := g.Tasks.CreateVideoTask(ctx, volc.VideoTaskParams{
		Model:  g.Model,
		Prompt: prompt + " " + g.Options.Suffix(),
	})
	if err != nil {
		return "", err
	}
	log := logrus.WithFields(logrus.Fields{"level": level, "task_id": taskID})
	log.Info("视频任务已提交")

	obs, err := g.Poller.Wait(ctx, taskID, func(ctx context.Context) (Observation, error) {
		task, err := g.Tasks.GetVideoTask(ctx, taskID)
		if err != nil {
			return Observation{}, err
		}
		return videoObservation(task), nil
	})
	if err != nil {
		return "", fmt.Errorf("video task %s: %w", taskID, err)
	}

	path := outputPath(dir, level, "mp4", g.Now)
	if err := g.Downloader.Download(ctx, obs.URL, path); err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}
	log.WithField("path", path).Info("视频已保存")
	return path, nil
}

func videoObservation(task *volc.VideoTask) Observation {
	obs := Observation{Status: task.Status}
	switch task.Status {
	case volc.StatusSucceeded:
		obs.Phase = PhaseSucceeded
		obs.URL = task.VideoURL
	case volc.StatusFailed, volc.StatusCancelled, volc.StatusExpired:
		obs.Phase = PhaseFailed
		obs.Detail = strings.TrimSpace(task.Status + " " + task.Error)
	default:
		obs.Phase = PhasePolling
	}
	return obs
}
