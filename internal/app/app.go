// Package app 根据配置组装流水线的全部依赖
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lessonmedia/internal/config"
	"lessonmedia/internal/dashscope"
	"lessonmedia/internal/llm"
	"lessonmedia/internal/media"
	"lessonmedia/internal/pipeline"
	"lessonmedia/internal/prompt"
	"lessonmedia/internal/server"
	"lessonmedia/internal/store"
	"lessonmedia/internal/tools"
	"lessonmedia/internal/transport"
	"lessonmedia/internal/volc"
	"lessonmedia/internal/xunfei"
)

// App 组装好的应用
type App struct {
	Config      *config.Config
	Coordinator *pipeline.Coordinator
	Tools       *tools.Registry
}

// New 创建全部客户端与生成器。opts追加在配置推导出的流水线选项之后
func New(ctx context.Context, cfg *config.Config, opts ...pipeline.Option) (*App, error) {
	if cfg.Mock {
		logrus.Warn("mock模式：所有远程调用均返回本地模拟结果")
	}
	httpClient := transport.New(cfg.HTTP)

	cm, err := llm.NewChatModel(ctx, cfg.LLM, cfg.Keys, httpClient.Standard(cfg.LLM.Timeout()), cfg.Mock)
	if err != nil {
		return nil, err
	}

	lessons := store.NewLessonStore(cfg.Storage.LessonDB)
	plan, err := llm.NewPlanGenerator(ctx, cm, cfg.LLM.Model,
		llm.WithSampling(*cfg.LLM.Temperature, *cfg.LLM.TopP),
		llm.WithLessonStore(lessons),
	)
	if err != nil {
		return nil, fmt.Errorf("build plan generator: %w", err)
	}
	builder, err := prompt.NewBuilder(ctx, cm, *cfg.LLM.PromptTemperature)
	if err != nil {
		return nil, fmt.Errorf("build prompt builder: %w", err)
	}

	ark := volc.NewArkClient(cfg.Video.BaseURL, cfg.Keys.Ark, httpClient, cfg.Mock)

	var (
		image       pipeline.ImageGenerator
		imageEngine string
	)
	switch cfg.Image.Engine {
	case "seedream":
		g := &media.SeedreamImage{Ark: ark, Downloader: httpClient, Model: cfg.Image.Model, Size: cfg.Image.Size}
		image, imageEngine = g, g.Engine()
	default:
		g := &media.WanxImage{
			Tasks:      dashscope.NewClient(cfg.Image.BaseURL, cfg.Keys.DashScope, httpClient, cfg.Mock),
			Downloader: httpClient,
			Poller:     &media.Poller{Interval: cfg.Image.PollInterval(), Timeout: cfg.Image.Timeout()},
			Model:      cfg.Image.Model,
			Size:       cfg.Image.Size,
		}
		image, imageEngine = g, g.Engine()
	}

	audio := &media.XunfeiAudio{TTS: &xunfei.Client{
		AppID:       cfg.Keys.XunfeiAppID,
		APIKey:      cfg.Keys.XunfeiKey,
		APISecret:   cfg.Keys.XunfeiSecret,
		HostURL:     cfg.TTS.HostURL,
		Voice:       cfg.TTS.Voice,
		Volume:      *cfg.TTS.Volume,
		Speed:       *cfg.TTS.Speed,
		Pitch:       *cfg.TTS.Pitch,
		SampleRate:  cfg.TTS.SampleRate,
		ReadTimeout: cfg.TTS.ReadTimeout(),
		Mock:        cfg.Mock,
	}}

	video := &media.SeedanceVideo{
		Tasks:      ark,
		Downloader: httpClient,
		Poller: &media.Poller{
			Interval: cfg.Video.PollInterval(),
			Timeout:  cfg.Video.Timeout(),
			OnPhase: func(from, to media.Phase) {
				logrus.WithFields(logrus.Fields{"from": from, "to": to}).Debug("视频任务状态变化")
			},
		},
		Model: cfg.Video.Model,
		Options: media.VideoOptions{
			Duration:    cfg.Video.Duration,
			CameraFixed: cfg.Video.CameraFixed,
			Watermark:   !cfg.Video.DisableWatermark,
		},
	}

	base := []pipeline.Option{
		pipeline.WithOutputRoot(cfg.Storage.Output),
		pipeline.WithTopicPrefixRunes(cfg.Pipeline.TopicPrefixRunes),
		pipeline.WithParallelMedia(cfg.Pipeline.ParallelMedia),
	}
	coord := pipeline.NewCoordinator(pipeline.Deps{
		Plan:        plan,
		Prompts:     builder,
		Store:       store.NewPromptStore(cfg.Storage.PromptDB),
		Image:       image,
		Audio:       audio,
		Video:       video,
		ImageEngine: imageEngine,
		VideoEngine: video.Engine(),
	}, append(base, opts...)...)

	reg, err := tools.NewRegistry(ctx,
		tools.NewPlanTool(plan),
		tools.NewPromptTool(builder),
		tools.NewImageTool(image, cfg.Storage.Output),
		tools.NewAudioTool(audio, cfg.Storage.Output),
		tools.NewVideoTool(video, cfg.Storage.Output),
	)
	if err != nil {
		return nil, err
	}

	return &App{Config: cfg, Coordinator: coord, Tools: reg}, nil
}

// Router HTTP路由
func (a *App) Router() *gin.Engine {
	return server.NewRouter(a.Coordinator, a.Tools)
}
