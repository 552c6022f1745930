// Package pipeline 串联教案生成、课文提取、提示词生成与三类素材生成。
//
// 只有教案生成失败会终止运行；提示词和每一类素材的失败都只记录在
// PipelineRun中，不影响其他阶段。
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"lessonmedia/internal/lesson"
	"lessonmedia/internal/media"
	"lessonmedia/internal/model"
)

const defaultTopicPrefixRunes = 10

// Stage 流水线阶段
type Stage string

const (
	StagePlan    Stage = "plan"
	StageExtract Stage = "extract"
	StagePrompts Stage = "prompts"
	StageMedia   Stage = "media"
)

// Stages 按执行顺序排列
var Stages = []Stage{StagePlan, StageExtract, StagePrompts, StageMedia}

// PlanGenerator 生成教案
type PlanGenerator interface {
	Generate(ctx context.Context, level, content string) (*model.LessonPlan, error)
}

// PromptGenerator 生成提纯后的提示词
type PromptGenerator interface {
	Generate(ctx context.Context, task model.TaskType, level, lessonText string) (string, error)
}

// PromptStore 保存提示词记录
type PromptStore interface {
	Save(task model.TaskType, engine, level, lessonText, prompt string) (string, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompt, level, dir string) (string, error)
}

type AudioGenerator interface {
	Generate(ctx context.Context, text, level, dir string) (string, error)
}

type VideoGenerator interface {
	Generate(ctx context.Context, prompt, level, dir string) (string, error)
}

// Deps 流水线依赖的外部协作者
type Deps struct {
	Plan    PlanGenerator
	Prompts PromptGenerator
	Store   PromptStore
	Image   ImageGenerator
	Audio   AudioGenerator
	Video   VideoGenerator

	// 写入提示词记录的引擎名
	ImageEngine string
	VideoEngine string
}

// Coordinator 流水线协调器，可被多个运行并发使用
type Coordinator struct {
	deps          Deps
	outputRoot    string
	prefixRunes   int
	parallelMedia bool
	now           func() time.Time
	newID         func() string
	onStage       func(Stage)
}

type Option func(*Coordinator)

// WithOutputRoot 素材根目录，每次运行在其下创建一个子目录
func WithOutputRoot(dir string) Option {
	return func(c *Coordinator) { c.outputRoot = dir }
}

func WithTopicPrefixRunes(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.prefixRunes = n
		}
	}
}

// WithParallelMedia 三类素材并发生成
func WithParallelMedia(on bool) Option {
	return func(c *Coordinator) { c.parallelMedia = on }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(c *Coordinator) { c.newID = f }
}

// WithStageHook 每进入一个阶段时回调
func WithStageHook(f func(Stage)) Option {
	return func(c *Coordinator) { c.onStage = f }
}

func NewCoordinator(deps Deps, opts ...Option) *Coordinator {
	c := &Coordinator{
		deps:        deps,
		outputRoot:  ".",
		prefixRunes: defaultTopicPrefixRunes,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.deps.ImageEngine == "" {
		c.deps.ImageEngine = "WanX-2.5"
	}
	if c.deps.VideoEngine == "" {
		c.deps.VideoEngine = "Seedance"
	}
	return c
}

// Run 执行一次完整流水线。
// 返回error时只可能是输入为空或教案阶段失败（*StageError），此时不会调用任何后续协作者。
func (c *Coordinator) Run(ctx context.Context, level, topic string) (*model.PipelineRun, error) {
	level = strings.TrimSpace(level)
	topic = strings.TrimSpace(topic)
	if level == "" {
		return nil, ErrEmptyLevel
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	startedAt := c.now()
	run := model.NewPipelineRun(c.newID(), level, topic, startedAt)
	log := logrus.WithFields(logrus.Fields{"run_id": run.ID, "level": level})

	c.enter(StagePlan)
	plan, err := c.generatePlan(ctx, level, topic)
	if err != nil {
		log.WithError(err).Error("教案生成失败，流水线终止")
		return run, &StageError{Stage: StagePlan, Err: fmt.Errorf("%w: %w", ErrPlanGeneration, err)}
	}
	run.Plan = plan

	c.enter(StageExtract)
	run.Fields = lesson.Extract(plan.TeachingPlan)
	if run.Fields.LessonText == "" {
		log.Warn("未能提取课文，继续使用空课文")
	}

	c.enter(StagePrompts)
	for _, task := range []model.TaskType{model.TaskImage, model.TaskVideo} {
		res := c.guard(string(task)+" prompt", func() (string, error) {
			if c.deps.Prompts == nil {
				return "", ErrNotConfigured
			}
			return c.deps.Prompts.Generate(ctx, task, level, run.Fields.LessonText)
		})
		run.Prompts[task] = res
		if reason, failed := res.Reason(); failed {
			log.WithField("task", task).Warnf("提示词生成失败：%s", reason)
			continue
		}
		c.savePrompt(run, task)
	}

	c.enter(StageMedia)
	run.OutputDir = filepath.Join(c.outputRoot, OutputDirName(startedAt, level, topic, c.prefixRunes))
	if err := os.MkdirAll(run.OutputDir, 0o755); err != nil {
		log.WithError(err).Error("创建素材目录失败")
		for _, a := range model.Artifacts {
			run.Media[a] = model.Failed(err.Error())
		}
		return run, nil
	}
	c.generateMedia(ctx, run)

	log.WithField("produced", run.Produced()).Info("流水线完成")
	return run, nil
}

// Replay 根据已保存的提示词记录重新生成对应素材
func (c *Coordinator) Replay(ctx context.Context, rec *model.PromptRecord) (*model.PipelineRun, error) {
	level := strings.TrimSpace(rec.Metadata.StudentLevel)
	if level == "" {
		return nil, ErrEmptyLevel
	}
	startedAt := c.now()
	run := model.NewPipelineRun(c.newID(), level, "replay_"+string(rec.Metadata.Task), startedAt)
	run.Fields.LessonText = rec.Payload.LessonSource
	run.Prompts[rec.Metadata.Task] = model.Succeeded(rec.Payload.Prompt)
	run.OutputDir = filepath.Join(c.outputRoot, OutputDirName(startedAt, level, run.Topic, c.prefixRunes))
	if err := os.MkdirAll(run.OutputDir, 0o755); err != nil {
		return nil, err
	}

	switch rec.Metadata.Task {
	case model.TaskImage:
		run.Media[model.ArtifactImage] = c.image(ctx, run)
	case model.TaskVideo:
		run.Media[model.ArtifactVideo] = c.video(ctx, run)
	default:
		return nil, fmt.Errorf("replay task %q: %w", rec.Metadata.Task, ErrNotConfigured)
	}
	return run, nil
}

func (c *Coordinator) generatePlan(ctx context.Context, level, topic string) (plan *model.LessonPlan, err error) {
	if c.deps.Plan == nil {
		return nil, ErrNotConfigured
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	plan, err = c.deps.Plan.Generate(ctx, level, topic)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.Success {
		return nil, fmt.Errorf("generator returned no plan")
	}
	return plan, nil
}

func (c *Coordinator) savePrompt(run *model.PipelineRun, task model.TaskType) {
	if c.deps.Store == nil {
		return
	}
	engine := c.deps.ImageEngine
	if task == model.TaskVideo {
		engine = c.deps.VideoEngine
	}
	res := c.guard(string(task)+" prompt save", func() (string, error) {
		return c.deps.Store.Save(task, engine, run.Level, run.Fields.LessonText, run.Prompt(task))
	})
	run.Saved[task] = res
	if reason, failed := res.Reason(); failed {
		logrus.WithFields(logrus.Fields{"run_id": run.ID, "task": task}).Warnf("提示词保存失败：%s", reason)
	}
}

func (c *Coordinator) generateMedia(ctx context.Context, run *model.PipelineRun) {
	subStages := []func(context.Context, *model.PipelineRun) model.StageResult{c.image, c.audio, c.video}
	results := make([]model.StageResult, len(subStages))

	if c.parallelMedia {
		var g errgroup.Group
		for i, sub := range subStages {
			g.Go(func() error {
				results[i] = sub(ctx, run)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, sub := range subStages {
			results[i] = sub(ctx, run)
		}
	}

	for i, a := range model.Artifacts {
		run.Media[a] = results[i]
		if reason, failed := results[i].Reason(); failed {
			logrus.WithFields(logrus.Fields{"run_id": run.ID, "artifact": a}).Warnf("素材生成失败：%s", reason)
		}
	}
}

func (c *Coordinator) image(ctx context.Context, run *model.PipelineRun) model.StageResult {
	if reason, failed := run.Prompts[model.TaskImage].Reason(); failed {
		return model.Failed("image prompt unavailable: " + reason)
	}
	return c.guard("image", func() (string, error) {
		if c.deps.Image == nil {
			return "", ErrNotConfigured
		}
		return c.deps.Image.Generate(ctx, run.Prompt(model.TaskImage), run.Level, run.OutputDir)
	})
}

func (c *Coordinator) audio(ctx context.Context, run *model.PipelineRun) model.StageResult {
	return c.guard("audio", func() (string, error) {
		if c.deps.Audio == nil {
			return "", ErrNotConfigured
		}
		return c.deps.Audio.Generate(ctx, run.Fields.LessonText, run.Level, run.OutputDir)
	})
}

func (c *Coordinator) video(ctx context.Context, run *model.PipelineRun) model.StageResult {
	if reason, failed := run.Prompts[model.TaskVideo].Reason(); failed {
		return model.Failed("video prompt unavailable: " + reason)
	}
	return c.guard("video", func() (string, error) {
		if c.deps.Video == nil {
			return "", ErrNotConfigured
		}
		return c.deps.Video.Generate(ctx, run.Prompt(model.TaskVideo), run.Level, run.OutputDir)
	})
}

// guard 执行一个隔离的子阶段，错误和panic都转换为失败结果
func (c *Coordinator) guard(name string, fn func() (string, error)) (res model.StageResult) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("stage", name).Errorf("panic: %v\n%s", r, debug.Stack())
			res = model.Failed(fmt.Sprintf("panic: %v", r))
		}
	}()
	payload, err := fn()
	if err == nil && payload == "" {
		return model.Failed(name + " returned no result")
	}
	return model.FromError(payload, err)
}

func (c *Coordinator) enter(s Stage) {
	if c.onStage != nil {
		c.onStage(s)
	}
}

// OutputDirName 素材目录名：时间戳_等级_主题前缀
func OutputDirName(now time.Time, level, topic string, prefixRunes int) string {
	if prefixRunes <= 0 {
		prefixRunes = defaultTopicPrefixRunes
	}
	runes := []rune(strings.TrimSpace(topic))
	if len(runes) > prefixRunes {
		runes = runes[:prefixRunes]
	}
	return fmt.Sprintf("%s_%s_%s", now.Format("20060102_150405"), media.SafeName(level), media.SafeName(string(runes)))
}
