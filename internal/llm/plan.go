package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/sirupsen/logrus"

	"lessonmedia/internal/model"
)

var (
	ErrEmptyLevel   = errors.New("student level is empty")
	ErrEmptyContent = errors.New("lesson content is empty")
)

const planSystemPrompt = `你是一名优秀的国际中文教师，具有优秀的教学组织能力和教案撰写能力。
你必须严格按照规定结构撰写教案，不得缺项，不得合并栏目。

教案结构如下：

一、教学目标
（一）知识目标
（二）技能目标
（三）情感与文化目标

二、教学内容
（一）生词（包括拼音、词性、英文释义、例句）
（二）课文
    - 若输入内容为完整文本，请直接以输入内容作为课文，不能修改
    - 若输入内容为话题，请围绕话题生成课文，并使用【课文开始】【课文结束】标记
    - 对话体课文需明确交际场景
（三）语法（包括：中文解释、英文解释、例句、练习）
（四）汉字（与主题和生词相关）
（五）文化（与主题相关）

三、教学重点与难点
（一）教学重点
（二）教学难点

四、教学步骤（45分钟）
五、教学方法
`

const planUserTemplate = `本次课程的学生汉语水平为：{level}。
输入内容为：{content}。

请根据学生汉语水平和输入内容，
撰写一份可直接用于数字化国际中文教学的详细、完整教案。`

// LessonSaver 教案库
type LessonSaver interface {
	Save(plan *model.LessonPlan) (string, error)
}

// PlanGenerator 教案生成器
type PlanGenerator struct {
	runner      *Runner
	model       string
	temperature float32
	topP        float32
	store       LessonSaver
	now         func() time.Time
}

type PlanOption func(*PlanGenerator)

// WithSampling 设置温度和top_p，负数表示使用模型默认值
func WithSampling(temperature, topP float32) PlanOption {
	return func(g *PlanGenerator) {
		g.temperature = temperature
		g.topP = topP
	}
}

// WithLessonStore 生成后写入教案库
func WithLessonStore(s LessonSaver) PlanOption {
	return func(g *PlanGenerator) { g.store = s }
}

func WithPlanClock(now func() time.Time) PlanOption {
	return func(g *PlanGenerator) { g.now = now }
}

func NewPlanGenerator(ctx context.Context, cm einomodel.BaseChatModel, modelName string, opts ...PlanOption) (*PlanGenerator, error) {
	runner, err := NewRunner(ctx, cm, planSystemPrompt, planUserTemplate)
	if err != nil {
		return nil, err
	}
	g := &PlanGenerator{runner: runner, model: modelName, temperature: -1, topP: -1, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate 生成教案；配置了教案库时保存失败也视为生成失败
func (g *PlanGenerator) Generate(ctx context.Context, level, content string) (*model.LessonPlan, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return nil, ErrEmptyLevel
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	var opts []einomodel.Option
	if g.temperature >= 0 {
		opts = append(opts, einomodel.WithTemperature(g.temperature))
	}
	if g.topP >= 0 {
		opts = append(opts, einomodel.WithTopP(g.topP))
	}

	log := logrus.WithFields(logrus.Fields{"stage": "plan", "level": level})
	log.Info("开始生成教案")

	msg, err := g.runner.Run(ctx, map[string]any{"level": level, "content": content}, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate teaching plan: %w", err)
	}

	plan := &model.LessonPlan{
		Success:      true,
		StudentLevel: level,
		InputContent: content,
		TeachingPlan: msg.Content,
		Model:        g.model,
		CreatedTime:  g.now().Format(time.DateTime),
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		u := msg.ResponseMeta.Usage
		plan.Usage = model.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}

	if g.store != nil {
		path, err := g.store.Save(plan)
		if err != nil {
			return nil, fmt.Errorf("save teaching plan: %w", err)
		}
		log.WithField("path", path).Info("教案已保存")
	}
	return plan, nil
}
