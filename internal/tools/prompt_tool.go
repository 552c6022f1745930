package tools

import (
	"context"
	"encoding/json"
	"errors"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"lessonmedia/internal/model"
	"lessonmedia/internal/pipeline"
)

// PromptTool 为课文生成文生图或文生视频提示词
type PromptTool struct {
	prompts pipeline.PromptGenerator
}

type PromptToolArgs struct {
	Task         model.TaskType `json:"task"`
	StudentLevel string         `json:"student_level"`
	LessonText   string         `json:"lesson_text"`
}

type PromptToolResp struct {
	Task   model.TaskType `json:"task"`
	Prompt string         `json:"prompt"`
}

func NewPromptTool(prompts pipeline.PromptGenerator) *PromptTool {
	return &PromptTool{prompts: prompts}
}

func (t *PromptTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := map[string]*schema.ParameterInfo{
		"task":          {Type: schema.String, Required: true, Desc: "提示词类型", Enum: []string{string(model.TaskImage), string(model.TaskVideo)}},
		"student_level": {Type: schema.String, Required: true, Desc: "学生汉语水平"},
		"lesson_text":   {Type: schema.String, Required: true, Desc: "纯净课文"},
	}
	return &schema.ToolInfo{
		Name:        "media_prompt",
		Desc:        "根据课文生成适合教学的文生图或文生视频提示词",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

func (t *PromptTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	var args PromptToolArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", err
	}
	if !args.Task.Valid() {
		return "", errors.New("task must be image or video")
	}
	if args.StudentLevel == "" {
		return "", errors.New("student_level required")
	}

	p, err := t.prompts.Generate(ctx, args.Task, args.StudentLevel, args.LessonText)
	if err != nil {
		return "", err
	}
	return marshal(PromptToolResp{Task: args.Task, Prompt: p})
}

var _ einotool.InvokableTool = (*PromptTool)(nil)
