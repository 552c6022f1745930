package tools

import (
	"context"
	"encoding/json"
	"errors"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"lessonmedia/internal/lesson"
	"lessonmedia/internal/model"
	"lessonmedia/internal/pipeline"
)

// PlanTool 实现eino框架的教案生成工具
type PlanTool struct {
	plan pipeline.PlanGenerator
}

// PlanToolArgs 教案生成请求参数
type PlanToolArgs struct {
	StudentLevel string `json:"student_level"` // 学生汉语水平
	Content      string `json:"content"`       // 话题或完整课文
}

// PlanToolResp 教案生成响应
type PlanToolResp struct {
	TeachingPlan string      `json:"teaching_plan"`
	LessonText   string      `json:"lesson_text"`
	Vocabulary   string      `json:"vocabulary"`
	Usage        model.Usage `json:"usage"`
	Model        string      `json:"model"`
}

func NewPlanTool(plan pipeline.PlanGenerator) *PlanTool {
	return &PlanTool{plan: plan}
}

// Info 获取教案生成工具信息
func (t *PlanTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := map[string]*schema.ParameterInfo{
		"student_level": {Type: schema.String, Required: true, Desc: "学生汉语水平，如：一级、HSK3、中级"},
		"content":       {Type: schema.String, Required: true, Desc: "教学话题或完整课文文本"},
	}
	return &schema.ToolInfo{
		Name:        "teaching_plan",
		Desc:        "撰写国际中文教学教案，并提取课文与生词",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

// InvokableRun 生成教案
func (t *PlanTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	var args PlanToolArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", err
	}
	if args.StudentLevel == "" || args.Content == "" {
		return "", errors.New("student_level and content required")
	}

	plan, err := t.plan.Generate(ctx, args.StudentLevel, args.Content)
	if err != nil {
		return "", err
	}
	fields := lesson.Extract(plan.TeachingPlan)
	return marshal(PlanToolResp{
		TeachingPlan: plan.TeachingPlan,
		LessonText:   fields.LessonText,
		Vocabulary:   fields.Vocabulary,
		Usage:        plan.Usage,
		Model:        plan.Model,
	})
}

var _ einotool.InvokableTool = (*PlanTool)(nil)
