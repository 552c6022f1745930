package tools

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"lessonmedia/internal/pipeline"
)

// Generator 图片、音频、视频生成器的共同形态
type Generator interface {
	Generate(ctx context.Context, input, level, dir string) (string, error)
}

// MediaTool 把一个素材生成器包装成eino工具，产物写入 root/{时间}_{等级}_tool_{名称}
type MediaTool struct {
	name  string
	desc  string
	input string
	gen   Generator
	root  string
	now   func() time.Time
}

type MediaToolResp struct {
	Path string `json:"path"`
}

// NewImageTool 文生图工具，参数为prompt
func NewImageTool(gen pipeline.ImageGenerator, root string) *MediaTool {
	return &MediaTool{name: "image_generate", desc: "根据提示词生成一张教学插图", input: "prompt", gen: gen, root: root, now: time.Now}
}

// NewAudioTool 课文朗读工具，参数为text
func NewAudioTool(gen pipeline.AudioGenerator, root string) *MediaTool {
	return &MediaTool{name: "audio_generate", desc: "把课文合成为朗读音频", input: "text", gen: gen, root: root, now: time.Now}
}

// NewVideoTool 文生视频工具，参数为prompt
func NewVideoTool(gen pipeline.VideoGenerator, root string) *MediaTool {
	return &MediaTool{name: "video_generate", desc: "调用Seedance根据提示词生成教学视频", input: "prompt", gen: gen, root: root, now: time.Now}
}

func (t *MediaTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	desc := "视频或图片提示词"
	if t.input == "text" {
		desc = "需要朗读的课文"
	}
	params := map[string]*schema.ParameterInfo{
		t.input:         {Type: schema.String, Required: true, Desc: desc},
		"student_level": {Type: schema.String, Required: true, Desc: "学生汉语水平，用于文件命名"},
	}
	return &schema.ToolInfo{
		Name:        t.name,
		Desc:        t.desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

func (t *MediaTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	var args map[string]string
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", err
	}
	input, level := args[t.input], args["student_level"]
	if input == "" {
		return "", errors.New(t.input + " required")
	}
	if level == "" {
		return "", errors.New("student_level required")
	}

	dir := filepath.Join(t.root, pipeline.OutputDirName(t.now(), level, "tool_"+t.name, 0))
	path, err := t.gen.Generate(ctx, input, level, dir)
	if err != nil {
		return "", err
	}
	return marshal(MediaToolResp{Path: path})
}

var _ einotool.InvokableTool = (*MediaTool)(nil)
