package prompt

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/sirupsen/logrus"

	"lessonmedia/internal/llm"
	"lessonmedia/internal/model"
)

var (
	ErrUnknownTask = errors.New("unknown prompt task")
	ErrEmptyPrompt = errors.New("refined prompt is empty")
)

const imageSystemPrompt = `你是一名优秀的国际中文教师，你也是一名优秀的提示词写作专家，可以为文生图大模型写出清晰、完整的提示词。
提示词具体要求是：
1. 提示词公式：内容主体（课文内容场景）+ 话题内容 + 图片风格 + 分辨率和比例。使用【提示词开始】【提示词结束】作为提示词实际内容的标记。
2. 所有图片的分辨率要求：不得低于150dpi。
3. 色彩要求：彩色图片的颜色数不低于真彩（16位），灰度图片的灰度级不低于128级。`

const videoSystemPrompt = `你是一名优秀的国际中文教师，你也是一名优秀的提示词写作专家，可以为文生视频大模型写出清晰、完整的提示词。
提示词具体要求是：
1. 提示词公式为：内容主体+场景空间+运动/变化+镜头运动+美感氛围。使用【提示词开始】【提示词结束】作为提示词实际内容的标记。
2. 镜头稳定无抖动，横屏拍摄，音画同步，人物清晰。动画色彩造型和谐、帧与帧之间关联性强，静止画面时间不超过5秒钟。彩色视频每帧图片颜色数不低于256色，黑白不低于128级。
3. 音频与视频有良好同步，音频中要完整包含课文内容。`

const userTemplate = "学生等级：{level}\n课文内容：{lesson_text}\n\n请根据上述内容生成最适合教学的{task}提示词。"

// Builder 按任务类型调用模型生成提示词，并用Refine提取标记内的内容
type Builder struct {
	runners     map[model.TaskType]*llm.Runner
	temperature float32
}

// NewBuilder temperature为负数时使用模型默认温度
func NewBuilder(ctx context.Context, cm einomodel.BaseChatModel, temperature float32) (*Builder, error) {
	b := &Builder{runners: make(map[model.TaskType]*llm.Runner, 2), temperature: temperature}
	for task, system := range map[model.TaskType]string{
		model.TaskImage: imageSystemPrompt,
		model.TaskVideo: videoSystemPrompt,
	} {
		r, err := llm.NewRunner(ctx, cm, system, userTemplate)
		if err != nil {
			return nil, fmt.Errorf("build %s prompt runner: %w", task, err)
		}
		b.runners[task] = r
	}
	return b, nil
}

// Generate 返回提纯后的提示词
func (b *Builder) Generate(ctx context.Context, task model.TaskType, level, lessonText string) (string, error) {
	r, ok := b.runners[task]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}

	var opts []einomodel.Option
	if b.temperature >= 0 {
		opts = append(opts, einomodel.WithTemperature(b.temperature))
	}
	msg, err := r.Run(ctx, map[string]any{
		"level":       level,
		"lesson_text": lessonText,
		"task":        string(task),
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("generate %s prompt: %w", task, err)
	}

	refined := Refine(msg.Content)
	if refined == "" {
		return "", ErrEmptyPrompt
	}
	logrus.WithFields(logrus.Fields{"stage": "prompt", "task": task, "level": level}).Debug("提示词已生成")
	return refined, nil
}
