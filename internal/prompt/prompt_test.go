package prompt_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"lessonmedia/internal/model"
	"lessonmedia/internal/prompt"
)

func TestRefine(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"markers with commentary", "blah 【提示词开始】 a cat on a mat 【提示词结束】 blah", "a cat on a mat"},
		{"multiline inside markers", "说明\n【提示词开始】\n第一行\n第二行\n【提示词结束】", "第一行\n第二行"},
		{"first pair only", "【提示词开始】one【提示词结束】【提示词开始】two【提示词结束】", "one"},
		{"no markers falls back to whole input", "  a quiet library at dusk \n", "a quiet library at dusk"},
		{"open without close", "【提示词开始】dangling", "【提示词开始】dangling"},
		{"empty", "", ""},
		{"whitespace only", " \n\t", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := prompt.Refine(tt.raw)
			if got != tt.want {
				t.Errorf("Refine() = %q, want %q", got, tt.want)
			}
			if again := prompt.Refine(tt.raw); again != got {
				t.Errorf("Refine() not deterministic: %q vs %q", again, got)
			}
		})
	}
}

type scriptedModel struct {
	reply  string
	err    error
	inputs [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestBuilderGenerate(t *testing.T) {
	tests := []struct {
		task       model.TaskType
		wantSystem string
	}{
		{model.TaskImage, "文生图"},
		{model.TaskVideo, "文生视频"},
	}
	for _, tt := range tests {
		t.Run(string(tt.task), func(t *testing.T) {
			cm := &scriptedModel{reply: "好的。【提示词开始】教室里两位同学互相问好【提示词结束】希望有帮助"}
			b, err := prompt.NewBuilder(context.Background(), cm, 0.7)
			if err != nil {
				t.Fatalf("NewBuilder() error = %v", err)
			}

			got, err := b.Generate(context.Background(), tt.task, "HSK1", "你好，世界。")
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if got != "教室里两位同学互相问好" {
				t.Errorf("Generate() = %q", got)
			}
			if len(cm.inputs) != 1 {
				t.Fatalf("calls = %d", len(cm.inputs))
			}
			msgs := cm.inputs[0]
			if !strings.Contains(msgs[0].Content, tt.wantSystem) {
				t.Errorf("system prompt for %s = %q", tt.task, msgs[0].Content)
			}
			user := msgs[1].Content
			if !strings.Contains(user, "学生等级：HSK1") || !strings.Contains(user, "课文内容：你好，世界。") || !strings.Contains(user, string(tt.task)+"提示词") {
				t.Errorf("user prompt = %q", user)
			}
		})
	}
}

func TestBuilderErrors(t *testing.T) {
	ctx := context.Background()

	b, err := prompt.NewBuilder(ctx, &scriptedModel{reply: "x"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Generate(ctx, model.TaskType("audio"), "HSK1", "t"); !errors.Is(err, prompt.ErrUnknownTask) {
		t.Errorf("unknown task: %v", err)
	}

	b, err = prompt.NewBuilder(ctx, &scriptedModel{reply: "【提示词开始】  【提示词结束】"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Generate(ctx, model.TaskImage, "HSK1", "t"); !errors.Is(err, prompt.ErrEmptyPrompt) {
		t.Errorf("empty prompt: %v", err)
	}

	b, err = prompt.NewBuilder(ctx, &scriptedModel{err: errors.New("quota")}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Generate(ctx, model.TaskVideo, "HSK1", "t"); err == nil {
		t.Error("model error: want error")
	}
}

func TestBuilderEmptyLessonText(t *testing.T) {
	cm := &scriptedModel{reply: "a generic classroom scene"}
	b, err := prompt.NewBuilder(context.Background(), cm, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := b.Generate(context.Background(), model.TaskImage, "HSK2", "")
	if err != nil || got != "a generic classroom scene" {
		t.Errorf("Generate() = %q, %v", got, err)
	}
}
