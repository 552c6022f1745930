package llm

import (
	"context"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const mockLessonText = "A：你好！你叫什么名字？\nB：我叫李明。你呢？\nA：我叫安娜，我是美国人。\nB：认识你很高兴！"

// MockChatModel 离线模式下的模型，根据系统提示词返回固定内容
type MockChatModel struct{}

func NewMockChatModel() *MockChatModel { return &MockChatModel{} }

func (m *MockChatModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	var system string
	for _, msg := range input {
		if msg.Role == schema.System {
			system = msg.Content
			break
		}
	}

	var content string
	switch {
	case strings.Contains(system, "文生图"):
		content = "【提示词开始】明亮的教室里，两名留学生互相问候并介绍自己，扁平插画风格，色彩明快，16:9，高清【提示词结束】"
	case strings.Contains(system, "文生视频"):
		content = "【提示词开始】两名留学生在校园里相遇，微笑着打招呼并握手，镜头缓慢推近，温暖明亮的午后氛围【提示词结束】"
	default:
		content = "一、教学目标\n（一）知识目标\n掌握问候语。\n二、教学内容\n（一）生词\n你好 nǐ hǎo\n名字 míngzi\n（二）课文\n【课文开始】" +
			mockLessonText + "【课文结束】\n（三）语法\n“是”字句\n"
	}

	return &schema.Message{
		Role:    schema.Assistant,
		Content: content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: "stop",
			Usage:        &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		},
	}, nil
}

func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}
