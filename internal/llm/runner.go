package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

var ErrEmptyResponse = errors.New("empty model response")

const (
	nodeTemplate = "template"
	nodeModel    = "model"
)

// Runner 编译好的 模板 → 模型 图，可并发调用
type Runner struct {
	graph compose.Runnable[map[string]any, *schema.Message]
}

// NewRunner 用系统提示词和FString格式的用户模板构建图。
// 系统提示词原样发送，不参与变量替换。
func NewRunner(ctx context.Context, cm einomodel.BaseChatModel, system, userTemplate string) (*Runner, error) {
	tpl := prompt.FromMessages(schema.FString,
		&schema.Message{Role: schema.System, Content: escapeBraces(system)},
		&schema.Message{Role: schema.User, Content: userTemplate},
	)

	g := compose.NewGraph[map[string]any, *schema.Message]()
	if err := g.AddChatTemplateNode(nodeTemplate, tpl); err != nil {
		return nil, fmt.Errorf("add template node: %w", err)
	}
	if err := g.AddChatModelNode(nodeModel, cm); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := g.AddEdge(compose.START, nodeTemplate); err != nil {
		return nil, err
	}
	if err := g.AddEdge(nodeTemplate, nodeModel); err != nil {
		return nil, err
	}
	if err := g.AddEdge(nodeModel, compose.END); err != nil {
		return nil, err
	}

	r, err := g.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile graph: %w", err)
	}
	return &Runner{graph: r}, nil
}

// Run 代入变量调用模型，返回非空的模型消息
func (r *Runner) Run(ctx context.Context, vars map[string]any, opts ...einomodel.Option) (*schema.Message, error) {
	msg, err := r.graph.Invoke(ctx, vars, compose.WithChatModelOption(opts...))
	if err != nil {
		return nil, fmt.Errorf("graph invocation failed: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, ErrEmptyResponse
	}
	return msg, nil
}

// escapeBraces 让FString把花括号当作普通字符
func escapeBraces(s string) string {
	s = strings.ReplaceAll(s, "{", "{{")
	return strings.ReplaceAll(s, "}", "}}")
}
