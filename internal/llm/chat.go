// Package llm 文本大模型接入：按配置创建eino ChatModel，并以compose图的方式
// 串联提示词模板与模型节点。
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"

	"lessonmedia/internal/config"
)

var ErrMissingKey = errors.New("missing api key")

// NewChatModel 按provider创建模型：qwen走DashScope的OpenAI兼容接口，ark走火山方舟
func NewChatModel(ctx context.Context, cfg config.LLMConfig, keys config.Keys, httpClient *http.Client, mock bool) (einomodel.BaseChatModel, error) {
	if mock {
		return NewMockChatModel(), nil
	}

	switch cfg.Provider {
	case "qwen":
		if keys.DashScope == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, config.EnvDashScopeKey)
		}
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:     keys.DashScope,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create qwen chat model: %w", err)
		}
		return cm, nil
	case "ark":
		if keys.Ark == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, config.EnvArkKey)
		}
		cm, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:     keys.Ark,
			BaseURL:    cfg.BaseURL,
			HTTPClient: httpClient,
			Model:      cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ark chat model: %w", err)
		}
		return cm, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}
