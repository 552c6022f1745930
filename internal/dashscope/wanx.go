// Package dashscope 通义万相文生图的异步任务接口
package dashscope

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"lessonmedia/internal/transport"
)

const defaultBase = "https://dashscope.aliyuncs.com/api/v1"

const mockPixel = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR4nGNgYAAAAAMAASsJTYQAAAAASUVORK5CYII="

// 任务状态
const (
	TaskPending   = "PENDING"
	TaskRunning   = "RUNNING"
	TaskSucceeded = "SUCCEEDED"
	TaskFailed    = "FAILED"
	TaskCanceled  = "CANCELED"
	TaskUnknown   = "UNKNOWN"
)

var ErrNoTaskID = errors.New("no task id in response")

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *transport.Client
	Mock    bool
}

func NewClient(baseURL, apiKey string, httpClient *transport.Client, mock bool) *Client {
	if baseURL == "" {
		baseURL = defaultBase
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    httpClient,
		Mock:    mock,
	}
}

// ImageParams 文生图参数，Size使用"宽*高"格式
type ImageParams struct {
	Model        string
	Prompt       string
	Size         string
	N            int
	PromptExtend bool
	Watermark    bool
}

// Task 任务查询结果
type Task struct {
	ID      string
	Status  string
	URLs    []string
	Code    string
	Message string
}

type taskOutput struct {
	TaskID     string `json:"task_id"`
	TaskStatus string `json:"task_status"`
	Results    []struct {
		URL     string `json:"url"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"results"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type taskResponse struct {
	RequestID string     `json:"request_id"`
	Output    taskOutput `json:"output"`
	Code      string     `json:"code"`
	Message   string     `json:"message"`
}

// CreateImageTask 提交异步文生图任务
func (c *Client) CreateImageTask(ctx context.Context, p ImageParams) (string, error) {
	if c.Mock {
		return "mock-image-task", nil
	}
	if p.N == 0 {
		p.N = 1
	}
	body := map[string]any{
		"model": p.Model,
		"input": map[string]any{"prompt": p.Prompt},
		"parameters": map[string]any{
			"size":          p.Size,
			"n":             p.N,
			"prompt_extend": p.PromptExtend,
			"watermark":     p.Watermark,
		},
	}
	headers := c.headers()
	headers["X-DashScope-Async"] = "enable"

	var resp taskResponse
	if err := c.HTTP.PostJSON(ctx, c.BaseURL+"/services/aigc/text2image/image-synthesis", headers, body, &resp); err != nil {
		return "", fmt.Errorf("wanx create task: %w", err)
	}
	if resp.Output.TaskID == "" {
		if resp.Message != "" {
			return "", fmt.Errorf("%w: %s %s", ErrNoTaskID, resp.Code, resp.Message)
		}
		return "", ErrNoTaskID
	}
	return resp.Output.TaskID, nil
}

// GetTask 查询任务
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	if c.Mock {
		return &Task{ID: taskID, Status: TaskSucceeded, URLs: []string{"data:image/png;base64," + mockPixel}}, nil
	}
	var resp taskResponse
	if err := c.HTTP.GetJSON(ctx, c.BaseURL+"/tasks/"+url.PathEscape(taskID), c.headers(), &resp); err != nil {
		return nil, fmt.Errorf("wanx get task: %w", err)
	}
	task := &Task{
		ID:      resp.Output.TaskID,
		Status:  strings.ToUpper(resp.Output.TaskStatus),
		Code:    resp.Output.Code,
		Message: resp.Output.Message,
	}
	for _, r := range resp.Output.Results {
		if r.URL != "" {
			task.URLs = append(task.URLs, r.URL)
		} else if task.Message == "" && r.Message != "" {
			task.Code, task.Message = r.Code, r.Message
		}
	}
	return task, nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.APIKey}
}
