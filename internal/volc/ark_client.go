package volc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"lessonmedia/internal/transport"
)

const (
	defaultBase = "https://ark.cn-beijing.volces.com"
)

// 1x1 PNG
const mockPixel = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR4nGNgYAAAAAMAASsJTYQAAAAASUVORK5CYII="

var (
	ErrNoImages = errors.New("no images returned")
	ErrNoTaskID = errors.New("no task id in response")
)

// 视频任务状态
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

type ArkClient struct {
	BaseURL string
	APIKey  string
	HTTP    *transport.Client
	Mock    bool
}

func NewArkClient(baseURL, apiKey string, httpClient *transport.Client, mock bool) *ArkClient {
	if baseURL == "" {
		baseURL = defaultBase
	}
	return &ArkClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    httpClient,
		Mock:    mock,
	}
}

type ImageGenParams struct {
	Model     string
	Prompt    string
	Size      string
	Watermark bool
}

// GenerateImages 调用Seedream生成图片，返回图片URL（或data URL）
func (c *ArkClient) GenerateImages(ctx context.Context, p ImageGenParams) ([]string, error) {
	if c.Mock {
		return []string{"data:image/png;base64," + mockPixel}, nil
	}
	if p.Model == "" {
		p.Model = "doubao-seedream-4-0-250828"
	}
	if p.Size == "" {
		p.Size = "2048x2048"
	}
	body := map[string]any{
		"model":           p.Model,
		"prompt":          p.Prompt,
		"size":            p.Size,
		"response_format": "url",
		"watermark":       p.Watermark,
	}

	var resp struct {
		Data []struct {
			URL    string `json:"url"`
			B64    string `json:"b64_json"`
			Format string `json:"format"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/api/v3/images/generations", body, &resp); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.URL != "" {
			urls = append(urls, d.URL)
			continue
		}
		if d.B64 != "" {
			fmtType := d.Format
			if fmtType == "" {
				fmtType = "png"
			}
			urls = append(urls, "data:image/"+fmtType+";base64,"+d.B64)
		}
	}
	if len(urls) == 0 {
		return nil, ErrNoImages
	}
	return urls, nil
}

type VideoTaskParams struct {
	Model  string
	Prompt string
}

// CreateVideoTask 提交文生视频任务，返回任务ID
func (c *ArkClient) CreateVideoTask(ctx context.Context, p VideoTaskParams) (string, error) {
	if c.Mock {
		return "mock-task", nil
	}
	if p.Model == "" {
		p.Model = "doubao-seedance-1-5-pro-251215"
	}
	body := map[string]any{
		"model": p.Model,
		"content": []map[string]any{
			{"type": "text", "text": p.Prompt},
		},
	}
	var resp struct {
		ID     string `json:"id"`
		TaskID string `json:"task_id"`
	}
	if err := c.postJSON(ctx, "/api/v3/contents/generations/tasks", body, &resp); err != nil {
		return "", err
	}
	if resp.ID != "" {
		return resp.ID, nil
	}
	if resp.TaskID != "" {
		return resp.TaskID, nil
	}
	return "", ErrNoTaskID
}

// VideoTask 视频任务查询结果
type VideoTask struct {
	ID       string
	Status   string
	VideoURL string
	Error    string
}

// GetVideoTask 查询视频任务状态
func (c *ArkClient) GetVideoTask(ctx context.Context, taskID string) (*VideoTask, error) {
	if c.Mock {
		return &VideoTask{
			ID:       taskID,
			Status:   StatusSucceeded,
			VideoURL: "data:video/mp4;base64," + mockPixel,
		}, nil
	}
	var resp struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		VideoURL string `json:"video_url"`
		Content  struct {
			VideoURL string `json:"video_url"`
		} `json:"content"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	path := "/api/v3/contents/generations/tasks/" + url.PathEscape(taskID)
	if err := c.HTTP.GetJSON(ctx, c.BaseURL+path, c.headers(), &resp); err != nil {
		return nil, err
	}
	task := &VideoTask{
		ID:       resp.ID,
		Status:   strings.ToLower(resp.Status),
		VideoURL: resp.Content.VideoURL,
	}
	if task.VideoURL == "" {
		task.VideoURL = resp.VideoURL
	}
	if resp.Error != nil {
		task.Error = strings.TrimSpace(resp.Error.Code + " " + resp.Error.Message)
	}
	return task, nil
}

func (c *ArkClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.APIKey}
}

func (c *ArkClient) postJSON(ctx context.Context, path string, body any, out any) error {
	logrus.WithField("path", path).Debug("ark request")
	if err := c.HTTP.PostJSON(ctx, c.BaseURL+path, c.headers(), body, out); err != nil {
		return fmt.Errorf("ark %s: %w", path, err)
	}
	return nil
}
