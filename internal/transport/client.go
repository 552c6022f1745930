// Package transport 提供各远程服务共用的HTTP客户端：统一超时、对瞬时错误做有限次指数退避重试。
package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"lessonmedia/internal/config"
)

var (
	ErrEmptyURL   = errors.New("empty download url")
	ErrBadDataURL = errors.New("malformed data url")
)

// StatusError 非2xx响应
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// Retryable 429和5xx视为瞬时错误
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client 带重试的HTTP客户端
type Client struct {
	HTTPClient  *http.Client
	MaxRetries  int
	BackoffBase time.Duration
}

// New 根据配置创建客户端
func New(c config.HTTPConfig) *Client {
	return &Client{
		HTTPClient:  &http.Client{Timeout: c.HTTPTimeout()},
		MaxRetries:  c.MaxRetries,
		BackoffBase: c.BackoffBase(),
	}
}

// WithTimeout 返回共享重试策略、但单次请求超时不同的副本
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	cp := *c
	cp.HTTPClient = &http.Client{Timeout: timeout, Transport: c.HTTPClient.Transport}
	return &cp
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.BackoffBase
	b.MaxElapsedTime = 0
	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do 发送请求，网络错误与可重试状态码会按退避策略重试。
// 有请求体时必须可通过GetBody重建（http.NewRequest对bytes/strings reader会自动设置）。
// 返回的响应状态一定是2xx，调用方负责关闭Body。
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := c.retry(req, func(r *http.Request) error {
		res, err := c.HTTPClient.Do(r)
		if err != nil {
			return err
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
			res.Body.Close()
			statusErr := &StatusError{Code: res.StatusCode, Body: string(bytes.TrimSpace(body))}
			if statusErr.Retryable() {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		resp = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Standard 返回带同一重试策略的*http.Client，供只接受标准客户端的SDK（如大模型客户端）使用。
// timeout覆盖包括重试在内的整次调用，为0时不限制。
func (c *Client) Standard(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &retryTransport{c: c, base: c.HTTPClient.Transport},
	}
}

// retryTransport 把重试策略放在RoundTripper层。
// 非2xx响应原样交给上层解析；可重试状态码在重试耗尽后返回最后一次响应。
type retryTransport struct {
	c    *Client
	base http.RoundTripper
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	var last *http.Response
	err := t.c.retry(req, func(r *http.Request) error {
		last = nil
		res, err := base.RoundTrip(r)
		if err != nil {
			return err
		}
		statusErr := &StatusError{Code: res.StatusCode}
		if !statusErr.Retryable() {
			last = res
			return nil
		}
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			return err
		}
		res.Body = io.NopCloser(bytes.NewReader(body))
		last = res
		statusErr.Body = string(bytes.TrimSpace(body))
		return statusErr
	})
	var statusErr *StatusError
	if err != nil && !(errors.As(err, &statusErr) && last != nil) {
		return nil, err
	}
	return last, nil
}

// retry 按退避策略执行op，第二次起用GetBody重建请求体
func (c *Client) retry(req *http.Request, op func(r *http.Request) error) error {
	ctx := req.Context()
	attempt := 0

	try := func() error {
		attempt++
		r := req
		if attempt > 1 && req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			r = req.Clone(ctx)
			r.Body = body
		}
		err := op(r)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logrus.WithFields(logrus.Fields{
			"method":  req.Method,
			"url":     req.URL.Redacted(),
			"attempt": attempt,
			"wait":    wait,
		}).WithError(err).Warn("请求失败，准备重试")
	}

	return backoff.RetryNotify(try, c.newBackOff(ctx), notify)
}

// PostJSON 以JSON发送body并把响应解码到out（out为nil时丢弃响应体）
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.doJSON(req, out)
}

// GetJSON 发送GET请求并把响应解码到out
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if out == nil {
		_, err = io.Copy(io.Discard, res.Body)
		return err
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Download 把url的内容写入path，支持data URL；失败时删除不完整的文件
func (c *Client) Download(ctx context.Context, url, path string) error {
	if url == "" {
		return ErrEmptyURL
	}
	if strings.HasPrefix(url, "data:") {
		return saveDataURL(url, path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return writeFile(path, res.Body)
}

// saveDataURL 处理 data:<mime>;base64,<payload> 形式的内联内容
func saveDataURL(url, path string) error {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(url, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return ErrBadDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	return writeFile(path, bytes.NewReader(data))
}

func writeFile(path string, r io.Reader) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if _, err = io.Copy(f, r); err != nil {
		return err
	}
	return nil
}
