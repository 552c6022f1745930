// Package xunfei 讯飞流式语音合成（WebSocket）
package xunfei

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// 帧状态，2表示最后一帧
const statusLast = 2

const defaultReadTimeout = 30 * time.Second

var (
	ErrEmptyText = errors.New("empty text")
	ErrTTS       = errors.New("xunfei tts error")
)

type Client struct {
	AppID      string
	APIKey     string
	APISecret  string
	HostURL    string
	Voice      string
	Volume     int
	Speed      int
	Pitch      int
	SampleRate int
	Mock       bool

	// ReadTimeout 等待下一帧的最长时间，为0时使用defaultReadTimeout
	ReadTimeout time.Duration
	Dialer      *websocket.Dialer
	Now         func() time.Time
}

// AuthURL 按讯飞规则对 host、date、request-line 做HMAC-SHA256签名，生成带鉴权参数的wss地址
func (c *Client) AuthURL(now time.Time) (string, error) {
	u, err := url.Parse(c.HostURL)
	if err != nil {
		return "", fmt.Errorf("parse host url: %w", err)
	}
	date := now.UTC().Format(http.TimeFormat)
	origin := fmt.Sprintf("host: %s\ndate: %s\nGET %s HTTP/1.1", u.Host, date, u.Path)

	mac := hmac.New(sha256.New, []byte(c.APISecret))
	mac.Write([]byte(origin))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authOrigin := fmt.Sprintf(`api_key="%s", algorithm="%s", headers="%s", signature="%s"`,
		c.APIKey, "hmac-sha256", "host date request-line", signature)

	q := url.Values{}
	q.Set("host", u.Host)
	q.Set("date", date)
	q.Set("authorization", base64.StdEncoding.EncodeToString([]byte(authOrigin)))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type request struct {
	Header    requestHeader    `json:"header"`
	Parameter requestParameter `json:"parameter"`
	Payload   requestPayload   `json:"payload"`
}

type requestHeader struct {
	AppID  string `json:"app_id"`
	Status int    `json:"status"`
}

type requestParameter struct {
	TTS struct {
		VCN    string `json:"vcn"`
		Volume int    `json:"volume"`
		Speed  int    `json:"speed"`
		Pitch  int    `json:"pitch"`
		Audio  struct {
			Encoding   string `json:"encoding"`
			SampleRate int    `json:"sample_rate"`
		} `json:"audio"`
	} `json:"tts"`
}

type requestPayload struct {
	Text struct {
		Encoding string `json:"encoding"`
		Status   int    `json:"status"`
		Text     string `json:"text"`
	} `json:"text"`
}

type response struct {
	Header struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		SID     string `json:"sid"`
		Status  int    `json:"status"`
	} `json:"header"`
	Payload *struct {
		Audio *struct {
			Audio  string `json:"audio"`
			Status int    `json:"status"`
		} `json:"audio"`
	} `json:"payload"`
}

func (c *Client) buildRequest(text string) request {
	var req request
	req.Header = requestHeader{AppID: c.AppID, Status: statusLast}
	req.Parameter.TTS.VCN = c.Voice
	req.Parameter.TTS.Volume = c.Volume
	req.Parameter.TTS.Speed = c.Speed
	req.Parameter.TTS.Pitch = c.Pitch
	req.Parameter.TTS.Audio.Encoding = "lame"
	req.Parameter.TTS.Audio.SampleRate = c.SampleRate
	req.Payload.Text.Encoding = "utf8"
	req.Payload.Text.Status = statusLast
	req.Payload.Text.Text = base64.StdEncoding.EncodeToString([]byte(text))
	return req
}

// Synthesize 合成text并把mp3音频流依次写入w，收到最后一帧后返回
func (c *Client) Synthesize(ctx context.Context, text string, w io.Writer) error {
	if text == "" {
		return ErrEmptyText
	}
	if c.Mock {
		_, err := w.Write([]byte("ID3mock"))
		return err
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	authURL, err := c.AuthURL(now())
	if err != nil {
		return err
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, authURL, nil)
	if err != nil {
		return fmt.Errorf("dial tts: %w", err)
	}
	defer conn.Close()

	// ctx取消时关闭连接以中断阻塞的读
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteJSON(c.buildRequest(text)); err != nil {
		return fmt.Errorf("send tts request: %w", err)
	}

	readTimeout := c.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read tts frame: %w", err)
		}
		var res response
		if err := json.Unmarshal(message, &res); err != nil {
			return fmt.Errorf("decode tts frame: %w", err)
		}
		if res.Header.Code != 0 {
			return fmt.Errorf("%w: code=%d sid=%s %s", ErrTTS, res.Header.Code, res.Header.SID, res.Header.Message)
		}
		if res.Payload == nil || res.Payload.Audio == nil {
			if res.Header.Status == statusLast {
				return nil
			}
			continue
		}
		audio, err := base64.StdEncoding.DecodeString(res.Payload.Audio.Audio)
		if err != nil {
			return fmt.Errorf("decode tts audio: %w", err)
		}
		if _, err := w.Write(audio); err != nil {
			return err
		}
		if res.Payload.Audio.Status == statusLast {
			logrus.WithField("sid", res.Header.SID).Debug("tts finished")
			return nil
		}
	}
}
