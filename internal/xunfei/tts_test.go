package xunfei_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lessonmedia/internal/xunfei"
)

func TestAuthURL(t *testing.T) {
	c := &xunfei.Client{
		APIKey:    "key",
		APISecret: "secret",
		HostURL:   "wss://tts.example.com/v1/private/abc",
	}
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	raw, err := c.AuthURL(now)
	if err != nil {
		t.Fatalf("AuthURL() error = %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("host") != "tts.example.com" {
		t.Errorf("host = %q", q.Get("host"))
	}
	if q.Get("date") != "Wed, 01 May 2024 08:00:00 GMT" {
		t.Errorf("date = %q", q.Get("date"))
	}

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("host: tts.example.com\ndate: Wed, 01 May 2024 08:00:00 GMT\nGET /v1/private/abc HTTP/1.1"))
	wantSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	auth, err := base64.StdEncoding.DecodeString(q.Get("authorization"))
	if err != nil {
		t.Fatalf("decode authorization: %v", err)
	}
	want := `api_key="key", algorithm="hmac-sha256", headers="host date request-line", signature="` + wantSig + `"`
	if string(auth) != want {
		t.Errorf("authorization = %s\nwant %s", auth, want)
	}
}

type frame struct {
	code   int
	audio  []byte
	status int
}

func ttsServer(t *testing.T, frames []frame) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req struct {
			Header struct {
				AppID string `json:"app_id"`
			} `json:"header"`
			Parameter struct {
				TTS struct {
					VCN string `json:"vcn"`
				} `json:"tts"`
			} `json:"parameter"`
			Payload struct {
				Text struct {
					Text string `json:"text"`
				} `json:"text"`
			} `json:"payload"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read request: %v", err)
			return
		}
		text, _ := base64.StdEncoding.DecodeString(req.Payload.Text.Text)
		if req.Header.AppID != "app" || req.Parameter.TTS.VCN != "voice" || string(text) != "你好，世界。" {
			t.Errorf("request = %+v text=%q", req, text)
		}

		for _, f := range frames {
			msg := map[string]any{
				"header": map[string]any{"code": f.code, "message": "msg", "sid": "sid-1", "status": f.status},
			}
			if f.code == 0 {
				msg["payload"] = map[string]any{
					"audio": map[string]any{"audio": base64.StdEncoding.EncodeToString(f.audio), "status": f.status},
				}
			}
			b, _ := json.Marshal(msg)
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/private/abc"
}

func newClient(host string) *xunfei.Client {
	return &xunfei.Client{
		AppID:      "app",
		APIKey:     "key",
		APISecret:  "secret",
		HostURL:    host,
		Voice:      "voice",
		SampleRate: 24000,
	}
}

func TestSynthesize(t *testing.T) {
	host := ttsServer(t, []frame{
		{audio: []byte("ab"), status: 1},
		{audio: []byte("cd"), status: 2},
	})

	var buf bytes.Buffer
	if err := newClient(host).Synthesize(context.Background(), "你好，世界。", &buf); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if buf.String() != "abcd" {
		t.Errorf("audio = %q", buf.String())
	}
}

func TestSynthesizeServerError(t *testing.T) {
	host := ttsServer(t, []frame{{code: 10105, status: 2}})

	err := newClient(host).Synthesize(context.Background(), "你好，世界。", &bytes.Buffer{})
	if !errors.Is(err, xunfei.ErrTTS) {
		t.Errorf("Synthesize() error = %v, want ErrTTS", err)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	err := newClient("wss://unused").Synthesize(context.Background(), "", &bytes.Buffer{})
	if !errors.Is(err, xunfei.ErrEmptyText) {
		t.Errorf("Synthesize() error = %v, want ErrEmptyText", err)
	}
}

func TestSynthesizeMock(t *testing.T) {
	c := newClient("wss://unused")
	c.Mock = true
	var buf bytes.Buffer
	if err := c.Synthesize(context.Background(), "文本", &buf); err != nil || buf.Len() == 0 {
		t.Errorf("Synthesize() = %v, len %d", err, buf.Len())
	}
}

func TestSynthesizeStalledServer(t *testing.T) {
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := newClient("ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/private/abc")
	c.ReadTimeout = 200 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- c.Synthesize(context.Background(), "你好，世界。", &bytes.Buffer{}) }()
	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "read tts frame") {
			t.Errorf("Synthesize() error = %v, want read timeout", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Synthesize() did not return after the read timeout")
	}
}
