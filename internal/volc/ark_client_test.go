package volc_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lessonmedia/internal/config"
	"lessonmedia/internal/transport"
	"lessonmedia/internal/volc"
)

func newArk(t *testing.T, h http.HandlerFunc) *volc.ArkClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return volc.NewArkClient(srv.URL+"/", "ark-key", transport.New(config.HTTPConfig{TimeoutSeconds: 5}), false)
}

func TestCreateVideoTask(t *testing.T) {
	ark := newArk(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v3/contents/generations/tasks" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer ark-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var body struct {
			Model   string `json:"model"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Model != "seedance" || len(body.Content) != 1 || body.Content[0].Text != "一只猫" {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte(`{"id":"cgt-1"}`))
	})

	id, err := ark.CreateVideoTask(context.Background(), volc.VideoTaskParams{Model: "seedance", Prompt: "一只猫"})
	if err != nil {
		t.Fatalf("CreateVideoTask() error = %v", err)
	}
	if id != "cgt-1" {
		t.Errorf("id = %q", id)
	}
}

func TestCreateVideoTaskWithoutID(t *testing.T) {
	ark := newArk(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	if _, err := ark.CreateVideoTask(context.Background(), volc.VideoTaskParams{Prompt: "x"}); !errors.Is(err, volc.ErrNoTaskID) {
		t.Errorf("error = %v, want ErrNoTaskID", err)
	}
}

func TestGetVideoTask(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus string
		wantURL    string
		wantErr    string
	}{
		{
			"succeeded with content url",
			`{"id":"cgt-1","status":"succeeded","content":{"video_url":"https://v/1.mp4"}}`,
			volc.StatusSucceeded, "https://v/1.mp4", "",
		},
		{
			"legacy top-level url",
			`{"id":"cgt-1","status":"SUCCEEDED","video_url":"https://v/2.mp4"}`,
			volc.StatusSucceeded, "https://v/2.mp4", "",
		},
		{
			"failed",
			`{"id":"cgt-1","status":"failed","error":{"code":"InputTextSensitive","message":"blocked"}}`,
			volc.StatusFailed, "", "InputTextSensitive blocked",
		},
		{
			"running",
			`{"id":"cgt-1","status":"running"}`,
			volc.StatusRunning, "", "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ark := newArk(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v3/contents/generations/tasks/cgt-1" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			})
			task, err := ark.GetVideoTask(context.Background(), "cgt-1")
			if err != nil {
				t.Fatalf("GetVideoTask() error = %v", err)
			}
			if task.Status != tt.wantStatus || task.VideoURL != tt.wantURL || task.Error != tt.wantErr {
				t.Errorf("task = %+v", task)
			}
		})
	}
}

func TestGenerateImages(t *testing.T) {
	ark := newArk(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"url":"https://img/1.png"},{"b64_json":"AAAA","format":"jpeg"},{}]}`))
	})

	urls, err := ark.GenerateImages(context.Background(), volc.ImageGenParams{Prompt: "教室"})
	if err != nil {
		t.Fatalf("GenerateImages() error = %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://img/1.png" || urls[1] != "data:image/jpeg;base64,AAAA" {
		t.Errorf("urls = %v", urls)
	}
}

func TestGenerateImagesEmpty(t *testing.T) {
	ark := newArk(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})
	if _, err := ark.GenerateImages(context.Background(), volc.ImageGenParams{Prompt: "x"}); !errors.Is(err, volc.ErrNoImages) {
		t.Errorf("error = %v, want ErrNoImages", err)
	}
}

func TestMockMode(t *testing.T) {
	ark := volc.NewArkClient("", "", nil, true)
	id, err := ark.CreateVideoTask(context.Background(), volc.VideoTaskParams{Prompt: "x"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := ark.GetVideoTask(context.Background(), id)
	if err != nil || task.Status != volc.StatusSucceeded || !strings.HasPrefix(task.VideoURL, "data:video/mp4;base64,") {
		t.Errorf("task = %+v, err = %v", task, err)
	}
	urls, err := ark.GenerateImages(context.Background(), volc.ImageGenParams{Prompt: "x"})
	if err != nil || len(urls) != 1 {
		t.Errorf("urls = %v, err = %v", urls, err)
	}
}
