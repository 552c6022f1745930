package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"lessonmedia/internal/model"
	"lessonmedia/internal/pipeline"
	"lessonmedia/internal/server"
	"lessonmedia/internal/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	err error
}

func (f fakeRunner) Run(_ context.Context, level, topic string) (*model.PipelineRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	run := model.NewPipelineRun("run-1", level, topic, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	run.Prompts[model.TaskImage] = model.Succeeded("a classroom")
	run.Media[model.ArtifactImage] = model.Succeeded("/out/HSK1_000000.png")
	run.Media[model.ArtifactVideo] = model.Failed("task timed out")
	return run, nil
}

type echoPrompts struct{}

func (echoPrompts) Generate(_ context.Context, task model.TaskType, level, lessonText string) (string, error) {
	return "prompt", nil
}

func router(t *testing.T, runner server.Runner) *gin.Engine {
	t.Helper()
	reg, err := tools.NewRegistry(context.Background(), tools.NewPromptTool(echoPrompts{}))
	if err != nil {
		t.Fatal(err)
	}
	return server.NewRouter(runner, reg)
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPostLessons(t *testing.T) {
	w := do(router(t, fakeRunner{}), http.MethodPost, "/lessons", `{"student_level":"HSK1","content":"问候"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	var resp struct {
		Run struct {
			ID    string `json:"id"`
			Media map[string]struct {
				Success bool   `json:"success"`
				Payload string `json:"payload"`
				Error   string `json:"error"`
			} `json:"media"`
		} `json:"run"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Run.ID != "run-1" {
		t.Errorf("id = %q", resp.Run.ID)
	}
	if img := resp.Run.Media["image"]; !img.Success || img.Payload != "/out/HSK1_000000.png" {
		t.Errorf("image = %+v", img)
	}
	if vid := resp.Run.Media["video"]; vid.Success || vid.Error != "task timed out" {
		t.Errorf("video = %+v", vid)
	}
	if !strings.Contains(resp.Summary, "task timed out") {
		t.Errorf("summary = %q", resp.Summary)
	}
}

func TestPostLessonsErrors(t *testing.T) {
	tests := []struct {
		name   string
		runner server.Runner
		body   string
		want   int
	}{
		{"bad json", fakeRunner{}, `{`, http.StatusBadRequest},
		{"empty level", fakeRunner{err: pipeline.ErrEmptyLevel}, `{"content":"x"}`, http.StatusBadRequest},
		{"plan failure", fakeRunner{err: &pipeline.StageError{Stage: pipeline.StagePlan, Err: errors.New("401")}}, `{"student_level":"a","content":"b"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(router(t, tt.runner), http.MethodPost, "/lessons", tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestParseAndRefine(t *testing.T) {
	r := router(t, fakeRunner{})

	w := do(r, http.MethodPost, "/lessons/parse", `{"teaching_plan":"前言【课文开始】你好，世界。【课文结束】后记"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"lesson_text":"你好，世界。"`) {
		t.Errorf("parse: %d %s", w.Code, w.Body)
	}

	w = do(r, http.MethodPost, "/prompts/refine", `{"raw":"blah 【提示词开始】 a cat on a mat 【提示词结束】 blah"}`)
	if w.Code != http.StatusOK || w.Body.String() != `{"prompt":"a cat on a mat"}` {
		t.Errorf("refine: %d %s", w.Code, w.Body)
	}
}

func TestTools(t *testing.T) {
	r := router(t, fakeRunner{})

	w := do(r, http.MethodGet, "/tools", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "media_prompt") {
		t.Errorf("list: %d %s", w.Code, w.Body)
	}

	w = do(r, http.MethodPost, "/tools/media_prompt", `{"task":"image","student_level":"HSK1","lesson_text":"t"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"prompt":"prompt"`) {
		t.Errorf("run: %d %s", w.Code, w.Body)
	}

	if w = do(r, http.MethodPost, "/tools/unknown", `{}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown: %d", w.Code)
	}
	if w = do(r, http.MethodPost, "/tools/media_prompt", `{"task":"audio"}`); w.Code != http.StatusInternalServerError {
		t.Errorf("invalid args: %d", w.Code)
	}
	if w = do(r, http.MethodPost, "/tools/media_prompt", ``); w.Code != http.StatusBadRequest {
		t.Errorf("empty body: %d", w.Code)
	}
}
