package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lessonmedia/internal/model"
	"lessonmedia/internal/store"
)

func fixedClock() time.Time { return time.Date(2024, 5, 1, 9, 30, 15, 0, time.Local) }

func TestLessonStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "teaching_db")
	s := &store.LessonStore{Dir: dir, Now: fixedClock}

	path, err := s.Save(&model.LessonPlan{
		Success:      true,
		StudentLevel: "HSK 3 中级",
		InputContent: "问路 <地铁>",
		TeachingPlan: "【课文开始】你好【课文结束】",
		Usage:        model.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
		Model:        "qwen3-max",
		CreatedTime:  "2024-05-01 09:30:15",
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Base(path) != "HSK_3_中级_teaching_plan_20240501_093015.json" {
		t.Errorf("file = %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	for _, want := range []string{
		"{\n  \"success\": true,\n  \"student_level\": \"HSK 3 中级\",",
		`"input_content": "问路 <地铁>"`,
		"\"usage\": {\n    \"prompt_tokens\": 1,",
		`"created_time": "2024-05-01 09:30:15"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("record missing %q:\n%s", want, got)
		}
	}
}

func TestLessonStoreSaveStaysInDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "storage", "teaching_db")
	s := &store.LessonStore{Dir: dir, Now: fixedClock}

	for _, level := range []string{"../../escaped", `..\x`, "a/b:c"} {
		path, err := s.Save(&model.LessonPlan{Success: true, StudentLevel: level})
		if err != nil {
			t.Fatalf("Save(%q) error = %v", level, err)
		}
		if filepath.Dir(path) != dir {
			t.Errorf("Save(%q) wrote %s outside %s", level, path, dir)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "..", "..", "escaped_teaching_plan_20240501_093015.json")); !os.IsNotExist(err) {
		t.Errorf("record escaped lesson dir: %v", err)
	}
}

func TestPromptStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := &store.PromptStore{Dir: dir, Now: fixedClock}

	path, err := s.Save(model.TaskVideo, "Seedance", "HSK2", "你好，世界。", "两个朋友在公园见面")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Base(path) != "20240501_093015_video_Seedance.json" {
		t.Errorf("file = %s", filepath.Base(path))
	}
	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "{\n    \"metadata\": {\n        \"created_at\": \"2024-05-01 09:30:15\",") {
		t.Errorf("unexpected layout:\n%s", data)
	}

	rec, err := store.LoadPrompt(path)
	if err != nil {
		t.Fatalf("LoadPrompt() error = %v", err)
	}
	want := model.PromptRecord{
		Metadata: model.PromptMetadata{CreatedAt: "2024-05-01 09:30:15", StudentLevel: "HSK2", Task: model.TaskVideo, Engine: "Seedance"},
		Payload:  model.PromptPayload{LessonSource: "你好，世界。", Prompt: "两个朋友在公园见面"},
	}
	if *rec != want {
		t.Errorf("LoadPrompt() = %+v, want %+v", *rec, want)
	}
}

func TestLoadPromptInvalid(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"missing file", filepath.Join(dir, "nope.json"), os.ErrNotExist},
		{"no prompt", write("a.json", `{"metadata":{"task":"image"},"payload":{"prompt":"  "}}`), store.ErrInvalidRecord},
		{"bad task", write("b.json", `{"metadata":{"task":"audio"},"payload":{"prompt":"p"}}`), store.ErrInvalidRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.LoadPrompt(tt.path); !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadPrompt() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := store.LoadPrompt(write("c.json", "{not json")); err == nil {
		t.Error("malformed json: want error")
	}
}
