// Package store 教案库与提示词库：每条记录是一个带时间戳的JSON文件。
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lessonmedia/internal/media"
	"lessonmedia/internal/model"
)

var ErrInvalidRecord = errors.New("invalid prompt record")

const (
	fileStamp    = "20060102_150405"
	createdStamp = time.DateTime
)

// LessonStore 教案库
type LessonStore struct {
	Dir string
	Now func() time.Time
}

func NewLessonStore(dir string) *LessonStore {
	return &LessonStore{Dir: dir, Now: time.Now}
}

// Save 写入 {等级}_teaching_plan_{时间}.json，等级中的空白与路径字符替换为下划线
func (s *LessonStore) Save(plan *model.LessonPlan) (string, error) {
	name := fmt.Sprintf("%s_teaching_plan_%s.json",
		media.SafeName(plan.StudentLevel), s.now().Format(fileStamp))
	path := filepath.Join(s.Dir, name)
	if err := writeJSON(path, plan, "  "); err != nil {
		return "", err
	}
	return path, nil
}

func (s *LessonStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// PromptStore 提示词库
type PromptStore struct {
	Dir string
	Now func() time.Time
}

func NewPromptStore(dir string) *PromptStore {
	return &PromptStore{Dir: dir, Now: time.Now}
}

// Save 写入 {时间}_{任务}_{引擎}.json
func (s *PromptStore) Save(task model.TaskType, engine, level, lessonText, prompt string) (string, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	rec := model.PromptRecord{
		Metadata: model.PromptMetadata{
			CreatedAt:    now.Format(createdStamp),
			StudentLevel: level,
			Task:         task,
			Engine:       engine,
		},
		Payload: model.PromptPayload{
			LessonSource: lessonText,
			Prompt:       prompt,
		},
	}
	name := fmt.Sprintf("%s_%s_%s.json", now.Format(fileStamp), task, engine)
	path := filepath.Join(s.Dir, name)
	if err := writeJSON(path, rec, "    "); err != nil {
		return "", err
	}
	return path, nil
}

// LoadPrompt 读取提示词记录，用于重新生成素材
func LoadPrompt(path string) (*model.PromptRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec model.PromptRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if strings.TrimSpace(rec.Payload.Prompt) == "" {
		return nil, fmt.Errorf("%w: %s has no prompt", ErrInvalidRecord, path)
	}
	if !rec.Metadata.Task.Valid() {
		return nil, fmt.Errorf("%w: task %q", ErrInvalidRecord, rec.Metadata.Task)
	}
	return &rec, nil
}

// writeJSON 保留非ASCII字符，不转义HTML
func writeJSON(path string, v any, indent string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, bytes.TrimRight(buf.Bytes(), "\n"), 0o644)
}
