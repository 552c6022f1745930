package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFile = "config.toml"

	EnvConfigFile      = "LESSON_CONFIG"
	EnvStorageRoot     = "LESSON_STORAGE_ROOT"
	EnvLogLevel        = "LESSON_LOG_LEVEL"
	EnvDashScopeKey    = "DASHSCOPE_API_KEY"
	EnvArkKey          = "ARK_API_KEY"
	EnvArkMock         = "ARK_MOCK"
	EnvXunfeiAppID     = "XUNFEI_APPID"
	EnvXunfeiAPIKey    = "XUNFEI_API_KEY"
	EnvXunfeiAPISecret = "XUNFEI_API_SECRET"
)

var (
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrUnknownEngine   = errors.New("unknown image engine")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Config 应用全部配置
type Config struct {
	Mock     bool           `toml:"mock"`
	Keys     Keys           `toml:"keys"`
	Storage  StorageConfig  `toml:"storage"`
	LLM      LLMConfig      `toml:"llm"`
	Image    ImageConfig    `toml:"image"`
	Video    VideoConfig    `toml:"video"`
	TTS      TTSConfig      `toml:"tts"`
	HTTP     HTTPConfig     `toml:"http"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// Keys 各服务的鉴权信息，环境变量优先
type Keys struct {
	DashScope    string `toml:"dashscope"`
	Ark          string `toml:"ark"`
	XunfeiAppID  string `toml:"xunfei_app_id"`
	XunfeiKey    string `toml:"xunfei_api_key"`
	XunfeiSecret string `toml:"xunfei_api_secret"`
}

// StorageConfig 教案库、提示词库和媒体素材目录
type StorageConfig struct {
	Root     string `toml:"root"`
	LessonDB string `toml:"lesson_db"`
	PromptDB string `toml:"prompt_db"`
	Output   string `toml:"output"`
}

// LLMConfig 文本模型配置，provider为qwen（DashScope兼容模式）或ark。
// 采样参数未配置时取默认值，显式配置的0会原样传给模型。
type LLMConfig struct {
	Provider          string   `toml:"provider"`
	Model             string   `toml:"model"`
	BaseURL           string   `toml:"base_url"`
	Temperature       *float32 `toml:"temperature"`
	TopP              *float32 `toml:"top_p"`
	PromptTemperature *float32 `toml:"prompt_temperature"` // 提示词生成使用的温度
	TimeoutSeconds    float64  `toml:"timeout_seconds"`    // 含重试在内的单次模型调用上限
}

// ImageConfig 文生图配置，engine为wanx或seedream
type ImageConfig struct {
	Engine              string  `toml:"engine"`
	Model               string  `toml:"model"`
	Size                string  `toml:"size"`
	BaseURL             string  `toml:"base_url"`
	PollIntervalSeconds float64 `toml:"poll_interval_seconds"` // 仅wanx异步任务使用
	TimeoutSeconds      float64 `toml:"timeout_seconds"`
}

// VideoConfig Seedance文生视频配置
type VideoConfig struct {
	Model               string  `toml:"model"`
	BaseURL             string  `toml:"base_url"`
	PollIntervalSeconds float64 `toml:"poll_interval_seconds"`
	TimeoutSeconds      float64 `toml:"timeout_seconds"`
	Duration            int     `toml:"duration"`
	CameraFixed         bool    `toml:"camera_fixed"`
	DisableWatermark    bool    `toml:"disable_watermark"`
}

// TTSConfig 讯飞语音合成配置，volume/speed/pitch取值0~100
type TTSConfig struct {
	HostURL        string  `toml:"host_url"`
	Voice          string  `toml:"voice"`
	Volume         *int    `toml:"volume"`
	Speed          *int    `toml:"speed"`
	Pitch          *int    `toml:"pitch"`
	SampleRate     int     `toml:"sample_rate"`
	TimeoutSeconds float64 `toml:"timeout_seconds"` // 两帧之间的最长等待
}

// HTTPConfig 共享HTTP客户端的超时与重试策略
type HTTPConfig struct {
	MaxRetries         int     `toml:"max_retries"`
	TimeoutSeconds     float64 `toml:"timeout_seconds"`
	BackoffBaseSeconds float64 `toml:"backoff_base_seconds"`
}

// PipelineConfig 流水线行为
type PipelineConfig struct {
	ParallelMedia    bool `toml:"parallel_media"`
	TopicPrefixRunes int  `toml:"topic_prefix_runes"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Load 读取配置文件（不存在时只使用默认值和环境变量），随后应用环境变量、默认值并校验
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path == "" {
		path = DefaultConfigFile
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

func (c *Config) finalize() error {
	c.loadEnv()
	c.loadDefaults()
	return c.validate()
}

func (c *Config) loadEnv() {
	setString(&c.Keys.DashScope, EnvDashScopeKey)
	setString(&c.Keys.Ark, EnvArkKey)
	setString(&c.Keys.XunfeiAppID, EnvXunfeiAppID)
	setString(&c.Keys.XunfeiKey, EnvXunfeiAPIKey)
	setString(&c.Keys.XunfeiSecret, EnvXunfeiAPISecret)
	setString(&c.Storage.Root, EnvStorageRoot)
	setString(&c.Log.Level, EnvLogLevel)

	if v := strings.ToLower(strings.TrimSpace(os.Getenv(EnvArkMock))); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Mock = b
		}
	}
}

func (c *Config) loadDefaults() {
	if c.Storage.Root == "" {
		c.Storage.Root = "storage"
	}
	if c.Storage.LessonDB == "" {
		c.Storage.LessonDB = filepath.Join(c.Storage.Root, "teaching_db")
	}
	if c.Storage.PromptDB == "" {
		c.Storage.PromptDB = filepath.Join(c.Storage.Root, "prompt_db")
	}
	if c.Storage.Output == "" {
		c.Storage.Output = filepath.Join(c.Storage.Root, "output")
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "qwen"
	}
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case "ark":
			c.LLM.Model = "doubao-seed-1-6-250615"
		default:
			c.LLM.Model = "qwen3-max"
		}
	}
	if c.LLM.BaseURL == "" && c.LLM.Provider == "qwen" {
		c.LLM.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	setDefault(&c.LLM.Temperature, 0.7)
	setDefault(&c.LLM.TopP, 0.3)
	setDefault(&c.LLM.PromptTemperature, 0.7)
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 300
	}

	if c.Image.Engine == "" {
		c.Image.Engine = "wanx"
	}
	if c.Image.Model == "" {
		switch c.Image.Engine {
		case "seedream":
			c.Image.Model = "doubao-seedream-4-0-250828"
		default:
			c.Image.Model = "wan2.5-t2i-preview"
		}
	}
	if c.Image.Size == "" {
		switch c.Image.Engine {
		case "seedream":
			c.Image.Size = "2048x2048"
		default:
			c.Image.Size = "1280*1280"
		}
	}
	if c.Image.BaseURL == "" && c.Image.Engine == "wanx" {
		c.Image.BaseURL = "https://dashscope.aliyuncs.com/api/v1"
	}
	if c.Image.PollIntervalSeconds == 0 {
		c.Image.PollIntervalSeconds = 3
	}
	if c.Image.TimeoutSeconds == 0 {
		c.Image.TimeoutSeconds = 300
	}

	if c.Video.Model == "" {
		c.Video.Model = "doubao-seedance-1-5-pro-251215"
	}
	if c.Video.BaseURL == "" {
		c.Video.BaseURL = "https://ark.cn-beijing.volces.com"
	}
	if c.Video.PollIntervalSeconds == 0 {
		c.Video.PollIntervalSeconds = 15
	}
	if c.Video.TimeoutSeconds == 0 {
		c.Video.TimeoutSeconds = 900
	}
	if c.Video.Duration == 0 {
		c.Video.Duration = 5
	}

	if c.TTS.HostURL == "" {
		c.TTS.HostURL = "wss://cbm01.cn-huabei-1.xf-yun.com/v1/private/mcd9m97e6"
	}
	if c.TTS.Voice == "" {
		c.TTS.Voice = "x6_lingfeiyi_pro"
	}
	setDefault(&c.TTS.Volume, 50)
	setDefault(&c.TTS.Speed, 50)
	setDefault(&c.TTS.Pitch, 50)
	if c.TTS.TimeoutSeconds == 0 {
		c.TTS.TimeoutSeconds = 30
	}
	if c.TTS.SampleRate == 0 {
		c.TTS.SampleRate = 24000
	}

	if c.HTTP.MaxRetries == 0 {
		c.HTTP.MaxRetries = 3
	}
	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = 60
	}
	if c.HTTP.BackoffBaseSeconds == 0 {
		c.HTTP.BackoffBaseSeconds = 1
	}

	if c.Pipeline.TopicPrefixRunes == 0 {
		c.Pipeline.TopicPrefixRunes = 10
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "qwen", "ark":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.LLM.Provider)
	}
	switch c.Image.Engine {
	case "wanx", "seedream":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, c.Image.Engine)
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("%w: http.max_retries must be >= 0", ErrInvalidValue)
	}
	if c.HTTP.TimeoutSeconds < 0 || c.HTTP.BackoffBaseSeconds < 0 {
		return fmt.Errorf("%w: http durations must be >= 0", ErrInvalidValue)
	}
	if c.Image.PollIntervalSeconds < 0 || c.Image.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: image durations must be >= 0", ErrInvalidValue)
	}
	if c.Video.PollIntervalSeconds < 0 || c.Video.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: video durations must be >= 0", ErrInvalidValue)
	}
	if *c.LLM.Temperature < 0 || *c.LLM.PromptTemperature < 0 || *c.LLM.TopP < 0 || *c.LLM.TopP > 1 {
		return fmt.Errorf("%w: llm sampling out of range", ErrInvalidValue)
	}
	if c.LLM.TimeoutSeconds < 0 || c.TTS.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: llm/tts timeouts must be >= 0", ErrInvalidValue)
	}
	for name, v := range map[string]int{"volume": *c.TTS.Volume, "speed": *c.TTS.Speed, "pitch": *c.TTS.Pitch} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: tts.%s must be within 0..100", ErrInvalidValue, name)
		}
	}
	if c.Pipeline.TopicPrefixRunes < 0 {
		return fmt.Errorf("%w: pipeline.topic_prefix_runes must be >= 0", ErrInvalidValue)
	}
	return nil
}

// HTTPTimeout 单次请求超时
func (c HTTPConfig) HTTPTimeout() time.Duration { return seconds(c.TimeoutSeconds) }

// BackoffBase 首次重试前的等待时间
func (c HTTPConfig) BackoffBase() time.Duration { return seconds(c.BackoffBaseSeconds) }

// Timeout 大模型调用超时
func (c LLMConfig) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }

// ReadTimeout 等待下一帧音频的超时
func (c TTSConfig) ReadTimeout() time.Duration { return seconds(c.TimeoutSeconds) }

func (c ImageConfig) PollInterval() time.Duration { return seconds(c.PollIntervalSeconds) }

func (c ImageConfig) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }

func (c VideoConfig) PollInterval() time.Duration { return seconds(c.PollIntervalSeconds) }

func (c VideoConfig) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// setDefault 仅在未配置（nil）时填入默认值
func setDefault[T any](dst **T, v T) {
	if *dst == nil {
		*dst = &v
	}
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}
