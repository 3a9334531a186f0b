package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/tahcohcat/talkinghead-web/internal/viseme"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Echo     EchoConfig     `mapstructure:"echo"`
	Ollama   OllamaConfig   `mapstructure:"ollama"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Tts      TtsConfig      `mapstructure:"tts"`
	Viseme   viseme.Config  `mapstructure:"viseme"`
	Video    VideoConfig    `mapstructure:"video"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	StaticDir      string   `mapstructure:"static_dir"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LLM provider selection
type LLMConfig struct {
	Provider     string `mapstructure:"provider"` // "echo", "ollama" or "openai"
	SystemPrompt string `mapstructure:"system_prompt"`
	HistoryLimit int    `mapstructure:"history_limit"` // messages kept per conversation
	Timeout      int    `mapstructure:"timeout"`       // seconds for a whole reply
}

type EchoConfig struct {
	Responses map[string]string `mapstructure:"responses"`
}

type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`   // Optional, defaults to OpenAI API
	MaxTokens int    `mapstructure:"max_tokens"` // Optional, defaults to model's max
	Timeout   int    `mapstructure:"timeout"`
}

type OllamaConfig struct {
	Host    string `mapstructure:"host"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

type TtsConfig struct {
	Type            string  `mapstructure:"type"` // "google", "openai" or "dummy"
	Enabled         bool    `mapstructure:"enabled"`
	Voice           string  `mapstructure:"voice"`
	SpeakingRate    float64 `mapstructure:"speaking_rate"`
	AudioDir        string  `mapstructure:"audio_dir"`
	AudioURLPrefix  string  `mapstructure:"audio_url_prefix"`
	CredentialsFile string  `mapstructure:"credentials_file"` // google only
	OpenAIModel     string  `mapstructure:"openai_model"`
	Timeout         int     `mapstructure:"timeout"`
}

type VideoConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	SpaceURL       string `mapstructure:"space_url"`
	Timeout        int    `mapstructure:"timeout"` // seconds for a whole render
	PollAttempts   int    `mapstructure:"poll_attempts"`
	PollInterval   int    `mapstructure:"poll_interval"` // seconds
	VideosDir      string `mapstructure:"videos_dir"`
	VideoURLPrefix string `mapstructure:"video_url_prefix"`
	AvatarsDir     string `mapstructure:"avatars_dir"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	SessionSecret string `mapstructure:"session_secret"`
	PasswordHash  string `mapstructure:"password_hash"` // bcrypt; empty disables the check
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})

	v.SetDefault("llm.provider", "echo")
	v.SetDefault("llm.system_prompt", "You are a friendly AI avatar assistant. Keep your responses concise and natural, "+
		"as they will be spoken aloud with lip-sync animation. Aim for 1-3 sentences unless more detail is needed.")
	v.SetDefault("llm.history_limit", 20)
	v.SetDefault("llm.timeout", 60)

	v.SetDefault("ollama.host", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama2")
	v.SetDefault("ollama.timeout", 60)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 30)
	v.SetDefault("openai.max_tokens", 300)

	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.type", "dummy")
	v.SetDefault("tts.voice", "en-US-Chirp-HD-F")
	v.SetDefault("tts.speaking_rate", 1.0)
	v.SetDefault("tts.audio_dir", "static/audio")
	v.SetDefault("tts.audio_url_prefix", "/static/audio")
	v.SetDefault("tts.openai_model", "tts-1")
	v.SetDefault("tts.timeout", 30)

	def := viseme.DefaultConfig()
	v.SetDefault("viseme.char_duration", def.CharDuration)
	v.SetDefault("viseme.silence_factor", def.SilenceFactor)
	v.SetDefault("viseme.digraph_factor", def.DigraphFactor)
	v.SetDefault("viseme.trailing_silence", def.TrailingSilence)

	v.SetDefault("video.enabled", true)
	v.SetDefault("video.space_url", "https://banao-tech-sadtalker-testing.hf.space")
	v.SetDefault("video.timeout", 300)
	v.SetDefault("video.poll_attempts", 120)
	v.SetDefault("video.poll_interval", 2)
	v.SetDefault("video.videos_dir", "static/videos")
	v.SetDefault("video.video_url_prefix", "/static/videos")
	v.SetDefault("video.avatars_dir", "static/avatars")

	v.SetDefault("database.path", "./talkinghead.db")
	v.SetDefault("auth.session_secret", "your-secret-key-change-this-in-production")
	v.SetDefault("log.level", "info")
}

// Load reads config.yaml (and config.local.yaml overrides) from . or ./config,
// then applies TALKINGHEAD_* environment variables.
func Load() (*Config, error) {
	return load(viper.New(), ".", "./config")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.BindEnv("openai.api_key", "TALKINGHEAD_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("llm.provider", "AI_PROVIDER")
	v.BindEnv("ollama.host", "OLLAMA_URL")
	v.BindEnv("ollama.model", "OLLAMA_MODEL")
	v.BindEnv("tts.voice", "TTS_VOICE")
	v.BindEnv("video.space_url", "SADTALKER_SPACE_URL")

	// Allow environment variables
	v.SetEnvPrefix("TALKINGHEAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, use defaults
	} else {
		// Local overrides (ignored by git)
		v.SetConfigName("config.local")
		v.MergeInConfig()
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
