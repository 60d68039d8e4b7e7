package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	ElevenLabs ElevenLabsConfig
	Transcribe TranscribeConfig
	R2         R2Config
	Audio      AudioConfig
	Storage    StorageConfig
	Defaults   DefaultsConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string // empty disables auth (prototype posture)
}

type RateLimitConfig struct {
	SongsPerHour   int
	ImprovePerHour int
	VoicesPerMin   int
}

// ElevenLabsConfig configures the voice-synthesis collaborator.
type ElevenLabsConfig struct {
	APIKey         string
	BaseURL        string
	DefaultVoiceID string
	ModelID        string
	Timeout        int // seconds, bounds every synthesis call
}

// TranscribeConfig configures the Whisper-compatible transcription
// collaborator.
type TranscribeConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// AudioConfig carries the analysis and mixing parameters. The blend weights
// and default gains are empirical defaults, not invariants.
type AudioConfig struct {
	AnalysisSampleRate int     // canonical rate for pitch analysis
	FrameLength        int
	HopLength          int
	FMin               float64
	FMax               float64
	PercussiveWeight   float64 // background blend, percussive share
	HarmonicWeight     float64 // background blend, harmonic share
	VocalVolume        float64 // default linear gain for the vocal stream
	BackgroundVolume   float64 // default linear gain for the backing stream
	OutputFormat       string  // "mp3" or "wav"
	OutputSampleRate   int
	Bitrate            string
}

type StorageConfig struct {
	DataDir string // root for per-song artifact directories
}

type DefaultsConfig struct {
	Genre string
	Mood  string
	Tempo int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("ELEVENLABS_API_KEY")
	readSecret("TRANSCRIBE_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	_ = viper.BindEnv("elevenlabs.base_url", "ELEVENLABS_BASE_URL")
	_ = viper.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	_ = viper.BindEnv("elevenlabs.model_id", "ELEVENLABS_MODEL_ID")
	_ = viper.BindEnv("elevenlabs.timeout", "ELEVENLABS_TIMEOUT")
	_ = viper.BindEnv("transcribe.api_key", "TRANSCRIBE_API_KEY")
	_ = viper.BindEnv("transcribe.base_url", "TRANSCRIBE_BASE_URL")
	_ = viper.BindEnv("transcribe.model", "TRANSCRIBE_MODEL")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("storage.data_dir", "DATA_DIR")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("ratelimit.songs_per_hour", 20)
	viper.SetDefault("ratelimit.improve_per_hour", 30)
	viper.SetDefault("ratelimit.voices_per_min", 30)

	// ElevenLabs defaults
	viper.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io")
	viper.SetDefault("elevenlabs.model_id", "eleven_multilingual_v2")
	viper.SetDefault("elevenlabs.timeout", 120)

	// Transcription defaults (OpenAI-compatible Whisper endpoint)
	viper.SetDefault("transcribe.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("transcribe.model", "whisper-large-v3")
	viper.SetDefault("transcribe.timeout", 120)

	// Audio analysis defaults
	viper.SetDefault("audio.analysis_sample_rate", 22050)
	viper.SetDefault("audio.frame_length", 2048)
	viper.SetDefault("audio.hop_length", 256)
	viper.SetDefault("audio.fmin", 50.0)
	viper.SetDefault("audio.fmax", 2000.0)
	viper.SetDefault("audio.percussive_weight", 0.7)
	viper.SetDefault("audio.harmonic_weight", 0.3)
	viper.SetDefault("audio.vocal_volume", 1.0)
	viper.SetDefault("audio.background_volume", 0.7)
	viper.SetDefault("audio.output_format", "mp3")
	viper.SetDefault("audio.output_sample_rate", 44100)
	viper.SetDefault("audio.bitrate", "192k")

	viper.SetDefault("storage.data_dir", "./data")

	viper.SetDefault("defaults.genre", "pop")
	viper.SetDefault("defaults.mood", "upbeat")
	viper.SetDefault("defaults.tempo", 120)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			SongsPerHour:   viper.GetInt("ratelimit.songs_per_hour"),
			ImprovePerHour: viper.GetInt("ratelimit.improve_per_hour"),
			VoicesPerMin:   viper.GetInt("ratelimit.voices_per_min"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:         viper.GetString("elevenlabs.api_key"),
			BaseURL:        viper.GetString("elevenlabs.base_url"),
			DefaultVoiceID: viper.GetString("elevenlabs.voice_id"),
			ModelID:        viper.GetString("elevenlabs.model_id"),
			Timeout:        viper.GetInt("elevenlabs.timeout"),
		},
		Transcribe: TranscribeConfig{
			APIKey:  viper.GetString("transcribe.api_key"),
			BaseURL: viper.GetString("transcribe.base_url"),
			Model:   viper.GetString("transcribe.model"),
			Timeout: viper.GetInt("transcribe.timeout"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Audio: AudioConfig{
			AnalysisSampleRate: viper.GetInt("audio.analysis_sample_rate"),
			FrameLength:        viper.GetInt("audio.frame_length"),
			HopLength:          viper.GetInt("audio.hop_length"),
			FMin:               viper.GetFloat64("audio.fmin"),
			FMax:               viper.GetFloat64("audio.fmax"),
			PercussiveWeight:   viper.GetFloat64("audio.percussive_weight"),
			HarmonicWeight:     viper.GetFloat64("audio.harmonic_weight"),
			VocalVolume:        viper.GetFloat64("audio.vocal_volume"),
			BackgroundVolume:   viper.GetFloat64("audio.background_volume"),
			OutputFormat:       viper.GetString("audio.output_format"),
			OutputSampleRate:   viper.GetInt("audio.output_sample_rate"),
			Bitrate:            viper.GetString("audio.bitrate"),
		},
		Storage: StorageConfig{
			DataDir: viper.GetString("storage.data_dir"),
		},
		Defaults: DefaultsConfig{
			Genre: viper.GetString("defaults.genre"),
			Mood:  viper.GetString("defaults.mood"),
			Tempo: viper.GetInt("defaults.tempo"),
		},
	}

	return cfg, nil
}
