// Package config provides environment-driven configuration for go-parley.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the voice service.
const (
	DefaultPort            = "8000"
	DefaultSampleRate      = 16000
	DefaultLLMModel        = "gpt-4o-mini"
	DefaultRetrievalTopK   = 3
	DefaultPromptBudget    = 6000 // characters
	DefaultHistoryWindow   = 20   // turns
	DefaultSilenceDuration = 500 * time.Millisecond
	DefaultMinPartialRunes = 3
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultCallTimeout     = 10 * time.Second
)

// Config holds process-level configuration loaded from environment variables.
type Config struct {
	// Server
	Port     string
	LogLevel string

	// Provider credentials
	DeepgramAPIKey   string
	OpenAIAPIKey     string
	ElevenLabsAPIKey string
	OpenAIBaseURL    string // optional override for OpenAI-compatible backends

	// Models and voices
	LLMModel       string
	DefaultVoiceID string

	// Knowledge store
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Customer data
	CustomerDataPath string

	// TokenSecret signs dashboard access tokens. The default is for
	// development only; set TOKEN_SECRET in production.
	TokenSecret string

	// Turn-taking and pipeline tuning. Silence and partial-length thresholds
	// are policy parameters; tune empirically per deployment.
	SampleRate      int
	SilenceDuration time.Duration
	MinPartialRunes int
	RetrievalTopK   int
	PromptBudget    int
	HistoryWindow   int
	IdleTimeout     time.Duration
	CallTimeout     time.Duration
}

// Load reads configuration from the environment.
// Missing provider keys are not an error here; providers validate on creation.
func Load() *Config {
	return &Config{
		Port:     envOr("PORT", DefaultPort),
		LogLevel: envOr("LOG_LEVEL", "info"),

		DeepgramAPIKey:   os.Getenv("DEEPGRAM_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),

		LLMModel:       envOr("LLM_MODEL", DefaultLLMModel),
		DefaultVoiceID: os.Getenv("DEFAULT_VOICE_ID"),

		QdrantURL:        os.Getenv("QDRANT_URL"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantCollection: envOr("QDRANT_COLLECTION", "knowledge_chunks"),

		CustomerDataPath: envOr("CUSTOMER_DATA_PATH", "./customer_data"),

		TokenSecret: envOr("TOKEN_SECRET", "parley_dev_secret_change_in_production"),

		SampleRate:      envInt("AUDIO_SAMPLE_RATE", DefaultSampleRate),
		SilenceDuration: envDuration("TURN_SILENCE_MS", DefaultSilenceDuration),
		MinPartialRunes: envInt("BARGE_IN_MIN_RUNES", DefaultMinPartialRunes),
		RetrievalTopK:   envInt("RETRIEVAL_TOP_K", DefaultRetrievalTopK),
		PromptBudget:    envInt("PROMPT_BUDGET_CHARS", DefaultPromptBudget),
		HistoryWindow:   envInt("HISTORY_WINDOW", DefaultHistoryWindow),
		IdleTimeout:     envDuration("SESSION_IDLE_TIMEOUT_MS", DefaultIdleTimeout),
		CallTimeout:     envDuration("PIPELINE_CALL_TIMEOUT_MS", DefaultCallTimeout),
	}
}

// RequireKeys exits with a usage message if any of the named env vars is empty.
func RequireKeys(names ...string) {
	for _, name := range names {
		if os.Getenv(name) == "" {
			fmt.Fprintf(os.Stderr, "Error: %s environment variable is required\n", name)
			os.Exit(1)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
