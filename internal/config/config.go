package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultModel         = "gpt-4o"
	GraphExtractionModel = "gpt-5.2"
	GraphDetectModel     = "gpt-4o-mini"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`

	AvailableModels []string `toml:"available_models"`

	Temperature     float32 `toml:"temperature"`
	MaxOutputTokens int     `toml:"max_output_tokens"`
	RequestTimeout  int     `toml:"request_timeout_sec"`
	Retries         int     `toml:"retries"`

	ClassifyTimeout int `toml:"classify_timeout_sec"`
	OCRTimeout      int `toml:"ocr_timeout_sec"`
	DetectTimeout   int `toml:"detect_timeout_sec"`
	ExtractTimeout  int `toml:"extract_timeout_sec"`
}

type ImageConfig struct {
	MaxSide   int `toml:"max_side"`
	MaxPixels int `toml:"max_pixels"`
}

type ClipboardConfig struct {
	SettleMillis  int `toml:"settle_ms"`
	WriteAttempts int `toml:"write_attempts"`
	WriteDelayMS  int `toml:"write_delay_ms"`
}

type FlagsConfig struct {
	ForcedVisualExtraction bool `toml:"enable_forced_visual_extraction"`
	GraphEvidenceParsing   bool `toml:"enable_graph_evidence_parsing"`
	ConsistencyWarnings    bool `toml:"enable_consistency_warnings"`
	ConsistencyBlocking    bool `toml:"enable_consistency_blocking"`
	GraphRetry             bool `toml:"enable_graph_retry"`
	AutoGraphDetect        bool `toml:"enable_auto_graph_detect"`
	PointSynthesis         bool `toml:"enable_point_synthesis"`
}

type EvidenceConfig struct {
	SnapThreshold     float64 `toml:"snap_threshold"`
	DarkSnapThreshold float64 `toml:"dark_snap_threshold"`
}

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Image     ImageConfig     `toml:"image"`
	Clipboard ClipboardConfig `toml:"clipboard"`
	Flags     FlagsConfig     `toml:"flags"`
	Evidence  EvidenceConfig  `toml:"evidence"`

	ListenAddr       string `toml:"listen_addr"`
	Debug            bool   `toml:"debug"`
	TelemetryFile    string `toml:"telemetry_file"`
	NotifyOnComplete bool   `toml:"notify_on_complete"`
}

func Defaults() Config {
	return Config{
		LLM: LLMConfig{
			Provider:        "openai",
			Model:           DefaultModel,
			AvailableModels: []string{DefaultModel},
			Temperature:     0.0,
			MaxOutputTokens: 2200,
			RequestTimeout:  25,
			Retries:         1,
			ClassifyTimeout: 8,
			OCRTimeout:      12,
			DetectTimeout:   12,
			ExtractTimeout:  45,
		},
		Image: ImageConfig{
			MaxSide:   2200,
			MaxPixels: 4_000_000,
		},
		Clipboard: ClipboardConfig{
			SettleMillis:  600,
			WriteAttempts: 4,
			WriteDelayMS:  80,
		},
		Evidence: EvidenceConfig{
			SnapThreshold:     0.20,
			DarkSnapThreshold: 0.15,
		},
		ListenAddr:    "127.0.0.1:7390",
		TelemetryFile: "solver_telemetry.jsonl",
	}
}

// Normalize repairs a loaded config in place: deprecated model names are
// migrated and the available-model list always contains the active model.
func Normalize(cfg *Config) {
	if cfg.LLM.Model == "gpt-5" {
		cfg.LLM.Model = GraphExtractionModel
	}

	models := make([]string, 0, len(cfg.LLM.AvailableModels))
	seen := map[string]bool{}
	for _, raw := range cfg.LLM.AvailableModels {
		m := strings.TrimSpace(raw)
		if m == "gpt-5" {
			m = GraphExtractionModel
		}
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}

	current := strings.TrimSpace(cfg.LLM.Model)
	if current == "" {
		current = DefaultModel
	}
	cfg.LLM.Model = current
	if !seen[current] {
		models = append([]string{current}, models...)
	}
	if len(models) == 0 {
		models = []string{DefaultModel}
	}
	cfg.LLM.AvailableModels = models
}

func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := write(path, &cfg); werr != nil {
			return nil, fmt.Errorf("failed to create config file '%s': %w", path, werr)
		}
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	Normalize(&cfg)
	return &cfg, nil
}

func write(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ResolveAPIKey prefers the configured key and falls back to the
// provider-conventional environment variable.
func ResolveAPIKey(cfg *Config) string {
	if k := strings.TrimSpace(cfg.LLM.APIKey); k != "" {
		return k
	}
	switch strings.ToLower(cfg.LLM.Provider) {
	case "claude":
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	case "gemini":
		return strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	default:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
}
