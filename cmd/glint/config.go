package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the glint configuration file (~/.config/glint/config.yaml).
// Numeric fields are pointers so "not set" differs from zero.
type Config struct {
	IndexPath     string `yaml:"index_path"`
	ImagesDir     string `yaml:"images_dir"`
	TokenizerJSON string `yaml:"tokenizer_json"`

	// Encoders
	TextModel     string `yaml:"text_model"`
	VisionModel   string `yaml:"vision_model"`
	ORTLibrary    string `yaml:"ort_library"`
	ContextLength *int64 `yaml:"context_length"`
	ImageSize     *int64 `yaml:"image_size"`
	EmbeddingDim  *int64 `yaml:"embedding_dim"`

	// Search and build
	TopK       *int64   `yaml:"top_k"`
	Workers    *int64   `yaml:"workers"`
	EncodeRate *float64 `yaml:"encode_rate"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "glint", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config; a
// file that exists but does not parse is an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyLoggingConfig applies config file defaults to the root logging flags.
func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyConfig fills every shared flag variable the user did not set
// explicitly. Flags a command does not define are never reported as set, so
// the config still supplies their values.
func applyConfig(c *cli.Command, cfg Config) {
	if cfg.IndexPath != "" && !c.IsSet("index") {
		indexPath = cfg.IndexPath
	}
	if cfg.ImagesDir != "" && !c.IsSet("images") {
		imagesDir = cfg.ImagesDir
	}
	if cfg.TokenizerJSON != "" && !c.IsSet("tokenizer-json") {
		tokenizerJSONPath = cfg.TokenizerJSON
	}
	if cfg.TextModel != "" && !c.IsSet("text-model") {
		textModel = cfg.TextModel
	}
	if cfg.VisionModel != "" && !c.IsSet("vision-model") {
		visionModel = cfg.VisionModel
	}
	if cfg.ORTLibrary != "" && !c.IsSet("ort-library") {
		ortLibrary = cfg.ORTLibrary
	}
	if cfg.ContextLength != nil && !c.IsSet("context-length") {
		contextLength = *cfg.ContextLength
	}
	if cfg.ImageSize != nil && !c.IsSet("image-size") {
		imageSize = *cfg.ImageSize
	}
	if cfg.EmbeddingDim != nil && !c.IsSet("embedding-dim") {
		embeddingDim = *cfg.EmbeddingDim
	}
	if cfg.TopK != nil && !c.IsSet("top-k") {
		topK = *cfg.TopK
	}
}

// applyBuildConfig applies config file defaults to build command variables.
func applyBuildConfig(c *cli.Command, cfg Config, workers *int64, rate *float64) {
	applyConfig(c, cfg)
	if cfg.Workers != nil && !c.IsSet("workers") {
		*workers = *cfg.Workers
	}
	if cfg.EncodeRate != nil && !c.IsSet("rate") {
		*rate = *cfg.EncodeRate
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
