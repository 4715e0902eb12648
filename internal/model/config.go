// Package model implements the emotion classification head: a linear layer over
// a masked mean-pooled bag of token ids, with closed-form gradients.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/idlab-discover/emotune-cli/internal/labels"
)

// Artifact file names inside a model directory.
const (
	ConfigFile  = "config.json"
	WeightsFile = "model.bin"
)

// Architecture is the value written to config.json "architectures".
const Architecture = "LinearHeadForSequenceClassification"

// Config is the serialized model configuration.
type Config struct {
	Architectures []string          `json:"architectures"`
	ModelType     string            `json:"model_type"`
	BaseModel     string            `json:"_name_or_path"`
	VocabSize     int               `json:"vocab_size"`
	NumLabels     int               `json:"num_labels"`
	MaxLength     int               `json:"max_position_embeddings"`
	PadTokenID    int               `json:"pad_token_id"`
	ProblemType   string            `json:"problem_type"`
	ID2Label      map[string]string `json:"id2label"`
	Label2ID      map[string]int    `json:"label2id"`
	InitRange     float64           `json:"initializer_range"`
}

// NewConfig returns the configuration for the six-class emotion head.
func NewConfig(baseModel string, vocabSize, maxLength, padID int) Config {
	return Config{
		Architectures: []string{Architecture},
		ModelType:     "linear-head",
		BaseModel:     baseModel,
		VocabSize:     vocabSize,
		NumLabels:     labels.NumLabels,
		MaxLength:     maxLength,
		PadTokenID:    padID,
		ProblemType:   "single_label_classification",
		ID2Label:      labels.ID2Label(),
		Label2ID:      labels.Label2ID(),
		InitRange:     0.02,
	}
}

// Validate checks the dimensions needed to allocate parameters.
func (c Config) Validate() error {
	if c.VocabSize <= 0 {
		return fmt.Errorf("config: vocab_size must be positive, got %d", c.VocabSize)
	}
	if c.NumLabels <= 0 {
		return fmt.Errorf("config: num_labels must be positive, got %d", c.NumLabels)
	}
	return nil
}

// LabelName returns the id2label entry for id, falling back to the fixed map.
func (c Config) LabelName(id int) string {
	if n, ok := c.ID2Label[fmt.Sprint(id)]; ok {
		return n
	}
	return labels.Label(id).String()
}

// WriteConfig writes config.json into dir.
func WriteConfig(dir string, c Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ConfigFile), append(b, '\n'), 0o644)
}

// ReadConfig reads config.json from dir.
func ReadConfig(dir string) (Config, error) {
	var c Config
	b, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", ConfigFile, err)
	}
	if c.NumLabels == 0 {
		c.NumLabels = len(c.ID2Label)
	}
	return c, c.Validate()
}
