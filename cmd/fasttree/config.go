package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"github.com/TomFinley/machinelearning/datasets"
	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
	"github.com/TomFinley/machinelearning/pkg/log"
	"github.com/TomFinley/machinelearning/sklearn/fasttree"
)

// DataConfig lists the datasets of a run. Valid drives pruning and early
// stopping; Tests are only reported.
type DataConfig struct {
	Train datasets.Files   `yaml:"train"`
	Valid *datasets.Files  `yaml:"valid"`
	Tests []datasets.Files `yaml:"tests" validate:"dive"`
}

// OutputConfig says where and what to write.
type OutputConfig struct {
	Dir           string `yaml:"dir" validate:"required"`
	LearningCurve bool   `yaml:"learning_curve"`
	Predictions   bool   `yaml:"predictions"`
	// RenderTrees draws the first RenderTrees trees as SVG.
	RenderTrees   int    `yaml:"render_trees" validate:"gte=0"`
}

// Config is the YAML run configuration.
//
//	objective: tweedie
//	data:
//	  train: {name: train, features: x.npy, labels: y.npy}
//	trainer:
//	  num_trees: 200
//	  index: 1.3
//	early_stopping: {name: gl, threshold: 0.05}
//	runs: 4
//	output: {dir: out, learning_curve: true}
type Config struct {
	Objective     string                          `yaml:"objective" validate:"oneof=tweedie regression"`
	LogLevel      string                          `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	Data          DataConfig                      `yaml:"data"`
	Trainer       fasttree.TweedieOptions         `yaml:"trainer"`
	EarlyStopping *fasttree.EarlyStoppingRuleSpec `yaml:"early_stopping"`
	Runs          int                             `yaml:"runs" validate:"gte=1"`
	Workers       int                             `yaml:"workers" validate:"gte=0"`
	Output        OutputConfig                    `yaml:"output"`
}

func defaultConfig() Config {
	return Config{
		Objective: "tweedie",
		LogLevel:  "info",
		Trainer:   fasttree.DefaultTweedieOptions(),
		Runs:      1,
		Workers:   1,
		Output:    OutputConfig{Dir: "."},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig reads and validates the configuration at path. Keys missing
// from the file keep their defaults; unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ftErrors.Wrapf(err, "reading config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig on an in-memory document.
func ParseConfig(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return nil, ftErrors.Wrap(err, "parsing config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ftErrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return ftErrors.NewValidationError(fe.Namespace(), fmt.Sprintf("must satisfy %s", fe.ActualTag()), fe.Value())
		}
		return ftErrors.Wrap(err, "validating config")
	}
	if c.EarlyStopping != nil {
		factory, err := c.EarlyStopping.Factory()
		if err != nil {
			return err
		}
		c.Trainer.EarlyStoppingRule = factory
	}
	return nil
}

func (c *Config) level() log.Level {
	return log.ToLogLevel(c.LogLevel)
}
