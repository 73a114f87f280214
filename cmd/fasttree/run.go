package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-graphviz"

	"github.com/TomFinley/machinelearning/core/parallel"
	"github.com/TomFinley/machinelearning/datasets"
	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
	"github.com/TomFinley/machinelearning/pkg/log"
	"github.com/TomFinley/machinelearning/sklearn/fasttree"
)

type runData struct {
	train *fasttree.Dataset
	valid *fasttree.Dataset
	tests []*fasttree.Dataset
}

func loadData(cfg DataConfig) (*runData, error) {
	d := &runData{}
	var err error
	if d.train, err = datasets.LoadNpy(withName(cfg.Train, "train")); err != nil {
		return nil, err
	}
	if cfg.Valid != nil {
		if d.valid, err = datasets.LoadNpy(withName(*cfg.Valid, "valid")); err != nil {
			return nil, err
		}
	}
	for i, f := range cfg.Tests {
		ds, err := datasets.LoadNpy(withName(f, fmt.Sprintf("test%d", i)))
		if err != nil {
			return nil, err
		}
		d.tests = append(d.tests, ds)
	}
	return d, nil
}

func withName(f datasets.Files, name string) datasets.Files {
	if f.Name == "" {
		f.Name = name
	}
	return f
}

// Run trains cfg.Runs independent models, at most cfg.Workers at a time.
// Run i uses seed Trainer.RandomSeed+i and its own copy of the data.
func Run(ctx context.Context, cfg *Config) error {
	logger := log.GetLoggerWithName("fasttree.cli")
	start := time.Now()
	err := parallel.RunTasks(ctx, cfg.Runs, cfg.Workers, func(ctx context.Context, i int) error {
		if err := trainRun(ctx, cfg, i); err != nil {
			return ftErrors.Wrapf(err, "run %d", i)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("All runs finished", "runs", cfg.Runs, log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

func (c *Config) runDir(i int) string {
	if c.Runs == 1 {
		return c.Output.Dir
	}
	return filepath.Join(c.Output.Dir, fmt.Sprintf("run-%d", i))
}

func trainRun(ctx context.Context, cfg *Config, i int) error {
	logger := log.GetLoggerWithName("fasttree.cli").With(log.RunIDKey, i)

	data, err := loadData(cfg.Data)
	if err != nil {
		return err
	}
	dir := cfg.runDir(i)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ftErrors.Wrapf(err, "creating %s", dir)
	}

	opts := cfg.Trainer
	opts.RandomSeed += uint64(i)
	if cfg.Output.LearningCurve {
		opts.PrintTrainValidGraph = true
	}

	var res *fasttree.TrainingResult
	switch cfg.Objective {
	case "regression":
		res, err = fasttree.NewRegressionTrainer(opts.Options).Fit(ctx, data.train, data.valid, data.tests...)
	default:
		res, err = fasttree.NewTweedieTrainer(opts).Fit(ctx, data.train, data.valid, data.tests...)
	}
	if err != nil {
		return err
	}

	if err := res.Predictor.SaveFile(filepath.Join(dir, "model.gob")); err != nil {
		return err
	}
	if cfg.Output.LearningCurve && len(res.History) > 0 {
		title := fmt.Sprintf("%s run %d", cfg.Objective, i)
		if err := fasttree.SaveLearningCurve(res.History, title, filepath.Join(dir, "learning_curve.png")); err != nil {
			return err
		}
	}
	for t := 0; t < min(cfg.Output.RenderTrees, res.Predictor.Ensemble.NumTrees()); t++ {
		path := filepath.Join(dir, fmt.Sprintf("tree_%03d.svg", t))
		if err := fasttree.RenderTree(res.Predictor.Ensemble.Tree(t), data.train.FeatureNames, graphviz.SVG, path); err != nil {
			return err
		}
	}
	if cfg.Output.Predictions {
		for _, ds := range append([]*fasttree.Dataset{data.valid}, data.tests...) {
			if ds == nil {
				continue
			}
			pred, err := res.Predictor.Predict(ds.Features())
			if err != nil {
				return err
			}
			if err := datasets.WriteMatrix(filepath.Join(dir, ds.Name+"_pred.npy"), pred); err != nil {
				return err
			}
		}
	}

	logger.Info("Run finished",
		log.TreesKey, res.Predictor.Ensemble.NumTrees(),
		log.BestIterKey, res.BestIteration,
		"early_stopped", res.EarlyStopped,
	)
	return nil
}
