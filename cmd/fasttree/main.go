// Command fasttree trains FastTree models from .npy data described by a
// YAML configuration.
//
//	fasttree -config run.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/TomFinley/machinelearning/pkg/log"
)

func main() {
	configPath := flag.String("config", "fasttree.yaml", "path to the YAML run configuration")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fasttree: %v\n", err)
		os.Exit(2)
	}
	log.SetProvider(log.NewZerologProvider(cfg.level()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := Run(ctx, cfg); err != nil {
		log.LogError(err, "Training failed")
		stop()
		os.Exit(1)
	}
}
