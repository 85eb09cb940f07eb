package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"tractseg/internal/logger"
	"tractseg/pkg/config"
)

func main() {
	configPath := flag.String("config", "tractseg.yaml", "Configuration file (defaults are used when missing)")
	recipePath := flag.String("recipe", "", "Segmentation recipe (YAML)")
	tractogramPath := flag.String("tractogram", "", "Tractogram document (JSON)")
	atlasPath := flag.String("atlas", "", "Atlas document (JSON); enables label ROIs and connectivity")
	gridPath := flag.String("grid", "", "Grid header (JSON); required when no atlas is given")
	outputPath := flag.String("output", "segmentation.json", "Output report file")
	numWorkers := flag.Int("workers", 0, "Number of goroutines (overrides the config when > 0)")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	if *recipePath == "" || *tractogramPath == "" || (*atlasPath == "" && *gridPath == "") {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *numWorkers > 0 {
		cfg.Processing.NumWorkers = *numWorkers
	}

	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	startTime := time.Now()
	report, err := run(cfg, paths{
		recipe:     *recipePath,
		tractogram: *tractogramPath,
		atlas:      *atlasPath,
		grid:       *gridPath,
		output:     *outputPath,
	}, log)
	if err != nil {
		log.Error("segmentation failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}

	fmt.Printf("Segmented %d streamlines in %.2f seconds (run %s)\n",
		report.Streamlines, time.Since(startTime).Seconds(), report.RunID)
	for _, s := range report.Segments {
		if s.Error != "" {
			fmt.Printf("- %-24s FAILED: %s\n", s.Name, s.Error)
			continue
		}
		fmt.Printf("- %-24s %d streamlines\n", s.Name, s.Count)
	}
	fmt.Printf("Report saved to: %s\n", *outputPath)

	if report.Failed() > 0 {
		_ = log.Sync()
		os.Exit(2)
	}
}
