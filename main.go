package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-crop/codec"
	"github.com/nvr-ai/go-crop/config"
	"github.com/nvr-ai/go-crop/pipeline"
	"github.com/nvr-ai/go-crop/profiler"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailures    = 1
	exitConfigError = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses args, crops every image of the input directory and returns the exit code.
func run(args []string) int {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := parseConfig(args)
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return exitConfigError
	}
	log.SetLevel(cfg.Level())

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
		ReportInterval: cfg.ReportInterval,
		Logger:         log,
	})
	prof.Start()
	defer prof.Stop()

	p, err := pipeline.NewFromConfig(cfg, log, prof)
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return exitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := p.Run(ctx)

	log.WithFields(logrus.Fields{
		"run_id":    report.RunID,
		"total":     report.Total,
		"processed": report.Processed,
		"failed":    len(report.Failures),
	}).Infof("Resizing took %d ms.", prof.Elapsed().Milliseconds())
	prof.Report()

	for _, f := range report.Failures {
		log.WithFields(logrus.Fields{
			"run_id": report.RunID,
			"file":   f.Filename,
			"stage":  f.Stage,
		}).WithError(f.Err).Error("image failed")
	}

	if err != nil {
		log.WithError(err).Error("run aborted")
		return exitFailures
	}
	if !report.OK() {
		return exitFailures
	}
	return exitOK
}

// parseConfig loads the optional config file and applies the flags that were set
// on the command line on top of it.
func parseConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("go-crop", flag.ContinueOnError)

	var (
		configPath  string
		inputDir    string
		outputDir   string
		aspect      config.Ratio
		workers     int
		codecName   string
		jpegQuality int
		extensions  string
		logLevel    string
		atomic      bool
		preload     bool
	)
	fs.StringVar(&configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&inputDir, "input", config.DefaultInputDir, "Directory containing the source images")
	fs.StringVar(&outputDir, "output", config.DefaultOutputDir, "Directory receiving the cropped images")
	fs.Var(&aspect, "aspect", "Target aspect ratio as W:H or a decimal (default 3:4)")
	fs.IntVar(&workers, "workers", 1, "Number of images processed concurrently (0 = one per CPU)")
	fs.StringVar(&codecName, "codec", codec.DefaultCodec, fmt.Sprintf("Codec to use %v", codec.Available()))
	fs.IntVar(&jpegQuality, "jpeg-quality", codec.DefaultJPEGQuality, "JPEG encode quality (1-100)")
	fs.StringVar(&extensions, "extensions", "jpg,jpeg,png", "Comma-separated file extensions to process")
	fs.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&atomic, "atomic", true, "Write outputs through a temporary file and rename")
	fs.BoolVar(&preload, "preload", false, "Decode every image before cropping starts")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputDir = inputDir
		case "output":
			cfg.OutputDir = outputDir
		case "aspect":
			cfg.AspectRatio = aspect
		case "workers":
			cfg.Workers = workers
		case "codec":
			cfg.Codec = codecName
		case "jpeg-quality":
			cfg.CodecOptions.JPEGQuality = jpegQuality
		case "extensions":
			cfg.Extensions = splitList(extensions)
		case "log-level":
			cfg.LogLevel = logLevel
		case "atomic":
			cfg.AtomicWrites = atomic
		case "preload":
			cfg.Preload = preload
		}
	})

	return cfg, cfg.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
