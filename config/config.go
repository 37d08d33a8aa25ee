// Package config holds the run configuration of a crop batch.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-crop/codec"
	"github.com/nvr-ai/go-crop/images"
	"github.com/nvr-ai/go-crop/util"
)

// Defaults.
const (
	DefaultInputDir  = "images"
	DefaultOutputDir = "resized-images"
	DefaultLogLevel  = "info"
)

// Ratio is an aspect ratio that decodes from either "3:4" or 0.75.
type Ratio float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Ratio) UnmarshalYAML(node *yaml.Node) error {
	v, err := images.ParseAspectRatio(node.Value)
	if err != nil {
		return err
	}
	*r = Ratio(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (r Ratio) MarshalYAML() (interface{}, error) {
	return float64(r), nil
}

// String implements flag.Value.
func (r *Ratio) String() string {
	return strconv.FormatFloat(float64(*r), 'g', -1, 64)
}

// Set implements flag.Value.
func (r *Ratio) Set(s string) error {
	v, err := images.ParseAspectRatio(s)
	if err != nil {
		return err
	}
	*r = Ratio(v)
	return nil
}

// Config describes one batch run.
type Config struct {
	// InputDir is the directory scanned for images.
	InputDir string `json:"input_dir" yaml:"input_dir"`
	// OutputDir receives the cropped images under their original names.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	// AspectRatio is the target width/height applied to every image.
	AspectRatio Ratio `json:"aspect_ratio" yaml:"aspect_ratio"`
	// Extensions are the accepted file extensions, matched case-sensitively.
	Extensions []string `json:"extensions" yaml:"extensions"`
	// Workers is the number of images processed concurrently. 1 is sequential and
	// 0 uses one worker per CPU.
	Workers int `json:"workers" yaml:"workers"`
	// Codec selects the codec implementation by name.
	Codec string `json:"codec" yaml:"codec"`
	// CodecOptions tune encoding and decoding.
	CodecOptions codec.Options `json:"codec_options" yaml:"codec_options"`
	// AtomicWrites writes each output to a temporary file before renaming it.
	AtomicWrites bool `json:"atomic_writes" yaml:"atomic_writes"`
	// LogLevel is a logrus level name.
	LogLevel string `json:"log_level" yaml:"log_level"`
	// ReportInterval emits periodic profiler reports when positive.
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
	// Preload decodes every image before cropping instead of streaming them.
	Preload bool `json:"preload" yaml:"preload"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		InputDir:     DefaultInputDir,
		OutputDir:    DefaultOutputDir,
		AspectRatio:  Ratio(images.DefaultAspectRatio),
		Extensions:   append([]string(nil), util.DefaultExtensions...),
		Workers:      1,
		Codec:        codec.DefaultCodec,
		AtomicWrites: true,
		LogLevel:     DefaultLogLevel,
	}
}

// Load reads a YAML file on top of Default. An empty path returns Default.
//
// Arguments:
//   - path: The YAML file path.
//
// Returns:
//   - Config: The merged configuration. It is not validated.
//   - error: An error if the file cannot be read or parsed.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Validate reports configuration errors. They are fatal for a run.
func (c Config) Validate() error {
	if err := images.ValidateAspectRatio(float64(c.AspectRatio)); err != nil {
		return err
	}
	if c.InputDir == "" {
		return errors.New("input_dir is required")
	}
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	in, errIn := filepath.Abs(c.InputDir)
	out, errOut := filepath.Abs(c.OutputDir)
	if errIn == nil && errOut == nil && in == out {
		return errors.Errorf("output_dir must differ from input_dir (%s)", in)
	}
	if len(c.Extensions) == 0 {
		return errors.New("at least one extension is required")
	}
	for _, ext := range c.Extensions {
		if ext == "" || ext[0] == '.' {
			return errors.Errorf("extension %q must be non-empty and given without the dot", ext)
		}
		if _, err := images.FormatFromFilename("x." + ext); err != nil {
			return errors.Errorf("extension %q has no known image format", ext)
		}
	}
	if c.Workers < 0 {
		return errors.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	if c.ReportInterval < 0 {
		return errors.New("report_interval must not be negative")
	}
	for _, name := range codec.Available() {
		if name == c.Codec {
			return nil
		}
	}
	return errors.Errorf("unknown codec %q (available: %v)", c.Codec, codec.Available())
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
