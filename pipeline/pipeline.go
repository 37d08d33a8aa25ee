// Package pipeline runs the crop batch: list an input directory, then decode, crop,
// encode and write every image, isolating per-image failures.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-crop/codec"
	"github.com/nvr-ai/go-crop/config"
	"github.com/nvr-ai/go-crop/images"
	"github.com/nvr-ai/go-crop/profiler"
	"github.com/nvr-ai/go-crop/util"
)

// Stage names the step at which an image failed.
type Stage string

const (
	StageRead   Stage = "read"
	StageDecode Stage = "decode"
	StageCrop   Stage = "crop"
	StageEncode Stage = "encode"
	StageWrite  Stage = "write"
)

// Failure describes one image that could not be processed.
type Failure struct {
	Filename string
	Stage    Stage
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Filename, f.Stage, f.Err)
}

// Report summarizes a run.
type Report struct {
	// RunID identifies the run in log entries.
	RunID string
	// Total is the number of files found in the input directory.
	Total int
	// Processed counts the images written successfully.
	Processed int
	// Failures lists every image that failed, in completion order.
	Failures []Failure
	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// OK reports whether every image was processed.
func (r Report) OK() bool {
	return len(r.Failures) == 0 && r.Processed == r.Total
}

// Options configures a Processor.
type Options struct {
	// InputDir is scanned for images. Missing directories are created.
	InputDir string
	// Extensions are the accepted file extensions (default: util.DefaultExtensions).
	Extensions []string
	// AspectRatio is the target width/height.
	AspectRatio float64
	// Workers is the number of concurrent workers. 1 is sequential, 0 uses one per CPU.
	Workers int
	// Codec decodes inputs and encodes outputs. Required.
	Codec codec.Codec
	// Writer stores the outputs. Required.
	Writer *util.Writer
	// Logger receives per-image and failure entries (default: the standard logger).
	Logger logrus.FieldLogger
	// Profiler records stage timings (default: a new profiler).
	Profiler *profiler.RuntimeProfiler
	// Preload decodes every image before cropping starts instead of streaming
	// one image at a time. It holds all decoded buffers in memory.
	Preload bool
}

// Processor runs crop batches.
type Processor struct {
	opts Options
	log  logrus.FieldLogger
	prof *profiler.RuntimeProfiler
}

// New creates a Processor.
//
// Arguments:
//   - opts: The processor options.
//
// Returns:
//   - *Processor: The processor.
//   - error: An error when a required option is missing or the ratio is invalid.
func New(opts Options) (*Processor, error) {
	if err := images.ValidateAspectRatio(opts.AspectRatio); err != nil {
		return nil, err
	}
	if opts.Codec == nil {
		return nil, errors.New("codec is required")
	}
	if opts.Writer == nil {
		return nil, errors.New("writer is required")
	}
	if opts.Workers < 0 {
		return nil, errors.Errorf("workers must be >= 0, got %d", opts.Workers)
	}
	if opts.Workers == 0 {
		opts.Workers = runtime.NumCPU()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = util.DefaultExtensions
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Profiler == nil {
		opts.Profiler = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: opts.Logger})
	}
	return &Processor{opts: opts, log: opts.Logger, prof: opts.Profiler}, nil
}

// NewFromConfig builds the codec and writer described by cfg and returns a
// Processor using them. cfg is expected to be valid.
func NewFromConfig(cfg config.Config, log logrus.FieldLogger, prof *profiler.RuntimeProfiler) (*Processor, error) {
	c, err := codec.New(cfg.Codec, cfg.CodecOptions)
	if err != nil {
		return nil, err
	}
	atomic := cfg.AtomicWrites
	w, err := util.NewWriter(util.WriterOptions{Dir: cfg.OutputDir, Atomic: &atomic})
	if err != nil {
		return nil, err
	}
	return New(Options{
		InputDir:    cfg.InputDir,
		Extensions:  cfg.Extensions,
		AspectRatio: float64(cfg.AspectRatio),
		Workers:     cfg.Workers,
		Codec:       c,
		Writer:      w,
		Logger:      log,
		Profiler:    prof,
		Preload:     cfg.Preload,
	})
}

// CropAsset crops asset to the centered window of the given aspect ratio and
// returns a derived asset with the same file name. asset is not modified.
func CropAsset(aspectRatio float64, asset images.ImageAsset) (images.ImageAsset, error) {
	if asset.Buffer == nil {
		return images.ImageAsset{}, errors.Errorf("asset %q has no buffer", asset.Filename)
	}
	target, offset, err := images.CropWindow(aspectRatio, asset.Dimension())
	if err != nil {
		return images.ImageAsset{}, errors.Wrapf(err, "crop %s", asset.Filename)
	}
	buf, err := images.Extract(asset.Buffer, target, offset)
	if err != nil {
		return images.ImageAsset{}, errors.Wrapf(err, "extract %s", asset.Filename)
	}
	return asset.Derive(buf), nil
}

// Run processes every image of the input directory.
//
// Image failures are collected in the report and never stop the run. The returned
// error is set when the input directory cannot be listed or ctx is cancelled, in
// which case no new images are started. With Preload set, every image is decoded
// before the first one is cropped.
//
// Arguments:
//   - ctx: Cancels the run between images.
//
// Returns:
//   - Report: The run summary. It is valid even when an error is returned.
//   - error: The run-level error, if any.
func (p *Processor) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	acc := &accumulator{report: Report{RunID: uuid.NewString()}}
	log := p.log.WithField("run_id", acc.report.RunID)
	finish := func(err error) (Report, error) {
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Error("cannot list input directory")
		}
		acc.report.Elapsed = time.Since(start)
		return acc.report, err
	}

	var (
		n    int
		work func(i int) *Failure
	)
	if p.opts.Preload {
		assets, failures, err := p.LoadAssets(ctx, p.opts.InputDir)
		// Files that were never reached after a cancellation are not counted.
		acc.report.Total = len(assets) + len(failures)
		for i := range failures {
			p.logFailure(log, failures[i])
			acc.add(&failures[i])
		}
		if err != nil {
			return finish(err)
		}
		n = len(assets)
		work = func(i int) *Failure { return p.processAsset(ctx, log, assets[i]) }
	} else {
		files, err := util.LoadDirectoryImageFiles(p.opts.InputDir, p.opts.Extensions)
		if err != nil {
			return finish(err)
		}
		acc.report.Total = len(files)
		n = len(files)
		work = func(i int) *Failure { return p.processFile(ctx, log, files[i]) }
	}

	log.WithFields(logrus.Fields{
		"input":   p.opts.InputDir,
		"files":   acc.report.Total,
		"workers": p.opts.Workers,
		"codec":   p.opts.Codec.Name(),
		"preload": p.opts.Preload,
	}).Info("starting crop run")

	var err error
	if p.opts.Workers <= 1 {
		err = runSequential(ctx, n, work, acc)
	} else {
		err = runPool(ctx, p.opts.Workers, n, work, acc)
	}
	return finish(err)
}

func runSequential(ctx context.Context, n int, work func(int) *Failure, acc *accumulator) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		acc.add(work(i))
	}
	return nil
}

func runPool(ctx context.Context, workers, n int, work func(int) *Failure, acc *accumulator) error {
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				acc.add(work(i))
			}
		}()
	}

	var err error
feed:
	for i := 0; i < n; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return err
}

// processFile decodes one file and hands it to processAsset.
func (p *Processor) processFile(ctx context.Context, log logrus.FieldLogger, file util.ImageFile) *Failure {
	asset, stage, err := p.decodeFile(file)
	if err != nil {
		return p.fail(log, file.Name, stage, err)
	}
	return p.processAsset(ctx, log, asset)
}

// processAsset crops, encodes and writes one decoded asset and returns its
// failure, or nil.
func (p *Processor) processAsset(ctx context.Context, log logrus.FieldLogger, asset images.ImageAsset) *Failure {
	done := p.prof.StartOperation("crop")
	cropped, err := CropAsset(p.opts.AspectRatio, asset)
	done()
	if err != nil {
		return p.fail(log, asset.Filename, StageCrop, err)
	}

	// The window lies inside the source, so IoU is the fraction of pixels kept.
	retained := images.CalculateIoU(
		images.RectAt(images.Point{}, asset.Dimension()),
		images.RectAt(images.Point{}, cropped.Dimension()),
	)
	p.prof.RecordMetric("retained_coverage", float64(retained))

	format, err := images.FormatFromFilename(cropped.Filename)
	if err != nil {
		return p.fail(log, cropped.Filename, StageEncode, err)
	}

	var encodeErr error
	done = p.prof.StartOperation("encode")
	dest, err := p.opts.Writer.Write(ctx, cropped.Filename, func(w io.Writer) error {
		encodeErr = p.opts.Codec.Encode(w, cropped.Buffer, format)
		return encodeErr
	})
	done()
	if encodeErr != nil {
		return p.fail(log, cropped.Filename, StageEncode, encodeErr)
	}
	if err != nil {
		return p.fail(log, cropped.Filename, StageWrite, err)
	}

	p.prof.RecordMetric("processed", 1)
	log.WithFields(logrus.Fields{
		"file":       cropped.Filename,
		"provenance": cropped.Provenance,
		"source":     asset.Dimension(),
		"cropped":    cropped.Dimension(),
		"retained":   fmt.Sprintf("%.3f", retained),
		"output":     dest,
	}).Debug("cropped image")
	return nil
}

func (p *Processor) fail(log logrus.FieldLogger, filename string, stage Stage, err error) *Failure {
	f := Failure{Filename: filename, Stage: stage, Err: err}
	p.logFailure(log, f)
	return &f
}

func (p *Processor) logFailure(log logrus.FieldLogger, f Failure) {
	log.WithFields(logrus.Fields{"file": f.Filename, "stage": f.Stage}).WithError(f.Err).Warn("skipping image")
	p.prof.RecordMetric("failed", 1)
}

// decodeFile reads and decodes one file, returning the stage on failure.
func (p *Processor) decodeFile(file util.ImageFile) (images.ImageAsset, Stage, error) {
	format, err := images.FormatFromFilename(file.Name)
	if err != nil {
		return images.ImageAsset{}, StageDecode, err
	}

	f, err := file.Open()
	if err != nil {
		return images.ImageAsset{}, StageRead, err
	}
	defer f.Close()

	done := p.prof.StartOperation("decode")
	buf, err := p.opts.Codec.Decode(f, format)
	done()
	if err != nil {
		return images.ImageAsset{}, StageDecode, errors.Wrapf(err, "decode %s", file.Name)
	}

	asset, err := images.NewImageAsset(file.Name, buf)
	if err != nil {
		return images.ImageAsset{}, StageDecode, err
	}
	return asset, "", nil
}

// LoadAssets decodes every supported image of dir upfront.
//
// Files that fail to read or decode are returned as failures next to the decoded
// assets. They are not logged. The error is set when dir cannot be listed or ctx
// is cancelled.
func (p *Processor) LoadAssets(ctx context.Context, dir string) ([]images.ImageAsset, []Failure, error) {
	files, err := util.LoadDirectoryImageFiles(dir, p.opts.Extensions)
	if err != nil {
		return nil, nil, err
	}

	assets := make([]images.ImageAsset, 0, len(files))
	var failures []Failure
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return assets, failures, err
		}
		asset, stage, err := p.decodeFile(file)
		if err != nil {
			failures = append(failures, Failure{Filename: file.Name, Stage: stage, Err: err})
			continue
		}
		assets = append(assets, asset)
	}
	return assets, failures, nil
}

type accumulator struct {
	mu     sync.Mutex
	report Report
}

func (a *accumulator) add(f *Failure) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if f != nil {
		a.report.Failures = append(a.report.Failures, *f)
		return
	}
	a.report.Processed++
}
