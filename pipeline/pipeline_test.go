package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-crop/codec"
	"github.com/nvr-ai/go-crop/config"
	"github.com/nvr-ai/go-crop/images"
	"github.com/nvr-ai/go-crop/util"
)

// fakeCodec decodes "W H" text into a blank buffer of that size and encodes a
// buffer back to the same text.
type fakeCodec struct {
	failEncode bool
}

func (fakeCodec) Name() string { return "fake" }

func (fakeCodec) Decode(r io.Reader, _ images.ImageFormat) (*images.PixelBuffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var w, h uint32
	if _, err := fmt.Sscanf(string(data), "%d %d", &w, &h); err != nil {
		return nil, images.WithKind(images.ErrDecode, err)
	}
	return images.NewPixelBuffer(images.Dimension{Width: w, Height: h})
}

func (c fakeCodec) Encode(w io.Writer, buf *images.PixelBuffer, _ images.ImageFormat) error {
	if c.failEncode {
		return errors.Wrap(images.ErrEncode, "fake encoder")
	}
	d := buf.Dimension()
	_, err := fmt.Fprintf(w, "%d %d", d.Width, d.Height)
	return err
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func newProcessor(t *testing.T, in, out string, c codec.Codec, workers int) (*Processor, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	w, err := util.NewWriter(util.WriterOptions{Dir: out})
	require.NoError(t, err)
	p, err := New(Options{
		InputDir:    in,
		AspectRatio: 0.75,
		Workers:     workers,
		Codec:       c,
		Writer:      w,
		Logger:      logger,
	})
	require.NoError(t, err)
	return p, hook
}

func TestCropAsset(t *testing.T) {
	tests := []struct {
		name   string
		source images.Dimension
		want   images.Dimension
	}{
		{name: "landscape", source: images.Dimension{Width: 800, Height: 600}, want: images.Dimension{Width: 450, Height: 600}},
		{name: "already 3:4", source: images.Dimension{Width: 600, Height: 800}, want: images.Dimension{Width: 600, Height: 800}},
		{name: "tall", source: images.Dimension{Width: 300, Height: 1000}, want: images.Dimension{Width: 300, Height: 400}},
		{name: "square", source: images.Dimension{Width: 1000, Height: 1000}, want: images.Dimension{Width: 750, Height: 1000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := images.NewPixelBuffer(tt.source)
			require.NoError(t, err)
			asset, err := images.NewImageAsset("a.png", buf)
			require.NoError(t, err)

			got, err := CropAsset(0.75, asset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dimension())
			assert.Equal(t, "a.png", got.Filename)
			assert.Equal(t, images.Derived, got.Provenance)
			assert.Equal(t, images.Decoded, asset.Provenance)
			assert.Equal(t, tt.source, asset.Dimension())
		})
	}
}

func TestCropAsset_CopiesCenter(t *testing.T) {
	buf, err := images.NewPixelBuffer(images.Dimension{Width: 8, Height: 6})
	require.NoError(t, err)
	for y := uint32(0); y < 6; y++ {
		for x := uint32(0); x < 8; x++ {
			buf.Set(x, y, images.Pixel{uint8(x), uint8(y), 0, 255})
		}
	}
	asset, err := images.NewImageAsset("a.png", buf)
	require.NoError(t, err)

	got, err := CropAsset(0.75, asset)
	require.NoError(t, err)
	// 8x6 at 3:4 keeps 4x6 starting at x=2.
	require.Equal(t, images.Dimension{Width: 4, Height: 6}, got.Dimension())
	assert.Equal(t, images.Pixel{2, 0, 0, 255}, got.Buffer.At(0, 0))
	assert.Equal(t, images.Pixel{5, 5, 0, 255}, got.Buffer.At(3, 5))
}

func TestCropAsset_Errors(t *testing.T) {
	_, err := CropAsset(0.75, images.ImageAsset{Filename: "nil.png"})
	require.Error(t, err)

	buf, err := images.NewPixelBuffer(images.Dimension{Width: 4, Height: 4})
	require.NoError(t, err)
	asset, err := images.NewImageAsset("a.png", buf)
	require.NoError(t, err)

	_, err = CropAsset(0, asset)
	assert.True(t, errors.Is(err, images.ErrInvalidGeometry))

	// 1x1000 at 16:9 floors the height to zero.
	thin, err := images.NewPixelBuffer(images.Dimension{Width: 1, Height: 1000})
	require.NoError(t, err)
	thinAsset, err := images.NewImageAsset("thin.png", thin)
	require.NoError(t, err)
	_, err = CropAsset(16.0/9.0, thinAsset)
	assert.True(t, errors.Is(err, images.ErrInvalidGeometry))
}

func TestRun_FailureIsolation(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	writeFile(t, in, "a.png", "800 600")
	writeFile(t, in, "b.jpg", "garbage")
	writeFile(t, in, "c.jpeg", "600 800")
	writeFile(t, in, "d.PNG", "10 10")
	writeFile(t, in, "notes.txt", "10 10")

	p, hook := newProcessor(t, in, out, fakeCodec{}, 1)
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Processed)
	assert.False(t, report.OK())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "b.jpg", report.Failures[0].Filename)
	assert.Equal(t, StageDecode, report.Failures[0].Stage)
	assert.True(t, errors.Is(report.Failures[0].Err, images.ErrDecode))

	assert.Equal(t, "450 600", readFile(t, out, "a.png"))
	assert.Equal(t, "600 800", readFile(t, out, "c.jpeg"))
	assert.NoFileExists(t, filepath.Join(out, "b.jpg"))
	assert.NoFileExists(t, filepath.Join(out, "d.PNG"))

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
			assert.Equal(t, "b.jpg", e.Data["file"])
			assert.Equal(t, StageDecode, e.Data["stage"])
			assert.Equal(t, report.RunID, e.Data["run_id"])
		}
	}
	assert.True(t, warned)
}

func TestRun_UpperCaseExtension(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, in, "photo.PNG", "800 600")
	writeFile(t, in, "other.png", "8 6")

	p, _ := newProcessor(t, in, out, fakeCodec{}, 1)
	p.opts.Extensions = []string{"PNG"}
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK(), "failures: %v", report.Failures)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, "450 600", readFile(t, out, "photo.PNG"))
	assert.NoFileExists(t, filepath.Join(out, "other.png"))
}

func TestRun_Preload(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			in, out := t.TempDir(), t.TempDir()
			writeFile(t, in, "a.png", "800 600")
			writeFile(t, in, "b.jpg", "garbage")
			writeFile(t, in, "c.jpeg", "600 800")

			p, hook := newProcessor(t, in, out, fakeCodec{}, workers)
			p.opts.Preload = true
			report, err := p.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 3, report.Total)
			assert.Equal(t, 2, report.Processed)
			require.Len(t, report.Failures, 1)
			assert.Equal(t, "b.jpg", report.Failures[0].Filename)
			assert.Equal(t, StageDecode, report.Failures[0].Stage)
			assert.Equal(t, "450 600", readFile(t, out, "a.png"))
			assert.Equal(t, "600 800", readFile(t, out, "c.jpeg"))

			var warned int
			for _, e := range hook.AllEntries() {
				if e.Level == logrus.WarnLevel {
					warned++
					assert.Equal(t, report.RunID, e.Data["run_id"])
				}
			}
			assert.Equal(t, 1, warned)
		})
	}
}

func TestRun_EncodeAndWriteFailures(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, in, "a.png", "8 6")

	p, _ := newProcessor(t, in, out, fakeCodec{failEncode: true}, 1)
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StageEncode, report.Failures[0].Stage)
	assert.True(t, errors.Is(report.Failures[0].Err, images.ErrEncode))

	// A directory in place of the output file makes the rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(out, "a.png"), 0o755))
	p, _ = newProcessor(t, in, out, fakeCodec{}, 1)
	report, err = p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StageWrite, report.Failures[0].Stage)
	assert.True(t, errors.Is(report.Failures[0].Err, images.ErrNoFile))
}

func TestRun_WorkerPool(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	var names []string
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("img%02d.png", i)
		names = append(names, name)
		content := fmt.Sprintf("%d %d", 100+i, 60+i)
		if i%5 == 0 {
			content = "broken"
		}
		writeFile(t, in, name, content)
	}

	p, _ := newProcessor(t, in, out, fakeCodec{}, 4)
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, report.Total)
	assert.Equal(t, 16, report.Processed)
	require.Len(t, report.Failures, 4)

	var failed []string
	for _, f := range report.Failures {
		failed = append(failed, f.Filename)
	}
	sort.Strings(failed)
	assert.Equal(t, []string{"img00.png", "img05.png", "img10.png", "img15.png"}, failed)

	for i, name := range names {
		if i%5 == 0 {
			continue
		}
		h := 60 + i
		assert.Equal(t, fmt.Sprintf("%d %d", h*3/4, h), readFile(t, out, name))
	}
}

func TestRun_MissingInputDirIsCreated(t *testing.T) {
	in := filepath.Join(t.TempDir(), "images")
	p, _ := newProcessor(t, in, t.TempDir(), fakeCodec{}, 1)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.True(t, report.OK())
	assert.DirExists(t, in)
}

func TestRun_UnreadableInputDir(t *testing.T) {
	in := filepath.Join(t.TempDir(), "file")
	writeFile(t, filepath.Dir(in), "file", "not a directory")

	p, _ := newProcessor(t, in, t.TempDir(), fakeCodec{}, 1)
	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, images.ErrNoFile))
	assert.Equal(t, 0, report.Processed)
}

func TestRun_Cancelled(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, in, "a.png", "8 6")
	writeFile(t, in, "b.png", "8 6")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 3} {
		p, _ := newProcessor(t, in, out, fakeCodec{}, workers)
		report, err := p.Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, report.Total)
		assert.Equal(t, 0, report.Processed)
		assert.False(t, report.OK())
	}
}

func TestRun_ImagingRoundTrip(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()

	src, err := images.NewPixelBuffer(images.Dimension{Width: 800, Height: 600})
	require.NoError(t, err)
	for y := uint32(0); y < 600; y++ {
		for x := uint32(0); x < 800; x++ {
			src.Set(x, y, images.Pixel{uint8(x), uint8(y), uint8(x / 4), 255})
		}
	}
	c, err := codec.New(codec.DefaultCodec, codec.Options{})
	require.NoError(t, err)
	var encoded bytes.Buffer
	require.NoError(t, c.Encode(&encoded, src, images.FormatPNG))
	writeFile(t, in, "photo.png", encoded.String())

	p, _ := newProcessor(t, in, out, c, 1)
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.OK(), "failures: %v", report.Failures)

	f, err := os.Open(filepath.Join(out, "photo.png"))
	require.NoError(t, err)
	defer f.Close()
	got, err := c.Decode(f, images.FormatPNG)
	require.NoError(t, err)

	require.Equal(t, images.Dimension{Width: 450, Height: 600}, got.Dimension())
	assert.Equal(t, src.At(175, 0), got.At(0, 0))
	assert.Equal(t, src.At(624, 599), got.At(449, 599))

	stats := p.prof.Snapshot()
	var ops []string
	for _, o := range stats.Operations {
		ops = append(ops, o.Name)
	}
	assert.Equal(t, []string{"crop", "decode", "encode"}, ops)
}

func TestLoadAssets(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "a.png", "4 3")
	writeFile(t, in, "b.png", "nope")
	writeFile(t, in, "c.jpg", "3 4")

	p, _ := newProcessor(t, in, t.TempDir(), fakeCodec{}, 1)
	assets, failures, err := p.LoadAssets(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "a.png", assets[0].Filename)
	assert.Equal(t, images.Dimension{Width: 4, Height: 3}, assets[0].Dimension())
	assert.Equal(t, images.Decoded, assets[0].Provenance)
	assert.Equal(t, "c.jpg", assets[1].Filename)
	require.Len(t, failures, 1)
	assert.Equal(t, "b.png", failures[0].Filename)
	assert.Equal(t, StageDecode, failures[0].Stage)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.InputDir = t.TempDir()
	cfg.OutputDir = t.TempDir()
	cfg.Workers = 0

	p, err := NewFromConfig(cfg, logrus.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, "imaging", p.opts.Codec.Name())
	assert.GreaterOrEqual(t, p.opts.Workers, 1)

	cfg.Codec = "missing"
	_, err = NewFromConfig(cfg, logrus.New(), nil)
	assert.True(t, errors.Is(err, images.ErrUnsupported))
}

func TestNew_Validation(t *testing.T) {
	w, err := util.NewWriter(util.WriterOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	_, err = New(Options{AspectRatio: 0, Codec: fakeCodec{}, Writer: w})
	assert.True(t, errors.Is(err, images.ErrInvalidGeometry))
	_, err = New(Options{AspectRatio: 1, Writer: w})
	assert.Error(t, err)
	_, err = New(Options{AspectRatio: 1, Codec: fakeCodec{}})
	assert.Error(t, err)
	_, err = New(Options{AspectRatio: 1, Codec: fakeCodec{}, Writer: w, Workers: -1})
	assert.Error(t, err)
}
