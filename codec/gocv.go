//go:build gocv

package codec

import (
	"io"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-crop/images"
)

func init() {
	Register("gocv", func(opts Options) (Codec, error) {
		return NewGoCVCodec(opts), nil
	})
}

// GoCVCodec decodes and encodes through OpenCV. Build with -tags gocv.
type GoCVCodec struct {
	opts Options
}

// NewGoCVCodec creates a GoCVCodec.
func NewGoCVCodec(opts Options) *GoCVCodec {
	return &GoCVCodec{opts: opts.withDefaults()}
}

// Name implements Codec.
func (c *GoCVCodec) Name() string { return "gocv" }

var gocvExtensions = map[images.ImageFormat]gocv.FileExt{
	images.FormatJPEG: gocv.JPEGFileExt,
	images.FormatPNG:  gocv.PNGFileExt,
	images.FormatWebP: gocv.FileExt(".webp"),
}

// Decode implements Codec.
func (c *GoCVCodec) Decode(r io.Reader, format images.ImageFormat) (*images.PixelBuffer, error) {
	if _, ok := gocvExtensions[format]; !ok {
		return nil, unsupportedFormat(c.Name(), format)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read image bytes")
	}

	// IMReadUnchanged keeps the alpha channel of PNG and WebP sources.
	mat, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil {
		return nil, images.WithKind(images.ErrDecode, err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, images.WithKind(images.ErrDecode, errors.Errorf("opencv could not decode %d bytes", len(data)))
	}

	src := &mat
	// 16-bit sources are scaled down to 8 bits per channel.
	if mat.Type()&7 != gocv.MatTypeCV8U {
		scaled := gocv.NewMat()
		defer scaled.Close()
		mat.ConvertToWithParams(&scaled, gocv.MatTypeCV8U, 1.0/257, 0)
		src = &scaled
	}

	// Copy the BGRA bytes directly. mat.ToImage would return an *image.RGBA, which
	// Go reads as premultiplied and would darken semi-transparent pixels.
	buf, err := bgrToBuffer(src.ToBytes(), src.Cols(), src.Rows(), src.Channels())
	if err != nil {
		return nil, images.WithKind(images.ErrDecode, err)
	}
	return buf, nil
}

// Encode implements Codec.
func (c *GoCVCodec) Encode(w io.Writer, buf *images.PixelBuffer, format images.ImageFormat) error {
	ext, ok := gocvExtensions[format]
	if !ok {
		return unsupportedFormat(c.Name(), format)
	}
	if buf == nil {
		return errors.Wrap(images.ErrEncode, "buffer is nil")
	}

	d := buf.Dimension()
	mat, err := gocv.NewMatFromBytes(int(d.Height), int(d.Width), gocv.MatTypeCV8UC4, bufferToBGRA(buf))
	if err != nil {
		return images.WithKind(images.ErrEncode, err)
	}
	defer mat.Close()

	var encoded *gocv.NativeByteBuffer
	if format == images.FormatJPEG {
		encoded, err = gocv.IMEncodeWithParams(ext, mat, []int{int(gocv.IMWriteJpegQuality), c.opts.JPEGQuality})
	} else {
		encoded, err = gocv.IMEncode(ext, mat)
	}
	if err != nil {
		return images.WithKind(images.ErrEncode, err)
	}
	defer encoded.Close()

	if _, err := w.Write(encoded.GetBytes()); err != nil {
		return errors.Wrap(err, "write encoded image")
	}
	return nil
}
