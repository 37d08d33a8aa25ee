package codec

import (
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-crop/images"
)

func init() {
	Register("imaging", func(opts Options) (Codec, error) {
		return NewImagingCodec(opts), nil
	})
}

// ImagingCodec is a pure Go codec backed by github.com/disintegration/imaging for
// JPEG and PNG and github.com/chai2010/webp for WebP.
type ImagingCodec struct {
	opts Options
}

// NewImagingCodec creates an ImagingCodec.
func NewImagingCodec(opts Options) *ImagingCodec {
	return &ImagingCodec{opts: opts.withDefaults()}
}

// Name implements Codec.
func (c *ImagingCodec) Name() string { return "imaging" }

// Decode implements Codec.
func (c *ImagingCodec) Decode(r io.Reader, format images.ImageFormat) (*images.PixelBuffer, error) {
	switch format {
	case images.FormatJPEG, images.FormatPNG:
		img, err := imaging.Decode(r, imaging.AutoOrientation(c.opts.AutoOrient))
		if err != nil {
			return nil, images.WithKind(images.ErrDecode, err)
		}
		return toBuffer(img)
	case images.FormatWebP:
		return decodeWebP(r)
	default:
		return nil, unsupportedFormat(c.Name(), format)
	}
}

// Encode implements Codec.
func (c *ImagingCodec) Encode(w io.Writer, buf *images.PixelBuffer, format images.ImageFormat) error {
	if buf == nil {
		return errors.Wrap(images.ErrEncode, "buffer is nil")
	}

	var err error
	switch format {
	case images.FormatJPEG:
		err = imaging.Encode(w, buf.Image(), imaging.JPEG, imaging.JPEGQuality(c.opts.JPEGQuality))
	case images.FormatPNG:
		err = imaging.Encode(w, buf.Image(), imaging.PNG)
	case images.FormatWebP:
		return encodeWebP(w, buf, c.opts)
	default:
		return unsupportedFormat(c.Name(), format)
	}
	if err != nil {
		return images.WithKind(images.ErrEncode, err)
	}
	return nil
}
