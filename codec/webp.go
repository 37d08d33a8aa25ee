package codec

import (
	"image"
	"io"

	"github.com/chai2010/webp"

	"github.com/nvr-ai/go-crop/images"
)

func decodeWebP(r io.Reader) (*images.PixelBuffer, error) {
	img, err := webp.Decode(r)
	if err != nil {
		return nil, images.WithKind(images.ErrDecode, err)
	}
	return toBuffer(img)
}

func encodeWebP(w io.Writer, buf *images.PixelBuffer, opts Options) error {
	err := webp.Encode(w, buf.Image(), &webp.Options{
		Lossless: opts.WebPLossless,
		Quality:  opts.WebPQuality,
		Exact:    true,
	})
	if err != nil {
		return images.WithKind(images.ErrEncode, err)
	}
	return nil
}

// toBuffer converts a decoded image and tags conversion failures as decode errors.
func toBuffer(img image.Image) (*images.PixelBuffer, error) {
	buf, err := images.PixelBufferFromImage(img)
	if err != nil {
		return nil, images.WithKind(images.ErrDecode, err)
	}
	return buf, nil
}
