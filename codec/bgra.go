package codec

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-crop/images"
)

// bgrToBuffer converts interleaved 8-bit OpenCV pixel data (gray, BGR or BGRA) into
// a PixelBuffer. Alpha is copied as is, since OpenCV stores it unassociated.
func bgrToBuffer(data []byte, cols, rows, channels int) (*images.PixelBuffer, error) {
	if cols <= 0 || rows <= 0 {
		return nil, errors.Wrapf(images.ErrInvalidGeometry, "mat is %dx%d", cols, rows)
	}
	switch channels {
	case 1, 3, 4:
	default:
		return nil, errors.Wrapf(images.ErrUnsupported, "%d channel images", channels)
	}
	if len(data) < cols*rows*channels {
		return nil, errors.Wrapf(images.ErrDecode, "mat holds %d bytes, want %d", len(data), cols*rows*channels)
	}

	buf, err := images.NewPixelBuffer(images.Dimension{Width: uint32(cols), Height: uint32(rows)})
	if err != nil {
		return nil, err
	}
	dst := buf.Pix()
	for i, j := 0, 0; i < cols*rows; i, j = i+1, j+channels {
		d := dst[i*images.BytesPerPixel : (i+1)*images.BytesPerPixel]
		switch channels {
		case 1:
			d[0], d[1], d[2], d[3] = data[j], data[j], data[j], 0xff
		case 3:
			d[0], d[1], d[2], d[3] = data[j+2], data[j+1], data[j], 0xff
		case 4:
			d[0], d[1], d[2], d[3] = data[j+2], data[j+1], data[j], data[j+3]
		}
	}
	return buf, nil
}

// bufferToBGRA returns the pixels of buf as interleaved BGRA bytes.
func bufferToBGRA(buf *images.PixelBuffer) []byte {
	src := buf.Pix()
	out := make([]byte, len(src))
	for i := 0; i < len(src); i += images.BytesPerPixel {
		out[i], out[i+1], out[i+2], out[i+3] = src[i+2], src[i+1], src[i], src[i+3]
	}
	return out
}
