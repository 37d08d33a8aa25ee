package codec

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-crop/images"
)

func TestBGRToBuffer(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		channels int
		want     images.Pixel
	}{
		{"gray", []byte{7, 9}, 1, images.Pixel{7, 7, 7, 255}},
		{"bgr", []byte{1, 2, 3, 4, 5, 6}, 3, images.Pixel{3, 2, 1, 255}},
		// Semi-transparent pixels keep their straight color values.
		{"bgra", []byte{10, 20, 200, 64, 0, 0, 0, 0}, 4, images.Pixel{200, 20, 10, 64}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := bgrToBuffer(tt.data, 2, 1, tt.channels)
			require.NoError(t, err)
			assert.Equal(t, images.Dimension{Width: 2, Height: 1}, buf.Dimension())
			assert.Equal(t, tt.want, buf.At(0, 0))
		})
	}
}

func TestBGRToBuffer_Errors(t *testing.T) {
	_, err := bgrToBuffer(nil, 0, 1, 4)
	assert.True(t, errors.Is(err, images.ErrInvalidGeometry))

	_, err = bgrToBuffer(make([]byte, 8), 2, 1, 2)
	assert.True(t, errors.Is(err, images.ErrUnsupported))

	_, err = bgrToBuffer(make([]byte, 3), 2, 1, 4)
	assert.True(t, errors.Is(err, images.ErrDecode))
}

func TestBufferToBGRA_RoundTrip(t *testing.T) {
	src := getTestBuffer(t, 5, 3, 100)

	bgra := bufferToBGRA(src)
	assert.Equal(t, src.At(1, 0)[2], bgra[4])
	assert.Equal(t, src.At(1, 0)[0], bgra[6])

	got, err := bgrToBuffer(bgra, 5, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, images.ComputeChecksum(src), images.ComputeChecksum(got))
}
