package images

import (
	"path/filepath"
	"strings"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// formatsByExtension maps a lower-case file extension (without the dot) to its format.
var formatsByExtension = map[string]ImageFormat{
	"jpg":  FormatJPEG,
	"jpeg": FormatJPEG,
	"png":  FormatPNG,
	"webp": FormatWebP,
}

// Extension returns the file extension of name without the leading dot, or an
// empty string when name has none.
func Extension(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}

// FormatFromFilename resolves the image format implied by the extension of name.
// The extension is compared case-insensitively, so "a.PNG" is a PNG. Which
// extensions are picked up from a directory is decided separately by the loader.
//
// Arguments:
//   - name: The file name or path.
//
// Returns:
//   - ImageFormat: The format for the extension.
//   - error: ErrUnsupported if the extension maps to no known format.
func FormatFromFilename(name string) (ImageFormat, error) {
	f, ok := formatsByExtension[strings.ToLower(Extension(name))]
	if !ok {
		return "", &FileError{Op: "format", Path: name, Err: ErrUnsupported}
	}
	return f, nil
}
