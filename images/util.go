package images

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
)

// ComputeChecksum generates a deterministic checksum of a buffer's dimension and
// pixels, used to verify that repeated crops are byte-identical.
//
// Arguments:
// - buf: The buffer to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string, or "empty" for a nil buffer.
//
// Example:
//
// ```go
//
//	checksum := ComputeChecksum(asset.Buffer)
//	fmt.Printf("Buffer checksum: %s\n", checksum)
//
// ```
func ComputeChecksum(buf *PixelBuffer) string {
	if buf == nil {
		return "empty"
	}

	hash := md5.New()
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], buf.dim.Width)
	binary.BigEndian.PutUint32(header[4:8], buf.dim.Height)
	hash.Write(header[:])
	hash.Write(buf.pix)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
