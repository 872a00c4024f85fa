package tls

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/vyrodovalexey/tlsutil/internal/buffer"
)

// SHA256DigestLength is the size in bytes of a SHA-256 digest or HMAC-SHA256 MAC.
const SHA256DigestLength = sha256.Size

// SHA256Digest computes the SHA-256 digest of a fragmented buffer. The
// result is the digest of the buffer's slices concatenated in order, so it
// does not depend on where the slice boundaries fall.
func SHA256Digest(buf buffer.Slicer) []byte {
	h := sha256.New()
	if buf != nil {
		for _, slice := range buf.RawSlices() {
			// hash.Hash.Write never returns an error.
			_, _ = h.Write(slice)
		}
	}
	return h.Sum(nil)
}

// SHA256HMAC computes the HMAC-SHA256 of message under key. Both key and
// message may be empty.
func SHA256HMAC(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}
