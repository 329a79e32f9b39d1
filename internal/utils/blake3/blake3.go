package blake3

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

// Compute returns the hex encoded BLAKE3 digest of everything read from data.
func Compute(data io.Reader) (string, error) {
	digest := New()
	if _, err := io.Copy(digest, data); err != nil {
		return "", err
	}
	return digest.Sum(), nil
}

// Digest is an io.Writer that accumulates a BLAKE3 hash.
type Digest struct {
	hash *blake3.Hasher
}

func New() *Digest {
	return &Digest{hash: blake3.New()}
}

func (d *Digest) Write(p []byte) (int, error) {
	return d.hash.Write(p)
}

// Sum returns the hex digest of the bytes written so far.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.hash.Sum(nil))
}

// Reader hashes everything that passes through it.
type Reader struct {
	io.Reader
	digest *Digest
}

func NewReader(r io.Reader) *Reader {
	digest := New()
	return &Reader{
		Reader: io.TeeReader(r, digest),
		digest: digest,
	}
}

// Sum returns the hex digest of the bytes read so far.
func (r *Reader) Sum() string {
	return r.digest.Sum()
}
