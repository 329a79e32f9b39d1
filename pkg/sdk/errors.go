package sdk

import (
	"errors"
	"fmt"
)

// ErrHashMismatch is returned when the server's digest of a completed upload
// differs from the digest of the bytes the client sent.
var ErrHashMismatch = errors.New("hash mismatch")

// InitError reports a failed session initialization. No chunks were sent.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init upload: %v", e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// ChunkUploadError reports the chunk that stopped an upload. The session is
// left on the server and can be continued with ResumeUpload.
type ChunkUploadError struct {
	UploadID string
	Index    int
	Err      error
}

func (e *ChunkUploadError) Error() string {
	return fmt.Sprintf("upload chunk %d of %s: %v", e.Index, e.UploadID, e.Err)
}

func (e *ChunkUploadError) Unwrap() error {
	return e.Err
}

// CompleteError reports a failed reassembly request.
type CompleteError struct {
	UploadID string
	Err      error
}

func (e *CompleteError) Error() string {
	return fmt.Sprintf("complete upload %s: %v", e.UploadID, e.Err)
}

func (e *CompleteError) Unwrap() error {
	return e.Err
}
