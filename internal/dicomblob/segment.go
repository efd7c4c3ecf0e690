package dicomblob

import (
	"bytes"
	"errors"
)

const (
	prefixLength   = 4
	preambleLength = 128
	magicLength    = 4
	// a payload must be strictly longer than preamble plus magic
	minDicomLength = preambleLength + magicLength
)

var dicomMagic = []byte("DICM")

var (
	// ErrMalformedBlob is returned when a record declares more bytes than the blob holds.
	ErrMalformedBlob = errors.New("malformed blob")

	// ErrEmptyResult is returned when a blob holds no valid DICOM segment.
	ErrEmptyResult = errors.New("no valid images found")

	// ErrEmptyFile is returned when an empty file is handed to Pack.
	ErrEmptyFile = errors.New("empty file cannot be packed")

	// ErrFileTooLarge is returned when a file does not fit a 32 bit length prefix.
	ErrFileTooLarge = errors.New("file exceeds maximum record length")
)

// Segment is one DICOM file sliced out of a blob.
type Segment struct {
	// Index is the position of the segment in the unpacked sequence.
	Index   int
	Payload []byte
}

func (s Segment) ByteLength() int {
	return len(s.Payload)
}

func (s Segment) IsValidDicom() bool {
	return IsValidDicom(s.Payload)
}

// IsValidDicom reports whether payload is long enough and carries the DICM
// magic at offset 128.
func IsValidDicom(payload []byte) bool {
	if len(payload) <= minDicomLength {
		return false
	}
	return bytes.Equal(payload[preambleLength:minDicomLength], dicomMagic)
}
