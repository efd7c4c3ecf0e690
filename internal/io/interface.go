package io

import "radworklist/internal/dicomblob"

type DicomIO interface {
	// ReadDicomDir returns the regular files of dir sorted by name.
	ReadDicomDir(dir string) ([]string, [][]byte, error)
	WriteBlob(path string, blob []byte) error
	GetBlob(path string) ([]byte, error)
	// WriteStack writes the images in stack order and returns the paths written.
	WriteStack(dir string, images []dicomblob.StackImage) ([]string, error)
}
