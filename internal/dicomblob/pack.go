package dicomblob

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Pack concatenates files into a blob, each preceded by its length. Files
// are not checked for the DICM magic.
func Pack(files [][]byte) ([]byte, error) {
	size, err := PackedSize(files)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, size)
	for _, file := range files {
		blob = binary.BigEndian.AppendUint32(blob, uint32(len(file)))
		blob = append(blob, file...)
	}

	return blob, nil
}

// PackedSize returns the length of the blob Pack would produce.
func PackedSize(files [][]byte) (int, error) {
	size := 0
	for i, file := range files {
		if len(file) == 0 {
			return 0, fmt.Errorf("file %d. %w", i, ErrEmptyFile)
		}
		if uint64(len(file)) > math.MaxUint32 {
			return 0, fmt.Errorf("file %d (%d bytes). %w", i, len(file), ErrFileTooLarge)
		}
		size += prefixLength + len(file)
	}
	return size, nil
}
