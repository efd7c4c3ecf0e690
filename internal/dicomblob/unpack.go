package dicomblob

import (
	"encoding/binary"
	"fmt"
	"log"
)

// Record locates one length-prefixed record inside a blob.
type Record struct {
	// Offset of the length prefix.
	Offset int
	Length int
}

// PayloadOffset is where the record's payload starts.
func (r Record) PayloadOffset() int {
	return r.Offset + prefixLength
}

// walk visits every complete record in encoding order. Fewer than four
// trailing bytes end the walk without error.
func walk(blob []byte, visit func(rec Record, payload []byte)) error {
	cursor := 0
	for len(blob)-cursor >= prefixLength {
		rec := Record{
			Offset: cursor,
			Length: int(binary.BigEndian.Uint32(blob[cursor:])),
		}
		cursor += prefixLength

		if rec.Length > len(blob)-cursor {
			return fmt.Errorf("record at offset %d declares %d bytes, %d available. %w",
				rec.Offset, rec.Length, len(blob)-cursor, ErrMalformedBlob)
		}

		end := cursor + rec.Length
		visit(rec, blob[cursor:end:end])
		cursor = end
	}
	return nil
}

// Records lists the framing of blob, including zero length records.
func Records(blob []byte) ([]Record, error) {
	var records []Record
	err := walk(blob, func(rec Record, _ []byte) {
		records = append(records, rec)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Unpack splits blob into its DICOM segments in encoding order. Zero length
// records and payloads without the DICM magic are skipped. The returned
// payloads alias blob.
func Unpack(blob []byte) ([]Segment, error) {
	var segments []Segment
	err := walk(blob, func(rec Record, payload []byte) {
		if rec.Length == 0 {
			return
		}
		if !IsValidDicom(payload) {
			log.Printf("dicomblob: dropping record at offset %d (%d bytes): no DICM signature", rec.Offset, rec.Length)
			return
		}
		segments = append(segments, Segment{Index: len(segments), Payload: payload})
	})
	if err != nil {
		return nil, err
	}
	return segments, nil
}
