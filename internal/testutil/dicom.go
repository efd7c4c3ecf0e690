// Package testutil builds DICOM payloads for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"radworklist/external/dicom"
	"sort"
)

const explicitVRLittleEndian = "1.2.840.10008.1.2.1"

// RawDicom returns a payload of exactly size bytes carrying the DICM magic at
// offset 128. It is not parseable beyond the magic.
func RawDicom(size int, fill byte) []byte {
	if size < 132 {
		size = 132
	}
	out := bytes.Repeat([]byte{fill}, size)
	for i := 0; i < 128; i++ {
		out[i] = 0
	}
	copy(out[128:132], "DICM")
	return out
}

// Part10 encodes a minimal explicit VR little endian Part-10 file holding the
// given string attributes. IS is used for Instance Number and DS for the rest.
func Part10(attrs dicom.MapHeader) []byte {
	var meta bytes.Buffer
	writeElement(&meta, dicom.Tag{Group: 0x0002, Element: 0x0001}, "OB", []byte{0x00, 0x01})
	writeElement(&meta, dicom.Tag{Group: 0x0002, Element: 0x0002}, "UI", uid("1.2.840.10008.5.1.4.1.1.2"))
	writeElement(&meta, dicom.Tag{Group: 0x0002, Element: 0x0003}, "UI", uid("1.2.826.0.1.3680043.2.1125.1"))
	writeElement(&meta, dicom.Tag{Group: 0x0002, Element: 0x0010}, "UI", uid(explicitVRLittleEndian))

	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")

	groupLength := make([]byte, 4)
	binary.LittleEndian.PutUint32(groupLength, uint32(meta.Len()))
	writeElement(&out, dicom.Tag{Group: 0x0002, Element: 0x0000}, "UL", groupLength)
	out.Write(meta.Bytes())

	tags := make([]dicom.Tag, 0, len(attrs))
	for tag := range attrs {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Group != tags[j].Group {
			return tags[i].Group < tags[j].Group
		}
		return tags[i].Element < tags[j].Element
	})

	for _, tag := range tags {
		vr := "DS"
		if tag == dicom.InstanceNumber {
			vr = "IS"
		}
		writeElement(&out, tag, vr, text(attrs[tag]))
	}

	return out.Bytes()
}

func uid(s string) []byte {
	b := []byte(s)
	if len(b)%2 != 0 {
		b = append(b, 0x00)
	}
	return b
}

func text(s string) []byte {
	b := []byte(s)
	if len(b)%2 != 0 {
		b = append(b, ' ')
	}
	return b
}

func writeElement(buf *bytes.Buffer, tag dicom.Tag, vr string, value []byte) {
	header := make([]byte, 4)
	binary.LittleEndian.PutUint16(header[0:2], tag.Group)
	binary.LittleEndian.PutUint16(header[2:4], tag.Element)
	buf.Write(header)
	buf.WriteString(vr)

	switch vr {
	case "OB", "OW", "SQ", "UN", "UT":
		length := make([]byte, 6)
		binary.LittleEndian.PutUint32(length[2:], uint32(len(value)))
		buf.Write(length)
	default:
		length := make([]byte, 2)
		binary.LittleEndian.PutUint16(length, uint16(len(value)))
		buf.Write(length)
	}
	buf.Write(value)
}
