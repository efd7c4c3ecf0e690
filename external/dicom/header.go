package dicom

import (
	"errors"
	"fmt"
	"strings"

	grail "github.com/grailbio/go-dicom"
	"github.com/grailbio/go-dicom/dicomtag"
)

// Tag is a DICOM data element tag, printed as (gggg,eeee).
type Tag struct {
	Group   uint16
	Element uint16
}

func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// Attributes used to order the slices of a stack.
var (
	InstanceNumber       = Tag{Group: 0x0020, Element: 0x0013}
	ImagePositionPatient = Tag{Group: 0x0020, Element: 0x0032}
	SliceLocation        = Tag{Group: 0x0020, Element: 0x1041}
)

// ErrHeaderPanic wraps a panic raised by the underlying parser.
var ErrHeaderPanic = errors.New("dicom parser panicked")

// Header gives access to the string value of a data element. Multi-valued
// elements are returned joined by a backslash, the way they are encoded.
type Header interface {
	StringAttribute(tag Tag) (string, bool)
}

// HeaderReader parses the header of one single-frame DICOM file.
type HeaderReader interface {
	ReadHeader(payload []byte) (Header, error)
}

// MapHeader is a Header backed by a plain map.
type MapHeader map[Tag]string

func (m MapHeader) StringAttribute(tag Tag) (string, bool) {
	v, ok := m[tag]
	return v, ok
}

// GrailReader reads headers with github.com/grailbio/go-dicom. Pixel data is
// never decoded.
type GrailReader struct{}

func (GrailReader) ReadHeader(payload []byte) (header Header, err error) {
	defer func() {
		if p := recover(); p != nil {
			header = nil
			err = fmt.Errorf("%w: %v", ErrHeaderPanic, p)
		}
	}()

	ds, err := grail.ReadDataSetInBytes(payload, grail.ReadOptions{DropPixelData: true})
	if err != nil {
		return nil, fmt.Errorf("grail.ReadDataSetInBytes(payload). %w", err)
	}

	return dataSetHeader{ds: ds}, nil
}

type dataSetHeader struct {
	ds *grail.DataSet
}

func (h dataSetHeader) StringAttribute(tag Tag) (string, bool) {
	elem, err := h.ds.FindElementByTag(dicomtag.Tag{Group: tag.Group, Element: tag.Element})
	if err != nil {
		return "", false
	}

	values := make([]string, 0, len(elem.Value))
	for _, v := range elem.Value {
		s, ok := v.(string)
		if !ok {
			return "", false
		}
		values = append(values, strings.Trim(s, " \x00"))
	}
	if len(values) == 0 {
		return "", false
	}

	return strings.Join(values, `\`), true
}
