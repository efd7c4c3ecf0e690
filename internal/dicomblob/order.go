package dicomblob

import (
	"context"
	"fmt"
	"log"
	"math"
	"radworklist/external/dicom"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// KeySource records which attribute produced a sort key.
type KeySource int

const (
	KeyIndex KeySource = iota
	KeyInstanceNumber
	KeySliceLocation
	KeyImagePosition
)

func (k KeySource) String() string {
	switch k {
	case KeyInstanceNumber:
		return "instance_number"
	case KeySliceLocation:
		return "slice_location"
	case KeyImagePosition:
		return "image_position_z"
	default:
		return "index"
	}
}

func (k KeySource) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// SortKey ranks a segment in the stack. Lower values are shown first.
type SortKey struct {
	Value  float64
	Source KeySource
}

// StackImage is a segment together with the key that placed it in the stack.
type StackImage struct {
	Segment
	Key SortKey
}

// ComputeSortKey picks the first usable of Instance Number, Slice Location and
// the Z component of Image Position (Patient), falling back to index.
func ComputeSortKey(header dicom.Header, index int) SortKey {
	if header != nil {
		if v, ok := header.StringAttribute(dicom.InstanceNumber); ok {
			if n, ok := parseInt(v); ok {
				return SortKey{Value: float64(n), Source: KeyInstanceNumber}
			}
		}
		if v, ok := header.StringAttribute(dicom.SliceLocation); ok {
			if f, ok := parseFloat(v); ok {
				return SortKey{Value: f, Source: KeySliceLocation}
			}
		}
		if v, ok := header.StringAttribute(dicom.ImagePositionPatient); ok {
			parts := strings.Split(v, `\`)
			if len(parts) >= 3 {
				if f, ok := parseFloat(parts[2]); ok {
					return SortKey{Value: f, Source: KeyImagePosition}
				}
			}
		}
	}
	return SortKey{Value: float64(index), Source: KeyIndex}
}

var (
	intPrefix   = regexp.MustCompile(`^[+-]?[0-9]+`)
	floatPrefix = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?`)
)

// parseInt reads the leading integer of s, ignoring whatever follows it, so
// "5.0" and "12abc" give 5 and 12.
func parseInt(s string) (int64, bool) {
	m := intPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseFloat reads the leading decimal number of s, so "3.5mm" gives 3.5.
// NaN and infinities are rejected.
func parseFloat(s string) (float64, bool) {
	m := floatPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Order reads the ordering attributes of every segment concurrently and
// returns the segments stable-sorted by ascending key. A segment whose header
// cannot be read is keyed by its position. If ctx is cancelled nothing is
// returned.
func Order(ctx context.Context, segments []Segment, reader dicom.HeaderReader) ([]StackImage, error) {
	images := make([]StackImage, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			images[i] = StackImage{Segment: seg, Key: segmentKey(reader, seg.Payload, i)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("g.Wait(). %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ctx.Err(). %w", err)
	}

	sort.SliceStable(images, func(a, b int) bool {
		return images[a].Key.Value < images[b].Key.Value
	})

	return images, nil
}

func segmentKey(reader dicom.HeaderReader, payload []byte, index int) SortKey {
	if reader == nil {
		return SortKey{Value: float64(index), Source: KeyIndex}
	}
	header, err := reader.ReadHeader(payload)
	if err != nil {
		log.Printf("dicomblob: segment %d: reading header failed, keeping position. %+v", index, err)
		return SortKey{Value: float64(index), Source: KeyIndex}
	}
	return ComputeSortKey(header, index)
}

// Sequence unpacks blob and orders its segments. It fails with
// ErrMalformedBlob for a corrupt framing and ErrEmptyResult when no segment
// is a valid DICOM file.
func Sequence(ctx context.Context, blob []byte, reader dicom.HeaderReader) ([]StackImage, error) {
	segments, err := Unpack(blob)
	if err != nil {
		return nil, fmt.Errorf("Unpack(blob). %w", err)
	}
	if len(segments) == 0 {
		return nil, ErrEmptyResult
	}

	images, err := Order(ctx, segments, reader)
	if err != nil {
		return nil, fmt.Errorf("Order(ctx, segments, reader). %w", err)
	}
	return images, nil
}
