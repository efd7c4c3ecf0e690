package dicomblob

import (
	"encoding/binary"
	"radworklist/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(payload []byte) []byte {
	return append(binary.BigEndian.AppendUint32(nil, uint32(len(payload))), payload...)
}

func TestIsValidDicom(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    bool
	}{
		{"valid", testutil.RawDicom(200, 1), true},
		{"exactly 132 bytes", testutil.RawDicom(132, 1), false},
		{"133 bytes", testutil.RawDicom(133, 1), true},
		{"short", []byte("DICM"), false},
		{"wrong magic", append(make([]byte, 128), []byte("DICX and more bytes")...), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidDicom(tt.payload))
		})
	}
}

func TestUnpackTruncatedPrefix(t *testing.T) {
	blob, err := Pack([][]byte{testutil.RawDicom(200, 1), testutil.RawDicom(150, 2)})
	require.NoError(t, err)

	want, err := Unpack(blob)
	require.NoError(t, err)

	for trailing := 1; trailing <= 3; trailing++ {
		got, err := Unpack(append(append([]byte{}, blob...), make([]byte, trailing)...))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestUnpackMalformed(t *testing.T) {
	blob := record(testutil.RawDicom(200, 1))
	blob = binary.BigEndian.AppendUint32(blob, 1000)
	blob = append(blob, make([]byte, 10)...)

	segments, err := Unpack(blob)
	assert.ErrorIs(t, err, ErrMalformedBlob)
	assert.Nil(t, segments)
}

func TestUnpackDropsMissingSignature(t *testing.T) {
	bad := testutil.RawDicom(200, 3)
	copy(bad[128:132], "XXXX")

	var blob []byte
	blob = append(blob, record(testutil.RawDicom(200, 1))...)
	blob = append(blob, record(bad)...)
	blob = append(blob, record(testutil.RawDicom(180, 2))...)

	segments, err := Unpack(blob)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, 200, segments[0].ByteLength())
	assert.Equal(t, 180, segments[1].ByteLength())
	assert.Equal(t, 1, segments[1].Index)
}

func TestUnpackSkipsZeroLengthRecords(t *testing.T) {
	var blob []byte
	blob = binary.BigEndian.AppendUint32(blob, 0)
	blob = append(blob, record(testutil.RawDicom(140, 1))...)
	blob = binary.BigEndian.AppendUint32(blob, 0)

	segments, err := Unpack(blob)
	require.NoError(t, err)
	assert.Len(t, segments, 1)

	records, err := Records(blob)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 0, records[0].Length)
	assert.Equal(t, 4, records[1].Offset)
	assert.Equal(t, 8, records[1].PayloadOffset())
	assert.Equal(t, 140, records[1].Length)
}

func TestRecordsMalformed(t *testing.T) {
	_, err := Records([]byte{0, 0, 0, 9, 1, 2})
	assert.ErrorIs(t, err, ErrMalformedBlob)
}
