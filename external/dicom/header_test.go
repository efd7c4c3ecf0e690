package dicom_test

import (
	"radworklist/external/dicom"
	"radworklist/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrailReaderReadsOrderingAttributes(t *testing.T) {
	payload := testutil.Part10(dicom.MapHeader{
		dicom.InstanceNumber:       "5",
		dicom.SliceLocation:        "9.1",
		dicom.ImagePositionPatient: `0\0\12.0`,
	})

	header, err := dicom.GrailReader{}.ReadHeader(payload)
	require.NoError(t, err)

	instance, ok := header.StringAttribute(dicom.InstanceNumber)
	require.True(t, ok)
	assert.Equal(t, "5", instance)

	position, ok := header.StringAttribute(dicom.ImagePositionPatient)
	require.True(t, ok)
	assert.Equal(t, `0\0\12.0`, position)
}

func TestGrailReaderMissingAttribute(t *testing.T) {
	payload := testutil.Part10(dicom.MapHeader{dicom.SliceLocation: "3.5"})

	header, err := dicom.GrailReader{}.ReadHeader(payload)
	require.NoError(t, err)

	_, ok := header.StringAttribute(dicom.InstanceNumber)
	assert.False(t, ok)
}

func TestGrailReaderRejectsGarbage(t *testing.T) {
	_, err := dicom.GrailReader{}.ReadHeader([]byte("definitely not a dicom file"))
	assert.Error(t, err)
}

func TestMapHeader(t *testing.T) {
	h := dicom.MapHeader{dicom.SliceLocation: "1.5"}
	v, ok := h.StringAttribute(dicom.SliceLocation)
	assert.True(t, ok)
	assert.Equal(t, "1.5", v)
	assert.Equal(t, "(0020,1041)", dicom.SliceLocation.String())
}
