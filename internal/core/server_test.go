package core

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/url"
	"radworklist/external/dicom"
	"radworklist/external/worklist"
	"radworklist/internal/database"
	"radworklist/internal/dicomblob"
	"radworklist/internal/testutil"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*WorklistServer, database.SqliteDB) {
	t.Helper()
	sqlite, err := database.DatabaseSetup(context.Background(), t.TempDir(), database.EmbedMigrations)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Db.Close() })

	server := NewWorklistServer(sqlite, dicom.GrailReader{})
	server.Now = func() time.Time { return time.Date(2024, 10, 20, 15, 0, 0, 0, time.UTC) }
	return server, sqlite
}

func newExam(t *testing.T, server *WorklistServer) worklist.ExamWithPatient {
	t.Helper()
	born := time.Date(1975, 3, 2, 0, 0, 0, 0, time.UTC)
	exam, err := server.CreateExam(worklist.ExamWithPatient{
		ExamType:     "CT",
		ExamDate:     server.now(),
		Status:       worklist.Arrived,
		IsNewPatient: true,
		PatientName:  "Jane Roe",
		Birthdate:    &born,
		Gender:       "F",
		Email:        "jane@example.com",
	})
	require.NoError(t, err)
	return exam
}

func slice(instance string) UploadFile {
	return UploadFile{Name: "slice" + instance + ".dcm", Data: testutil.Part10(dicom.MapHeader{dicom.InstanceNumber: instance})}
}

func TestUploadFilesAndLoadStack(t *testing.T) {
	server, _ := newTestServer(t)
	exam := newExam(t, server)

	desc, err := server.UploadFiles(exam.ExamId, []UploadFile{slice("3"), slice("1"), slice("2")})
	require.NoError(t, err)
	assert.Equal(t, DicomPath(exam.ExamId), desc.Url)
	assert.NotEmpty(t, desc.Digest)

	stack, err := server.LoadStack(context.Background(), exam.ExamId)
	require.NoError(t, err)
	images := stack.Images
	require.Len(t, images, 3)
	assert.Equal(t, desc.Digest, stack.Digest.String())
	assert.Equal(t, []float64{1, 2, 3}, []float64{images[0].Key.Value, images[1].Key.Value, images[2].Key.Value})
	assert.Equal(t, []int{1, 2, 0}, []int{images[0].Index, images[1].Index, images[2].Index})

	resp := server.StackResponse(stack)
	assert.Equal(t, desc.Digest, resp.Digest)
	assert.Equal(t, "wadouri:/api/exams/"+strconv.FormatInt(exam.ExamId, 10)+"/dicom/images/0?d="+url.QueryEscape(desc.Digest), resp.ImageIds[0])
	assert.Equal(t, "instance_number", resp.Images[2].KeySource)

	image, err := server.StackImage(context.Background(), exam.ExamId, 2, desc.Digest)
	require.NoError(t, err)
	assert.Equal(t, images[2].Payload, image.Payload)

	image, err = server.StackImage(context.Background(), exam.ExamId, 0, "")
	require.NoError(t, err)
	assert.Equal(t, images[0].Payload, image.Payload)

	_, err = server.StackImage(context.Background(), exam.ExamId, 3, desc.Digest)
	assert.ErrorIs(t, err, ErrImageNotFound)

	got, err := server.GetExam(exam.ExamId)
	require.NoError(t, err)
	assert.True(t, got.HasImages)
}

func TestUploadReplacesBlob(t *testing.T) {
	server, _ := newTestServer(t)
	exam := newExam(t, server)

	_, err := server.UploadFiles(exam.ExamId, []UploadFile{slice("1"), slice("2")})
	require.NoError(t, err)
	_, err = server.UploadFiles(exam.ExamId, []UploadFile{slice("9")})
	require.NoError(t, err)

	stack, err := server.LoadStack(context.Background(), exam.ExamId)
	require.NoError(t, err)
	assert.Len(t, stack.Images, 1)
}

func TestUploadRawBlobRoundTrip(t *testing.T) {
	server, _ := newTestServer(t)
	exam := newExam(t, server)

	blob, err := dicomblob.Pack([][]byte{testutil.RawDicom(200, 1), testutil.RawDicom(150, 2)})
	require.NoError(t, err)

	desc, err := server.UploadBlob(exam.ExamId, blob)
	require.NoError(t, err)
	assert.Equal(t, uint64(358), desc.Size)

	stored, err := server.FetchBlob(exam.ExamId)
	require.NoError(t, err)
	assert.Equal(t, blob, stored.Data)

	info, err := server.BlobInfo(exam.ExamId)
	require.NoError(t, err)
	assert.Equal(t, desc.Digest, info.Digest)

	// raw payloads carry no header, so the stack keeps upload order
	stack, err := server.LoadStack(context.Background(), exam.ExamId)
	require.NoError(t, err)
	require.Len(t, stack.Images, 2)
	assert.Equal(t, dicomblob.KeyIndex, stack.Images[0].Key.Source)
	assert.Equal(t, 200, stack.Images[0].ByteLength())
}

func TestUploadValidation(t *testing.T) {
	server, _ := newTestServer(t)
	exam := newExam(t, server)

	_, err := server.UploadBlob(exam.ExamId, nil)
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = server.UploadFiles(exam.ExamId, nil)
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = server.UploadFiles(exam.ExamId, []UploadFile{slice("1"), {Name: "empty.dcm"}})
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = server.UploadBlob(exam.ExamId+1, []byte{1})
	assert.ErrorIs(t, err, ErrExamNotFound)
}

// Non-DICOM files are accepted on upload and only dropped when viewed.
func TestUploadNonDicomAcceptedThenDropped(t *testing.T) {
	server, _ := newTestServer(t)
	exam := newExam(t, server)

	_, err := server.UploadFiles(exam.ExamId, []UploadFile{
		{Name: "notes.txt", Data: []byte("radiology notes, not an image")},
	})
	require.NoError(t, err)

	_, err = server.LoadStack(context.Background(), exam.ExamId)
	assert.ErrorIs(t, err, dicomblob.ErrEmptyResult)
}

func TestLoadStackErrors(t *testing.T) {
	server, sqlite := newTestServer(t)
	exam := newExam(t, server)

	_, err := server.LoadStack(context.Background(), exam.ExamId)
	assert.ErrorIs(t, err, ErrBlobNotFound)
	assert.NotErrorIs(t, err, ErrExamNotFound)

	_, err = server.LoadStack(context.Background(), exam.ExamId+1)
	assert.ErrorIs(t, err, ErrExamNotFound)

	corrupt := binary.BigEndian.AppendUint32(nil, 1000)
	corrupt = append(corrupt, make([]byte, 10)...)
	_, err = server.UploadBlob(exam.ExamId, corrupt)
	require.NoError(t, err)

	_, err = server.LoadStack(context.Background(), exam.ExamId)
	assert.ErrorIs(t, err, dicomblob.ErrMalformedBlob)

	_, err = sqlite.Db.Exec("UPDATE exam_blobs SET blob = ? WHERE exam_id = ?", []byte("tampered"), exam.ExamId)
	require.NoError(t, err)
	_, err = server.FetchBlob(exam.ExamId)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestDeleteBlob(t *testing.T) {
	server, _ := newTestServer(t)
	exam := newExam(t, server)

	assert.ErrorIs(t, server.DeleteBlob(exam.ExamId), ErrBlobNotFound)

	_, err := server.UploadFiles(exam.ExamId, []UploadFile{slice("1")})
	require.NoError(t, err)
	require.NoError(t, server.DeleteBlob(exam.ExamId))

	_, err = server.FetchBlob(exam.ExamId)
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

// countingReader counts header reads on top of the real parser.
type countingReader struct {
	reads atomic.Int32
}

func (r *countingReader) ReadHeader(payload []byte) (dicom.Header, error) {
	r.reads.Add(1)
	return dicom.GrailReader{}.ReadHeader(payload)
}

func TestStackImagesReadHeadersOnce(t *testing.T) {
	server, _ := newTestServer(t)
	reader := &countingReader{}
	server.Reader = reader
	exam := newExam(t, server)

	files := make([]UploadFile, 30)
	for i := range files {
		files[i] = slice(strconv.Itoa(len(files) - i))
	}
	desc, err := server.UploadFiles(exam.ExamId, files)
	require.NoError(t, err)

	stack, err := server.LoadStack(context.Background(), exam.ExamId)
	require.NoError(t, err)
	require.Len(t, stack.Images, 30)

	for i := range stack.Images {
		image, err := server.StackImage(context.Background(), exam.ExamId, i, desc.Digest)
		require.NoError(t, err)
		assert.Equal(t, float64(i+1), image.Key.Value, fmt.Sprintf("position %d", i))
	}
	assert.Equal(t, int32(30), reader.reads.Load())
}

func TestStackImageRejectsReplacedBlob(t *testing.T) {
	server, _ := newTestServer(t)
	exam := newExam(t, server)

	first, err := server.UploadFiles(exam.ExamId, []UploadFile{slice("1"), slice("2")})
	require.NoError(t, err)
	_, err = server.LoadStack(context.Background(), exam.ExamId)
	require.NoError(t, err)

	second, err := server.UploadFiles(exam.ExamId, []UploadFile{slice("7")})
	require.NoError(t, err)
	require.NotEqual(t, first.Digest, second.Digest)

	_, err = server.StackImage(context.Background(), exam.ExamId, 0, first.Digest)
	assert.ErrorIs(t, err, ErrStaleStack)

	image, err := server.StackImage(context.Background(), exam.ExamId, 0, second.Digest)
	require.NoError(t, err)
	assert.Equal(t, float64(7), image.Key.Value)

	require.NoError(t, server.DeleteBlob(exam.ExamId))
	_, err = server.StackImage(context.Background(), exam.ExamId, 0, second.Digest)
	assert.ErrorIs(t, err, ErrBlobNotFound)
}
