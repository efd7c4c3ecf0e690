package core

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"radworklist/external/worklist"
	"radworklist/internal/dicomblob"

	"github.com/gabriel-vasile/mimetype"
	"github.com/opencontainers/go-digest"
)

const DicomMimeType = "application/dicom"

// VersionParam is the query parameter carrying the blob digest an image id
// was issued for.
const VersionParam = "d"

type UploadFile struct {
	Name string
	Data []byte
}

func DicomPath(examId int64) string {
	return fmt.Sprintf("/api/exams/%d/dicom", examId)
}

// ImagePath links to one image of a given version of the exam's stack.
func ImagePath(examId int64, position int, version digest.Digest) string {
	path := fmt.Sprintf("/api/exams/%d/dicom/images/%d", examId, position)
	if version == "" {
		return path
	}
	return path + "?" + url.Values{VersionParam: {version.String()}}.Encode()
}

// UploadBlob stores an already packed blob for the exam, replacing any blob
// stored before. The payloads are not inspected.
func (s *WorklistServer) UploadBlob(examId int64, blob []byte) (worklist.BlobDescriptor, error) {
	if len(blob) == 0 {
		return worklist.BlobDescriptor{}, ErrEmptyUpload
	}

	_, err := s.GetExam(examId)
	if err != nil {
		return worklist.BlobDescriptor{}, err
	}

	stored := worklist.ExamBlob{
		ExamId:    examId,
		Data:      blob,
		Size:      uint64(len(blob)),
		Digest:    digest.FromBytes(blob),
		CreatedAt: uint64(s.now().Unix()),
	}

	err = s.withTransaction(func(tx *sql.Tx) error {
		err := s.DB.ReplaceExamBlob(tx, stored)
		if err != nil {
			return fmt.Errorf("s.DB.ReplaceExamBlob(tx, stored). %w", err)
		}
		return nil
	})
	if err != nil {
		return worklist.BlobDescriptor{}, err
	}
	s.forgetStacks(examId)

	log.Printf("Stored %d byte DICOM blob for exam %d (%s)", stored.Size, examId, stored.Digest)
	return s.descriptor(stored), nil
}

// UploadFiles packs files in the given order and stores the blob. Files that
// do not look like DICOM are kept; they are dropped when the stack is loaded.
func (s *WorklistServer) UploadFiles(examId int64, files []UploadFile) (worklist.BlobDescriptor, error) {
	if len(files) == 0 {
		return worklist.BlobDescriptor{}, ErrEmptyUpload
	}

	payloads := make([][]byte, 0, len(files))
	for _, file := range files {
		if len(file.Data) == 0 {
			return worklist.BlobDescriptor{}, fmt.Errorf("%w: file %q is empty", ErrEmptyUpload, file.Name)
		}
		if !dicomblob.IsValidDicom(file.Data) {
			mtype := mimetype.Detect(file.Data)
			log.Printf("Exam %d: file %q looks like %s, not DICOM. It will not be shown in the viewer", examId, file.Name, mtype.String())
		}
		payloads = append(payloads, file.Data)
	}

	blob, err := dicomblob.Pack(payloads)
	if err != nil {
		return worklist.BlobDescriptor{}, fmt.Errorf("dicomblob.Pack(payloads). %w", err)
	}

	return s.UploadBlob(examId, blob)
}

// FetchBlob returns the exact bytes stored for the exam after checking them
// against the stored digest.
func (s *WorklistServer) FetchBlob(examId int64) (worklist.ExamBlob, error) {
	_, err := s.GetExam(examId)
	if err != nil {
		return worklist.ExamBlob{}, err
	}

	blob, err := s.DB.GetExamBlob(examId)
	if err != nil {
		return blob, notFound(fmt.Errorf("s.DB.GetExamBlob(%d). %w", examId, err), ErrBlobNotFound)
	}

	err = blob.Digest.Validate()
	if err != nil {
		return blob, fmt.Errorf("blob.Digest.Validate(). %w", err)
	}
	if blob.Digest.Algorithm().FromBytes(blob.Data) != blob.Digest {
		return blob, fmt.Errorf("exam %d. %w", examId, ErrDigestMismatch)
	}

	return blob, nil
}

func (s *WorklistServer) BlobInfo(examId int64) (worklist.BlobDescriptor, error) {
	_, err := s.GetExam(examId)
	if err != nil {
		return worklist.BlobDescriptor{}, err
	}

	blob, err := s.DB.GetExamBlobInfo(examId)
	if err != nil {
		return worklist.BlobDescriptor{}, notFound(fmt.Errorf("s.DB.GetExamBlobInfo(%d). %w", examId, err), ErrBlobNotFound)
	}
	return s.descriptor(blob), nil
}

func (s *WorklistServer) DeleteBlob(examId int64) error {
	_, err := s.GetExam(examId)
	if err != nil {
		return err
	}

	err = s.withTransaction(func(tx *sql.Tx) error {
		err := s.DB.DeleteExamBlob(tx, examId)
		if err != nil {
			return notFound(fmt.Errorf("s.DB.DeleteExamBlob(tx, %d). %w", examId, err), ErrBlobNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.forgetStacks(examId)
	return nil
}

// Stack is an exam's valid images in display order, tied to the digest of
// the blob they were cut from.
type Stack struct {
	ExamId int64
	Digest digest.Digest
	Images []dicomblob.StackImage
}

// LoadStack returns the exam's valid images in display order. A corrupt blob
// yields dicomblob.ErrMalformedBlob and no images. Ordered stacks are cached
// per blob digest, so a replaced blob is never served from an old ordering.
func (s *WorklistServer) LoadStack(ctx context.Context, examId int64) (Stack, error) {
	info, err := s.BlobInfo(examId)
	if err != nil {
		return Stack{}, err
	}
	if images, ok := s.cachedStack(examId, digest.Digest(info.Digest)); ok {
		return Stack{ExamId: examId, Digest: digest.Digest(info.Digest), Images: images}, nil
	}

	blob, err := s.FetchBlob(examId)
	if err != nil {
		return Stack{}, err
	}

	images, err := dicomblob.Sequence(ctx, blob.Data, s.Reader)
	if err != nil {
		return Stack{}, fmt.Errorf("exam %d: dicomblob.Sequence(). %w", examId, err)
	}

	s.cacheStack(examId, blob.Digest, images)
	return Stack{ExamId: examId, Digest: blob.Digest, Images: images}, nil
}

// StackImage returns the image at position in the exam's stack. A non empty
// version must equal the digest of the stored blob, otherwise ErrStaleStack is
// returned.
func (s *WorklistServer) StackImage(ctx context.Context, examId int64, position int, version string) (dicomblob.StackImage, error) {
	stack, err := s.LoadStack(ctx, examId)
	if err != nil {
		return dicomblob.StackImage{}, err
	}
	if version != "" && version != stack.Digest.String() {
		return dicomblob.StackImage{}, fmt.Errorf("exam %d: asked for %s, stored %s. %w", examId, version, stack.Digest, ErrStaleStack)
	}
	if position < 0 || position >= len(stack.Images) {
		return dicomblob.StackImage{}, fmt.Errorf("position %d of %d. %w", position, len(stack.Images), ErrImageNotFound)
	}
	return stack.Images[position], nil
}

func (s *WorklistServer) StackResponse(stack Stack) worklist.StackResponse {
	resp := worklist.StackResponse{
		ExamId:   stack.ExamId,
		Digest:   stack.Digest.String(),
		ImageIds: make([]string, 0, len(stack.Images)),
		Images:   make([]worklist.StackImage, 0, len(stack.Images)),
	}
	for i, image := range stack.Images {
		imageId := "wadouri:" + s.PublicURL + ImagePath(stack.ExamId, i, stack.Digest)
		resp.ImageIds = append(resp.ImageIds, imageId)
		resp.Images = append(resp.Images, worklist.StackImage{
			Position:   i,
			ImageId:    imageId,
			SortKey:    image.Key.Value,
			KeySource:  image.Key.Source.String(),
			ByteLength: image.ByteLength(),
			BlobIndex:  image.Index,
		})
	}
	return resp
}

func (s *WorklistServer) descriptor(blob worklist.ExamBlob) worklist.BlobDescriptor {
	return worklist.BlobDescriptor{
		ExamId:   blob.ExamId,
		Url:      s.PublicURL + DicomPath(blob.ExamId),
		Digest:   blob.Digest.String(),
		Size:     blob.Size,
		Uploaded: blob.CreatedAt,
	}
}
