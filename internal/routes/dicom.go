package routes

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"radworklist/external/worklist"
	"radworklist/internal/core"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const UploadField = "files"

func DicomRoutes(r gin.IRouter, server *core.WorklistServer) {
	// multipart upload of individual DICOM files, packed server side
	r.POST("/exams/:examId/dicom", func(c *gin.Context) {
		examId, ok := examIdParam(c)
		if !ok {
			return
		}

		files, err := readUploadFiles(c)
		if err != nil {
			log.Printf("readUploadFiles(c). %+v", err)
			if uploadTooLarge(c, err) {
				return
			}
			c.JSON(400, worklist.NotifMessage{Message: "DICOM file is required and cannot be empty."})
			return
		}

		descriptor, err := server.UploadFiles(examId, files)
		if err != nil {
			writeError(c, "uploading the DICOM study", err)
			return
		}
		c.JSON(200, descriptor)
	})

	// upload of a blob packed by the client
	r.PUT("/exams/:examId/dicom", func(c *gin.Context) {
		examId, ok := examIdParam(c)
		if !ok {
			return
		}

		blob, err := io.ReadAll(c.Request.Body)
		if err != nil {
			log.Printf("io.ReadAll(c.Request.Body). %+v", err)
			if uploadTooLarge(c, err) {
				return
			}
			c.JSON(400, worklist.NotifMessage{Message: "Could not read upload."})
			return
		}

		descriptor, err := server.UploadBlob(examId, blob)
		if err != nil {
			writeError(c, "uploading the DICOM study", err)
			return
		}
		c.JSON(200, descriptor)
	})

	r.GET("/exams/:examId/dicom", func(c *gin.Context) {
		examId, ok := examIdParam(c)
		if !ok {
			return
		}

		blob, err := server.FetchBlob(examId)
		if err != nil {
			writeError(c, "retrieving the DICOM study", err)
			return
		}

		etag := strconv.Quote(blob.Digest.String())
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(304)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="exam_%d_dicom.bin"`, examId))
		c.Data(200, "application/octet-stream", blob.Data)
	})

	r.HEAD("/exams/:examId/dicom", func(c *gin.Context) {
		examId, ok := examIdParam(c)
		if !ok {
			return
		}

		descriptor, err := server.BlobInfo(examId)
		if err != nil {
			writeError(c, "retrieving the DICOM study", err)
			return
		}

		c.Header("ETag", strconv.Quote(descriptor.Digest))
		c.Header("Content-Length", strconv.FormatUint(descriptor.Size, 10))
		c.Status(200)
	})

	r.DELETE("/exams/:examId/dicom", func(c *gin.Context) {
		examId, ok := examIdParam(c)
		if !ok {
			return
		}

		err := server.DeleteBlob(examId)
		if err != nil {
			writeError(c, "deleting the DICOM study", err)
			return
		}
		c.Status(204)
	})

	r.GET("/exams/:examId/dicom/stack", func(c *gin.Context) {
		examId, ok := examIdParam(c)
		if !ok {
			return
		}

		stack, err := server.LoadStack(c.Request.Context(), examId)
		if err != nil {
			writeError(c, "loading images", err)
			return
		}
		c.JSON(200, server.StackResponse(stack))
	})

	r.GET("/exams/:examId/dicom/images/:position", func(c *gin.Context) {
		examId, ok := examIdParam(c)
		if !ok {
			return
		}
		position, err := strconv.Atoi(c.Param("position"))
		if err != nil || position < 0 {
			c.JSON(400, worklist.NotifMessage{Message: "Position must be a non-negative integer."})
			return
		}

		version := c.Query(core.VersionParam)
		image, err := server.StackImage(c.Request.Context(), examId, position, version)
		if err != nil {
			writeError(c, "loading the image", err)
			return
		}
		if version != "" {
			// a versioned id always names the same bytes
			c.Header("Cache-Control", "private, max-age=86400, immutable")
		}
		c.Data(200, core.DicomMimeType, image.Payload)
	})
}

func readUploadFiles(c *gin.Context) ([]core.UploadFile, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, fmt.Errorf("content type %q is not multipart", c.ContentType())
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("c.MultipartForm(). %w", err)
	}

	headers := form.File[UploadField]
	if len(headers) == 0 {
		return nil, fmt.Errorf("no %q field in form", UploadField)
	}

	files := make([]core.UploadFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("header.Open(). %w", err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("io.ReadAll(f). %w", err)
		}
		files = append(files, core.UploadFile{Name: header.Filename, Data: data})
	}
	return files, nil
}

// uploadTooLarge answers 413 when err comes from the MaxBodySize limit.
func uploadTooLarge(c *gin.Context, err error) bool {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		return false
	}
	c.AbortWithStatusJSON(413, worklist.NotifMessage{
		Message: fmt.Sprintf("Upload exceeds the limit of %d bytes.", maxErr.Limit),
	})
	return true
}
