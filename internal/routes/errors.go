package routes

import (
	"context"
	"errors"
	"log"
	"radworklist/external/worklist"
	"radworklist/internal/core"
	"radworklist/internal/dicomblob"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// nginx's "client closed request"
const statusClientClosedRequest = 499

func writeError(c *gin.Context, action string, err error) {
	status, message := 500, "An unexpected error occurred while "+action+"."

	switch {
	case errors.Is(err, core.ErrInvalidExam), errors.Is(err, core.ErrInvalidFilter), errors.Is(err, core.ErrEmptyUpload):
		status, message = 400, validationMessage(err)
	case errors.Is(err, core.ErrExamNotFound):
		status, message = 404, "Exam not found."
	case errors.Is(err, core.ErrBlobNotFound):
		status, message = 404, "DICOM study not found for this exam."
	case errors.Is(err, core.ErrImageNotFound):
		status, message = 404, "Image not found in this exam's stack."
	case errors.Is(err, core.ErrStaleStack):
		status, message = 409, "The DICOM study changed since the stack was loaded. Reload the viewer."
	case errors.Is(err, dicomblob.ErrMalformedBlob):
		status, message = 422, "Failed to load images for this exam."
	case errors.Is(err, dicomblob.ErrEmptyResult):
		status, message = 422, "No valid images found."
	case errors.Is(err, context.Canceled):
		c.AbortWithStatus(statusClientClosedRequest)
		log.Printf("%s: client went away. %+v", action, err)
		return
	}

	log.Printf("%s: %d. %+v", action, status, err)
	c.AbortWithStatusJSON(status, worklist.NotifMessage{Message: message})
}

// validationMessage keeps the part of the error meant for the client.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return msg
}

func examIdParam(c *gin.Context) (int64, bool) {
	examId, err := strconv.ParseInt(c.Param("examId"), 10, 64)
	if err != nil || examId <= 0 {
		c.AbortWithStatusJSON(400, worklist.NotifMessage{Message: "ExamId must be a positive integer."})
		return 0, false
	}
	return examId, true
}
