package routes

import (
	"log"
	"radworklist/external/worklist"
	"radworklist/internal/core"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func ExamRoutes(r gin.IRouter, server *core.WorklistServer) {
	r.POST("/exams", func(c *gin.Context) {
		var req worklist.ExamWithPatient
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, worklist.NotifMessage{Message: "Exam cannot be null."})
			return
		}

		exam, err := server.CreateExam(req)
		if err != nil {
			writeError(c, "creating the exam", err)
			return
		}
		log.Printf("Exam created: ExamId=%d", exam.ExamId)
		c.JSON(201, exam)
	})

	r.GET("/exams", func(c *gin.Context) {
		query, err := examQuery(c)
		if err != nil {
			c.JSON(400, worklist.NotifMessage{Message: err.Error()})
			return
		}

		exams, err := server.ListExams(query)
		if err != nil {
			writeError(c, "retrieving exams", err)
			return
		}
		c.JSON(200, exams)
	})

	r.GET("/exams/:examId", func(c *gin.Context) {
		examId, ok := examIdParam(c)
		if !ok {
			return
		}

		exam, err := server.GetExam(examId)
		if err != nil {
			writeError(c, "retrieving the exam", err)
			return
		}
		c.JSON(200, exam)
	})

	r.PUT("/exams/:examId", func(c *gin.Context) {
		examId, ok := examIdParam(c)
		if !ok {
			return
		}

		var req worklist.ExamWithPatient
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, worklist.NotifMessage{Message: "Exam cannot be null."})
			return
		}

		exam, err := server.UpdateExam(examId, req)
		if err != nil {
			writeError(c, "updating the exam", err)
			return
		}
		c.JSON(200, exam)
	})

	r.DELETE("/exams/:examId", func(c *gin.Context) {
		examId, ok := examIdParam(c)
		if !ok {
			return
		}

		err := server.DeleteExam(examId)
		if err != nil {
			writeError(c, "deleting the exam", err)
			return
		}
		c.Status(204)
	})
}

func PatientRoutes(r gin.IRouter, server *core.WorklistServer) {
	r.GET("/patients", func(c *gin.Context) {
		patients, err := server.ListPatients()
		if err != nil {
			writeError(c, "retrieving patients", err)
			return
		}
		c.JSON(200, patients)
	})
}

func examQuery(c *gin.Context) (core.ExamQuery, error) {
	query := core.ExamQuery{
		PatientName: c.Query("patientName"),
		Modality:    c.Query("modality"),
		Status:      c.Query("status"),
		Gender:      c.Query("gender"),
		DateOption:  c.Query("dateOption"),
	}

	if v := c.Query("patientId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return query, err
		}
		query.PatientId = id
	}

	for param, dst := range map[string]**time.Time{"fromDate": &query.From, "toDate": &query.To} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		t, err := parseDate(v)
		if err != nil {
			return query, err
		}
		*dst = &t
	}

	return query, nil
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
