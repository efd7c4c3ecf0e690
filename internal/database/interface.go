package database

import (
	"database/sql"
	"embed"
	"radworklist/external/worklist"
)

//go:embed migrations/*.sql
var EmbedMigrations embed.FS

// Lookups that find nothing return an error wrapping sql.ErrNoRows, so do
// updates and deletes that touch no row.
type Database interface {
	BeginTransaction() (*sql.Tx, error)

	AddPatient(tx *sql.Tx, patient worklist.Patient) (int64, error)
	GetPatient(tx *sql.Tx, id int64) (worklist.Patient, error)
	GetPatients() ([]worklist.Patient, error)
	UpdatePatient(tx *sql.Tx, patient worklist.Patient) error

	AddExam(tx *sql.Tx, exam worklist.Exam) (int64, error)
	GetExam(id int64) (worklist.ExamWithPatient, error)
	GetExams(filter worklist.ExamFilter) ([]worklist.ExamWithPatient, error)
	UpdateExam(tx *sql.Tx, exam worklist.Exam) error
	DeleteExam(tx *sql.Tx, id int64) error

	// ReplaceExamBlob removes any blob stored for the exam and inserts the new one.
	ReplaceExamBlob(tx *sql.Tx, blob worklist.ExamBlob) error
	GetExamBlob(examId int64) (worklist.ExamBlob, error)
	// GetExamBlobInfo is GetExamBlob without the blob bytes.
	GetExamBlobInfo(examId int64) (worklist.ExamBlob, error)
	DeleteExamBlob(tx *sql.Tx, examId int64) error
}
