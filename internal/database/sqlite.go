package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"radworklist/external/worklist"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/opencontainers/go-digest"
	"github.com/pressly/goose/v3"
)

const DatabaseFile = "app.db"

type SqliteDB struct {
	Db *sql.DB
}

func (sq SqliteDB) BeginTransaction() (*sql.Tx, error) {
	tx, err := sq.Db.Begin()
	if err != nil {
		return nil, fmt.Errorf("sq.Db.Begin(). %w", err)
	}

	return tx, nil
}

func (sq SqliteDB) AddPatient(tx *sql.Tx, patient worklist.Patient) (int64, error) {
	res, err := tx.Exec("INSERT INTO patients (name, birthdate, gender, email, created_at) values (?, ?, ?, ?, ?)",
		patient.Name, patient.Birthdate.Unix(), patient.Gender, patient.Email, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf(`tx.Exec("INSERT INTO patients (name, ). %w`, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf(`res.LastInsertId(). %w`, err)
	}
	return id, nil
}

func (sq SqliteDB) GetPatient(tx *sql.Tx, id int64) (worklist.Patient, error) {
	var patient worklist.Patient
	var birthdate, createdAt int64

	err := tx.QueryRow("SELECT id, name, birthdate, gender, email, created_at FROM patients WHERE id = ?", id).
		Scan(&patient.PatientId, &patient.Name, &birthdate, &patient.Gender, &patient.Email, &createdAt)
	if err != nil {
		return patient, fmt.Errorf("tx.QueryRow(id).Scan %w", err)
	}

	patient.Birthdate = fromUnix(birthdate)
	patient.CreatedAt = fromUnix(createdAt)
	return patient, nil
}

func (sq SqliteDB) GetPatients() ([]worklist.Patient, error) {
	patients := []worklist.Patient{}

	rows, err := sq.Db.Query("SELECT id, name, birthdate, gender, email, created_at FROM patients ORDER BY name, id")
	if err != nil {
		return patients, fmt.Errorf("sq.Db.Query() %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p worklist.Patient
		var birthdate, createdAt int64
		err = rows.Scan(&p.PatientId, &p.Name, &birthdate, &p.Gender, &p.Email, &createdAt)
		if err != nil {
			return patients, fmt.Errorf(`rows.Scan(&p.PatientId, &p.Name, ...) %w`, err)
		}
		p.Birthdate = fromUnix(birthdate)
		p.CreatedAt = fromUnix(createdAt)

		patients = append(patients, p)
	}

	return patients, rows.Err()
}

func (sq SqliteDB) UpdatePatient(tx *sql.Tx, patient worklist.Patient) error {
	res, err := tx.Exec("UPDATE patients SET name = ?, birthdate = ?, gender = ?, email = ? WHERE id = ?",
		patient.Name, patient.Birthdate.Unix(), patient.Gender, patient.Email, patient.PatientId,
	)
	if err != nil {
		return fmt.Errorf(`tx.Exec("UPDATE patients SET name = ?, ). %w`, err)
	}
	return expectRow(res)
}

func (sq SqliteDB) AddExam(tx *sql.Tx, exam worklist.Exam) (int64, error) {
	res, err := tx.Exec("INSERT INTO exams (patient_id, exam_type, exam_date, status, comments, created_at) values (?, ?, ?, ?, ?, ?)",
		exam.PatientId, exam.ExamType, exam.ExamDate.Unix(), string(exam.Status), exam.Comments, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf(`tx.Exec("INSERT INTO exams (patient_id, ). %w`, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf(`res.LastInsertId(). %w`, err)
	}
	return id, nil
}

const examWithPatientQuery = `
	SELECT e.id, e.patient_id, e.exam_type, e.exam_date, e.status, e.comments,
	       p.name, p.birthdate, p.gender, p.email,
	       EXISTS (SELECT 1 FROM exam_blobs b WHERE b.exam_id = e.id)
	FROM exams e
	INNER JOIN patients p ON e.patient_id = p.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExamWithPatient(row rowScanner) (worklist.ExamWithPatient, error) {
	var exam worklist.ExamWithPatient
	var examDate, birthdate int64
	var status string

	err := row.Scan(&exam.ExamId, &exam.PatientId, &exam.ExamType, &examDate, &status, &exam.Comments,
		&exam.PatientName, &birthdate, &exam.Gender, &exam.Email, &exam.HasImages)
	if err != nil {
		return exam, err
	}

	born := fromUnix(birthdate)
	exam.ExamDate = fromUnix(examDate)
	exam.Birthdate = &born
	exam.Status = worklist.Status(status)
	return exam, nil
}

func (sq SqliteDB) GetExam(id int64) (worklist.ExamWithPatient, error) {
	exam, err := scanExamWithPatient(sq.Db.QueryRow(examWithPatientQuery+" WHERE e.id = ?", id))
	if err != nil {
		return exam, fmt.Errorf("sq.Db.QueryRow(id).Scan %w", err)
	}
	return exam, nil
}

func (sq SqliteDB) GetExams(filter worklist.ExamFilter) ([]worklist.ExamWithPatient, error) {
	exams := []worklist.ExamWithPatient{}

	var conditions []string
	var args []interface{}

	if filter.PatientId > 0 {
		conditions = append(conditions, "e.patient_id = ?")
		args = append(args, filter.PatientId)
	}
	if filter.PatientName != "" {
		conditions = append(conditions, "p.name LIKE ?")
		args = append(args, "%"+filter.PatientName+"%")
	}
	if filter.Modality != "" {
		conditions = append(conditions, "e.exam_type = ?")
		args = append(args, filter.Modality)
	}
	if filter.Status != "" {
		conditions = append(conditions, "e.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Gender != "" {
		conditions = append(conditions, "p.gender = ?")
		args = append(args, filter.Gender)
	}
	if filter.From != nil {
		conditions = append(conditions, "e.exam_date >= ?")
		args = append(args, filter.From.Unix())
	}
	if filter.To != nil {
		conditions = append(conditions, "e.exam_date < ?")
		args = append(args, filter.To.Unix())
	}

	query := examWithPatientQuery
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY e.exam_date DESC, e.id DESC"

	rows, err := sq.Db.Query(query, args...)
	if err != nil {
		return exams, fmt.Errorf(`sq.Db.Query(query, args...). %w`, err)
	}
	defer rows.Close()

	for rows.Next() {
		exam, err := scanExamWithPatient(rows)
		if err != nil {
			return exams, fmt.Errorf(`scanExamWithPatient(rows) %w`, err)
		}
		exams = append(exams, exam)
	}

	return exams, rows.Err()
}

func (sq SqliteDB) UpdateExam(tx *sql.Tx, exam worklist.Exam) error {
	res, err := tx.Exec("UPDATE exams SET patient_id = ?, exam_type = ?, exam_date = ?, status = ?, comments = ? WHERE id = ?",
		exam.PatientId, exam.ExamType, exam.ExamDate.Unix(), string(exam.Status), exam.Comments, exam.ExamId,
	)
	if err != nil {
		return fmt.Errorf(`tx.Exec("UPDATE exams SET patient_id = ?, ). %w`, err)
	}
	return expectRow(res)
}

// DeleteExam also removes the exam's blob.
func (sq SqliteDB) DeleteExam(tx *sql.Tx, id int64) error {
	_, err := tx.Exec("DELETE FROM exam_blobs WHERE exam_id = ?", id)
	if err != nil {
		return fmt.Errorf(`tx.Exec("DELETE FROM exam_blobs WHERE exam_id = ?"). %w`, err)
	}

	res, err := tx.Exec("DELETE FROM exams WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf(`tx.Exec("DELETE FROM exams WHERE id = ?"). %w`, err)
	}
	return expectRow(res)
}

func (sq SqliteDB) ReplaceExamBlob(tx *sql.Tx, blob worklist.ExamBlob) error {
	_, err := tx.Exec("DELETE FROM exam_blobs WHERE exam_id = ?", blob.ExamId)
	if err != nil {
		return fmt.Errorf(`tx.Exec("DELETE FROM exam_blobs WHERE exam_id = ?"). %w`, err)
	}

	_, err = tx.Exec("INSERT INTO exam_blobs (exam_id, blob, size, digest, created_at) values (?, ?, ?, ?, ?)",
		blob.ExamId, blob.Data, blob.Size, blob.Digest.String(), blob.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf(`tx.Exec("INSERT INTO exam_blobs (exam_id, ). %w`, err)
	}

	return nil
}

func (sq SqliteDB) GetExamBlob(examId int64) (worklist.ExamBlob, error) {
	blob := worklist.ExamBlob{ExamId: examId}
	var dgst string

	stmt, err := sq.Db.Prepare("SELECT blob, size, digest, created_at FROM exam_blobs WHERE exam_id = ?")
	if err != nil {
		return blob, fmt.Errorf("sq.Db.Prepare(). %w", err)
	}
	defer stmt.Close()

	err = stmt.QueryRow(examId).Scan(&blob.Data, &blob.Size, &dgst, &blob.CreatedAt)
	if err != nil {
		return blob, fmt.Errorf("stmt.QueryRow(examId).Scan %w", err)
	}

	blob.Digest = digest.Digest(dgst)
	return blob, nil
}

func (sq SqliteDB) GetExamBlobInfo(examId int64) (worklist.ExamBlob, error) {
	blob := worklist.ExamBlob{ExamId: examId}
	var dgst string

	err := sq.Db.QueryRow("SELECT size, digest, created_at FROM exam_blobs WHERE exam_id = ?", examId).
		Scan(&blob.Size, &dgst, &blob.CreatedAt)
	if err != nil {
		return blob, fmt.Errorf("sq.Db.QueryRow(examId).Scan %w", err)
	}

	blob.Digest = digest.Digest(dgst)
	return blob, nil
}

func (sq SqliteDB) DeleteExamBlob(tx *sql.Tx, examId int64) error {
	res, err := tx.Exec("DELETE FROM exam_blobs WHERE exam_id = ?", examId)
	if err != nil {
		return fmt.Errorf(`tx.Exec("DELETE FROM exam_blobs WHERE exam_id = ?"). %w`, err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("res.RowsAffected(). %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no row affected. %w", sql.ErrNoRows)
	}
	return nil
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func DatabaseSetup(ctx context.Context, databaseDir string, migrations embed.FS) (SqliteDB, error) {
	var sqlitedb SqliteDB

	db, err := sql.Open("sqlite3", databaseDir+"/"+DatabaseFile+"?_foreign_keys=on")
	if err != nil {
		return sqlitedb, fmt.Errorf(`sql.Open("sqlite3", databaseDir + "app.db"). %w`, err)
	}

	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return sqlitedb, fmt.Errorf(`goose.SetDialect("sqlite3"). %w`, err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		db.Close()
		return sqlitedb, fmt.Errorf(`goose.UpContext(ctx, db, "migrations"). %w`, err)
	}

	sqlitedb.Db = db

	return sqlitedb, nil
}
