package core

import (
	"database/sql"
	"errors"
	"fmt"
	"radworklist/external/worklist"
	"strings"
	"time"
)

// Date presets accepted by ExamQuery.DateOption.
const (
	DateToday     = "today"
	DateYesterday = "yesterday"
	DateLastWeek  = "last_week"
	DateLastMonth = "last_month"
	DateCustom    = "custom"
)

type ExamQuery struct {
	PatientId   int64
	PatientName string
	Modality    string
	Status      string
	Gender      string
	DateOption  string
	From        *time.Time
	To          *time.Time
}

// Filter resolves the date preset relative to now.
func (q ExamQuery) Filter(now time.Time) (worklist.ExamFilter, error) {
	filter := worklist.ExamFilter{
		PatientId:   q.PatientId,
		PatientName: strings.TrimSpace(q.PatientName),
		Modality:    q.Modality,
		Status:      worklist.Status(q.Status),
		Gender:      q.Gender,
		From:        q.From,
		To:          q.To,
	}

	if filter.Status != "" && !filter.Status.Valid() {
		return filter, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, q.Status)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	span := func(fromDays, toDays int) {
		from := today.AddDate(0, 0, fromDays)
		to := today.AddDate(0, 0, toDays)
		filter.From, filter.To = &from, &to
	}

	switch q.DateOption {
	case "", DateCustom:
	case DateToday:
		span(0, 1)
	case DateYesterday:
		span(-1, 0)
	case DateLastWeek:
		span(-7, 1)
	case DateLastMonth:
		span(-30, 1)
	default:
		return filter, fmt.Errorf("%w: unknown date option %q", ErrInvalidFilter, q.DateOption)
	}

	return filter, nil
}

func validateExam(exam worklist.ExamWithPatient) error {
	switch {
	case strings.TrimSpace(exam.ExamType) == "":
		return fmt.Errorf("%w: ExamType is required", ErrInvalidExam)
	case exam.ExamDate.IsZero():
		return fmt.Errorf("%w: a valid ExamDate is required", ErrInvalidExam)
	case !exam.Status.Valid():
		return fmt.Errorf("%w: Status must be one of: Scheduled, Arrived, Cancelled, Completed", ErrInvalidExam)
	}
	return nil
}

func validatePatient(exam worklist.ExamWithPatient) error {
	switch {
	case strings.TrimSpace(exam.PatientName) == "":
		return fmt.Errorf("%w: PatientName is required", ErrInvalidExam)
	case exam.Birthdate == nil || exam.Birthdate.IsZero():
		return fmt.Errorf("%w: a valid Birthdate is required", ErrInvalidExam)
	case strings.TrimSpace(exam.Gender) == "":
		return fmt.Errorf("%w: Gender is required", ErrInvalidExam)
	case strings.TrimSpace(exam.Email) == "":
		return fmt.Errorf("%w: Email is required", ErrInvalidExam)
	}
	return nil
}

func (s *WorklistServer) CreateExam(req worklist.ExamWithPatient) (worklist.ExamWithPatient, error) {
	if err := validateExam(req); err != nil {
		return req, err
	}
	if req.IsNewPatient {
		if req.PatientId != 0 {
			return req, fmt.Errorf("%w: PatientId must be 0 for new patients", ErrInvalidExam)
		}
		if err := validatePatient(req); err != nil {
			return req, err
		}
	} else if req.PatientId <= 0 {
		return req, fmt.Errorf("%w: valid PatientId is required for existing patients", ErrInvalidExam)
	}

	var examId int64
	err := s.withTransaction(func(tx *sql.Tx) error {
		patientId := req.PatientId
		if req.IsNewPatient {
			id, err := s.DB.AddPatient(tx, req.Patient())
			if err != nil {
				return fmt.Errorf("s.DB.AddPatient(tx, patient). %w", err)
			}
			patientId = id
		} else {
			_, err := s.DB.GetPatient(tx, patientId)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: patient %d not found", ErrInvalidExam, patientId)
			}
			if err != nil {
				return fmt.Errorf("s.DB.GetPatient(tx, %d). %w", patientId, err)
			}
		}

		exam := req.Exam()
		exam.PatientId = patientId
		id, err := s.DB.AddExam(tx, exam)
		if err != nil {
			return fmt.Errorf("s.DB.AddExam(tx, exam). %w", err)
		}
		examId = id
		return nil
	})
	if err != nil {
		return req, err
	}

	return s.GetExam(examId)
}

func (s *WorklistServer) GetExam(examId int64) (worklist.ExamWithPatient, error) {
	exam, err := s.DB.GetExam(examId)
	if err != nil {
		return exam, notFound(fmt.Errorf("s.DB.GetExam(%d). %w", examId, err), ErrExamNotFound)
	}
	return exam, nil
}

func (s *WorklistServer) ListExams(query ExamQuery) ([]worklist.ExamWithPatient, error) {
	filter, err := query.Filter(s.now())
	if err != nil {
		return nil, err
	}

	exams, err := s.DB.GetExams(filter)
	if err != nil {
		return nil, fmt.Errorf("s.DB.GetExams(filter). %w", err)
	}
	return exams, nil
}

// UpdateExam rewrites the exam and its patient's details.
func (s *WorklistServer) UpdateExam(examId int64, req worklist.ExamWithPatient) (worklist.ExamWithPatient, error) {
	if err := validateExam(req); err != nil {
		return req, err
	}

	current, err := s.GetExam(examId)
	if err != nil {
		return req, err
	}

	req.ExamId = examId
	if req.PatientId <= 0 {
		req.PatientId = current.PatientId
	}
	if req.Birthdate == nil {
		req.Birthdate = current.Birthdate
	}
	if err := validatePatient(req); err != nil {
		return req, err
	}

	err = s.withTransaction(func(tx *sql.Tx) error {
		err := s.DB.UpdateExam(tx, req.Exam())
		if err != nil {
			return notFound(fmt.Errorf("s.DB.UpdateExam(tx, exam). %w", err), ErrExamNotFound)
		}
		err = s.DB.UpdatePatient(tx, req.Patient())
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: patient %d not found", ErrInvalidExam, req.PatientId)
		}
		if err != nil {
			return fmt.Errorf("s.DB.UpdatePatient(tx, patient). %w", err)
		}
		return nil
	})
	if err != nil {
		return req, err
	}

	return s.GetExam(examId)
}

func (s *WorklistServer) DeleteExam(examId int64) error {
	err := s.withTransaction(func(tx *sql.Tx) error {
		err := s.DB.DeleteExam(tx, examId)
		if err != nil {
			return notFound(fmt.Errorf("s.DB.DeleteExam(tx, %d). %w", examId, err), ErrExamNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.forgetStacks(examId)
	return nil
}

func (s *WorklistServer) ListPatients() ([]worklist.Patient, error) {
	patients, err := s.DB.GetPatients()
	if err != nil {
		return nil, fmt.Errorf("s.DB.GetPatients(). %w", err)
	}
	return patients, nil
}
