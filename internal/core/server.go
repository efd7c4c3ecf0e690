package core

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"radworklist/external/dicom"
	"radworklist/internal/database"
	"time"
)

var (
	ErrExamNotFound   = errors.New("exam not found")
	ErrBlobNotFound   = errors.New("DICOM study not found for this exam")
	ErrEmptyUpload    = errors.New("DICOM upload is required and cannot be empty")
	ErrInvalidExam    = errors.New("invalid exam")
	ErrInvalidFilter  = errors.New("invalid filter")
	ErrDigestMismatch = errors.New("stored blob does not match its digest")
	ErrImageNotFound  = errors.New("image not found in stack")
	ErrStaleStack     = errors.New("DICOM study changed since the stack was loaded")
)

type WorklistServer struct {
	DB     database.Database
	Reader dicom.HeaderReader
	// PublicURL prefixes the links handed to clients. Empty keeps them relative.
	PublicURL string
	// Now defaults to time.Now.
	Now func() time.Time

	stacks *stackCache
}

func NewWorklistServer(db database.Database, reader dicom.HeaderReader) *WorklistServer {
	return &WorklistServer{DB: db, Reader: reader, Now: time.Now, stacks: newStackCache()}
}

func (s *WorklistServer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// withTransaction commits when fn returns nil and rolls back otherwise.
func (s *WorklistServer) withTransaction(fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.DB.BeginTransaction()
	if err != nil {
		return fmt.Errorf("s.DB.BeginTransaction(). %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			log.Println("Rolling back transaction due to error. err: ", err)
			tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				err = fmt.Errorf("tx.Commit(). %w", err)
			}
		}
	}()

	return fn(tx)
}

func notFound(err error, target error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w. %w", target, err)
	}
	return err
}
