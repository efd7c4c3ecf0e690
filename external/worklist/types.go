package worklist

import (
	"time"

	"github.com/opencontainers/go-digest"
)

type Status string

const (
	Scheduled Status = "Scheduled"
	Arrived   Status = "Arrived"
	Cancelled Status = "Cancelled"
	Completed Status = "Completed"
)

var Statuses = []Status{Scheduled, Arrived, Cancelled, Completed}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Patient struct {
	PatientId int64     `json:"patientId"`
	Name      string    `json:"patientName"`
	Birthdate time.Time `json:"birthdate"`
	Gender    string    `json:"gender"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdDate"`
}

type Exam struct {
	ExamId    int64     `json:"examId"`
	PatientId int64     `json:"patientId"`
	ExamType  string    `json:"examType"`
	ExamDate  time.Time `json:"examDate"`
	Status    Status    `json:"status"`
	Comments  string    `json:"comments"`
	CreatedAt time.Time `json:"createdDate"`
}

// ExamWithPatient is the worklist row: an exam flattened with its patient.
// On create IsNewPatient asks for the patient fields to be inserted too.
type ExamWithPatient struct {
	ExamId    int64     `json:"examId"`
	PatientId int64     `json:"patientId"`
	ExamType  string    `json:"examType"`
	ExamDate  time.Time `json:"examDate"`
	Status    Status    `json:"status"`
	Comments  string    `json:"comments"`

	IsNewPatient bool       `json:"isNewPatient,omitempty"`
	PatientName  string     `json:"patientName"`
	Birthdate    *time.Time `json:"birthdate,omitempty"`
	Gender       string     `json:"gender"`
	Email        string     `json:"email"`

	HasImages bool `json:"hasImages"`
}

func (e ExamWithPatient) Exam() Exam {
	return Exam{
		ExamId:    e.ExamId,
		PatientId: e.PatientId,
		ExamType:  e.ExamType,
		ExamDate:  e.ExamDate,
		Status:    e.Status,
		Comments:  e.Comments,
	}
}

func (e ExamWithPatient) Patient() Patient {
	p := Patient{
		PatientId: e.PatientId,
		Name:      e.PatientName,
		Gender:    e.Gender,
		Email:     e.Email,
	}
	if e.Birthdate != nil {
		p.Birthdate = *e.Birthdate
	}
	return p
}

// ExamFilter narrows the worklist. Zero values do not filter.
type ExamFilter struct {
	PatientId   int64
	PatientName string
	Modality    string
	Status      Status
	Gender      string
	From        *time.Time
	To          *time.Time
}

// ExamBlob is the packed DICOM blob stored for an exam. Data is left empty
// when only the descriptor was loaded.
type ExamBlob struct {
	ExamId    int64
	Data      []byte
	Size      uint64
	Digest    digest.Digest
	CreatedAt uint64 `db:"created_at"`
}

type BlobDescriptor struct {
	ExamId   int64  `json:"examId"`
	Url      string `json:"url"`
	Digest   string `json:"digest"`
	Size     uint64 `json:"size"`
	Uploaded uint64 `json:"uploaded"`
}

type StackImage struct {
	Position   int     `json:"position"`
	ImageId    string  `json:"imageId"`
	SortKey    float64 `json:"sortKey"`
	KeySource  string  `json:"keySource"`
	ByteLength int     `json:"byteLength"`
	BlobIndex  int     `json:"blobIndex"`
}

// StackResponse lists the images of an exam in display order.
type StackResponse struct {
	ExamId   int64        `json:"examId"`
	Digest   string       `json:"digest"`
	ImageIds []string     `json:"imageIds"`
	Images   []StackImage `json:"images"`
}

type NotifMessage struct {
	Message string `json:"message"`
}
