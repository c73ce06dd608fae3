package metadata

import (
	"path/filepath"
	"strings"
)

type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// Record is one metadata/payload pair. Business fields are nil when the
// metadata document did not supply them.
type Record struct {
	OriginalFileName string

	DocumentID     *string
	DocumentNumber *string
	FileName       *string
	Mandant        *string
	DocumentType   *string
	Remark         *string
	Amount         *string
	Created        *string
	CustomerNumber *string
	CustomerName   *string
	VendorNumber   *string
	VendorName     *string
	DocumentDate   *string
	ProjectNumber  *string

	Status Status
	Err    error
}

func NewRecord(originalFileName string) *Record {
	return &Record{
		OriginalFileName: originalFileName,
		Status:           StatusFailed,
	}
}

func (r *Record) Extracted() bool {
	return r.Status == StatusSuccess
}

// PayloadName is the name of the binary sibling, empty when unknown. Names
// that would leave the source directory are treated as unknown.
func (r *Record) PayloadName() string {
	name := Value(r.FileName)
	if name == "." || name == ".." || name != filepath.Base(name) {
		return ""
	}
	return name
}

func (r *Record) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Value dereferences an optional field, absent fields read as "".
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Optional trims s and returns nil for blank input.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
