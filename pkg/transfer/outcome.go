package transfer

import (
	"net/http"
	"strconv"

	"github.com/ValerySidorin/ferry/pkg/metadata"
)

const (
	StatusFileNotFound = "File Not Found"
	StatusError        = "Error"
)

// Outcome is the final result of sending one record to the archive. Code is
// the HTTP status of the response the outcome came from, zero when no response
// decided it.
type Outcome struct {
	Record *metadata.Record
	Code   int
	Status string
	Text   string
	Chunks int
}

func (o Outcome) OK() bool {
	return o.Code == http.StatusOK
}

func newResponseOutcome(rec *metadata.Record, code int, text string) Outcome {
	return Outcome{
		Record: rec,
		Code:   code,
		Status: strconv.Itoa(code),
		Text:   text,
	}
}

func newSentinelOutcome(rec *metadata.Record, status, text string) Outcome {
	return Outcome{
		Record: rec,
		Status: status,
		Text:   text,
	}
}

// ErrorOutcome reports a record that never reached the archive.
func ErrorOutcome(rec *metadata.Record, text string) Outcome {
	return newSentinelOutcome(rec, StatusError, text)
}
