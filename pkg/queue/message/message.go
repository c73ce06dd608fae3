package message

import (
	"fmt"
	"strings"

	"github.com/ValerySidorin/ferry/pkg/transfer"
	"github.com/pkg/errors"
)

// Message announces the outcome of one file of a run. Its wire form is
// <run id>_<status>_<file>.
type Message struct {
	RunID  string
	Status string
	File   string
}

func FromOutcome(runID string, o transfer.Outcome) *Message {
	status := o.Status
	if !o.Record.Extracted() {
		status = transfer.StatusError
	}

	return &Message{
		RunID:  runID,
		Status: status,
		File:   o.Record.OriginalFileName,
	}
}

func NewMessage(raw string) (*Message, error) {
	tokens := strings.SplitN(raw, "_", 3)
	if len(tokens) != 3 {
		return nil, errors.New("invalid message raw input (len)")
	}

	for i, name := range []string{"run id", "status", "file"} {
		if tokens[i] == "" {
			return nil, errors.Errorf("invalid message raw input (%s)", name)
		}
	}

	return &Message{
		RunID:  tokens[0],
		Status: tokens[1],
		File:   tokens[2],
	}, nil
}

func (m *Message) String() string {
	return fmt.Sprintf("%s_%s_%s", m.RunID, m.Status, m.File)
}

func (m *Message) OK() bool {
	return m.Status == "200"
}
