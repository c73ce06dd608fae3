package message

import (
	"net/http"
	"testing"

	"github.com/ValerySidorin/ferry/pkg/metadata"
	"github.com/ValerySidorin/ferry/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromOutcome(t *testing.T) {
	rec := metadata.NewRecord("Rechnung_2024_01.xml")
	rec.Status = metadata.StatusSuccess

	msg := FromOutcome("4f1c", transfer.Outcome{Record: rec, Code: http.StatusOK, Status: "200"})
	assert.Equal(t, "4f1c_200_Rechnung_2024_01.xml", msg.String())
	assert.True(t, msg.OK())

	parsed, err := NewMessage(msg.String())
	require.NoError(t, err)
	assert.Equal(t, msg, parsed)

	rec.Status = metadata.StatusFailed
	msg = FromOutcome("4f1c", transfer.Outcome{Record: rec, Code: http.StatusOK, Status: "200"})
	assert.Equal(t, transfer.StatusError, msg.Status)
	assert.False(t, msg.OK())
}

func TestNewMessageRejectsMalformedInput(t *testing.T) {
	for _, raw := range []string{"", "run", "run_200", "_200_a.xml", "run__a.xml", "run_200_"} {
		_, err := NewMessage(raw)
		assert.Error(t, err, raw)
	}
}
