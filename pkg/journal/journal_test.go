package journal

import (
	"context"
	"flag"
	"net/http"
	"testing"
	"time"

	"github.com/ValerySidorin/ferry/pkg/metadata"
	"github.com/ValerySidorin/ferry/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOutcomes() []transfer.Outcome {
	ok := metadata.NewRecord("ok.xml")
	ok.FileName = metadata.Optional("ok.pdf")
	ok.Status = metadata.StatusSuccess

	rejected := metadata.NewRecord("rejected.xml")
	rejected.FileName = metadata.Optional("rejected.pdf")
	rejected.Status = metadata.StatusSuccess

	broken := metadata.NewRecord("broken.xml")

	return []transfer.Outcome{
		{Record: ok, Code: http.StatusOK, Status: "200", Text: "{}", Chunks: 3},
		{Record: rejected, Code: http.StatusInternalServerError, Status: "500", Text: "disk full", Chunks: 1},
		transfer.ErrorOutcome(broken, "parse metadata document: EOF"),
	}
}

func TestEntries(t *testing.T) {
	now := time.Now()
	entries := Entries("run-1", testOutcomes(), now)

	require.Len(t, entries, 3)
	assert.Equal(t, "run-1", entries[0].RunID)
	assert.Equal(t, "ok.xml", entries[0].File)
	assert.Equal(t, "ok.pdf", entries[0].Payload)
	assert.Equal(t, "Success", entries[0].Extraction)
	assert.Equal(t, 200, entries[0].Code)
	assert.Equal(t, 3, entries[0].Chunks)

	assert.Equal(t, "", entries[2].Payload)
	assert.Equal(t, "Failed", entries[2].Extraction)
	assert.Equal(t, transfer.StatusError, entries[2].Status)
	assert.Equal(t, now, entries[2].RecordedAt)
}

func TestFinish(t *testing.T) {
	start := time.Now()
	run := NewRun("run-1", "20240315101112", start)
	Finish(run, testOutcomes(), start.Add(time.Minute))

	assert.Equal(t, 3, run.Files)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 2, run.Failed)
	assert.Equal(t, time.Minute, run.FinishedAt.Sub(run.StartedAt))
}

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.RegisterFlags("journal.", flag.NewFlagSet("test", flag.PanicOnError))
	assert.False(t, cfg.Enabled())

	_, err := New(context.Background(), Config{Store: "mysql"}, nil)
	assert.Error(t, err)
}
