package transfer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ValerySidorin/ferry/pkg/indexing"
	"github.com/ValerySidorin/ferry/pkg/metadata"
	"github.com/ValerySidorin/ferry/pkg/session"
	util_http "github.com/ValerySidorin/ferry/pkg/util/http"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	documentsPath = "/docuware/platform/FileCabinets/cab/Documents"
)

type chunkRequest struct {
	path    string
	body    []byte
	headers http.Header
}

// fakeArchive answers chunk POSTs with respond and records every request.
type fakeArchive struct {
	*httptest.Server

	mtx      sync.Mutex
	chunks   []chunkRequest
	puts     []chunkRequest
	respond  func(i int, r *http.Request) (int, string)
	indexing func(w http.ResponseWriter)
}

func newFakeArchive(t *testing.T, respond func(i int, r *http.Request) (int, string)) *fakeArchive {
	return newFakeArchiveWithIndexing(t, respond, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"Field":[]}`)
	})
}

func newFakeArchiveWithIndexing(t *testing.T, respond func(i int, r *http.Request) (int, string), indexing func(w http.ResponseWriter)) *fakeArchive {
	a := &fakeArchive{
		respond:  respond,
		indexing: indexing,
	}

	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req := chunkRequest{path: r.URL.Path, body: body, headers: r.Header.Clone()}

		a.mtx.Lock()
		if r.Method == http.MethodPut {
			a.puts = append(a.puts, req)
			a.mtx.Unlock()
			a.indexing(w)
			return
		}
		a.chunks = append(a.chunks, req)
		i := len(a.chunks) - 1
		a.mtx.Unlock()

		code, text := a.respond(i, r)
		w.WriteHeader(code)
		_, _ = io.WriteString(w, text)
	}))
	t.Cleanup(a.Close)

	return a
}

func (a *fakeArchive) requests() ([]chunkRequest, []chunkRequest) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.chunks, a.puts
}

type fakeRefresher struct {
	mtx   sync.Mutex
	calls int
	cred  session.Credential
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, _ session.Credential) (session.Credential, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.calls++
	return f.cred, f.err
}

// chunksThenComplete continues for the first n-1 chunks and completes with id.
func chunksThenComplete(n, id int) func(i int, r *http.Request) (int, string) {
	return func(i int, r *http.Request) (int, string) {
		if i < n-1 {
			return http.StatusOK, continueBody(documentsPath + "/chunks/" + strconv.Itoa(i+1))
		}
		return http.StatusOK, completedBody(id)
	}
}

func newTestEngine(t *testing.T, baseURL string, chunkSize int, refresher Refresher) *Engine {
	t.Helper()

	client, err := util_http.NewClient(util_http.ClientConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)

	e, err := New(Config{BaseURL: baseURL, FileCabinetID: "cab", ChunkSize: chunkSize}, client, refresher, nil, log.NewNopLogger())
	require.NoError(t, err)
	return e
}

func newPayload(t *testing.T, name, content string) (*metadata.Record, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rec := metadata.NewRecord("doc.xml")
	rec.FileName = metadata.Optional(name)
	rec.Created = metadata.Optional("2024-03-15T10:11:12+01:00")
	rec.ProjectNumber = metadata.Optional("3100")
	rec.Status = metadata.StatusSuccess
	return rec, path
}

var initialCred = session.Credential{AccessToken: "initial", ExpiresAt: time.Now().Add(time.Hour)}

func TestTransferStreamsChunksAndIndexes(t *testing.T) {
	archive := newFakeArchive(t, chunksThenComplete(3, 4711))
	e := newTestEngine(t, archive.URL, 4, &fakeRefresher{})

	rec, path := newPayload(t, "my doc ü.pdf", "0123456789")
	o := e.Transfer(context.Background(), rec, path, initialCred)

	assert.True(t, o.OK())
	assert.Equal(t, "200", o.Status)
	assert.Equal(t, `{"Field":[]}`, o.Text)
	assert.Equal(t, 3, o.Chunks)
	assert.Same(t, rec, o.Record)

	chunks, puts := archive.requests()
	require.Len(t, chunks, 3)
	require.Len(t, puts, 1)

	assert.Equal(t, documentsPath, chunks[0].path)
	assert.Equal(t, documentsPath+"/chunks/1", chunks[1].path)
	assert.Equal(t, documentsPath+"/chunks/2", chunks[2].path)

	received := []byte{}
	for i, c := range chunks {
		received = append(received, c.body...)

		assert.Equal(t, "Bearer initial", c.headers.Get("Authorization"), i)
		assert.Equal(t, "application/octet-stream", c.headers.Get("Content-Type"), i)
		assert.Equal(t, strconv.Itoa(len(c.body)), c.headers.Get("Content-Length"), i)
		assert.Equal(t, "10", c.headers.Get("X-File-Size"), i)
		assert.Equal(t, "my%20doc%20%C3%BC.pdf", c.headers.Get("X-File-Name"), i)
		assert.Equal(t, "2024-03-15T10:11:12+01:00", c.headers.Get("X-File-ModifiedDate"), i)
		assert.Equal(t, `inline; filename="my%20doc%20%C3%BC.pdf"; modificationdate="2024-03-15T10:11:12+01:00"`, c.headers.Get("Content-Disposition"), i)
	}
	assert.Equal(t, "0123456789", string(received))
	assert.Equal(t, []int{4, 4, 2}, []int{len(chunks[0].body), len(chunks[1].body), len(chunks[2].body)})

	assert.Equal(t, documentsPath+"/4711/Fields", puts[0].path)
	assert.Equal(t, "application/json", puts[0].headers.Get("Content-Type"))
	assert.Equal(t, "application/json", puts[0].headers.Get("Accept"))
	assert.Equal(t, "Bearer initial", puts[0].headers.Get("Authorization"))

	p := indexing.Payload{}
	require.NoError(t, json.Unmarshal(puts[0].body, &p))
	f, ok := p.Lookup("DATEINAME")
	require.True(t, ok)
	assert.Equal(t, "my doc ü.pdf", f.Item)
}

func TestTransferReportsIndexingStatus(t *testing.T) {
	archive := newFakeArchiveWithIndexing(t, chunksThenComplete(1, 1), func(w http.ResponseWriter) {
		http.Error(w, "field KST is read only", http.StatusBadRequest)
	})
	e := newTestEngine(t, archive.URL, 1024, &fakeRefresher{})

	rec, path := newPayload(t, "a.pdf", "abc")
	o := e.Transfer(context.Background(), rec, path, initialCred)

	assert.False(t, o.OK())
	assert.Equal(t, http.StatusBadRequest, o.Code)
	assert.Contains(t, o.Text, "field KST is read only")
}

func TestTransferRefreshesOnceOnUnauthorized(t *testing.T) {
	archive := newFakeArchive(t, func(i int, r *http.Request) (int, string) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			return http.StatusUnauthorized, "expired"
		}
		return http.StatusOK, completedBody(9)
	})
	refresher := &fakeRefresher{cred: session.Credential{AccessToken: "fresh"}}
	e := newTestEngine(t, archive.URL, 1024, refresher)

	rec, path := newPayload(t, "a.pdf", "abc")
	o := e.Transfer(context.Background(), rec, path, initialCred)

	assert.True(t, o.OK())
	assert.Equal(t, 1, refresher.calls)

	chunks, puts := archive.requests()
	require.Len(t, chunks, 2)
	assert.Equal(t, chunks[0].body, chunks[1].body)
	require.Len(t, puts, 1)
	assert.Equal(t, "Bearer fresh", puts[0].headers.Get("Authorization"))
}

func TestTransferSecondUnauthorizedIsTerminal(t *testing.T) {
	archive := newFakeArchive(t, func(i int, r *http.Request) (int, string) {
		return http.StatusUnauthorized, "denied"
	})
	refresher := &fakeRefresher{cred: session.Credential{AccessToken: "fresh"}}
	e := newTestEngine(t, archive.URL, 2, refresher)

	rec, path := newPayload(t, "a.pdf", "abcdef")
	o := e.Transfer(context.Background(), rec, path, initialCred)

	assert.Equal(t, http.StatusUnauthorized, o.Code)
	assert.Equal(t, "401", o.Status)
	assert.Equal(t, "denied", o.Text)
	assert.Equal(t, 1, refresher.calls)

	chunks, puts := archive.requests()
	assert.Len(t, chunks, 2)
	assert.Empty(t, puts)
}

func TestTransferRefreshFailure(t *testing.T) {
	archive := newFakeArchive(t, func(i int, r *http.Request) (int, string) {
		return http.StatusUnauthorized, "denied"
	})
	e := newTestEngine(t, archive.URL, 2, &fakeRefresher{err: errors.New("token endpoint down")})

	rec, path := newPayload(t, "a.pdf", "abcdef")
	o := e.Transfer(context.Background(), rec, path, initialCred)

	assert.Equal(t, http.StatusUnauthorized, o.Code)
	assert.Equal(t, "Unauthorized and token refresh failed", o.Text)

	chunks, _ := archive.requests()
	assert.Len(t, chunks, 1)
}

func TestTransferMissingPayloadMakesNoRequest(t *testing.T) {
	archive := newFakeArchive(t, chunksThenComplete(1, 1))
	e := newTestEngine(t, archive.URL, 4, &fakeRefresher{})

	rec, path := newPayload(t, "a.pdf", "abc")
	missing := filepath.Join(filepath.Dir(path), "missing.pdf")

	o := e.Transfer(context.Background(), rec, missing, initialCred)
	assert.Equal(t, StatusFileNotFound, o.Status)
	assert.Equal(t, "File not found at path: "+missing, o.Text)
	assert.False(t, o.OK())

	// A record naming no payload points at the source directory itself.
	rec.FileName = nil
	o = e.Transfer(context.Background(), rec, filepath.Dir(path), initialCred)
	assert.Equal(t, StatusFileNotFound, o.Status)

	// Names escaping the source directory are never read.
	rec.FileName = metadata.Optional("../" + filepath.Base(path))
	o = e.Transfer(context.Background(), rec, path, initialCred)
	assert.Equal(t, StatusFileNotFound, o.Status)

	chunks, puts := archive.requests()
	assert.Empty(t, chunks)
	assert.Empty(t, puts)
}

func TestTransferAbortsOnServerError(t *testing.T) {
	archive := newFakeArchive(t, func(i int, r *http.Request) (int, string) {
		if i == 1 {
			return http.StatusInternalServerError, "disk full"
		}
		return http.StatusOK, continueBody(documentsPath + "/chunks/" + strconv.Itoa(i+1))
	})
	e := newTestEngine(t, archive.URL, 2, &fakeRefresher{})

	rec, path := newPayload(t, "a.pdf", "abcdefgh")
	o := e.Transfer(context.Background(), rec, path, initialCred)

	assert.Equal(t, http.StatusInternalServerError, o.Code)
	assert.Equal(t, "500", o.Status)
	assert.Equal(t, "disk full", o.Text)

	chunks, puts := archive.requests()
	assert.Len(t, chunks, 2)
	assert.Empty(t, puts)
}

func TestTransferFallsBackWithoutDocumentID(t *testing.T) {
	archive := newFakeArchive(t, func(i int, r *http.Request) (int, string) {
		return http.StatusOK, "<Document/>"
	})
	e := newTestEngine(t, archive.URL, 2, &fakeRefresher{})

	rec, path := newPayload(t, "a.pdf", "abcdef")
	o := e.Transfer(context.Background(), rec, path, initialCred)

	assert.True(t, o.OK())
	assert.Equal(t, "<Document/>", o.Text)

	chunks, puts := archive.requests()
	assert.Len(t, chunks, 1)
	assert.Empty(t, puts)
}

func TestTransferFallsBackWhenIndexingFails(t *testing.T) {
	archive := newFakeArchiveWithIndexing(t, chunksThenComplete(1, 5), func(w http.ResponseWriter) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	})
	e := newTestEngine(t, archive.URL, 1024, &fakeRefresher{})

	rec, path := newPayload(t, "a.pdf", "abc")
	o := e.Transfer(context.Background(), rec, path, initialCred)

	assert.True(t, o.OK())
	assert.Equal(t, completedBody(5), o.Text)
}

func TestTransferWithoutLastChunk(t *testing.T) {
	archive := newFakeArchive(t, func(i int, r *http.Request) (int, string) {
		return http.StatusOK, continueBody(documentsPath + "/chunks/" + strconv.Itoa(i+1))
	})
	e := newTestEngine(t, archive.URL, 4, &fakeRefresher{})

	rec, path := newPayload(t, "a.pdf", "0123456789")
	o := e.Transfer(context.Background(), rec, path, initialCred)

	assert.Equal(t, StatusError, o.Status)
	assert.Equal(t, 0, o.Code)
	assert.Equal(t, "Chunking completed without the last chunk", o.Text)
	assert.Equal(t, 3, o.Chunks)
}

func TestTransferMappingErrorMakesNoRequest(t *testing.T) {
	archive := newFakeArchive(t, chunksThenComplete(1, 1))
	e := newTestEngine(t, archive.URL, 4, &fakeRefresher{})

	rec, path := newPayload(t, "a.pdf", "abc")
	rec.ProjectNumber = metadata.Optional("P-31")

	o := e.Transfer(context.Background(), rec, path, initialCred)
	assert.Equal(t, StatusError, o.Status)

	chunks, _ := archive.requests()
	assert.Empty(t, chunks)
}

func TestTransferTransportError(t *testing.T) {
	archive := newFakeArchive(t, chunksThenComplete(1, 1))
	e := newTestEngine(t, archive.URL, 4, &fakeRefresher{})
	archive.Close()

	rec, path := newPayload(t, "a.pdf", "abc")
	o := e.Transfer(context.Background(), rec, path, initialCred)

	assert.Equal(t, StatusError, o.Status)
	assert.NotEmpty(t, o.Text)
	assert.False(t, o.OK())
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"plain.pdf":          "plain.pdf",
		"my doc.pdf":         "my%20doc.pdf",
		"Rechnung_ü&ä~1.pdf": "Rechnung_%C3%BC%26%C3%A4~1.pdf",
		"dir/a+b.pdf":        "dir/a%2Bb.pdf",
	}

	for in, want := range tests {
		assert.Equal(t, want, quote(in), in)
	}
}
