package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/ValerySidorin/ferry/pkg/indexing"
	"github.com/ValerySidorin/ferry/pkg/metadata"
	"github.com/ValerySidorin/ferry/pkg/session"
	util_http "github.com/ValerySidorin/ferry/pkg/util/http"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const (
	unauthorizedText = "Unauthorized and token refresh failed"
	incompleteText   = "Chunking completed without the last chunk"
)

// Refresher replaces a credential the archive answered 401 for.
type Refresher interface {
	Refresh(ctx context.Context, stale session.Credential) (session.Credential, error)
}

// Engine streams payloads to the archive chunk by chunk and indexes the
// created documents. It is safe for concurrent use.
type Engine struct {
	cfg       Config
	client    *retryablehttp.Client
	sessions  Refresher
	mapping   indexing.Mapping
	log       log.Logger
	base      *url.URL
	documents string
}

func New(cfg Config, client *retryablehttp.Client, sessions Refresher, mapping indexing.Mapping, logger log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "transfer config")
	}

	base, err := cfg.Base()
	if err != nil {
		return nil, err
	}
	documents, err := cfg.DocumentsURL()
	if err != nil {
		return nil, err
	}

	if mapping == nil {
		mapping = indexing.DefaultMapping
	}

	return &Engine{
		cfg:       cfg,
		client:    client,
		sessions:  sessions,
		mapping:   mapping,
		log:       log.With(logger, "component", "transfer"),
		base:      base,
		documents: documents,
	}, nil
}

type upload struct {
	rec     *metadata.Record
	token   session.Credential
	headers http.Header
	fields  []byte
	log     log.Logger
}

// Transfer sends the payload at payloadPath and indexes the new document with
// the fields mapped from rec. Every failure is reported in the outcome.
func (e *Engine) Transfer(ctx context.Context, rec *metadata.Record, payloadPath string, cred session.Credential) Outcome {
	logger := log.With(e.log, "file", rec.OriginalFileName)

	st, err := os.Stat(payloadPath)
	if rec.PayloadName() == "" || err != nil || !st.Mode().IsRegular() {
		return newSentinelOutcome(rec, StatusFileNotFound, "File not found at path: "+payloadPath)
	}

	payload, err := e.mapping(rec)
	if err != nil {
		_ = level.Error(logger).Log("msg", "failed to map index fields", "err", err)
		return ErrorOutcome(rec, err.Error())
	}

	fields, err := json.Marshal(payload)
	if err != nil {
		return ErrorOutcome(rec, errors.Wrap(err, "encode index fields").Error())
	}
	_ = level.Debug(logger).Log("msg", "index fields prepared", "fields", string(fields))

	f, err := os.Open(payloadPath)
	if err != nil {
		return newSentinelOutcome(rec, StatusFileNotFound, "File not found at path: "+payloadPath)
	}
	defer f.Close()

	u := &upload{
		rec:     rec,
		token:   cred,
		headers: chunkHeaders(rec, st.Size()),
		fields:  fields,
		log:     logger,
	}

	return e.stream(ctx, u, f)
}

func (e *Engine) stream(ctx context.Context, u *upload, r io.Reader) Outcome {
	buf := make([]byte, e.cfg.ChunkSize)
	target := e.documents
	chunks := 0

	for {
		n, err := io.ReadFull(r, buf)
		if n == 0 {
			if err != nil && err != io.EOF {
				return ErrorOutcome(u.rec, errors.Wrap(err, "read payload").Error())
			}
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return ErrorOutcome(u.rec, errors.Wrap(err, "read payload").Error())
		}
		chunk := buf[:n]

		code, body, err := e.postChunk(ctx, target, chunk, u)
		if err != nil {
			return e.transportFailure(u, chunks, err)
		}

		if code == http.StatusUnauthorized {
			_ = level.Warn(u.log).Log("msg", "archive rejected access token, refreshing", "chunk", chunks)

			fresh, err := e.sessions.Refresh(ctx, u.token)
			if err != nil {
				o := newResponseOutcome(u.rec, http.StatusUnauthorized, unauthorizedText)
				o.Chunks = chunks
				return o
			}
			u.token = fresh

			code, body, err = e.postChunk(ctx, target, chunk, u)
			if err != nil {
				return e.transportFailure(u, chunks, err)
			}
		}
		chunks++

		if code != http.StatusOK {
			o := newResponseOutcome(u.rec, code, string(body))
			o.Chunks = chunks
			return o
		}

		res := DecodeChunkResult(body)
		if res.Kind == Continue {
			next, err := e.resolve(res.Link)
			if err == nil {
				_ = level.Debug(u.log).Log("msg", "chunk accepted", "chunk", chunks, "next", next)
				target = next
				continue
			}
			_ = level.Warn(u.log).Log("msg", "unusable continuation link", "link", res.Link, "err", err)
		}

		o := e.complete(ctx, u, res, code, body)
		o.Chunks = chunks
		return o
	}

	o := newSentinelOutcome(u.rec, StatusError, incompleteText)
	o.Chunks = chunks
	return o
}

// complete indexes the created document. When that is not possible the
// response of the last chunk is reported instead.
func (e *Engine) complete(ctx context.Context, u *upload, res ChunkResult, code int, body []byte) Outcome {
	if res.Kind != Completed {
		_ = level.Warn(u.log).Log("msg", "last chunk response carries no document id")
		return newResponseOutcome(u.rec, code, string(body))
	}

	idxCode, idxBody, err := e.putFields(ctx, res.DocumentID, u)
	if err != nil {
		_ = level.Warn(u.log).Log("msg", "indexing request failed", "doc_id", res.DocumentID, "err", err)
		return newResponseOutcome(u.rec, code, string(body))
	}

	_ = level.Debug(u.log).Log("msg", "document indexed", "doc_id", res.DocumentID, "status", idxCode)
	return newResponseOutcome(u.rec, idxCode, string(idxBody))
}

func (e *Engine) transportFailure(u *upload, chunks int, err error) Outcome {
	_ = level.Error(u.log).Log("msg", "chunk request failed", "chunk", chunks, "err", err)
	o := ErrorOutcome(u.rec, err.Error())
	o.Chunks = chunks
	return o
}

func (e *Engine) resolve(link string) (string, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return "", errors.Wrap(err, "parse continuation link")
	}
	return e.base.ResolveReference(ref).String(), nil
}

func (e *Engine) postChunk(ctx context.Context, target string, chunk []byte, u *upload) (int, []byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, target, chunk)
	if err != nil {
		return 0, nil, errors.Wrap(err, "create chunk request")
	}
	for k, v := range u.headers {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Bearer "+u.token.AccessToken)
	req.ContentLength = int64(len(chunk))

	return e.do(req)
}

func (e *Engine) putFields(ctx context.Context, docID string, u *upload) (int, []byte, error) {
	target := e.documents + "/" + url.PathEscape(docID) + "/Fields"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, target, u.fields)
	if err != nil {
		return 0, nil, errors.Wrap(err, "create indexing request")
	}
	req.Header.Set("Authorization", "Bearer "+u.token.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	if err := util_http.EnsureSuccessStatusCode(resp); err != nil {
		_ = level.Warn(u.log).Log("msg", "archive rejected index fields", "doc_id", docID, "err", err)
	}

	return readResponse(resp)
}

func (e *Engine) do(req *retryablehttp.Request) (int, []byte, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, err
	}

	return readResponse(resp)
}

func readResponse(resp *http.Response) (int, []byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "read response body")
	}
	return resp.StatusCode, body, nil
}

func chunkHeaders(rec *metadata.Record, size int64) http.Header {
	name := quote(rec.PayloadName())
	created := metadata.Value(rec.Created)

	h := http.Header{}
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"; modificationdate="%s"`, name, created))
	h.Set("X-File-ModifiedDate", created)
	h.Set("X-File-Name", name)
	h.Set("X-File-Size", strconv.FormatInt(size, 10))
	return h
}

// quote percent-encodes everything but unreserved characters and '/'.
func quote(s string) string {
	const hex = "0123456789ABCDEF"

	b := bytes.Buffer{}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '~', '/':
		return true
	}
	return false
}
