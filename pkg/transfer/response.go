package transfer

import (
	"bytes"
	"encoding/xml"
	"strings"
)

const (
	platformNamespace = "http://dev.docuware.com/schema/public/services/platform"
	documentIDField   = "DWDOCID"
)

type ChunkKind int

const (
	// Unrecognized is a 200 response carrying neither a continuation link
	// nor a document id.
	Unrecognized ChunkKind = iota
	Continue
	Completed
)

func (k ChunkKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Completed:
		return "completed"
	}
	return "unrecognized"
}

// ChunkResult is what a successful chunk response tells the sender to do next.
type ChunkResult struct {
	Kind       ChunkKind
	Link       string
	DocumentID string
}

type chunkEnvelope struct {
	XMLName   xml.Name `xml:"Document"`
	FileChunk *struct {
		Links []struct {
			Href string `xml:"href,attr"`
		} `xml:"Links>Link"`
	} `xml:"FileChunk"`
}

// DecodeChunkResult reads a chunk response body. A single continuation link
// wins; a response without exactly one link is checked for the assigned
// document id.
func DecodeChunkResult(body []byte) ChunkResult {
	env := chunkEnvelope{}
	if err := xml.Unmarshal(body, &env); err == nil && env.FileChunk != nil && len(env.FileChunk.Links) == 1 {
		if href := strings.TrimSpace(env.FileChunk.Links[0].Href); href != "" {
			return ChunkResult{Kind: Continue, Link: href}
		}
	}

	if id, ok := findDocumentID(body); ok {
		return ChunkResult{Kind: Completed, DocumentID: id}
	}

	return ChunkResult{Kind: Unrecognized}
}

// findDocumentID returns the integer value of the DWDOCID field wherever it
// appears in the body.
func findDocumentID(body []byte) (string, bool) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	inField, inInt := false, false
	text := strings.Builder{}

	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case isPlatform(t.Name, "Field"):
				inField = attr(t, "FieldName") == documentIDField
			case inField && isPlatform(t.Name, "Int"):
				inInt = true
				text.Reset()
			}
		case xml.CharData:
			if inInt {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case inInt && isPlatform(t.Name, "Int"):
				if id := strings.TrimSpace(text.String()); id != "" {
					return id, true
				}
				inInt = false
			case isPlatform(t.Name, "Field"):
				inField = false
			}
		}
	}
}

func isPlatform(n xml.Name, local string) bool {
	return n.Space == platformNamespace && n.Local == local
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
