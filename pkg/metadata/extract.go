package metadata

import (
	"bytes"
	"context"
	"encoding/xml"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/net/html/charset"
)

const (
	// Only incoming invoices carry vendor data, and only in their invoice case.
	incomingInvoiceType = "Eingangsrechnung"
	incomingInvoiceCase = "EingangsRechnungImpl"
)

type Config struct {
	Workers    int            `yaml:"workers"`
	Partitions PartitionTable `yaml:"partitions"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.IntVar(&c.Workers, flagPrefix+"workers", 0, "Maximum metadata files parsed concurrently. 0 parses every file at once.")
	c.Partitions.RegisterFlags(flagPrefix, f)
}

type document struct {
	XMLName   xml.Name  `xml:"Dokument"`
	ID        string    `xml:"DokumentID"`
	Number    string    `xml:"Belegnummer"`
	FileName  string    `xml:"Filename"`
	Partition string    `xml:"Erfassungspartition_dbid"`
	Type      string    `xml:"Dokumenttyp"`
	Remark    string    `xml:"Bemerkung"`
	Net       string    `xml:"Netto"`
	Created   string    `xml:"Created"`
	Cases     []rawCase `xml:"Vorgang"`
}

// rawCase defers decoding so a broken case section can be skipped on its own.
type rawCase struct {
	Inner string `xml:",innerxml"`
}

type caseSection struct {
	Type    string   `xml:"Vorgangstyp"`
	Date    string   `xml:"Belegdatum"`
	Project string   `xml:"Projektnummer"`
	Partner *partner `xml:"Geschaeftspartner"`
}

type partner struct {
	CustomerNumber string `xml:"Kundennummer"`
	VendorNumber   string `xml:"Lieferantennummer"`
	Name           string `xml:"Name"`
}

type Extractor struct {
	cfg Config
	log log.Logger
}

func NewExtractor(cfg Config, logger log.Logger) *Extractor {
	return &Extractor{
		cfg: cfg,
		log: log.With(logger, "component", "extractor"),
	}
}

// ExtractAll parses every file of dir concurrently. The result holds one record
// per file at the file's index.
func (e *Extractor) ExtractAll(ctx context.Context, dir string, files []string) []*Record {
	res := make([]*Record, len(files))

	p := pool.New()
	if e.cfg.Workers > 0 {
		p = p.WithMaxGoroutines(e.cfg.Workers)
	}

	for i, file := range files {
		i, file := i, file
		p.Go(func() {
			if err := ctx.Err(); err != nil {
				rec := NewRecord(file)
				rec.Err = err
				res[i] = rec
				return
			}
			res[i] = e.Extract(filepath.Join(dir, file))
		})
	}
	p.Wait()

	return res
}

// Extract reads one metadata document. A document that cannot be parsed yields
// a failed record, never an error.
func (e *Extractor) Extract(path string) *Record {
	rec := NewRecord(filepath.Base(path))
	logger := log.With(e.log, "file", rec.OriginalFileName)

	_ = level.Debug(logger).Log("msg", "reading metadata file")

	raw, err := os.ReadFile(path)
	if err != nil {
		rec.Err = errors.Wrap(err, "read metadata")
		_ = level.Error(logger).Log("msg", "metadata extraction failed", "err", rec.Err)
		return rec
	}

	if err := e.parse(raw, rec, logger); err != nil {
		rec.Err = err
		_ = level.Error(logger).Log("msg", "metadata extraction failed", "err", err)
		return rec
	}

	rec.Status = StatusSuccess
	_ = level.Debug(logger).Log(
		"msg", "metadata extracted",
		"payload", rec.PayloadName(),
		"mandant", Value(rec.Mandant),
		"type", Value(rec.DocumentType),
		"number", Value(rec.DocumentNumber),
		"date", Value(rec.DocumentDate),
		"customer", Value(rec.CustomerNumber),
		"vendor", Value(rec.VendorNumber),
		"project", Value(rec.ProjectNumber),
	)
	_ = level.Info(logger).Log("msg", "reading through metadata file completed")

	return rec
}

func (e *Extractor) parse(raw []byte, rec *Record, logger log.Logger) error {
	doc := document{}
	if err := unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, "parse metadata document")
	}

	rec.DocumentID = Optional(doc.ID)
	rec.DocumentNumber = Optional(doc.Number)
	rec.FileName = Optional(doc.FileName)
	rec.Mandant = Optional(e.cfg.Partitions.Lookup(strings.TrimSpace(doc.Partition)))
	rec.DocumentType = Optional(doc.Type)
	rec.Remark = Optional(doc.Remark)
	rec.Amount = Optional(doc.Net)
	rec.Created = Optional(doc.Created)

	var invoice *caseSection
	for i, raw := range doc.Cases {
		c, err := decodeCase(raw)
		if err != nil {
			_ = level.Warn(logger).Log("msg", "skipping malformed case section", "index", i, "err", err)
			continue
		}

		e.applyCase(rec, c, logger)

		if Value(rec.DocumentType) == incomingInvoiceType && c.Type == incomingInvoiceCase {
			invoice = c
		}
	}

	if invoice != nil {
		e.applyInvoiceCase(rec, invoice, logger)
	}

	return nil
}

func decodeCase(raw rawCase) (*caseSection, error) {
	c := caseSection{}
	if err := unmarshal([]byte("<Vorgang>"+raw.Inner+"</Vorgang>"), &c); err != nil {
		return nil, errors.Wrap(err, "decode case section")
	}
	return &c, nil
}

// unmarshal honours the encoding declared in the XML prolog, ERP exports are
// often ISO-8859-1 or windows-1252.
func unmarshal(data []byte, v interface{}) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}

// applyCase keeps the last non-empty value of each field across sections.
func (e *Extractor) applyCase(rec *Record, c *caseSection, logger log.Logger) {
	if c.Partner != nil {
		number := Optional(c.Partner.CustomerNumber)
		if number == nil {
			number = Optional(c.Partner.VendorNumber)
		}
		overwrite(&rec.CustomerNumber, number)
		overwrite(&rec.CustomerName, Optional(c.Partner.Name))
	}

	overwrite(&rec.DocumentDate, e.normalizeDate(c.Date, logger))
	overwrite(&rec.ProjectNumber, Optional(c.Project))
}

// applyInvoiceCase lets the incoming invoice section win over the generic scan.
func (e *Extractor) applyInvoiceCase(rec *Record, c *caseSection, logger log.Logger) {
	if c.Partner != nil {
		overwrite(&rec.VendorNumber, Optional(c.Partner.VendorNumber))
		overwrite(&rec.VendorName, Optional(c.Partner.Name))
	}

	overwrite(&rec.DocumentDate, e.normalizeDate(c.Date, logger))
	rec.ProjectNumber = Optional(c.Project)
}

func (e *Extractor) normalizeDate(s string, logger log.Logger) *string {
	if Optional(s) == nil {
		return nil
	}

	d, ok := NormalizeDate(s)
	if !ok {
		_ = level.Warn(logger).Log("msg", "unparsable document date treated as absent", "value", s)
		return nil
	}
	return &d
}

func overwrite(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}
