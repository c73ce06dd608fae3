package indexing

import (
	"strconv"
	"strings"

	"github.com/ValerySidorin/ferry/pkg/metadata"
	"github.com/pkg/errors"
)

// Item element names understood by the archive.
const (
	TypeString   = "String"
	TypeDate     = "Date"
	TypeDateTime = "DateTime"
	TypeDecimal  = "Decimal"
)

// Payload is the field list sent to <documents-url>/<id>/Fields.
type Payload struct {
	Fields []Field `json:"Field"`
}

type Field struct {
	Name        string      `json:"FieldName"`
	Item        interface{} `json:"Item"`
	ElementName string      `json:"ItemElementName"`
}

// Mapping turns an extracted record into the archive field list. A mapping
// error fails the transfer of that record before any request is sent.
type Mapping func(rec *metadata.Record) (Payload, error)

func (p *Payload) add(name string, item interface{}, elementName string) {
	p.Fields = append(p.Fields, Field{Name: name, Item: item, ElementName: elementName})
}

// Lookup returns the first field with the given name.
func (p Payload) Lookup(name string) (Field, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

const (
	shippingMethod = "AUSGANGSPOST-PDS"
	placeholder    = "."
)

var placeholderFields = []string{
	"KFM__STATUS1",
	"KFM__STATUS2",
	"KFM__STATUS3",
	"KFM__STATUS4",
	"KFM__STATUS5",
	"KFM__STATUS6",
	"KFM__STATUS7",
	"KFM__STATUS8",
	"VERSIONSSTATUS",
	"TECHN__STATUS",
}

// DefaultMapping is the field set of the outgoing mail cabinet. Absent record
// fields produce no field, except the constant shipping and status fields.
func DefaultMapping(rec *metadata.Record) (Payload, error) {
	p := Payload{Fields: make([]Field, 0, 24)}

	if v := metadata.Value(rec.DocumentType); v != "" {
		p.add("UNTERBELEGART", strings.ToUpper(v), TypeString)
	}
	if v := metadata.Value(rec.DocumentDate); v != "" {
		p.add("BELEGDATUM", v, TypeDate)
	}
	if v := metadata.Value(rec.ProjectNumber); v != "" {
		n, err := parseInt("project number", v)
		if err != nil {
			return Payload{}, err
		}
		p.add("KST_KTR_BEZEICHNUNG", v, TypeString)
		p.add("KST", n, TypeDecimal)
	}

	if v := firstNonEmpty(rec.VendorName, rec.CustomerName); v != "" {
		p.add("KU__LIEF_NAME", v, TypeString)
	}
	if v := firstNonEmpty(rec.VendorNumber, rec.CustomerNumber); v != "" {
		n, err := parseInt("partner number", v)
		if err != nil {
			return Payload{}, err
		}
		p.add("KU__LIEF_NR_", n, TypeDecimal)
	}

	if v := metadata.Value(rec.FileName); v != "" {
		p.add("DATEINAME", v, TypeString)
	}
	if v := metadata.Value(rec.Remark); v != "" {
		p.add("KOMMISION_KURZBESCHREIBUNG", v, TypeString)
	}
	if v := metadata.Value(rec.Mandant); v != "" {
		p.add("MANDANT", v, TypeString)
	}
	if v := metadata.Value(rec.DocumentNumber); v != "" {
		p.add("BELEGNUMMER", v, TypeString)
	}

	p.add("VERSANDART", shippingMethod, TypeString)
	for _, name := range placeholderFields {
		p.add(name, placeholder, TypeString)
	}

	if v := metadata.Value(rec.Created); v != "" {
		p.add("CREATED", v, TypeDateTime)
	}
	if v := metadata.Value(rec.Amount); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Payload{}, errors.Wrapf(err, "map amount %q", v)
		}
		p.add("BETRAG", n, TypeDecimal)
	}

	return p, nil
}

func firstNonEmpty(vals ...*string) string {
	for _, v := range vals {
		if s := metadata.Value(v); s != "" {
			return s
		}
	}
	return ""
}

func parseInt(what, v string) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "map %s %q", what, v)
	}
	return n, nil
}
