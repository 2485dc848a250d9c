// Package export writes the health log as a shareable report, the copy a
// user keeps before resetting storage.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/santelocale/healthlog/internal/health"
)

// DateLayout is the French day-first timestamp used in reports.
const DateLayout = "02/01/2006 15:04"

// Format selects the report encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Report is one export of the log.
type Report struct {
	UserName    string
	Unit        string
	GeneratedAt time.Time
	Location    *time.Location
	Logs        []health.Measurement
}

// Row is a rendered measurement.
type Row struct {
	Date   string `json:"date"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	Unit   string `json:"unit,omitempty"`
	Note   string `json:"note,omitempty"`
	Status string `json:"status,omitempty"`
}

type document struct {
	Patient     string `json:"patient"`
	GeneratedAt string `json:"generated_at"`
	Unit        string `json:"unit"`
	Entries     []Row  `json:"entries"`
}

// Write encodes r to w in format f.
func Write(w io.Writer, f Format, r Report) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// Rows renders every measurement of r in log order.
func (r Report) Rows() ([]Row, error) {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	unit := r.Unit
	if unit == "" {
		unit = health.UnitMgDL
	}

	rows := make([]Row, 0, len(r.Logs))
	for _, m := range r.Logs {
		row := Row{Date: m.Time().In(loc).Format(DateLayout)}
		switch m.Kind {
		case health.KindGlucose:
			status, err := health.GlucoseStatusFor(m, unit)
			if err != nil {
				return nil, err
			}
			row.Type = "Glycémie"
			row.Value = m.Display()
			row.Unit = unit
			row.Note = m.Annotation
			row.Status = string(status)
		case health.KindActivity:
			row.Type = "Activité"
			row.Value = strconv.Itoa(int(m.Value))
			row.Unit = "min"
			row.Note = m.Annotation
		default:
			return nil, fmt.Errorf("export: %w: %q", health.ErrUnknownKind, m.Kind)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes a semicolon-separated table. The comma is the decimal
// separator in the values.
func WriteCSV(w io.Writer, r Report) error {
	rows, err := r.Rows()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write([]string{"date", "type", "valeur", "unite", "note", "statut"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.Date, row.Type, row.Value, row.Unit, row.Note, row.Status}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes an indented JSON document.
func WriteJSON(w io.Writer, r Report) error {
	rows, err := r.Rows()
	if err != nil {
		return err
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	patient := r.UserName
	if patient == "" {
		patient = "Non spécifié"
	}
	unit := r.Unit
	if unit == "" {
		unit = health.UnitMgDL
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(document{
		Patient:     patient,
		GeneratedAt: r.GeneratedAt.In(loc).Format(DateLayout),
		Unit:        unit,
		Entries:     rows,
	})
}
