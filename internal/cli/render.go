package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/santelocale/healthlog/internal/export"
	"github.com/santelocale/healthlog/internal/health"
)

// measurementView is the JSON shape of a log entry.
type measurementView struct {
	health.Measurement
	Display string `json:"display"`
	Date    string `json:"date"`
	Status  string `json:"status,omitempty"`
}

func viewOf(m health.Measurement, unit string) measurementView {
	v := measurementView{
		Measurement: m,
		Display:     m.Display(),
		Date:        m.Time().Format(export.DateLayout),
	}
	if m.Kind == health.KindGlucose {
		if s, err := health.GlucoseStatusFor(m, unit); err == nil {
			v.Status = string(s)
		}
	}
	return v
}

func viewsOf(logs []health.Measurement, unit string) []measurementView {
	out := make([]measurementView, len(logs))
	for i, m := range logs {
		out[i] = viewOf(m, unit)
	}
	return out
}

func renderLogs(logs []health.Measurement, unit string) string {
	if len(logs) == 0 {
		return "Aucune entrée.\n"
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, m := range logs {
		fmt.Fprintln(tw, renderLogLine(m, unit))
	}
	tw.Flush()
	return b.String()
}

func renderLogLine(m health.Measurement, unit string) string {
	v := viewOf(m, unit)
	switch m.Kind {
	case health.KindGlucose:
		return fmt.Sprintf("#%d\t%s\tGlycémie\t%s %s\t%s\t%s", m.ID, v.Date, v.Display, unit, m.Annotation, v.Status)
	default:
		return fmt.Sprintf("#%d\t%s\tActivité\t%d min\t%s\t", m.ID, v.Date, int(m.Value), m.Annotation)
	}
}

func renderFoods(foods []health.FoodReference) string {
	if len(foods) == 0 {
		return "Guide alimentaire vide.\n"
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, f := range foods {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Category, f.Name, f.Tip)
	}
	tw.Flush()
	return b.String()
}
