// Package series projects one numeric dimension out of a metric time series
// for charting.
package series

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/divyadrishti/internal/model"
)

// Field selects the series dimension to plot.
type Field string

const (
	FieldPresence Field = "presence_pct"
	FieldValence  Field = "valence"
	FieldHeat     Field = "heat"
	FieldMomentum Field = "momentum"
)

// Fields lists the selectable fields in tab order.
var Fields = []Field{FieldPresence, FieldValence, FieldHeat, FieldMomentum}

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown series field %q", s)
}

// Label returns the tab label of the field.
func (f Field) Label() string {
	switch f {
	case FieldPresence:
		return "Presence %"
	case FieldValence:
		return "Valence"
	case FieldHeat:
		return "Heat"
	case FieldMomentum:
		return "Momentum"
	}
	return string(f)
}

// Color returns the line color used when plotting the field.
func (f Field) Color() lipgloss.Color {
	switch f {
	case FieldValence:
		return lipgloss.Color("#22c55e")
	case FieldHeat:
		return lipgloss.Color("#ef4444")
	case FieldMomentum:
		return lipgloss.Color("#f59e0b")
	default:
		return lipgloss.Color("#6366f1")
	}
}

// Next returns the following field, wrapping around.
func (f Field) Next() Field {
	for i, g := range Fields {
		if g == f {
			return Fields[(i+1)%len(Fields)]
		}
	}
	return FieldPresence
}

// Sample is one projected point. Valid is false for a gap.
type Sample struct {
	TS    time.Time
	Value float64
	Valid bool
}

// Projection is the (ts, value) sequence for one field.
type Projection struct {
	Field   Field
	Samples []Sample
}

// Project selects f from every point. Points missing f become gaps; no point
// is dropped and order is preserved. An unknown field yields all gaps.
func Project(points []model.SeriesPoint, f Field) Projection {
	p := Projection{Field: f, Samples: make([]Sample, len(points))}
	for i, pt := range points {
		s := Sample{TS: pt.TS}
		if v := pick(pt, f); v != nil {
			s.Value = *v
			s.Valid = true
		}
		p.Samples[i] = s
	}
	return p
}

func pick(pt model.SeriesPoint, f Field) *float64 {
	switch f {
	case FieldPresence:
		return pt.PresencePct
	case FieldValence:
		return pt.Valence
	case FieldHeat:
		return pt.Heat
	case FieldMomentum:
		return pt.Momentum
	}
	return nil
}

// Empty reports the no-data state: the input series had no points.
func (p Projection) Empty() bool {
	return len(p.Samples) == 0
}

// Gaps returns the number of samples without a value.
func (p Projection) Gaps() int {
	n := 0
	for _, s := range p.Samples {
		if !s.Valid {
			n++
		}
	}
	return n
}

// Range returns the min and max over valid samples. ok is false when there
// are none.
func (p Projection) Range() (lo, hi float64, ok bool) {
	for _, s := range p.Samples {
		if !s.Valid {
			continue
		}
		if !ok {
			lo, hi, ok = s.Value, s.Value, true
			continue
		}
		lo = min(lo, s.Value)
		hi = max(hi, s.Value)
	}
	return lo, hi, ok
}

// Segments splits the projection into maximal runs of valid samples, so a
// chart can draw each run as its own line and leave gaps visible.
func (p Projection) Segments() [][]Sample {
	var segs [][]Sample
	var cur []Sample
	for _, s := range p.Samples {
		if !s.Valid {
			if len(cur) > 0 {
				segs = append(segs, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, s)
	}
	if len(cur) > 0 {
		segs = append(segs, cur)
	}
	return segs
}
