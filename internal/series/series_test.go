package series

import (
	"testing"
	"time"

	"github.com/abelbrown/divyadrishti/internal/model"
)

func f(v float64) *float64 { return &v }

func samplePoints() []model.SeriesPoint {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []model.SeriesPoint{
		{TS: base, PresencePct: f(1.5), Valence: f(10), Heat: f(40), Momentum: f(0)},
		{TS: base.Add(time.Hour), PresencePct: f(2.5), Heat: f(55), Momentum: f(3)},
		{TS: base.Add(2 * time.Hour), PresencePct: f(3.0), Valence: f(-20), Heat: f(81)},
	}
}

func TestProjectSelectsField(t *testing.T) {
	p := Project(samplePoints(), FieldHeat)
	if len(p.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(p.Samples))
	}
	want := []float64{40, 55, 81}
	for i, s := range p.Samples {
		if !s.Valid || s.Value != want[i] {
			t.Errorf("sample %d: got %+v, want %v", i, s, want[i])
		}
	}
}

func TestProjectKeepsGaps(t *testing.T) {
	pts := samplePoints()
	p := Project(pts, FieldValence)
	if len(p.Samples) != len(pts) {
		t.Fatalf("gaps must not drop points: got %d, want %d", len(p.Samples), len(pts))
	}
	if p.Samples[1].Valid {
		t.Error("missing valence should be a gap")
	}
	if !p.Samples[1].TS.Equal(pts[1].TS) {
		t.Error("gap should keep its timestamp")
	}
	if p.Gaps() != 1 {
		t.Errorf("expected 1 gap, got %d", p.Gaps())
	}
	segs := p.Segments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments around the gap, got %d", len(segs))
	}
}

func TestProjectEmpty(t *testing.T) {
	p := Project(nil, FieldPresence)
	if !p.Empty() {
		t.Error("nil input should project to empty")
	}
	if _, _, ok := p.Range(); ok {
		t.Error("empty projection should have no range")
	}
}

func TestReprojectWithoutRefetch(t *testing.T) {
	pts := samplePoints()
	a := Project(pts, FieldPresence)
	b := Project(pts, FieldPresence.Next())
	if b.Field != FieldValence {
		t.Fatalf("expected next field valence, got %s", b.Field)
	}
	if a.Samples[0].Value == b.Samples[0].Value {
		t.Error("switching field should change projected values")
	}
	lo, hi, ok := a.Range()
	if !ok || lo != 1.5 || hi != 3.0 {
		t.Errorf("unexpected range lo=%v hi=%v ok=%v", lo, hi, ok)
	}
}

func TestParseField(t *testing.T) {
	for _, fl := range Fields {
		got, err := ParseField(string(fl))
		if err != nil || got != fl {
			t.Errorf("ParseField(%q) = %q, %v", fl, got, err)
		}
	}
	if _, err := ParseField("score"); err == nil {
		t.Error("expected error for unknown field")
	}
	if FieldMomentum.Next() != FieldPresence {
		t.Error("Next should wrap around")
	}
}
