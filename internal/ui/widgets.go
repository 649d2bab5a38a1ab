package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/divyadrishti/internal/classify"
	"github.com/abelbrown/divyadrishti/internal/model"
	"github.com/abelbrown/divyadrishti/internal/sentiment"
	"github.com/abelbrown/divyadrishti/internal/series"
)

// sentimentBar renders positive, neutral and negative shares as one
// proportional bar followed by the integer percentages. A zero total renders
// an explicit no-data marker instead of an empty bar.
func sentimentBar(s model.Sentiment, width int) string {
	sh := sentiment.Normalize(s)
	if sh.NoData() {
		return Dim.Render("sentiment: no data")
	}
	width = max(width, 10)
	pos := int(math.Round(sh.Positive * float64(width) / 100))
	neg := int(math.Round(sh.Negative * float64(width) / 100))
	pos = min(pos, width)
	neg = min(neg, width-pos)
	neu := width - pos - neg

	bar := lipgloss.NewStyle().Foreground(classify.LabelColor(model.LabelPositive)).Render(strings.Repeat("█", pos)) +
		lipgloss.NewStyle().Foreground(classify.LabelColor(model.LabelNeutral)).Render(strings.Repeat("█", neu)) +
		lipgloss.NewStyle().Foreground(classify.LabelColor(model.LabelNegative)).Render(strings.Repeat("█", neg))
	legend := fmt.Sprintf(" +%s ~%s -%s",
		sentiment.Percent(sh.Positive), sentiment.Percent(sh.Neutral), sentiment.Percent(sh.Negative))
	return bar + Dim.Render(legend)
}

// valenceBar draws valence in [-1, 1] as a bar growing left or right from a
// center tick.
func valenceBar(v float64, width int) string {
	half := max(width/2, 2)
	v = max(-1, min(1, v))
	n := int(math.Round(math.Abs(v) * float64(half)))
	style := lipgloss.NewStyle().Foreground(classify.ClassifyValence(v).Color())
	left := strings.Repeat(" ", half)
	right := strings.Repeat(" ", half)
	if v < 0 {
		left = strings.Repeat(" ", half-n) + style.Render(strings.Repeat("▆", n))
	} else if v > 0 {
		right = style.Render(strings.Repeat("▆", n)) + strings.Repeat(" ", half-n)
	}
	return left + Dim.Render("│") + right
}

// metricBadges renders the heat, momentum and valence categories of a node.
func metricBadges(heat, momentum, valence float64) string {
	h := classify.ClassifyHeat(heat)
	d := classify.ClassifyMomentum(momentum)
	l := classify.ClassifyValence(valence)
	return Badge.Foreground(h.Color()).Render("heat "+h.String()) +
		Badge.Foreground(d.Color()).Render(classify.Momentum(momentum)) +
		Badge.Foreground(l.Color()).Render(l.String()+" "+classify.Signed(valence))
}

// metricCard renders one metric node as a two-line card.
func metricCard(m model.MetricNode, selected bool, width int) string {
	head := fmt.Sprintf("%s  %s", m.Label, Dim.Render(fmt.Sprintf("%.1f%% of discussion", m.PresencePct)))
	if m.ItemCount > 0 {
		head += Dim.Render(fmt.Sprintf(" · %s items", humanize.Comma(int64(m.ItemCount))))
	}
	body := metricBadges(m.Heat, m.Momentum, m.Valence) + " " + sentimentBar(m.Sentiment, 20)
	style := NormalItem
	if selected {
		style = SelectedItem
	}
	return style.Width(max(width, 20)).Render(head) + "\n  " + body
}

// storyLine renders one trending story row.
func storyLine(s model.Story, selected bool, width int, now time.Time) string {
	meta := fmt.Sprintf("%d pts · %s · %d comments", s.Score, s.By, s.Descendants)
	if s.Time > 0 {
		meta += " · " + humanize.RelTime(s.Posted(), now, "ago", "from now")
	}
	title := s.Title
	if title == "" {
		title = fmt.Sprintf("story %d", s.ID)
	}
	style := NormalItem
	if selected {
		style = SelectedItem
	}
	line := style.Render(truncateRunes(title, max(width-4, 10)))
	return line + "\n  " + Dim.Render(meta)
}

// noData renders the explicit empty state.
func noData(what string) string {
	return Panel.Render("No " + what + " yet.")
}

// errorPanel renders a failed fetch; not-found gets its own wording.
func errorPanel(what string, err error, notFound bool) string {
	if notFound {
		return Panel.Render(what + " not found.")
	}
	return Panel.BorderForeground(colorDanger).Render(ErrorStyle.Render("Could not load "+what) + "\n" + err.Error() + "\n\n" + Dim.Render("press r to retry"))
}

// chartValues carries the last valid value across gaps so the line stays
// drawable; leading gaps take the first valid value. ok is false when the
// projection has no valid sample.
func chartValues(p series.Projection) (values []float64, ok bool) {
	first := -1
	for i, s := range p.Samples {
		if s.Valid {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, false
	}
	values = make([]float64, len(p.Samples))
	last := p.Samples[first].Value
	for i, s := range p.Samples {
		if s.Valid {
			last = s.Value
		}
		values[i] = last
	}
	return values, true
}

// gapStrip marks, under the chart, which columns are backed by real samples
// (─) and which are gaps (·).
func gapStrip(p series.Projection, width int) string {
	n := len(p.Samples)
	if n == 0 || width <= 0 {
		return ""
	}
	var b strings.Builder
	for col := range width {
		i := col * n / width
		if p.Samples[i].Valid {
			b.WriteString("─")
		} else {
			b.WriteString("·")
		}
	}
	return Dim.Render(b.String())
}

// renderChart draws the projection as a braille line chart. Empty and
// all-gap projections render an explicit no-data panel.
func renderChart(p series.Projection, width, height int) string {
	header := lipgloss.NewStyle().Foreground(p.Field.Color()).Bold(true).Render(p.Field.Label())
	if p.Empty() {
		return header + "\n" + noData("series points")
	}
	values, ok := chartValues(p)
	if !ok {
		return header + "\n" + noData(p.Field.Label()+" values")
	}
	lo, hi, _ := p.Range()
	header += Dim.Render(fmt.Sprintf("  %d points · %d gaps · min %.2f · max %.2f", len(p.Samples), p.Gaps(), lo, hi))

	width = max(width, 20)
	height = max(height, 4)
	c := plot.NewCanvas(width, height)
	c.NumDataPoints = len(values)
	c.ShowAxis = true
	c.LineColors = []plot.Color{plot.Red}
	c.Fill([][]float64{values})
	return header + "\n" + c.String() + "\n" + gapStrip(p, width)
}

// commentMeta renders the author and relative age of a comment.
func commentMeta(by string, t int64, now time.Time) string {
	if by == "" {
		by = "[deleted]"
	}
	if t == 0 {
		return by
	}
	return by + " · " + humanize.RelTime(time.Unix(t, 0), now, "ago", "from now")
}

// compactCount formats large counts for tight columns ("12k").
func compactCount(n int) string {
	v, unit := humanize.ComputeSI(float64(n))
	if unit == "" {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%.0f%s", v, unit)
}
