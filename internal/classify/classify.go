// Package classify buckets raw metric signals into stable display categories.
//
// Every function here is total and side-effect free. Thresholds are fixed:
//
//	heat      >= 80 Hot, >= 40 Warm, otherwise Cool
//	momentum  >  2 Up,   < -2 Down,  otherwise Flat
//	valence   > 15 Positive, < -15 Negative, otherwise Neutral
//
// NaN never satisfies a comparison, so it lands in the lowest heat bucket
// and the neutral momentum/valence bucket.
package classify

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/divyadrishti/internal/model"
)

const (
	hotThreshold      = 80.0
	warmThreshold     = 40.0
	momentumThreshold = 2.0
	valenceThreshold  = 15.0
)

// Palette shared by the classifiers and the sentiment renderers.
var (
	ColorRed      = lipgloss.Color("#f87171")
	ColorAmber    = lipgloss.Color("#fbbf24")
	ColorBlue     = lipgloss.Color("#60a5fa")
	ColorGreen    = lipgloss.Color("#4ade80")
	ColorSlate    = lipgloss.Color("#94a3b8")
	ColorGray     = lipgloss.Color("#6b7280")
	ColorPositive = lipgloss.Color("#22c55e")
	ColorNegative = lipgloss.Color("#ef4444")
	ColorNeutral  = lipgloss.Color("#94a3b8")
)

// Heat is the intensity bucket of a metric.
type Heat int

const (
	HeatCool Heat = iota
	HeatWarm
	HeatHot
)

// ClassifyHeat buckets a heat value.
func ClassifyHeat(heat float64) Heat {
	switch {
	case heat >= hotThreshold:
		return HeatHot
	case heat >= warmThreshold:
		return HeatWarm
	default:
		return HeatCool
	}
}

func (h Heat) String() string {
	switch h {
	case HeatHot:
		return "Hot"
	case HeatWarm:
		return "Warm"
	default:
		return "Cool"
	}
}

// Color returns the indicator color for the bucket.
func (h Heat) Color() lipgloss.Color {
	switch h {
	case HeatHot:
		return ColorRed
	case HeatWarm:
		return ColorAmber
	default:
		return ColorBlue
	}
}

// Direction is the momentum bucket of a metric.
type Direction int

const (
	DirectionFlat Direction = iota
	DirectionUp
	DirectionDown
)

// ClassifyMomentum buckets a momentum value. Exactly ±2 is Flat.
func ClassifyMomentum(momentum float64) Direction {
	switch {
	case momentum > momentumThreshold:
		return DirectionUp
	case momentum < -momentumThreshold:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "Up"
	case DirectionDown:
		return "Down"
	default:
		return "Flat"
	}
}

// Arrow returns the glyph drawn next to the momentum value.
func (d Direction) Arrow() string {
	switch d {
	case DirectionUp:
		return "↑"
	case DirectionDown:
		return "↓"
	default:
		return "→"
	}
}

// Color returns the text color for the direction.
func (d Direction) Color() lipgloss.Color {
	switch d {
	case DirectionUp:
		return ColorGreen
	case DirectionDown:
		return ColorRed
	default:
		return ColorGray
	}
}

// Lean is the valence bucket of a metric.
type Lean int

const (
	LeanNeutral Lean = iota
	LeanPositive
	LeanNegative
)

// ClassifyValence buckets a valence value. Exactly ±15 is Neutral.
func ClassifyValence(valence float64) Lean {
	switch {
	case valence > valenceThreshold:
		return LeanPositive
	case valence < -valenceThreshold:
		return LeanNegative
	default:
		return LeanNeutral
	}
}

func (l Lean) String() string {
	switch l {
	case LeanPositive:
		return "Positive"
	case LeanNegative:
		return "Negative"
	default:
		return "Neutral"
	}
}

// Color returns the text color for the lean.
func (l Lean) Color() lipgloss.Color {
	switch l {
	case LeanPositive:
		return ColorGreen
	case LeanNegative:
		return ColorRed
	default:
		return ColorSlate
	}
}

// Signed formats v with one decimal place and an explicit sign.
// Non-negative values (including negative zero) get a leading "+".
func Signed(v float64) string {
	if v == 0 {
		v = 0
	}
	if v >= 0 {
		return fmt.Sprintf("+%.1f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// Momentum renders the arrow glyph followed by the signed value, e.g. "↑ +3.2".
func Momentum(momentum float64) string {
	return ClassifyMomentum(momentum).Arrow() + " " + Signed(momentum)
}

// LabelColor returns the color of a per-comment sentiment label.
// Absent or unknown labels use the neutral color.
func LabelColor(label model.SentimentLabel) lipgloss.Color {
	switch label {
	case model.LabelPositive:
		return ColorPositive
	case model.LabelNegative:
		return ColorNegative
	default:
		return ColorNeutral
	}
}
