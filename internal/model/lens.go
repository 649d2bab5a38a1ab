package model

import "fmt"

// Lens is a named ranking criterion.
type Lens string

const (
	LensTop           Lens = "top"
	LensControversial Lens = "controversial"
	LensConsensusPos  Lens = "consensus_pos"
	LensConsensusNeg  Lens = "consensus_neg"
	LensHeated        Lens = "heated"
	LensRising        Lens = "rising"
)

// Lenses lists every lens in display order.
var Lenses = []Lens{LensTop, LensControversial, LensConsensusPos, LensConsensusNeg, LensHeated, LensRising}

var lensLabels = map[Lens]string{
	LensTop:           "Top",
	LensControversial: "Controversial",
	LensConsensusPos:  "Consensus+",
	LensConsensusNeg:  "Consensus-",
	LensHeated:        "Heated",
	LensRising:        "Rising",
}

// Valid reports whether l is one of the known lenses.
func (l Lens) Valid() bool {
	_, ok := lensLabels[l]
	return ok
}

// Label returns the tab label for the lens.
func (l Lens) Label() string {
	if s, ok := lensLabels[l]; ok {
		return s
	}
	return string(l)
}

// ParseLens validates a lens name.
func ParseLens(s string) (Lens, error) {
	l := Lens(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown lens %q", s)
	}
	return l, nil
}

// Window is the time range a ranking or rollup is computed over.
type Window string

const (
	WindowHour  Window = "hour"
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// Windows lists every window in display order.
var Windows = []Window{WindowHour, WindowToday, WindowWeek, WindowMonth}

var windowLabels = map[Window]string{
	WindowHour:  "Hour",
	WindowToday: "Today",
	WindowWeek:  "Week",
	WindowMonth: "Month",
}

// Valid reports whether w is one of the known windows.
func (w Window) Valid() bool {
	_, ok := windowLabels[w]
	return ok
}

// Label returns the tab label for the window.
func (w Window) Label() string {
	if s, ok := windowLabels[w]; ok {
		return s
	}
	return string(w)
}

// ParseWindow validates a window name.
func ParseWindow(s string) (Window, error) {
	w := Window(s)
	if !w.Valid() {
		return "", fmt.Errorf("unknown window %q", s)
	}
	return w, nil
}
