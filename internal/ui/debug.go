package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/divyadrishti/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugOverlay renders live pipeline counters and the most recent events.
// Returns empty string if ring is nil.
func debugOverlay(ring *otel.Ring, streams map[string]streamInfo, width, height int) string {
	if ring == nil {
		return ""
	}

	counts := ring.Counts()
	recent := ring.Last(20)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Pipeline Stats"))
	lines = append(lines, fmt.Sprintf("  Snapshots:  %d started, %d installed, %d errors",
		counts[otel.KindSnapshotStart], counts[otel.KindSnapshotInstall], counts[otel.KindSnapshotError]))
	lines = append(lines, fmt.Sprintf("  Stream:     %d ingested, %d dropped, %d disconnects",
		counts[otel.KindStreamIngest], counts[otel.KindStreamDrop], counts[otel.KindStreamDisconnect]))
	lines = append(lines, fmt.Sprintf("  Rankings:   %d requested, %d published, %d stale",
		counts[otel.KindRankingSelect], counts[otel.KindRankingPublish], counts[otel.KindRankingStale]))
	lines = append(lines, fmt.Sprintf("  Fetch:      %d retries, %d errors",
		counts[otel.KindFetchRetry], counts[otel.KindFetchError]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
	for _, name := range streamNames(streams) {
		s := streams[name]
		state := "down"
		if s.Connected {
			state = "up"
		}
		lines = append(lines, fmt.Sprintf("  %-10s  %s, attempt %d, %d payloads", name+":", state, s.Attempt, s.Payloads))
	}
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		line := fmt.Sprintf("  %6s  %-18s", formatAge(time.Since(e.Time)), string(e.Kind))
		if e.Stream != "" {
			line += "  " + e.Stream
		}
		if e.Key != "" {
			line += "  " + e.Key
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		if e.ReqID != "" {
			rid := e.ReqID
			if len(rid) > 8 {
				rid = rid[:8]
			}
			line += "  rid:" + rid
		}
		lines = append(lines, line)
	}

	maxHeight := max(height-debugPanelChrome, 1)
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := min(76, width-4)
	panelWidth = max(panelWidth, 20)

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("D") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
