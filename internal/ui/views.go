package ui

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/divyadrishti/internal/classify"
	"github.com/abelbrown/divyadrishti/internal/client"
	"github.com/abelbrown/divyadrishti/internal/comments"
	"github.com/abelbrown/divyadrishti/internal/model"
	"github.com/abelbrown/divyadrishti/internal/ranking"
	"github.com/abelbrown/divyadrishti/internal/series"
)

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func streamNames(streams map[string]streamInfo) []string {
	return slices.Sorted(maps.Keys(streams))
}

// renderList renders rows of perRow lines each, scrolled so the cursor row
// is visible within height lines.
func renderList(n, cursor, height, perRow int, row func(i int, selected bool) string) string {
	visible := max(height/perRow, 1)
	offset := max(cursor-visible+1, 0)
	var b strings.Builder
	for i := offset; i < n && i < offset+visible; i++ {
		if i > offset {
			b.WriteString("\n")
		}
		b.WriteString(row(i, i == cursor))
	}
	return b.String()
}

func (a App) loadingLine(what string) string {
	return HelpStyle.Render(a.spinner.View() + " loading " + what + "…")
}

func (a App) renderTabs() string {
	var tabs []string
	for _, v := range topViews {
		label := fmt.Sprintf("%d %s", int(v)+1, v)
		if v == a.view {
			tabs = append(tabs, TabActive.Render(label))
		} else {
			tabs = append(tabs, TabInactive.Render(label))
		}
	}
	switch a.view {
	case viewMetric:
		tabs = append(tabs, TabActive.Render("› "+a.metricTitle()))
	case viewStory:
		tabs = append(tabs, TabActive.Render("› "+a.storyTitle()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (a App) metricTitle() string {
	if a.metric.detail != nil && a.metric.detail.Label != "" {
		return truncateRunes(a.metric.detail.Label, 30)
	}
	return a.metric.id
}

func (a App) storyTitle() string {
	if a.story.story != nil && a.story.story.Title != "" {
		return truncateRunes(a.story.story.Title, 30)
	}
	return fmt.Sprintf("story %d", a.story.id)
}

func (a App) renderTrending(width, height int) string {
	n := a.trending.Len()
	if n == 0 {
		switch {
		case a.trendingErr != nil:
			return errorPanel("trending stories", a.trendingErr, false)
		case a.trendingLoading:
			return a.loadingLine("trending stories")
		default:
			return noData("trending stories")
		}
	}
	var top string
	if a.trendingErr != nil {
		top = ErrorStyle.Render("refresh failed: "+a.trendingErr.Error()) + "\n"
		height--
	}
	now := a.now()
	return top + renderList(n, a.cursors[viewTrending], height, 2, func(i int, selected bool) string {
		return storyLine(a.trending.At(i), selected, width, now)
	})
}

func (a App) renderMetrics(width, height int) string {
	n := a.metrics.Len()
	if n == 0 {
		switch {
		case a.metricsErr != nil:
			return errorPanel("top metrics", a.metricsErr, false)
		case a.metricsLoading:
			return a.loadingLine("top metrics")
		default:
			return noData("metrics")
		}
	}
	var top string
	if a.metricsErr != nil {
		top = ErrorStyle.Render("refresh failed: "+a.metricsErr.Error()) + "\n"
		height--
	}
	return top + renderList(n, a.cursors[viewMetrics], height, 2, func(i int, selected bool) string {
		return metricCard(a.metrics.At(i), selected, width)
	})
}

func (a App) renderSelectorBar() string {
	key := a.selector.Key()
	var lens []string
	for _, l := range model.Lenses {
		if l == key.Lens {
			lens = append(lens, TabActive.Render(l.Label()))
		} else {
			lens = append(lens, TabInactive.Render(l.Label()))
		}
	}
	var win []string
	for _, w := range model.Windows {
		if w == key.Window {
			win = append(win, StatusBarKey.Render(w.Label()))
		} else {
			win = append(win, Dim.Render(w.Label()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, lens...) + "\n " + strings.Join(win, Dim.Render(" · "))
}

func (a App) renderRankings(width, height int) string {
	bar := a.renderSelectorBar()
	height -= lineCount(bar)

	entries := a.selector.Entries()
	var body string
	switch a.selector.State() {
	case ranking.StateIdle:
		body = a.loadingLine("rankings")
	case ranking.StateError:
		body = errorPanel("rankings for "+a.selector.Key().String(), a.selector.Err(), client.IsNotFound(a.selector.Err()))
	case ranking.StateLoading:
		if len(entries) == 0 {
			body = a.loadingLine("rankings for " + a.selector.Key().String())
			break
		}
		body = Dim.Render(a.spinner.View()+" updating…") + "\n" + a.rankingRows(entries, width, height-1)
	case ranking.StateReady:
		if len(entries) == 0 {
			body = noData("metrics for this lens and window")
			break
		}
		body = a.rankingRows(entries, width, height)
	}
	return bar + "\n" + body
}

func (a App) rankingRows(entries []model.RankingEntry, width, height int) string {
	return renderList(len(entries), a.cursors[viewRankings], height, 2, func(i int, selected bool) string {
		e := entries[i]
		return RankStyle.Render(fmt.Sprintf("#%d", e.Rank)) + metricCard(e.Metric, selected, width-4)
	})
}

// renderMetric renders the metric detail view into the viewport.
func (a App) renderMetric(width int) string {
	m := a.metric
	if m.detail == nil {
		switch {
		case m.err != nil:
			return errorPanel("metric "+m.id, m.err, client.IsNotFound(m.err))
		case m.loading:
			return a.loadingLine("metric " + m.id)
		default:
			return noData("metric detail")
		}
	}
	d := m.detail
	r := d.Rollup

	var b strings.Builder
	b.WriteString(Title.Render(d.Label))
	if m.loading {
		b.WriteString(" " + a.spinner.View())
	}
	b.WriteString("\n")
	if d.Definition != "" {
		b.WriteString(lipgloss.NewStyle().Width(max(width-2, 20)).PaddingLeft(1).Foreground(colorSecondary).Render(d.Definition) + "\n")
	}

	b.WriteString(SectionHeader.Render("Rollup · "+m.window.Label()) + "\n")
	b.WriteString(fmt.Sprintf("  presence  %.1f%%\n", r.PresencePct))
	b.WriteString("  signals   " + metricBadges(r.Heat, r.Momentum, r.Valence) + "\n")
	b.WriteString("  valence   " + valenceBar(r.Valence, 30) + "\n")
	b.WriteString(fmt.Sprintf("  split     %.2f   consensus %.2f   authors %s\n", r.Split, r.Consensus, compactCount(r.UniqueAuthors)))
	b.WriteString("  sentiment " + sentimentBar(r.Sentiment, 30) + "\n")

	b.WriteString(SectionHeader.Render("Series") + Dim.Render("  f: "+m.field.Next().Label()) + "\n")
	if m.seriesErr != nil {
		b.WriteString(ErrorStyle.Render("series unavailable: "+m.seriesErr.Error()) + "\n")
	} else {
		b.WriteString(renderChart(series.Project(m.points, m.field), max(width-4, 20), 10) + "\n")
	}

	b.WriteString(SectionHeader.Render("Examples") + "\n")
	if len(d.ExampleItems) == 0 {
		b.WriteString(Dim.Render("  none") + "\n")
	}
	now := a.now()
	for _, s := range d.ExampleItems {
		b.WriteString(storyLine(s, false, width, now) + "\n")
	}
	return b.String()
}

// renderStory renders the story detail and its comment tree.
func (a App) renderStory(width int) string {
	st := a.story
	if st.story == nil {
		switch {
		case st.err != nil:
			return errorPanel("story", st.err, client.IsNotFound(st.err))
		case st.loading:
			return a.loadingLine(fmt.Sprintf("story %d", st.id))
		default:
			return noData("story")
		}
	}
	s := st.story
	now := a.now()

	var b strings.Builder
	b.WriteString(Title.Render(a.storyTitleFull()) + "\n")
	if s.URL != "" {
		b.WriteString(Dim.Render("  "+s.URL) + "\n")
	}
	meta := fmt.Sprintf("  %s points · %s · %s comments", humanize.Comma(int64(s.Score)), commentMeta(s.By, s.Time, now), humanize.Comma(int64(s.Descendants)))
	b.WriteString(Dim.Render(meta) + "\n")
	b.WriteString("  " + sentimentBar(s.SentimentOrZero(), 30) + "\n")

	header := "Comments"
	if st.forest != nil && st.forest.Len() > 0 {
		header = fmt.Sprintf("Comments (%d)", st.forest.Len())
	}
	b.WriteString(SectionHeader.Render(header) + "\n")
	switch {
	case st.commentsErr != nil:
		b.WriteString(ErrorStyle.Render("comments unavailable: "+st.commentsErr.Error()) + "\n")
	case st.forest == nil || st.forest.Len() == 0:
		b.WriteString(Dim.Render("  No comments.") + "\n")
	default:
		st.forest.Walk(func(r comments.Row) bool {
			b.WriteString(a.commentBlock(r, width, now) + "\n")
			return true
		})
	}
	return b.String()
}

func (a App) storyTitleFull() string {
	if a.story.story.Title != "" {
		return a.story.story.Title
	}
	return fmt.Sprintf("story %d", a.story.id)
}

// commentBlock renders one comment indented by its clamped depth, with a
// left rule in its sentiment color.
func (a App) commentBlock(r comments.Row, width int, now time.Time) string {
	text := a.deps.Sanitizer.Text(r.Text)
	meta := Dim.Render(commentMeta(r.By, r.Time, now))
	if r.Label != "" {
		meta += " " + lipgloss.NewStyle().Foreground(classify.LabelColor(r.Label)).Render(string(r.Label))
	}
	body := meta
	if text != "" {
		body += "\n" + text
	}
	return lipgloss.NewStyle().
		MarginLeft(r.Indent).
		Width(max(width-r.Indent-2, 20)).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(r.Color()).
		PaddingLeft(1).
		Render(body)
}

// renderStatusBar renders position, stream health and key hints.
func (a App) renderStatusBar() string {
	var left string
	if a.loading() {
		left = a.spinner.View() + " "
	}
	if n := a.listLen(a.view); n > 0 {
		left += fmt.Sprintf("%d/%d ", a.cursors[a.view]+1, n)
	}
	for _, name := range streamNames(a.streams) {
		s := a.streams[name]
		if s.Connected {
			left += LiveUp.Render("●") + " " + name + " "
		} else {
			left += LiveDown.Render("○") + " " + name + " "
		}
	}

	hints := []string{
		StatusBarKey.Render("enter") + StatusBarText.Render(":open"),
		StatusBarKey.Render("tab") + StatusBarText.Render(":view"),
	}
	switch a.view {
	case viewRankings:
		hints = append(hints,
			StatusBarKey.Render("l")+StatusBarText.Render(":lens"),
			StatusBarKey.Render("w")+StatusBarText.Render(":window"))
	case viewMetric:
		hints = append(hints,
			StatusBarKey.Render("f")+StatusBarText.Render(":field"),
			StatusBarKey.Render("w")+StatusBarText.Render(":window"),
			StatusBarKey.Render("esc")+StatusBarText.Render(":back"))
	case viewStory:
		hints = append(hints, StatusBarKey.Render("esc")+StatusBarText.Render(":back"))
	}
	hints = append(hints,
		StatusBarKey.Render("r")+StatusBarText.Render(":refresh"),
		StatusBarKey.Render("?")+StatusBarText.Render(":help"),
		StatusBarKey.Render("q")+StatusBarText.Render(":quit"))
	right := strings.Join(hints, " ")

	padding := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 0)
	return StatusBar.Width(a.width).Render(left + strings.Repeat(" ", padding) + right)
}
