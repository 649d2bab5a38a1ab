// Package model defines the data shapes exchanged with the divyadrishti API.
//
// Every value here is read-only once decoded. Views replace values wholesale
// and never patch individual fields.
package model

import (
	"slices"
	"strconv"
	"time"
)

// Sentiment is a triple of non-negative comment counts.
type Sentiment struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// Total returns the sum of all three buckets.
func (s Sentiment) Total() float64 {
	return s.Positive + s.Negative + s.Neutral
}

// Story is a ranked Hacker News story.
type Story struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title,omitempty"`
	URL         string     `json:"url,omitempty"`
	Score       int        `json:"score,omitempty"`
	By          string     `json:"by,omitempty"`
	Time        int64      `json:"time,omitempty"` // unix seconds
	Descendants int        `json:"descendants,omitempty"`
	Type        string     `json:"type,omitempty"`
	Sentiment   *Sentiment `json:"sentiment,omitempty"`
}

// Key returns the reconciliation identity of the story.
func (s Story) Key() string {
	return strconv.FormatInt(s.ID, 10)
}

// Posted returns the story time as a time.Time.
func (s Story) Posted() time.Time {
	return time.Unix(s.Time, 0)
}

// SentimentOrZero returns the story sentiment, or the zero triple when absent.
func (s Story) SentimentOrZero() Sentiment {
	if s.Sentiment == nil {
		return Sentiment{}
	}
	return *s.Sentiment
}

// MetricNode is a discovered discourse topic with its latest rollup signals.
type MetricNode struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Definition  string    `json:"definition,omitempty"`
	ItemCount   int       `json:"item_count,omitempty"`
	PresencePct float64   `json:"presence_pct"`
	Valence     float64   `json:"valence"`
	Heat        float64   `json:"heat"`
	Momentum    float64   `json:"momentum"`
	Sentiment   Sentiment `json:"sentiment"`
}

// Key returns the reconciliation identity of the metric node.
func (m MetricNode) Key() string {
	return m.ID
}

// RankingEntry pairs a 1-based rank with a metric node.
type RankingEntry struct {
	Rank   int
	Metric MetricNode
}

// MetricRollup is the aggregated snapshot of a metric over a window.
type MetricRollup struct {
	Window        Window    `json:"window"`
	PresencePct   float64   `json:"presence_pct"`
	Heat          float64   `json:"heat"`
	Momentum      float64   `json:"momentum"`
	Valence       float64   `json:"valence"`
	Split         float64   `json:"split"`
	Consensus     float64   `json:"consensus"`
	UniqueAuthors int       `json:"unique_authors"`
	Sentiment     Sentiment `json:"sentiment"`
}

// MetricDetail is the payload of the metric detail fetch.
type MetricDetail struct {
	ID           string       `json:"id"`
	Label        string       `json:"label"`
	Definition   string       `json:"definition"`
	Rollup       MetricRollup `json:"rollup"`
	ExampleItems []Story      `json:"example_items"`
}

// SeriesPoint is one aggregation bucket of a metric time series.
// Nil fields are gaps: the bucket exists but the value was not computed.
type SeriesPoint struct {
	TS          time.Time `json:"ts"`
	PresencePct *float64  `json:"presence_pct,omitempty"`
	Valence     *float64  `json:"valence,omitempty"`
	Heat        *float64  `json:"heat,omitempty"`
	Momentum    *float64  `json:"momentum,omitempty"`
}

// SentimentLabel is the per-comment sentiment classification.
type SentimentLabel string

const (
	LabelPositive SentimentLabel = "positive"
	LabelNegative SentimentLabel = "negative"
	LabelNeutral  SentimentLabel = "neutral"
)

// Comment is a node of a comment forest. Each comment owns its children.
type Comment struct {
	ID             int64          `json:"id"`
	By             string         `json:"by,omitempty"`
	Time           int64          `json:"time,omitempty"`
	Text           string         `json:"text,omitempty"`
	Parent         int64          `json:"parent,omitempty"`
	SentimentLabel SentimentLabel `json:"sentiment_label,omitempty"`
	Children       []Comment      `json:"children,omitempty"`
}

// Posted returns the comment time as a time.Time.
func (c Comment) Posted() time.Time {
	return time.Unix(c.Time, 0)
}

// Nest arranges a flat comment list into a forest using Parent ids. Comments
// whose parent is root, zero, or not in the list become roots. Input order is
// kept among siblings and children already nested are left in place. Comments
// caught in a parent cycle are unreachable from any root and are dropped.
// A repeated id keeps its first occurrence; later copies are dropped so no
// subtree is owned twice.
func Nest(flat []Comment, root int64) []Comment {
	byID := make(map[int64]int, len(flat))
	for i, c := range flat {
		if _, dup := byID[c.ID]; !dup {
			byID[c.ID] = i
		}
	}
	kids := make(map[int64][]int, len(flat))
	var roots []int
	for i, c := range flat {
		if byID[c.ID] != i {
			continue
		}
		if _, ok := byID[c.Parent]; ok && c.Parent != root && c.Parent != 0 && c.Parent != c.ID {
			kids[c.Parent] = append(kids[c.Parent], i)
			continue
		}
		roots = append(roots, i)
	}

	// Assemble bottom-up from a pre-order listing so that every child is
	// complete before it is copied into its parent.
	var order []int
	seen := make([]bool, len(flat))
	stack := make([]int, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[i] {
			continue
		}
		seen[i] = true
		order = append(order, i)
		ch := kids[flat[i].ID]
		for j := len(ch) - 1; j >= 0; j-- {
			stack = append(stack, ch[j])
		}
	}

	built := make([]Comment, len(flat))
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		c := flat[i]
		c.Children = slices.Clip(c.Children)
		for _, j := range kids[c.ID] {
			if seen[j] {
				c.Children = append(c.Children, built[j])
			}
		}
		built[i] = c
	}

	out := make([]Comment, 0, len(roots))
	for _, i := range roots {
		out = append(out, built[i])
	}
	return out
}
