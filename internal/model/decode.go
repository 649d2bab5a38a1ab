package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed marks a payload that does not match the expected item schema.
var ErrMalformed = errors.New("malformed payload")

// storyWire mirrors Story with presence tracking for required fields.
type storyWire struct {
	ID          *int64     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Score       int        `json:"score"`
	By          string     `json:"by"`
	Time        int64      `json:"time"`
	Descendants int        `json:"descendants"`
	Type        string     `json:"type"`
	Sentiment   *Sentiment `json:"sentiment"`
}

// DecodeStory decodes a single story payload. The payload must be one JSON
// object with a positive integer id; a "type" other than "story" is rejected.
func DecodeStory(raw []byte) (Story, error) {
	var w storyWire
	if err := decodeObject(raw, &w); err != nil {
		return Story{}, err
	}
	if w.ID == nil || *w.ID <= 0 {
		return Story{}, fmt.Errorf("%w: story id missing or not positive", ErrMalformed)
	}
	if w.Type != "" && w.Type != "story" {
		return Story{}, fmt.Errorf("%w: unexpected item type %q", ErrMalformed, w.Type)
	}
	if w.Sentiment != nil {
		if err := checkSentiment(*w.Sentiment); err != nil {
			return Story{}, err
		}
	}
	return Story{
		ID:          *w.ID,
		Title:       w.Title,
		URL:         w.URL,
		Score:       w.Score,
		By:          w.By,
		Time:        w.Time,
		Descendants: w.Descendants,
		Type:        w.Type,
		Sentiment:   w.Sentiment,
	}, nil
}

// metricWire also accepts the rollup field names used by the live metrics
// stream (node_id, presence as a 0..1 fraction, valence_score, heat_score).
type metricWire struct {
	ID          *string    `json:"id"`
	NodeID      *string    `json:"node_id"`
	Label       string     `json:"label"`
	Definition  string     `json:"definition"`
	ItemCount   int        `json:"item_count"`
	PresencePct float64    `json:"presence_pct"`
	Valence     float64    `json:"valence"`
	Heat        float64    `json:"heat"`
	Momentum    float64    `json:"momentum"`
	Sentiment   *Sentiment `json:"sentiment"`

	Presence     *float64 `json:"presence"`
	ValenceScore *float64 `json:"valence_score"`
	HeatScore    *float64 `json:"heat_score"`
}

// DecodeMetricNode decodes a single metric node payload. The id must be a
// non-empty string.
func DecodeMetricNode(raw []byte) (MetricNode, error) {
	var w metricWire
	if err := decodeObject(raw, &w); err != nil {
		return MetricNode{}, err
	}
	if w.ID == nil {
		w.ID = w.NodeID
	}
	if w.ID == nil || *w.ID == "" {
		return MetricNode{}, fmt.Errorf("%w: metric id missing", ErrMalformed)
	}
	if w.Presence != nil {
		w.PresencePct = *w.Presence * 100
	}
	if w.ValenceScore != nil {
		w.Valence = *w.ValenceScore
	}
	if w.HeatScore != nil {
		w.Heat = *w.HeatScore
	}
	var s Sentiment
	if w.Sentiment != nil {
		if err := checkSentiment(*w.Sentiment); err != nil {
			return MetricNode{}, err
		}
		s = *w.Sentiment
	}
	return MetricNode{
		ID:          *w.ID,
		Label:       w.Label,
		Definition:  w.Definition,
		ItemCount:   w.ItemCount,
		PresencePct: w.PresencePct,
		Valence:     w.Valence,
		Heat:        w.Heat,
		Momentum:    w.Momentum,
		Sentiment:   s,
	}, nil
}

// decodeObject requires raw to hold exactly one JSON object.
func decodeObject(raw []byte, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data after object", ErrMalformed)
	}
	return nil
}

func checkSentiment(s Sentiment) error {
	if s.Positive < 0 || s.Negative < 0 || s.Neutral < 0 {
		return fmt.Errorf("%w: negative sentiment count", ErrMalformed)
	}
	return nil
}
