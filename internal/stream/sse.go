package stream

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Event is one dispatched server-sent event.
type Event struct {
	Type string
	ID   string
	Data string
}

// ReadEvents parses a text/event-stream body and calls fn for every
// dispatched event. Multiple data lines are joined with "\n"; comment lines
// and retry fields are ignored. An event left unterminated at EOF is
// discarded. It returns nil at a clean EOF.
func ReadEvents(r io.Reader, fn func(Event)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4<<20)

	var (
		ev      Event
		data    []string
		hasData bool
	)
	dispatch := func() {
		if hasData {
			ev.Data = strings.Join(data, "\n")
			fn(ev)
		}
		ev, data, hasData = Event{}, data[:0], false
	}

	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			dispatch()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			ev.Type = value
		case "id":
			ev.ID = value
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}
