package push

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Event is one server-sent event
type Event struct {
	ID   string
	Name string
	Data string
}

// EventWriter encodes the text/event-stream format
type EventWriter struct {
	w     io.Writer
	flush func() error
}

// NewEventWriter wraps w; flush is called after every event and may be nil
func NewEventWriter(w io.Writer, flush func() error) *EventWriter {
	return &EventWriter{w: w, flush: flush}
}

// WriteEvent writes one event. Multi-line data is split over several data lines.
func (ew *EventWriter) WriteEvent(ev Event) error {
	var b strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", ev.ID)
	}
	if ev.Name != "" {
		fmt.Fprintf(&b, "event: %s\n", ev.Name)
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	return ew.write(b.String())
}

// WriteComment writes a comment line, used as a keepalive
func (ew *EventWriter) WriteComment(text string) error {
	return ew.write(": " + text + "\n\n")
}

func (ew *EventWriter) write(s string) error {
	if _, err := io.WriteString(ew.w, s); err != nil {
		return err
	}
	if ew.flush != nil {
		return ew.flush()
	}
	return nil
}

// EventReader decodes the text/event-stream format
type EventReader struct {
	scanner *bufio.Scanner
}

// NewEventReader reads events from r
func NewEventReader(r io.Reader) *EventReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &EventReader{scanner: scanner}
}

// Next blocks until a complete event has been read. Comments are skipped.
// It returns io.EOF when the stream ends.
func (er *EventReader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		hasData bool
	)

	for er.scanner.Scan() {
		line := er.scanner.Text()

		if line == "" {
			if hasData {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		name, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch name {
		case "id":
			ev.ID = value
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
			hasData = true
		}
	}

	if err := er.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
