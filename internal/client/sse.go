package client

import (
	"bufio"
	"io"
	"strings"
)

type event struct {
	Name string
	Data string
}

// eventReader decodes a text/event-stream body one event at a time.
// Comments, id and retry fields are ignored.
type eventReader struct {
	scanner *bufio.Scanner
}

func newEventReader(r io.Reader) *eventReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	return &eventReader{scanner: scanner}
}

// Next blocks until a complete event arrives. It returns io.EOF when the
// stream ends cleanly.
func (r *eventReader) Next() (event, error) {
	var (
		ev      event
		data    []string
		pending bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if !pending {
				continue
			}
			ev.Data = strings.Join(data, "\n")
			if ev.Name == "" {
				ev.Name = "message"
			}
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.Name = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		}
	}

	if err := r.scanner.Err(); err != nil {
		return event{}, err
	}
	return event{}, io.EOF
}
