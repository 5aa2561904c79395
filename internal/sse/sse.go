// Package sse decodes server-sent-event frames from a byte stream.
//
// Each frame is a block of "event:" and "data:" lines terminated by a blank
// line. Multi-line data is joined with newlines. When a frame carries no
// event name the type is inferred from the payload's "type" field, which is
// how the Messages API tags its events.
package sse

import (
	"bufio"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// Event is one decoded SSE frame.
type Event struct {
	Name string // event: line, or inferred from the payload
	Data []byte // data: payload (JSON)
}

// Decoder reads frames from an underlying reader. It is not safe for
// concurrent use.
type Decoder struct {
	scanner *bufio.Scanner

	name string
	data []string
}

func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	return &Decoder{scanner: sc}
}

// Next returns the next complete frame. It returns io.EOF once the
// underlying stream ends; a frame in progress at EOF is discarded, matching
// the SSE rule that only blank-line-terminated frames are dispatched.
func (d *Decoder) Next() (Event, error) {
	for d.scanner.Scan() {
		line := strings.TrimSuffix(d.scanner.Text(), "\r")

		if line == "" {
			if len(d.data) == 0 {
				d.name = ""
				continue
			}
			ev := d.flush()
			return ev, nil
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			d.name = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			d.data = append(d.data, strings.TrimPrefix(line[len("data:"):], " "))
		default:
			// Comments (":") and unknown fields are ignored.
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func (d *Decoder) flush() Event {
	ev := Event{
		Name: d.name,
		Data: []byte(strings.Join(d.data, "\n")),
	}
	d.name = ""
	d.data = nil
	if ev.Name == "" {
		ev.Name = gjson.GetBytes(ev.Data, "type").String()
	}
	return ev
}
