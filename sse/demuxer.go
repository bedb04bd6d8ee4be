// Package sse turns the raw body of a streaming chat completion into
// discrete events.
//
// The body is a sequence of lines of the form
//
//	data: {"choices":[...]}
//
// terminated by a "data: [DONE]" line. Network reads split the body at
// arbitrary byte offsets, so a Demuxer buffers the unterminated tail between
// calls and only ever interprets complete lines.
package sse

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	dataMarker = "data:"
	doneToken  = "[DONE]"
)

// EventType discriminates Event.
type EventType int

const (
	// EventData carries a JSON payload in Event.Data.
	EventData EventType = iota + 1

	// EventDone marks the end of the stream.
	EventDone

	// EventMalformed carries a payload that was not valid JSON in Event.Raw.
	EventMalformed
)

func (t EventType) String() string {
	switch t {
	case EventData:
		return "data"
	case EventDone:
		return "done"
	case EventMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ErrInvalidJSON is the Err of every EventMalformed event.
var ErrInvalidJSON = errors.New("payload is not valid JSON")

// Event is one logical message of a stream.
type Event struct {
	Type EventType

	// Data is the payload of an EventData event.
	Data json.RawMessage

	// Raw and Err describe an EventMalformed event.
	Raw string
	Err error
}

// Done is the terminal event.
var Done = Event{Type: EventDone}

// IsDone reports whether e ends the stream.
func (e Event) IsDone() bool {
	return e.Type == EventDone
}

// Decode unmarshals the payload of a data event into v.
func (e Event) Decode(v any) error {
	if e.Type != EventData {
		return errors.New("sse: decode of " + e.Type.String() + " event")
	}
	return json.Unmarshal(e.Data, v)
}

// Demuxer reassembles lines from chunks and converts them to events.
// A Demuxer serves exactly one stream and is not safe for concurrent use.
type Demuxer struct {
	buf string
}

// NewDemuxer returns an empty Demuxer.
func NewDemuxer() *Demuxer {
	return &Demuxer{}
}

// Feed appends chunk to the buffer and returns the events of every line it
// completed, in order. The trailing partial line, if any, stays buffered.
func (d *Demuxer) Feed(chunk []byte) []Event {
	d.buf += string(chunk)

	lines := strings.Split(d.buf, "\n")
	d.buf = lines[len(lines)-1]

	var events []Event
	for _, line := range lines[:len(lines)-1] {
		if ev, ok := parseLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush handles whatever is left in the buffer as a final line and ends the
// stream. The result always ends with a Done event, even if an explicit
// [DONE] was already returned by Feed.
func (d *Demuxer) Flush() []Event {
	rest := d.buf
	d.buf = ""

	var events []Event
	if ev, ok := parseLine(rest); ok {
		events = append(events, ev)
	}
	return append(events, Done)
}

// Abort ends the stream after a transport error. Buffered content is
// discarded.
func (d *Demuxer) Abort() []Event {
	d.buf = ""
	return []Event{Done}
}

// Buffered returns the number of bytes waiting for a line terminator.
func (d *Demuxer) Buffered() int {
	return len(d.buf)
}

// parseLine converts one complete line. ok is false for lines that carry no
// event: blank lines and lines without a data marker (comments, "event:",
// "id:" and the like).
func parseLine(line string) (Event, bool) {
	if strings.TrimSpace(line) == "" {
		return Event{}, false
	}
	if !strings.Contains(line, dataMarker) {
		return Event{}, false
	}

	payload := strings.TrimSpace(strings.Replace(line, dataMarker, "", 1))
	if payload == doneToken {
		return Done, true
	}

	if !json.Valid([]byte(payload)) {
		return Event{Type: EventMalformed, Raw: payload, Err: ErrInvalidJSON}, true
	}
	return Event{Type: EventData, Data: json.RawMessage(payload)}, true
}
