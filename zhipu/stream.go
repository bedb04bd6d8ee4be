package zhipu

import (
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/i2y/bigmodel/sse"
)

const readBufferSize = 4096

// maxEmptyReads is how many consecutive (0, nil) reads end the stream with
// io.ErrNoProgress.
const maxEmptyReads = 100

// Stream is a pull-based view of a streaming response.
//
// Next yields events in the order their lines appear in the body. The last
// event is always exactly one Done: at the first [DONE] marker, at end of
// body, or after a transport error (reported by Err). Further events after
// the first Done are dropped and the body is closed.
type Stream struct {
	body   io.ReadCloser
	demux  *sse.Demuxer
	buf    []byte
	logger *slog.Logger
	start  time.Time

	pending []sse.Event
	current sse.Event
	done    bool
	err     error
	events  int
	empty   int

	closeOnce sync.Once
	closeErr  error
}

func newStream(body io.ReadCloser, logger *slog.Logger) *Stream {
	return &Stream{
		body:   body,
		demux:  sse.NewDemuxer(),
		buf:    make([]byte, readBufferSize),
		logger: logger,
		start:  time.Now(),
	}
}

// Next advances to the next event. It returns false once Done has been
// returned by Event.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	for len(s.pending) == 0 {
		s.fill()
	}

	s.current = s.pending[0]
	s.pending = s.pending[1:]
	s.events++

	if s.current.IsDone() {
		s.done = true
		s.pending = nil
		s.logger.Debug("chat stream finished",
			"events", s.events, "duration", time.Since(s.start), "error", s.err)
		_ = s.Close()
	}
	return true
}

// fill performs one read and queues the events it produces.
func (s *Stream) fill() {
	n, err := s.body.Read(s.buf)
	if n > 0 {
		s.pending = append(s.pending, s.demux.Feed(s.buf[:n])...)
	}

	if n == 0 && err == nil {
		s.empty++
		if s.empty >= maxEmptyReads {
			err = io.ErrNoProgress
		}
	} else {
		s.empty = 0
	}

	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.pending = append(s.pending, s.demux.Flush()...)
	default:
		s.err = &NetworkError{Op: "reading stream", Err: err}
		s.pending = append(s.pending, s.demux.Abort()...)
	}
}

// Event returns the event produced by the last call to Next.
func (s *Stream) Event() sse.Event {
	return s.current
}

// Events returns an iterator over the remaining events, ending with Done.
// Breaking out of the loop closes the stream.
//
//	for ev := range stream.Events() {
//	    switch ev.Type {
//	    case sse.EventData:
//	        chunk, _ := zhipu.DecodeChunk(ev)
//	        fmt.Print(chunk.Text())
//	    case sse.EventMalformed:
//	        log.Printf("skipping fragment: %q", ev.Raw)
//	    }
//	}
func (s *Stream) Events() iter.Seq[sse.Event] {
	return func(yield func(sse.Event) bool) {
		for s.Next() {
			if !yield(s.current) {
				_ = s.Close()
				return
			}
		}
	}
}

// Chunks returns an iterator over the decoded data events. Malformed
// fragments and payloads that do not decode as a StreamChunk are skipped.
func (s *Stream) Chunks() iter.Seq[*StreamChunk] {
	return func(yield func(*StreamChunk) bool) {
		for ev := range s.Events() {
			if ev.Type != sse.EventData {
				continue
			}
			chunk, err := DecodeChunk(ev)
			if err != nil {
				continue
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// Err returns the transport error that ended the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the response body. Reading after Close ends the stream
// with Done and a NetworkError.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// DecodeChunk decodes a data event into a StreamChunk.
func DecodeChunk(ev sse.Event) (*StreamChunk, error) {
	var chunk StreamChunk
	if err := ev.Decode(&chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}
