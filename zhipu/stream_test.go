package zhipu

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/bigmodel/logger"
	"github.com/i2y/bigmodel/sse"
)

// trackingBody records Close calls.
type trackingBody struct {
	io.Reader
	closed int
}

func (b *trackingBody) Close() error {
	b.closed++
	return nil
}

func drain(s *Stream) []sse.Event {
	var events []sse.Event
	for ev := range s.Events() {
		events = append(events, ev)
	}
	return events
}

func TestStream_OneByteReads(t *testing.T) {
	body := &trackingBody{Reader: iotest.OneByteReader(strings.NewReader(
		"data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n\n",
	))}
	s := newStream(body, logger.Nop())

	events := drain(s)
	assert.Equal(t, []sse.Event{
		{Type: sse.EventData, Data: []byte(`{"a":1}`)},
		{Type: sse.EventData, Data: []byte(`{"b":2}`)},
		sse.Done,
	}, events)
	assert.NoError(t, s.Err())
	assert.Equal(t, 1, body.closed)
}

func TestStream_TransportError(t *testing.T) {
	boom := errors.New("connection reset")
	body := &trackingBody{Reader: io.MultiReader(
		strings.NewReader("data: {\"a\":1}\ndata: {\"partial\":"),
		iotest.ErrReader(boom),
	)}
	s := newStream(body, logger.Nop())

	events := drain(s)
	assert.Equal(t, []sse.Event{
		{Type: sse.EventData, Data: []byte(`{"a":1}`)},
		sse.Done,
	}, events, "buffered partial line is dropped on error")

	var netErr *NetworkError
	require.ErrorAs(t, s.Err(), &netErr)
	assert.Equal(t, "reading stream", netErr.Op)
	assert.ErrorIs(t, s.Err(), boom)
}

// stalledReader returns its data once, then (0, nil) forever.
type stalledReader struct {
	data  string
	reads int
}

func (r *stalledReader) Read(p []byte) (int, error) {
	r.reads++
	if r.data == "" {
		return 0, nil
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestStream_NoProgress(t *testing.T) {
	stalled := &stalledReader{data: "data: {\"a\":1}\n"}
	body := &trackingBody{Reader: stalled}
	s := newStream(body, logger.Nop())

	assert.Equal(t, []sse.Event{
		{Type: sse.EventData, Data: []byte(`{"a":1}`)},
		sse.Done,
	}, drain(s))
	assert.ErrorIs(t, s.Err(), io.ErrNoProgress)
	assert.Equal(t, 1+maxEmptyReads, stalled.reads)
	assert.Equal(t, 1, body.closed)
}

func TestStream_DataAndEOFInSameRead(t *testing.T) {
	s := newStream(&trackingBody{Reader: iotest.DataErrReader(strings.NewReader("data: {\"a\":1}"))}, logger.Nop())

	assert.Equal(t, []sse.Event{
		{Type: sse.EventData, Data: []byte(`{"a":1}`)},
		sse.Done,
	}, drain(s))
}

func TestStream_NextAfterDone(t *testing.T) {
	s := newStream(&trackingBody{Reader: strings.NewReader("data: [DONE]\n")}, logger.Nop())

	require.True(t, s.Next())
	assert.True(t, s.Event().IsDone())
	assert.False(t, s.Next())
	assert.False(t, s.Next())
}

func TestStream_BreakClosesBody(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader("data: {\"a\":1}\ndata: {\"b\":2}\n")}
	s := newStream(body, logger.Nop())

	for range s.Events() {
		break
	}
	assert.Equal(t, 1, body.closed)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, body.closed, "Close is idempotent")
}

func TestDecodeChunk(t *testing.T) {
	chunk, err := DecodeChunk(sse.Event{
		Type: sse.EventData,
		Data: []byte(`{"id":"c1","choices":[{"index":0,"delta":{"content":"hi"}}]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", chunk.ID)
	assert.Equal(t, "hi", chunk.Text())

	_, err = DecodeChunk(sse.Done)
	assert.Error(t, err)

	empty := &StreamChunk{}
	assert.Empty(t, empty.Text())
}
