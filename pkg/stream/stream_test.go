package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"docqa-be/pkg/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{"response":"Hel"}` + "\n" + `{"respon` + `se":"lo"}` + "\n" + `{"done":true}` + "\n"

func TestDecoder_AnySplitYieldsSameFrames(t *testing.T) {
	want := []Frame{Token("Hel"), Token("lo"), Done()}

	for size := 1; size <= len(sample); size++ {
		d := NewDecoder(nil)
		var got []Frame
		for i := 0; i < len(sample); i += size {
			end := i + size
			if end > len(sample) {
				end = len(sample)
			}
			got = append(got, d.Push([]byte(sample[i:end]))...)
		}
		got = append(got, d.End()...)
		require.Equal(t, want, got, "split size %d", size)
	}
}

func TestDecoder_SkipsMalformedLines(t *testing.T) {
	d := NewDecoder(rag.NopLogger())
	frames := d.Push([]byte("{\"response\":\"a\"}\nnot json\n\n{\"response\":\"b\"}\n"))
	assert.Equal(t, []Frame{Token("a"), Token("b")}, frames)
	assert.False(t, d.Finished())
}

func TestDecoder_EndParsesCarryOver(t *testing.T) {
	d := NewDecoder(nil)
	assert.Empty(t, d.Push([]byte(`{"response":"tail"}`)))
	assert.Equal(t, []Frame{Token("tail"), Done()}, d.End())
	assert.Nil(t, d.End())
}

func TestDecoder_ExactlyOneTerminalFrame(t *testing.T) {
	d := NewDecoder(nil)
	frames := d.Push([]byte("{\"response\":\"x\",\"done\":true}\n{\"response\":\"late\"}\n"))
	assert.Equal(t, []Frame{Token("x"), Done()}, frames)
	assert.Nil(t, d.Push([]byte("{\"response\":\"later\"}\n")))
	assert.Nil(t, d.End())
	assert.Nil(t, d.Fail(errors.New("reset")))
}

func TestDecoder_Fail(t *testing.T) {
	d := NewDecoder(nil)
	frames := d.Fail(errors.New("connection reset"))
	require.Len(t, frames, 1)
	assert.Equal(t, KindError, frames[0].Kind)
	assert.Equal(t, "STREAM_TRANSPORT_ERROR", frames[0].Reason)
	assert.Nil(t, d.End())
}

func TestDecoder_BackendErrorLine(t *testing.T) {
	frames := DecodeAll([]byte(`{"error":"model not found"}`+"\n"), nil)
	require.Len(t, frames, 1)
	assert.Equal(t, Error("GENERATION_FAILURE"), frames[0])
}

func TestFrame_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Token("hi"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"token","text":"hi"}`, string(b))

	b, err = json.Marshal(Sources(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"sources","sources":[]}`, string(b))

	b, err = json.Marshal(Error("NO_CONTEXT"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":"NO_CONTEXT"}`, string(b))

	b, err = json.Marshal(Done())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"done"}`, string(b))
}

// chunkedReader returns its payload in fixed-size reads, then err.
type chunkedReader struct {
	data   []byte
	size   int
	err    error
	closed bool
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := r.size
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func (r *chunkedReader) Close() error {
	r.closed = true
	return nil
}

func collect(s *Stream) []Frame {
	var out []Frame
	for f := range s.Frames() {
		out = append(out, f)
	}
	return out
}

func TestStream_DeliversPreludeThenTokens(t *testing.T) {
	body := &chunkedReader{data: []byte(sample), size: 3, err: io.EOF}
	prelude := Sources([]Source{{ChunkIndex: 2, Preview: "p", Score: 0.5}})

	s := Open(context.Background(), body, nil, prelude)
	frames := collect(s)

	assert.Equal(t, []Frame{prelude, Token("Hel"), Token("lo"), Done()}, frames)
	assert.True(t, body.closed)
}

func TestStream_EOFWithoutDoneStillEndsWithDone(t *testing.T) {
	body := &chunkedReader{data: []byte(`{"response":"a"}` + "\n" + `{"response":"b"}`), size: 5, err: io.EOF}
	frames := collect(Open(context.Background(), body, nil))
	assert.Equal(t, []Frame{Token("a"), Token("b"), Done()}, frames)
}

func TestStream_TransportErrorEmitsErrorFrame(t *testing.T) {
	body := &chunkedReader{data: []byte(`{"response":"a"}` + "\n"), size: 64, err: errors.New("connection reset")}
	frames := collect(Open(context.Background(), body, nil))
	require.Len(t, frames, 2)
	assert.Equal(t, Token("a"), frames[0])
	assert.Equal(t, KindError, frames[1].Kind)
}

func TestStream_CloseDetachesSilently(t *testing.T) {
	pr, pw := io.Pipe()
	s := Open(context.Background(), pr, nil)

	go func() {
		_, _ = pw.Write([]byte(`{"response":"first"}` + "\n"))
	}()

	f, ok := s.Recv()
	require.True(t, ok)
	assert.Equal(t, Token("first"), f)

	require.NoError(t, s.Close())

	select {
	case f, ok := <-s.Frames():
		assert.False(t, ok, "unexpected frame after close: %+v", f)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after Close")
	}
	assert.NoError(t, s.Close())
}

func TestCollectText(t *testing.T) {
	body := io.NopCloser(strings.NewReader(sample))
	text, err := CollectText(Open(context.Background(), body, nil))
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	broken := &chunkedReader{data: []byte(`{"response":"par"}` + "\n"), size: 64, err: errors.New("eof-ish")}
	text, err = CollectText(Open(context.Background(), broken, nil))
	assert.ErrorIs(t, err, rag.ErrStreamTransport)
	assert.Equal(t, "par", text)
}
