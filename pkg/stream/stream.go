package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"docqa-be/pkg/rag"
)

const readBufferSize = 4096

// Stream reads a generation body in the background and delivers decoded
// frames in arrival order. The channel is closed after the terminal frame,
// or silently once the consumer calls Close.
type Stream struct {
	frames    chan Frame
	detached  chan struct{}
	closeOnce sync.Once
	body      io.ReadCloser
}

// Open starts decoding body. Prelude frames are delivered before any decoded
// frame.
func Open(ctx context.Context, body io.ReadCloser, logger rag.Logger, prelude ...Frame) *Stream {
	s := &Stream{
		frames:   make(chan Frame, 16),
		detached: make(chan struct{}),
		body:     body,
	}
	go s.run(ctx, NewDecoder(logger), prelude)
	return s
}

// Frames exposes the frame channel for range loops.
func (s *Stream) Frames() <-chan Frame {
	return s.frames
}

// Recv returns the next frame, or false once the stream is over.
func (s *Stream) Recv() (Frame, bool) {
	f, ok := <-s.frames
	return f, ok
}

// Close detaches the consumer. The reader stops without emitting anything
// further.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.detached)
		err = s.body.Close()
	})
	return err
}

func (s *Stream) run(ctx context.Context, dec *Decoder, prelude []Frame) {
	defer close(s.frames)
	defer s.Close()

	if !s.emit(ctx, prelude) {
		return
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := s.body.Read(buf)
		if n > 0 {
			if !s.emit(ctx, dec.Push(buf[:n])) {
				return
			}
			if dec.Finished() {
				return
			}
		}
		if err == nil {
			continue
		}

		if s.isDetached() {
			return
		}
		if errors.Is(err, io.EOF) {
			s.emit(ctx, dec.End())
		} else {
			s.emit(ctx, dec.Fail(err))
		}
		return
	}
}

// emit delivers frames unless the consumer detached or ctx ended.
func (s *Stream) emit(ctx context.Context, frames []Frame) bool {
	for _, f := range frames {
		select {
		case s.frames <- f:
		case <-s.detached:
			return false
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (s *Stream) isDetached() bool {
	select {
	case <-s.detached:
		return true
	default:
		return false
	}
}

// CollectText drains s and joins its tokens. An Error frame ends collection
// with an error wrapping the matching sentinel.
func CollectText(s *Stream) (string, error) {
	defer s.Close()

	var sb strings.Builder
	for f := range s.Frames() {
		switch f.Kind {
		case KindToken:
			sb.WriteString(f.Text)
		case KindError:
			return sb.String(), reasonError(f.Reason)
		}
	}
	return sb.String(), nil
}

func reasonError(reason string) error {
	if reason == rag.Reason(rag.ErrGenerationFailure) {
		return rag.ErrGenerationFailure
	}
	return rag.ErrStreamTransport
}
