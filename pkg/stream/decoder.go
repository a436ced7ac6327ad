package stream

import (
	"bytes"
	"encoding/json"

	"docqa-be/pkg/rag"
)

type line struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Decoder turns arbitrarily split NDJSON bytes into frames. It emits exactly
// one terminal frame per session; everything after it is ignored.
type Decoder struct {
	carry    []byte
	finished bool
	logger   rag.Logger
}

func NewDecoder(logger rag.Logger) *Decoder {
	return &Decoder{logger: rag.OrNop(logger)}
}

// Finished reports whether a terminal frame has been emitted.
func (d *Decoder) Finished() bool {
	return d.finished
}

// Push appends p to the carry-over buffer and decodes every complete line.
func (d *Decoder) Push(p []byte) []Frame {
	if d.finished {
		return nil
	}
	d.carry = append(d.carry, p...)

	var frames []Frame
	for !d.finished {
		i := bytes.IndexByte(d.carry, '\n')
		if i < 0 {
			break
		}
		raw := d.carry[:i]
		d.carry = d.carry[i+1:]
		frames = append(frames, d.parse(raw)...)
	}
	if d.finished {
		d.carry = nil
	}
	return frames
}

// End gives the carry-over one last parse and closes the session with Done
// unless a terminal frame was already emitted.
func (d *Decoder) End() []Frame {
	if d.finished {
		return nil
	}
	var frames []Frame
	if len(d.carry) > 0 {
		frames = d.parse(d.carry)
		d.carry = nil
	}
	if !d.finished {
		d.finished = true
		frames = append(frames, Done())
	}
	return frames
}

// Fail closes the session with an Error frame for a transport failure.
func (d *Decoder) Fail(err error) []Frame {
	if d.finished {
		return nil
	}
	d.finished = true
	d.carry = nil
	d.logger.Warn("StreamDecoder", "Stream transport failed", map[string]interface{}{"error": err.Error()})
	return []Frame{Error(rag.Reason(rag.ErrStreamTransport))}
}

func (d *Decoder) parse(raw []byte) []Frame {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	var l line
	if err := json.Unmarshal(raw, &l); err != nil {
		d.logger.Debug("StreamDecoder", "Skipping malformed frame", map[string]interface{}{
			"error": err.Error(),
			"line":  truncate(string(raw), 120),
		})
		return nil
	}

	var frames []Frame
	if l.Response != "" {
		frames = append(frames, Token(l.Response))
	}
	switch {
	case l.Error != "":
		d.logger.Warn("StreamDecoder", "Backend reported an error", map[string]interface{}{"error": l.Error})
		d.finished = true
		frames = append(frames, Error(rag.Reason(rag.ErrGenerationFailure)))
	case l.Done:
		d.finished = true
		frames = append(frames, Done())
	}
	return frames
}

// DecodeAll decodes a complete NDJSON payload in one pass.
func DecodeAll(data []byte, logger rag.Logger) []Frame {
	d := NewDecoder(logger)
	frames := d.Push(data)
	return append(frames, d.End()...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
