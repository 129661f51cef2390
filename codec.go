package someip

import (
	"io"
)

// FramedReader is a stateful byte accumulator that yields complete
// messages from a stream of arbitrarily chunked reads. It never blocks and
// never fails on Feed; decode errors surface only from TryParse, and are
// fatal to the stream (callers must drop the connection on error).
type FramedReader struct {
	buf   []byte
	start int
}

// Feed appends b to the reader's internal buffer.
func (r *FramedReader) Feed(b []byte) {
	r.buf = append(r.buf, b...)
}

// TryParse attempts to decode exactly one message from the buffered bytes.
// It returns (nil, nil, false) when more bytes are needed.
func (r *FramedReader) TryParse() (*Message, error, bool) {
	avail := r.buf[r.start:]
	if len(avail) < HeaderSize {
		r.compact()
		return nil, nil, false
	}
	h, err := DecodeHeader(avail[:HeaderSize])
	if err != nil {
		return nil, err, true
	}
	total := HeaderSize + int(h.PayloadLength())
	if len(avail) < total {
		r.compact()
		return nil, nil, false
	}
	msg, err := MessageFromBytes(avail[:total])
	if err != nil {
		return nil, err, true
	}
	r.start += total
	r.compact()
	return msg, nil, true
}

// ParseAll repeatedly calls TryParse until no further message is available,
// returning every decoded message. It stops and returns the error at the
// first decode failure, along with whatever messages decoded successfully
// before it.
func (r *FramedReader) ParseAll() ([]*Message, error) {
	var out []*Message
	for {
		msg, err, ok := r.TryParse()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, msg)
	}
}

// compact discards already-consumed bytes once the read cursor passes
// halfway through the buffer. This never changes observable behavior.
func (r *FramedReader) compact() {
	if r.start == 0 || r.start < len(r.buf)/2 {
		return
	}
	n := copy(r.buf, r.buf[r.start:])
	r.buf = r.buf[:n]
	r.start = 0
}

// ReadMessage reads exactly one SOME/IP message from r: the fixed 16-byte
// header, then the payload length it declares.
func ReadMessage(r io.Reader) (*Message, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}
	h, err := DecodeHeader(hdr)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, h.PayloadLength())
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return &Message{Header: h, Payload: payload}, nil
}

// WriteMessage writes m to w as a single framed message.
func WriteMessage(w io.Writer, m *Message) error {
	_, err := w.Write(m.ToBytes())
	return err
}
