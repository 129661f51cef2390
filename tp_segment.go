package someip

// DefaultMaxSegmentPayload is the largest multiple of 16 not exceeding a
// conservative 1400-byte MTU budget.
const DefaultMaxSegmentPayload = 1392

// TpSegment is one SOME/IP-TP wire segment: a SOME/IP header (with a TP
// MessageType), a TP header, and a slice of the original payload.
type TpSegment struct {
	Header   Header
	TpHeader TpHeader
	Payload  []byte
}

// ToBytes encodes the segment to its wire representation.
func (s *TpSegment) ToBytes() []byte {
	buf := make([]byte, HeaderSize+TpHeaderSize+len(s.Payload))
	h := s.Header
	h.Length = uint32(8 + TpHeaderSize + len(s.Payload))
	EncodeHeader(h, buf[:HeaderSize])
	EncodeTpHeader(s.TpHeader, buf[HeaderSize:HeaderSize+TpHeaderSize])
	copy(buf[HeaderSize+TpHeaderSize:], s.Payload)
	return buf
}

// TpSegmentFromBytes decodes one TP segment from buf.
func TpSegmentFromBytes(buf []byte) (*TpSegment, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if !h.MessageType.IsTp() {
		return nil, &ProtocolError{Kind: ErrKindInvalidHeader, Reason: "message is not a SOME/IP-TP segment"}
	}
	want := HeaderSize + int(h.PayloadLength())
	if len(buf) < want || h.PayloadLength() < TpHeaderSize {
		return nil, &ProtocolError{Kind: ErrKindLengthMismatch, Expected: want, Actual: len(buf)}
	}
	tp, err := DecodeTpHeader(buf[HeaderSize : HeaderSize+TpHeaderSize])
	if err != nil {
		return nil, err
	}
	payload := make([]byte, want-HeaderSize-TpHeaderSize)
	copy(payload, buf[HeaderSize+TpHeaderSize:want])
	return &TpSegment{Header: h, TpHeader: tp, Payload: payload}, nil
}

// SegmentMessage splits m's payload into TP segments of at most
// maxSegmentPayload bytes each. It returns nil if the payload already fits
// in a single segment, signaling the caller should send m unsegmented.
func SegmentMessage(m *Message, maxSegmentPayload int) []*TpSegment {
	if maxSegmentPayload <= 0 {
		maxSegmentPayload = DefaultMaxSegmentPayload
	}
	payload := m.Payload
	if len(payload) <= maxSegmentPayload {
		return nil
	}

	tpType := m.Header.MessageType.ToTp()
	count := (len(payload) + maxSegmentPayload - 1) / maxSegmentPayload
	segments := make([]*TpSegment, 0, count)

	for i := 0; i < count; i++ {
		start := i * maxSegmentPayload
		end := start + maxSegmentPayload
		if end > len(payload) {
			end = len(payload)
		}
		h := m.Header
		h.MessageType = tpType
		segments = append(segments, &TpSegment{
			Header: h,
			TpHeader: TpHeader{
				Offset: uint32(start / 16),
				More:   i < count-1,
			},
			Payload: payload[start:end],
		})
	}
	return segments
}
