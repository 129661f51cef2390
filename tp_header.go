package someip

import "encoding/binary"

// TpHeaderSize is the size of the extra header SOME/IP-TP segments carry
// immediately after the 16-byte SOME/IP header.
const TpHeaderSize = 4

// TpHeader carries a segment's byte offset (in 16-byte units) and whether
// more segments follow.
type TpHeader struct {
	Offset uint32 // in 16-byte units; ByteOffset() converts to bytes
	More   bool
}

// ByteOffset returns the segment's offset in bytes.
func (h TpHeader) ByteOffset() uint32 {
	return h.Offset * 16
}

// EncodeTpHeader writes h's 4 bytes into buf: upper 28 bits offset, 3
// reserved bits, low bit the more-segments flag.
func EncodeTpHeader(h TpHeader, buf []byte) {
	_ = buf[:TpHeaderSize]
	value := h.Offset << 4
	if h.More {
		value |= 0x01
	}
	binary.BigEndian.PutUint32(buf, value)
}

// DecodeTpHeader parses a 4-byte SOME/IP-TP header.
func DecodeTpHeader(buf []byte) (TpHeader, error) {
	if len(buf) < TpHeaderSize {
		return TpHeader{}, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: TpHeaderSize, Actual: len(buf)}
	}
	value := binary.BigEndian.Uint32(buf)
	return TpHeader{
		Offset: value >> 4,
		More:   value&0x01 != 0,
	}, nil
}
