package someip

import "encoding/binary"

// HeaderSize is the fixed, on-wire size of a SOME/IP header.
const HeaderSize = 16

// ProtocolVersion is the only protocol version this implementation decodes.
const ProtocolVersion uint8 = 0x01

// Header is the fixed 16-byte prefix of every SOME/IP message.
type Header struct {
	ServiceId       ServiceId
	MethodId        MethodId
	Length          uint32
	ClientId        ClientId
	SessionId       SessionId
	ProtocolVersion uint8
	InterfaceVersion uint8
	MessageType     MessageType
	ReturnCode      ReturnCode
}

// MessageID returns (ServiceId<<16)|MethodId for this header.
func (h Header) MessageID() uint32 {
	return MessageID(h.ServiceId, h.MethodId)
}

// RequestID returns (ClientId<<16)|SessionId for this header.
func (h Header) RequestID() uint32 {
	return RequestID(h.ClientId, h.SessionId)
}

// PayloadLength returns the number of payload bytes implied by Length,
// saturating at zero if Length is smaller than the minimum of 8.
func (h Header) PayloadLength() uint32 {
	if h.Length < 8 {
		return 0
	}
	return h.Length - 8
}

// EncodeHeader writes h's 16 bytes in big-endian wire order into buf, which
// must be at least HeaderSize long.
func EncodeHeader(h Header, buf []byte) {
	_ = buf[:HeaderSize]
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.ServiceId))
	binary.BigEndian.PutUint16(buf[2:4], uint16(h.MethodId))
	binary.BigEndian.PutUint32(buf[4:8], h.Length)
	binary.BigEndian.PutUint16(buf[8:10], uint16(h.ClientId))
	binary.BigEndian.PutUint16(buf[10:12], uint16(h.SessionId))
	buf[12] = h.ProtocolVersion
	buf[13] = h.InterfaceVersion
	buf[14] = uint8(h.MessageType)
	buf[15] = uint8(h.ReturnCode)
}

// DecodeHeader parses a 16-byte SOME/IP header from buf. It validates the
// protocol version and that MessageType/ReturnCode are recognized values,
// but it never validates Length against the size of any payload buffer —
// that is the message codec's responsibility.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: HeaderSize, Actual: len(buf)}
	}
	h := Header{
		ServiceId:        ServiceId(binary.BigEndian.Uint16(buf[0:2])),
		MethodId:         MethodId(binary.BigEndian.Uint16(buf[2:4])),
		Length:           binary.BigEndian.Uint32(buf[4:8]),
		ClientId:         ClientId(binary.BigEndian.Uint16(buf[8:10])),
		SessionId:        SessionId(binary.BigEndian.Uint16(buf[10:12])),
		ProtocolVersion:  buf[12],
		InterfaceVersion: buf[13],
		MessageType:      MessageType(buf[14]),
		ReturnCode:       ReturnCode(buf[15]),
	}
	if h.ProtocolVersion != ProtocolVersion {
		return Header{}, &ProtocolError{Kind: ErrKindWrongProtocolVersion, Byte: h.ProtocolVersion}
	}
	if !h.MessageType.Valid() {
		return Header{}, &ProtocolError{Kind: ErrKindUnknownMessageType, Byte: uint8(h.MessageType)}
	}
	if !h.ReturnCode.Valid() {
		return Header{}, &ProtocolError{Kind: ErrKindUnknownReturnCode, Byte: uint8(h.ReturnCode)}
	}
	return h, nil
}
