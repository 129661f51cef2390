package someip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHeaderLiteralBytes(t *testing.T) {
	h := Header{
		ServiceId:        ServiceId(0x1234),
		MethodId:         MethodId(0x5678),
		Length:           8,
		ClientId:         ClientId(0xABCD),
		SessionId:        SessionId(0xEF01),
		ProtocolVersion:  0x01,
		InterfaceVersion: 2,
		MessageType:      MessageTypeRequest,
		ReturnCode:       ReturnCodeOk,
	}
	buf := make([]byte, HeaderSize)
	EncodeHeader(h, buf)

	want := []byte{0x12, 0x34, 0x56, 0x78, 0x00, 0x00, 0x00, 0x08, 0xAB, 0xCD, 0xEF, 0x01, 0x01, 0x02, 0x00, 0x00}
	assert.Equal(t, want, buf)
}

func TestDecodeHeaderRoundTrip(t *testing.T) {
	want := []byte{0x12, 0x34, 0x56, 0x78, 0x00, 0x00, 0x00, 0x08, 0xAB, 0xCD, 0xEF, 0x01, 0x01, 0x02, 0x00, 0x00}
	h, err := DecodeHeader(want)
	require.NoError(t, err)

	assert.Equal(t, ServiceId(0x1234), h.ServiceId)
	assert.Equal(t, MethodId(0x5678), h.MethodId)
	assert.Equal(t, uint32(8), h.Length)
	assert.Equal(t, ClientId(0xABCD), h.ClientId)
	assert.Equal(t, SessionId(0xEF01), h.SessionId)
	assert.Equal(t, uint8(0x01), h.ProtocolVersion)
	assert.Equal(t, uint8(2), h.InterfaceVersion)
	assert.Equal(t, MessageTypeRequest, h.MessageType)
	assert.Equal(t, ReturnCodeOk, h.ReturnCode)

	buf := make([]byte, HeaderSize)
	EncodeHeader(h, buf)
	assert.Equal(t, want, buf)
}

func TestDecodeHeaderWrongProtocolVersion(t *testing.T) {
	buf := []byte{0x12, 0x34, 0x56, 0x78, 0x00, 0x00, 0x00, 0x08, 0xAB, 0xCD, 0xEF, 0x01, 0x02, 0x02, 0x00, 0x00}
	_, err := DecodeHeader(buf)
	require.Error(t, err)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrKindWrongProtocolVersion, perr.Kind)
}

func TestDecodeHeaderTooShort(t *testing.T) {
	_, err := DecodeHeader(make([]byte, 4))
	require.Error(t, err)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrKindMessageTooShort, perr.Kind)
}

func TestMessageIDAndRequestID(t *testing.T) {
	h := Header{ServiceId: 0x1234, MethodId: 0x5678, ClientId: 0xABCD, SessionId: 0xEF01}
	assert.Equal(t, uint32(0x12345678), h.MessageID())
	assert.Equal(t, uint32(0xABCDEF01), h.RequestID())
}

func TestPayloadLengthSaturatesAtZero(t *testing.T) {
	h := Header{Length: 3}
	assert.Equal(t, uint32(0), h.PayloadLength())
}
