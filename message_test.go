package someip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestResponseCorrelation(t *testing.T) {
	req := NewRequest(ServiceId(0x1234), MethodId(0x0001)).
		ClientId(ClientId(0x0100)).
		SessionId(SessionId(0x0001)).
		Payload([]byte("hello")).
		Build()

	resp := req.CreateResponse().Build()

	assert.Equal(t, req.Header.ServiceId, resp.Header.ServiceId)
	assert.Equal(t, req.Header.MethodId, resp.Header.MethodId)
	assert.Equal(t, req.Header.ClientId, resp.Header.ClientId)
	assert.Equal(t, req.Header.SessionId, resp.Header.SessionId)
	assert.Equal(t, MessageTypeResponse, resp.Header.MessageType)
	assert.Equal(t, ReturnCodeOk, resp.Header.ReturnCode)
	assert.Equal(t, req.RequestID(), resp.RequestID())
}

func TestMessageToBytesFromBytesRoundTrip(t *testing.T) {
	msg := NewRequest(ServiceId(0x1234), MethodId(0x0001)).
		ClientId(ClientId(0x0100)).
		SessionId(SessionId(0x0001)).
		Payload([]byte("hello")).
		Build()

	buf := msg.ToBytes()
	assert.Equal(t, HeaderSize+5, len(buf))

	decoded, err := MessageFromBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, msg.Header, decoded.Header)
	assert.Equal(t, msg.Payload, decoded.Payload)
}

func TestCreateErrorResponseCarriesReturnCode(t *testing.T) {
	req := NewRequest(ServiceId(0x1234), MethodId(0x0001)).Build()
	resp := req.CreateErrorResponse(ReturnCodeUnknownMethod).Build()

	assert.Equal(t, MessageTypeError, resp.Header.MessageType)
	assert.Equal(t, ReturnCodeUnknownMethod, resp.Header.ReturnCode)
}

func TestNewRequestNoReturnDoesNotExpectResponse(t *testing.T) {
	msg := NewRequestNoReturn(ServiceId(0x1234), MethodId(0x0001)).Build()
	assert.False(t, msg.ExpectsResponse())
}

func TestNewNotificationIsNotAResponse(t *testing.T) {
	msg := NewNotification(ServiceId(0x1234), MethodId(0x0001)).Build()
	assert.False(t, msg.IsResponse())
}

func TestMessageFromBytesRejectsLengthMismatch(t *testing.T) {
	msg := NewRequest(ServiceId(0x1234), MethodId(0x0001)).Payload([]byte("hello")).Build()
	buf := msg.ToBytes()

	_, err := MessageFromBytes(buf[:len(buf)-2])
	require.Error(t, err)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrKindLengthMismatch, perr.Kind)
}
