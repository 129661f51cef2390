package someip

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMessageThenReadMessage(t *testing.T) {
	msg := NewRequest(ServiceId(0x1234), MethodId(0x0001)).Payload([]byte("hello")).Build()

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg))

	decoded, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg.Header, decoded.Header)
	assert.Equal(t, msg.Payload, decoded.Payload)
}

func TestFramedReaderAcrossPartialFeeds(t *testing.T) {
	msg := NewRequest(ServiceId(0x1234), MethodId(0x0001)).Payload([]byte("hello")).Build()
	wire := msg.ToBytes()

	var reader FramedReader
	_, _, ok := reader.TryParse()
	assert.False(t, ok, "no bytes fed yet")

	reader.Feed(wire[:5])
	_, _, ok = reader.TryParse()
	assert.False(t, ok, "header incomplete")

	reader.Feed(wire[5:])
	decoded, err, ok := reader.TryParse()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, msg.Payload, decoded.Payload)
}

func TestFramedReaderParseAllHandlesTwoMessages(t *testing.T) {
	m1 := NewRequest(ServiceId(0x1111), MethodId(0x0001)).Payload([]byte("a")).Build()
	m2 := NewRequest(ServiceId(0x2222), MethodId(0x0002)).Payload([]byte("bb")).Build()

	var reader FramedReader
	reader.Feed(m1.ToBytes())
	reader.Feed(m2.ToBytes())

	msgs, err := reader.ParseAll()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, ServiceId(0x1111), msgs[0].Header.ServiceId)
	assert.Equal(t, ServiceId(0x2222), msgs[1].Header.ServiceId)
}

func TestFramedReaderSurfacesDecodeError(t *testing.T) {
	bad := make([]byte, HeaderSize)
	bad[12] = 0x02 // wrong protocol version

	var reader FramedReader
	reader.Feed(bad)
	_, err, ok := reader.TryParse()
	assert.True(t, ok)
	assert.Error(t, err)
}
