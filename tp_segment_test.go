package someip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentMessage3000BytesProducesThreeSegments(t *testing.T) {
	payload := make([]byte, 3000)
	for i := range payload {
		payload[i] = byte(i)
	}
	msg := NewRequest(ServiceId(0x1234), MethodId(0x0001)).Payload(payload).Build()

	segments := SegmentMessage(msg, DefaultMaxSegmentPayload)
	require.Len(t, segments, 3)

	assert.Equal(t, uint32(0), segments[0].TpHeader.Offset)
	assert.True(t, segments[0].TpHeader.More)
	assert.Len(t, segments[0].Payload, 1392)

	assert.Equal(t, uint32(87), segments[1].TpHeader.Offset)
	assert.True(t, segments[1].TpHeader.More)
	assert.Len(t, segments[1].Payload, 1392)

	assert.Equal(t, uint32(174), segments[2].TpHeader.Offset)
	assert.False(t, segments[2].TpHeader.More)
	assert.Len(t, segments[2].Payload, 216)

	total := len(segments[0].Payload) + len(segments[1].Payload) + len(segments[2].Payload)
	assert.Equal(t, 3000, total)
}

func TestSegmentMessageFitsInOneSegmentReturnsNil(t *testing.T) {
	msg := NewRequest(ServiceId(0x1234), MethodId(0x0001)).Payload([]byte("short")).Build()
	assert.Nil(t, SegmentMessage(msg, DefaultMaxSegmentPayload))
}

func TestTpSegmentToBytesFromBytesRoundTrip(t *testing.T) {
	payload := make([]byte, 3000)
	msg := NewRequest(ServiceId(0x1234), MethodId(0x0001)).Payload(payload).Build()
	segments := SegmentMessage(msg, DefaultMaxSegmentPayload)
	require.Len(t, segments, 3)

	wire := segments[0].ToBytes()
	decoded, err := TpSegmentFromBytes(wire)
	require.NoError(t, err)
	assert.Equal(t, segments[0].TpHeader, decoded.TpHeader)
	assert.Equal(t, segments[0].Payload, decoded.Payload)
	assert.True(t, decoded.Header.MessageType.IsTp())
}

func TestTpReassemblerFeedReassemblesSegmentedMessage(t *testing.T) {
	payload := make([]byte, 3000)
	for i := range payload {
		payload[i] = byte(i % 256)
	}
	msg := NewRequest(ServiceId(0x1234), MethodId(0x0001)).
		ClientId(ClientId(0x0100)).SessionId(SessionId(0x0001)).
		Payload(payload).Build()
	segments := SegmentMessage(msg, DefaultMaxSegmentPayload)
	require.Len(t, segments, 3)

	reassembler := NewTpReassembler()
	var complete *Message
	for _, seg := range segments {
		m, err := reassembler.Feed(seg)
		require.NoError(t, err)
		if m != nil {
			complete = m
		}
	}
	require.NotNil(t, complete)
	assert.Equal(t, payload, complete.Payload)
	assert.Equal(t, MessageTypeRequest, complete.Header.MessageType)
	assert.Equal(t, 0, reassembler.ActiveContexts())
}

func TestTpReassemblerMaxContextsEvictsOldest(t *testing.T) {
	reassembler := NewTpReassemblerWithLimits(DefaultReassemblyTimeout, 2, 0)

	firstSeg := &TpSegment{
		Header:   Header{ServiceId: 0x1111, MethodId: 1, ClientId: 1, SessionId: 1, MessageType: MessageTypeRequest.ToTp()},
		TpHeader: TpHeader{Offset: 0, More: true},
		Payload:  []byte("a"),
	}
	_, err := reassembler.Feed(firstSeg)
	require.NoError(t, err)
	assert.Equal(t, 1, reassembler.ActiveContexts())

	secondSeg := &TpSegment{
		Header:   Header{ServiceId: 0x2222, MethodId: 1, ClientId: 1, SessionId: 1, MessageType: MessageTypeRequest.ToTp()},
		TpHeader: TpHeader{Offset: 0, More: true},
		Payload:  []byte("b"),
	}
	_, err = reassembler.Feed(secondSeg)
	require.NoError(t, err)
	assert.Equal(t, 2, reassembler.ActiveContexts())

	thirdSeg := &TpSegment{
		Header:   Header{ServiceId: 0x3333, MethodId: 1, ClientId: 1, SessionId: 1, MessageType: MessageTypeRequest.ToTp()},
		TpHeader: TpHeader{Offset: 0, More: true},
		Payload:  []byte("c"),
	}
	_, err = reassembler.Feed(thirdSeg)
	require.NoError(t, err)

	// The ceiling is 2 contexts; feeding a third must evict the oldest
	// (service 0x1111) rather than growing past the limit.
	assert.Equal(t, 2, reassembler.ActiveContexts())
}

func TestTpReassemblerMaxBytesEvictsOldest(t *testing.T) {
	reassembler := NewTpReassemblerWithLimits(DefaultReassemblyTimeout, 0, 10)

	firstSeg := &TpSegment{
		Header:   Header{ServiceId: 0x1111, MethodId: 1, ClientId: 1, SessionId: 1, MessageType: MessageTypeRequest.ToTp()},
		TpHeader: TpHeader{Offset: 0, More: true},
		Payload:  make([]byte, 8),
	}
	_, err := reassembler.Feed(firstSeg)
	require.NoError(t, err)
	assert.Equal(t, 1, reassembler.ActiveContexts())

	secondSeg := &TpSegment{
		Header:   Header{ServiceId: 0x2222, MethodId: 1, ClientId: 1, SessionId: 1, MessageType: MessageTypeRequest.ToTp()},
		TpHeader: TpHeader{Offset: 0, More: true},
		Payload:  make([]byte, 8),
	}
	_, err = reassembler.Feed(secondSeg)
	require.NoError(t, err)

	// 8+8 > 10 byte ceiling: the first context must have been evicted to
	// make room for the second.
	assert.Equal(t, 1, reassembler.ActiveContexts())
}

func TestTpReassemblerCleanupEvictsTimedOutContext(t *testing.T) {
	payload := make([]byte, 3000)
	msg := NewRequest(ServiceId(0x1234), MethodId(0x0001)).Payload(payload).Build()
	segments := SegmentMessage(msg, DefaultMaxSegmentPayload)
	require.Len(t, segments, 3)

	reassembler := NewTpReassemblerWithTimeout(0)
	_, err := reassembler.Feed(segments[0])
	require.NoError(t, err)
	assert.Equal(t, 1, reassembler.ActiveContexts())

	removed := reassembler.Cleanup()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, reassembler.ActiveContexts())
}
