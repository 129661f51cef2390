package someip

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferServiceMessageRoundTripAndEndpointResolution(t *testing.T) {
	endpoint := TcpEndpoint(net.IPv4(127, 0, 0, 1), 30500)
	msg := OfferServiceMessage(ServiceId(0x1234), InstanceId(0x0001), 1, 0, 10, endpoint)

	wire := msg.ToBytes()
	decoded, err := SdMessageFromBytes(wire)
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 1)
	require.Len(t, decoded.Options, 1)

	assert.True(t, decoded.IsOfferService())
	assert.False(t, decoded.IsFindService())
	assert.False(t, decoded.IsStopOfferService())

	endpoints := decoded.EndpointsForEntry(decoded.Entries[0])
	require.Len(t, endpoints, 1)
	assert.Equal(t, endpoint.Protocol, endpoints[0].Protocol)
	assert.Equal(t, uint16(30500), uint16(endpoints[0].Address.Port))
	assert.True(t, endpoints[0].Address.IP.Equal(net.IPv4(127, 0, 0, 1)))
}

func TestStopOfferServiceMessageHasZeroTtl(t *testing.T) {
	msg := StopOfferServiceMessage(ServiceId(0x1234), InstanceId(0x0001), 1, 0)
	decoded, err := SdMessageFromBytes(msg.ToBytes())
	require.NoError(t, err)
	assert.True(t, decoded.IsStopOfferService())
	assert.False(t, decoded.IsOfferService())
}

func TestFindServiceMessageRoundTrip(t *testing.T) {
	msg := FindServiceMessage(ServiceId(0x1234), InstanceIdAny, 0xFF, 0xFFFFFFFF)
	decoded, err := SdMessageFromBytes(msg.ToBytes())
	require.NoError(t, err)
	assert.True(t, decoded.IsFindService())
	assert.Empty(t, decoded.Options)
}

func TestSubscribeEventgroupAckMessageWithoutMulticast(t *testing.T) {
	msg := SubscribeEventgroupAckMessage(ServiceId(0x1234), InstanceId(0x0001), 1, EventgroupId(0x0001), 30, 1, nil)
	decoded, err := SdMessageFromBytes(msg.ToBytes())
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 1)
	assert.Empty(t, decoded.Options)
	assert.Empty(t, decoded.EndpointsForEntry(decoded.Entries[0]))
}

func TestSdFlagsToByteFromByteRoundTrip(t *testing.T) {
	flags := SdFlags{Reboot: true, Unicast: false, ExplicitInitialData: true}
	decoded := SdFlagsFromByte(flags.ToByte())
	assert.Equal(t, flags, decoded)
}

func TestToSomeIpMessageAddressesSdServiceAndMethod(t *testing.T) {
	msg := FindServiceMessage(ServiceId(0x1234), InstanceIdAny, 0xFF, 0xFFFFFFFF)
	wrapped := msg.ToSomeIpMessage()
	assert.Equal(t, SdServiceId, wrapped.Header.ServiceId)
	assert.Equal(t, SdMethodId, wrapped.Header.MethodId)

	decoded, err := SdMessageFromSomeIpMessage(wrapped)
	require.NoError(t, err)
	assert.True(t, decoded.IsFindService())
}
