package someip

import (
	"encoding/binary"
	"fmt"
	"net"
)

// EndpointOption is an IPv4 or IPv6 endpoint/multicast option: address,
// transport protocol and port.
type EndpointOption struct {
	Address  net.IP
	Protocol TransportProtocol
	Port     uint16
}

const ipv4EndpointDataSize = 9
const ipv6EndpointDataSize = 21

func (o EndpointOption) isV4() bool {
	return o.Address.To4() != nil
}

// ToBytes serializes the option's data (excluding the 4-byte option header).
func (o EndpointOption) ToBytes() []byte {
	if o.isV4() {
		buf := make([]byte, ipv4EndpointDataSize)
		copy(buf[0:4], o.Address.To4())
		buf[4] = 0
		buf[5] = uint8(o.Protocol)
		binary.BigEndian.PutUint16(buf[6:8], o.Port)
		buf[8] = 0
		return buf
	}
	buf := make([]byte, ipv6EndpointDataSize)
	copy(buf[0:16], o.Address.To16())
	buf[16] = 0
	buf[17] = uint8(o.Protocol)
	binary.BigEndian.PutUint16(buf[18:20], o.Port)
	buf[20] = 0
	return buf
}

func ipv4EndpointFromBytes(data []byte) (EndpointOption, error) {
	if len(data) < ipv4EndpointDataSize {
		return EndpointOption{}, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: ipv4EndpointDataSize, Actual: len(data)}
	}
	proto := TransportProtocol(data[5])
	if !proto.Valid() {
		return EndpointOption{}, &ProtocolError{Kind: ErrKindInvalidHeader, Reason: fmt.Sprintf("unknown transport protocol 0x%02X", data[5])}
	}
	return EndpointOption{
		Address:  net.IPv4(data[0], data[1], data[2], data[3]),
		Protocol: proto,
		Port:     binary.BigEndian.Uint16(data[6:8]),
	}, nil
}

func ipv6EndpointFromBytes(data []byte) (EndpointOption, error) {
	if len(data) < ipv6EndpointDataSize {
		return EndpointOption{}, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: ipv6EndpointDataSize, Actual: len(data)}
	}
	proto := TransportProtocol(data[17])
	if !proto.Valid() {
		return EndpointOption{}, &ProtocolError{Kind: ErrKindInvalidHeader, Reason: fmt.Sprintf("unknown transport protocol 0x%02X", data[17])}
	}
	addr := make(net.IP, 16)
	copy(addr, data[0:16])
	return EndpointOption{
		Address:  addr,
		Protocol: proto,
		Port:     binary.BigEndian.Uint16(data[18:20]),
	}, nil
}

// ConfigurationOption carries an opaque configuration string, typically
// "key=value" pairs the service discovery layer does not interpret.
type ConfigurationOption struct {
	ConfigString string
}

// ToBytes returns the option's data bytes (excluding the option header).
func (o ConfigurationOption) ToBytes() []byte {
	return []byte(o.ConfigString)
}

// SdOption is one SD option entry. Exactly one field is set, chosen by
// Type; Unknown preserves option types this implementation does not model
// so the message round-trips losslessly.
type SdOption struct {
	Type          OptionType
	Endpoint      *EndpointOption
	Configuration *ConfigurationOption
	UnknownType   uint8
	UnknownData   []byte
	isUnknown     bool
}

// IsUnknown reports whether this option carries raw, unmodeled option data.
func (o SdOption) IsUnknown() bool {
	return o.isUnknown
}

// SdOptionFromBytes parses one option, including its 4-byte header, from
// the front of data. It returns the option and the number of bytes it
// consumed.
func SdOptionFromBytes(data []byte) (SdOption, int, error) {
	if len(data) < SdOptionHeaderSize {
		return SdOption{}, 0, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: SdOptionHeaderSize, Actual: len(data)}
	}
	length := int(binary.BigEndian.Uint16(data[0:2]))
	typeByte := data[2]
	total := SdOptionHeaderSize + length
	if len(data) < total {
		return SdOption{}, 0, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: total, Actual: len(data)}
	}
	body := data[SdOptionHeaderSize:total]

	t := OptionType(typeByte)
	switch t {
	case OptionTypeIPv4Endpoint, OptionTypeIPv4Multicast:
		ep, err := ipv4EndpointFromBytes(body)
		if err != nil {
			return SdOption{}, 0, err
		}
		return SdOption{Type: t, Endpoint: &ep}, total, nil
	case OptionTypeIPv6Endpoint, OptionTypeIPv6Multicast:
		ep, err := ipv6EndpointFromBytes(body)
		if err != nil {
			return SdOption{}, 0, err
		}
		return SdOption{Type: t, Endpoint: &ep}, total, nil
	case OptionTypeConfiguration:
		cfg := ConfigurationOption{ConfigString: string(body)}
		return SdOption{Type: t, Configuration: &cfg}, total, nil
	default:
		raw := make([]byte, len(body))
		copy(raw, body)
		return SdOption{Type: t, UnknownType: typeByte, UnknownData: raw, isUnknown: true}, total, nil
	}
}

// ToBytes serializes the option including its 4-byte header.
func (o SdOption) ToBytes() []byte {
	var typeByte uint8
	var data []byte
	switch {
	case o.isUnknown:
		typeByte = o.UnknownType
		data = o.UnknownData
	case o.Endpoint != nil:
		typeByte = uint8(o.Type)
		data = o.Endpoint.ToBytes()
	case o.Configuration != nil:
		typeByte = uint8(o.Type)
		data = o.Configuration.ToBytes()
	}
	buf := make([]byte, SdOptionHeaderSize+len(data))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(data)))
	buf[2] = typeByte
	buf[3] = 0
	copy(buf[SdOptionHeaderSize:], data)
	return buf
}

// NetEndpoint describes a reachable service address: a socket address and the
// transport protocol used to reach it.
type NetEndpoint struct {
	Address  *net.UDPAddr // holds IP+Port regardless of protocol
	Protocol TransportProtocol
}

// TcpEndpoint builds a TCP NetEndpoint.
func TcpEndpoint(ip net.IP, port uint16) NetEndpoint {
	return NetEndpoint{Address: &net.UDPAddr{IP: ip, Port: int(port)}, Protocol: TransportProtocolTcp}
}

// UdpEndpoint builds a UDP NetEndpoint.
func UdpEndpoint(ip net.IP, port uint16) NetEndpoint {
	return NetEndpoint{Address: &net.UDPAddr{IP: ip, Port: int(port)}, Protocol: TransportProtocolUdp}
}

func (e NetEndpoint) String() string {
	proto := "tcp"
	if e.Protocol == TransportProtocolUdp {
		proto = "udp"
	}
	return fmt.Sprintf("%s://%s", proto, e.Address.String())
}

// ToOption converts the endpoint to an IPv4Endpoint or IPv6Endpoint SdOption.
func (e NetEndpoint) ToOption() SdOption {
	ep := EndpointOption{Address: e.Address.IP, Protocol: e.Protocol, Port: uint16(e.Address.Port)}
	t := OptionTypeIPv4Endpoint
	if ep.Address.To4() == nil {
		t = OptionTypeIPv6Endpoint
	}
	return SdOption{Type: t, Endpoint: &ep}
}

// EndpointFromOption converts an endpoint-carrying SdOption back to a
// NetEndpoint. It returns ok=false for options that carry no endpoint.
func EndpointFromOption(o SdOption) (NetEndpoint, bool) {
	if o.Endpoint == nil {
		return NetEndpoint{}, false
	}
	return NetEndpoint{
		Address:  &net.UDPAddr{IP: o.Endpoint.Address, Port: int(o.Endpoint.Port)},
		Protocol: o.Endpoint.Protocol,
	}, true
}
