package someip

import (
	"fmt"
	"net"
)

// SdMulticastAddr is the default SOME/IP-SD multicast group.
var SdMulticastAddr = net.IPv4(224, 224, 224, 245)

// SdDefaultPort is the default UDP port SOME/IP-SD runs on.
const SdDefaultPort = 30490

// SdEntrySize is the fixed wire size of a single SD entry.
const SdEntrySize = 16

// SdOptionHeaderSize is the fixed size of an SD option's length+type header.
const SdOptionHeaderSize = 4

// EntryType distinguishes the four SD entry kinds.
type EntryType uint8

const (
	EntryTypeFindService           EntryType = 0x00
	EntryTypeOfferService          EntryType = 0x01
	EntryTypeSubscribeEventgroup   EntryType = 0x06
	EntryTypeSubscribeEventgroupAck EntryType = 0x07
)

var entryTypeNames = map[EntryType]string{
	EntryTypeFindService:            "FindService",
	EntryTypeOfferService:           "OfferService",
	EntryTypeSubscribeEventgroup:    "SubscribeEventgroup",
	EntryTypeSubscribeEventgroupAck: "SubscribeEventgroupAck",
}

func (t EntryType) String() string {
	if name, ok := entryTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EntryType(0x%02X)", uint8(t))
}

// Valid reports whether t is one of the four defined entry types.
func (t EntryType) Valid() bool {
	_, ok := entryTypeNames[t]
	return ok
}

// IsServiceEntry reports whether t is FindService or OfferService.
func (t EntryType) IsServiceEntry() bool {
	return t == EntryTypeFindService || t == EntryTypeOfferService
}

// IsEventgroupEntry reports whether t is SubscribeEventgroup or its ack.
func (t EntryType) IsEventgroupEntry() bool {
	return t == EntryTypeSubscribeEventgroup || t == EntryTypeSubscribeEventgroupAck
}

// OptionType distinguishes the eight SD option kinds.
type OptionType uint8

const (
	OptionTypeConfiguration OptionType = 0x01
	OptionTypeLoadBalancing OptionType = 0x02
	OptionTypeIPv4Endpoint  OptionType = 0x04
	OptionTypeIPv6Endpoint  OptionType = 0x06
	OptionTypeIPv4Multicast OptionType = 0x14
	OptionTypeIPv6Multicast OptionType = 0x16
	OptionTypeIPv4SdEndpoint OptionType = 0x24
	OptionTypeIPv6SdEndpoint OptionType = 0x26
)

var optionTypeNames = map[OptionType]string{
	OptionTypeConfiguration:  "Configuration",
	OptionTypeLoadBalancing:  "LoadBalancing",
	OptionTypeIPv4Endpoint:   "IPv4Endpoint",
	OptionTypeIPv6Endpoint:   "IPv6Endpoint",
	OptionTypeIPv4Multicast:  "IPv4Multicast",
	OptionTypeIPv6Multicast:  "IPv6Multicast",
	OptionTypeIPv4SdEndpoint: "IPv4SdEndpoint",
	OptionTypeIPv6SdEndpoint: "IPv6SdEndpoint",
}

func (t OptionType) String() string {
	if name, ok := optionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("OptionType(0x%02X)", uint8(t))
}

// Valid reports whether t is one of the eight defined option types.
func (t OptionType) Valid() bool {
	_, ok := optionTypeNames[t]
	return ok
}

// IsIPv4 reports whether t carries an IPv4 address.
func (t OptionType) IsIPv4() bool {
	return t == OptionTypeIPv4Endpoint || t == OptionTypeIPv4Multicast || t == OptionTypeIPv4SdEndpoint
}

// IsIPv6 reports whether t carries an IPv6 address.
func (t OptionType) IsIPv6() bool {
	return t == OptionTypeIPv6Endpoint || t == OptionTypeIPv6Multicast || t == OptionTypeIPv6SdEndpoint
}

// TransportProtocol identifies the L4 protocol an endpoint option describes.
type TransportProtocol uint8

const (
	TransportProtocolTcp TransportProtocol = 0x06
	TransportProtocolUdp TransportProtocol = 0x11
)

func (p TransportProtocol) String() string {
	switch p {
	case TransportProtocolTcp:
		return "Tcp"
	case TransportProtocolUdp:
		return "Udp"
	default:
		return fmt.Sprintf("TransportProtocol(0x%02X)", uint8(p))
	}
}

// Valid reports whether p is Tcp or Udp.
func (p TransportProtocol) Valid() bool {
	return p == TransportProtocolTcp || p == TransportProtocolUdp
}
