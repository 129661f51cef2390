package someip

import "fmt"

// ServiceId identifies a SOME/IP service.
type ServiceId uint16

// MethodId identifies a method or event within a service.
// Bit 15 set means the id addresses an event rather than a method.
type MethodId uint16

// ClientId identifies the client side of a request/response exchange.
type ClientId uint16

// SessionId is a per-client sequence number used to correlate requests
// with responses. Zero is reserved and never produced by ConnectionManager's
// session counter.
type SessionId uint16

// InstanceId identifies a specific instance of a service.
type InstanceId uint16

// EventgroupId identifies a set of events a client can subscribe to.
type EventgroupId uint16

// InstanceIdAny is the wildcard instance used in FindService entries.
const InstanceIdAny InstanceId = 0xFFFF

// ServiceDiscovery service/method ids: SD runs as an ordinary notification
// on this fixed (ServiceId, MethodId) pair.
const (
	SdServiceId ServiceId = 0xFFFF
	SdMethodId  MethodId  = 0x8100
)

// IsEvent reports whether m addresses an event rather than a method.
func (m MethodId) IsEvent() bool {
	return m&0x8000 != 0
}

// MessageID returns the 32-bit (ServiceId<<16)|MethodId identifier.
func MessageID(s ServiceId, m MethodId) uint32 {
	return uint32(s)<<16 | uint32(m)
}

// RequestID returns the 32-bit (ClientId<<16)|SessionId correlation key.
func RequestID(c ClientId, s SessionId) uint32 {
	return uint32(c)<<16 | uint32(s)
}

// ReturnCode reports the outcome of a request, carried in every response
// and error message.
type ReturnCode uint8

const (
	ReturnCodeOk                   ReturnCode = 0x00
	ReturnCodeNotOk                ReturnCode = 0x01
	ReturnCodeUnknownService       ReturnCode = 0x02
	ReturnCodeUnknownMethod        ReturnCode = 0x03
	ReturnCodeNotReady             ReturnCode = 0x04
	ReturnCodeNotReachable         ReturnCode = 0x05
	ReturnCodeTimeout              ReturnCode = 0x06
	ReturnCodeWrongProtocolVersion ReturnCode = 0x07
	ReturnCodeWrongInterfaceVer    ReturnCode = 0x08
	ReturnCodeMalformedMessage     ReturnCode = 0x09
	ReturnCodeWrongMessageType     ReturnCode = 0x0A
	ReturnCodeE2ERepeated          ReturnCode = 0x0B
	ReturnCodeE2EWrongSequence     ReturnCode = 0x0C
	ReturnCodeE2E                  ReturnCode = 0x0D
	ReturnCodeE2ENotAvailable      ReturnCode = 0x0E
	ReturnCodeE2ENoNewData         ReturnCode = 0x0F
)

var returnCodeNames = map[ReturnCode]string{
	ReturnCodeOk:                   "Ok",
	ReturnCodeNotOk:                "NotOk",
	ReturnCodeUnknownService:       "UnknownService",
	ReturnCodeUnknownMethod:        "UnknownMethod",
	ReturnCodeNotReady:             "NotReady",
	ReturnCodeNotReachable:         "NotReachable",
	ReturnCodeTimeout:              "Timeout",
	ReturnCodeWrongProtocolVersion: "WrongProtocolVersion",
	ReturnCodeWrongInterfaceVer:    "WrongInterfaceVersion",
	ReturnCodeMalformedMessage:     "MalformedMessage",
	ReturnCodeWrongMessageType:     "WrongMessageType",
	ReturnCodeE2ERepeated:          "E2ERepeated",
	ReturnCodeE2EWrongSequence:     "E2EWrongSequence",
	ReturnCodeE2E:                  "E2E",
	ReturnCodeE2ENotAvailable:      "E2ENotAvailable",
	ReturnCodeE2ENoNewData:         "E2ENoNewData",
}

func (rc ReturnCode) String() string {
	if name, ok := returnCodeNames[rc]; ok {
		return name
	}
	return fmt.Sprintf("ReturnCode(0x%02X)", uint8(rc))
}

// Valid reports whether rc is one of the sixteen defined return codes.
func (rc ReturnCode) Valid() bool {
	_, ok := returnCodeNames[rc]
	return ok
}

// MessageType distinguishes requests, responses, notifications and their
// SOME/IP-TP segmented counterparts.
type MessageType uint8

const (
	MessageTypeRequest           MessageType = 0x00
	MessageTypeRequestNoReturn   MessageType = 0x01
	MessageTypeNotification      MessageType = 0x02
	MessageTypeResponse          MessageType = 0x80
	MessageTypeError             MessageType = 0x81
	MessageTypeTpRequest         MessageType = 0x20
	MessageTypeTpRequestNoReturn MessageType = 0x21
	MessageTypeTpNotification    MessageType = 0x22
	MessageTypeTpResponse        MessageType = 0xA0
	MessageTypeTpError           MessageType = 0xA1
)

const tpBit = 0x20

var messageTypeNames = map[MessageType]string{
	MessageTypeRequest:           "Request",
	MessageTypeRequestNoReturn:   "RequestNoReturn",
	MessageTypeNotification:      "Notification",
	MessageTypeResponse:          "Response",
	MessageTypeError:             "Error",
	MessageTypeTpRequest:         "TpRequest",
	MessageTypeTpRequestNoReturn: "TpRequestNoReturn",
	MessageTypeTpNotification:    "TpNotification",
	MessageTypeTpResponse:        "TpResponse",
	MessageTypeTpError:           "TpError",
}

// toTpTable and toBaseTable implement the TP/base mapping by lookup, as
// required instead of toggling bit 0x20 in exported code.
var toTpTable = map[MessageType]MessageType{
	MessageTypeRequest:         MessageTypeTpRequest,
	MessageTypeRequestNoReturn: MessageTypeTpRequestNoReturn,
	MessageTypeNotification:    MessageTypeTpNotification,
	MessageTypeResponse:        MessageTypeTpResponse,
	MessageTypeError:           MessageTypeTpError,
}

var toBaseTable = map[MessageType]MessageType{
	MessageTypeTpRequest:         MessageTypeRequest,
	MessageTypeTpRequestNoReturn: MessageTypeRequestNoReturn,
	MessageTypeTpNotification:    MessageTypeNotification,
	MessageTypeTpResponse:        MessageTypeResponse,
	MessageTypeTpError:           MessageTypeError,
}

var expectsResponseTable = map[MessageType]bool{
	MessageTypeRequest:   true,
	MessageTypeTpRequest: true,
}

var isResponseTable = map[MessageType]bool{
	MessageTypeResponse:   true,
	MessageTypeError:      true,
	MessageTypeTpResponse: true,
	MessageTypeTpError:    true,
}

func (mt MessageType) String() string {
	if name, ok := messageTypeNames[mt]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(0x%02X)", uint8(mt))
}

// Valid reports whether mt is one of the ten defined message types.
func (mt MessageType) Valid() bool {
	_, ok := messageTypeNames[mt]
	return ok
}

// IsTp reports whether mt is one of the five SOME/IP-TP variants.
func (mt MessageType) IsTp() bool {
	_, ok := toBaseTable[mt]
	return ok
}

// ToTp returns the TP-segmented form of mt. If mt has no TP form (it
// already is one, or is not a recognized base type), mt is returned
// unchanged.
func (mt MessageType) ToTp() MessageType {
	if tp, ok := toTpTable[mt]; ok {
		return tp
	}
	return mt
}

// ToBase returns the non-segmented form of mt. If mt is not a TP variant,
// mt is returned unchanged.
func (mt MessageType) ToBase() MessageType {
	if base, ok := toBaseTable[mt]; ok {
		return base
	}
	return mt
}

// ExpectsResponse reports whether a message of this type requires the
// receiver to send back a Response or Error.
func (mt MessageType) ExpectsResponse() bool {
	return expectsResponseTable[mt]
}

// IsResponse reports whether mt is a Response, Error, or their TP variants.
func (mt MessageType) IsResponse() bool {
	return isResponseTable[mt]
}
