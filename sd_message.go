package someip

import "encoding/binary"

// SdFlags carries the three defined flag bits of an SD message header.
type SdFlags struct {
	Reboot              bool
	Unicast             bool
	ExplicitInitialData bool
}

// ToByte packs the flags into their wire byte.
func (f SdFlags) ToByte() uint8 {
	var b uint8
	if f.Reboot {
		b |= 0x80
	}
	if f.Unicast {
		b |= 0x40
	}
	if f.ExplicitInitialData {
		b |= 0x20
	}
	return b
}

// SdFlagsFromByte unpacks the three defined flag bits.
func SdFlagsFromByte(b uint8) SdFlags {
	return SdFlags{
		Reboot:              b&0x80 != 0,
		Unicast:             b&0x40 != 0,
		ExplicitInitialData: b&0x20 != 0,
	}
}

// SdMessage is the flags+entries+options envelope carried as the payload
// of every SOME/IP-SD notification.
type SdMessage struct {
	Flags   SdFlags
	Entries []SdEntry
	Options []SdOption
}

// FindServiceMessage builds a one-entry FindService SD message.
func FindServiceMessage(service ServiceId, instance InstanceId, major uint8, minor uint32) *SdMessage {
	e := FindServiceEntry(service, instance, major, minor)
	return &SdMessage{Entries: []SdEntry{{Service: &e}}}
}

// OfferServiceMessage builds a one-entry OfferService SD message with a
// single endpoint option attached to the entry's first option run.
func OfferServiceMessage(service ServiceId, instance InstanceId, major uint8, minor uint32, ttl uint32, endpoint NetEndpoint) *SdMessage {
	e := OfferServiceEntry(service, instance, major, minor, ttl)
	e.NumOptions1 = 1
	return &SdMessage{Entries: []SdEntry{{Service: &e}}, Options: []SdOption{endpoint.ToOption()}}
}

// StopOfferServiceMessage builds a one-entry OfferService SD message with
// TTL=0 and no options.
func StopOfferServiceMessage(service ServiceId, instance InstanceId, major uint8, minor uint32) *SdMessage {
	e := StopOfferServiceEntry(service, instance, major, minor)
	return &SdMessage{Entries: []SdEntry{{Service: &e}}}
}

// SubscribeEventgroupMessage builds a one-entry Subscribe SD message with a
// single endpoint option.
func SubscribeEventgroupMessage(service ServiceId, instance InstanceId, major uint8, eventgroup EventgroupId, ttl uint32, endpoint NetEndpoint) *SdMessage {
	e := SubscribeEventgroupEntry(service, instance, major, eventgroup, ttl)
	e.NumOptions1 = 1
	return &SdMessage{Entries: []SdEntry{{Eventgroup: &e}}, Options: []SdOption{endpoint.ToOption()}}
}

// StopSubscribeEventgroupMessage builds an Unsubscribe SD message.
func StopSubscribeEventgroupMessage(service ServiceId, instance InstanceId, major uint8, eventgroup EventgroupId) *SdMessage {
	e := UnsubscribeEventgroupEntry(service, instance, major, eventgroup)
	return &SdMessage{Entries: []SdEntry{{Eventgroup: &e}}}
}

// SubscribeEventgroupAckMessage builds a SubscribeAck SD message, optionally
// attaching an endpoint option.
func SubscribeEventgroupAckMessage(service ServiceId, instance InstanceId, major uint8, eventgroup EventgroupId, ttl uint32, counter uint8, endpoint *NetEndpoint) *SdMessage {
	e := SubscribeAckEntry(service, instance, major, eventgroup, ttl, counter)
	var opts []SdOption
	if endpoint != nil {
		e.NumOptions1 = 1
		opts = []SdOption{endpoint.ToOption()}
	}
	return &SdMessage{Entries: []SdEntry{{Eventgroup: &e}}, Options: opts}
}

// SubscribeEventgroupNackMessage builds a SubscribeNack SD message.
func SubscribeEventgroupNackMessage(service ServiceId, instance InstanceId, major uint8, eventgroup EventgroupId, counter uint8) *SdMessage {
	e := SubscribeNackEntry(service, instance, major, eventgroup, counter)
	return &SdMessage{Entries: []SdEntry{{Eventgroup: &e}}}
}

// ToBytes serializes the SD payload: flags+reserved, entries-length,
// entries, options-length, options.
func (m *SdMessage) ToBytes() []byte {
	entriesLength := len(m.Entries) * SdEntrySize
	optionBytes := make([][]byte, len(m.Options))
	optionsLength := 0
	for i, o := range m.Options {
		optionBytes[i] = o.ToBytes()
		optionsLength += len(optionBytes[i])
	}

	buf := make([]byte, 0, 8+entriesLength+4+optionsLength)
	buf = append(buf, m.Flags.ToByte(), 0, 0, 0)
	var entriesLen [4]byte
	binary.BigEndian.PutUint32(entriesLen[:], uint32(entriesLength))
	buf = append(buf, entriesLen[:]...)
	for _, e := range m.Entries {
		eb := e.ToBytes()
		buf = append(buf, eb[:]...)
	}
	var optionsLen [4]byte
	binary.BigEndian.PutUint32(optionsLen[:], uint32(optionsLength))
	buf = append(buf, optionsLen[:]...)
	for _, ob := range optionBytes {
		buf = append(buf, ob...)
	}
	return buf
}

// SdMessageFromBytes parses an SD payload (not including the SOME/IP
// header) into its entries and options.
func SdMessageFromBytes(data []byte) (*SdMessage, error) {
	if len(data) < 12 {
		return nil, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: 12, Actual: len(data)}
	}
	flags := SdFlagsFromByte(data[0])

	entriesLength := int(binary.BigEndian.Uint32(data[4:8]))
	if len(data) < 8+entriesLength+4 {
		return nil, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: 8 + entriesLength + 4, Actual: len(data)}
	}

	// An entry of unknown type is skipped; the rest of the message still
	// decodes.
	entriesData := data[8 : 8+entriesLength]
	var entries []SdEntry
	for off := 0; off+SdEntrySize <= len(entriesData); off += SdEntrySize {
		e, err := SdEntryFromBytes(entriesData[off:])
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}

	optionsOffset := 8 + entriesLength
	optionsLength := int(binary.BigEndian.Uint32(data[optionsOffset : optionsOffset+4]))
	optionsData := data[optionsOffset+4:]
	if len(optionsData) < optionsLength {
		return nil, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: optionsLength, Actual: len(optionsData)}
	}

	var options []SdOption
	for off := 0; off < optionsLength; {
		o, size, err := SdOptionFromBytes(optionsData[off:])
		if err != nil {
			return nil, err
		}
		options = append(options, o)
		off += size
	}

	return &SdMessage{Flags: flags, Entries: entries, Options: options}, nil
}

// SdMessageFromSomeIpMessage validates msg addresses the SD service/method
// and decodes its payload.
func SdMessageFromSomeIpMessage(msg *Message) (*SdMessage, error) {
	if msg.Header.ServiceId != SdServiceId || msg.Header.MethodId != SdMethodId {
		return nil, &ProtocolError{Kind: ErrKindInvalidHeader, Reason: "message does not address the service discovery endpoint"}
	}
	return SdMessageFromBytes(msg.Payload)
}

// ToSomeIpMessage wraps the SD payload in a Notification addressed to the
// fixed SD service/method pair.
func (m *SdMessage) ToSomeIpMessage() *Message {
	return NewNotification(SdServiceId, SdMethodId).Payload(m.ToBytes()).Build()
}

// IsFindService reports whether any entry is a FindService entry.
func (m *SdMessage) IsFindService() bool {
	for _, e := range m.Entries {
		if e.Service != nil && e.Service.EntryType == EntryTypeFindService {
			return true
		}
	}
	return false
}

// IsOfferService reports whether any entry is a live OfferService entry.
func (m *SdMessage) IsOfferService() bool {
	for _, e := range m.Entries {
		if e.Service != nil && e.Service.EntryType == EntryTypeOfferService && e.Service.Ttl > 0 {
			return true
		}
	}
	return false
}

// IsStopOfferService reports whether any entry is a TTL=0 OfferService entry.
func (m *SdMessage) IsStopOfferService() bool {
	for _, e := range m.Entries {
		if e.Service != nil && e.Service.EntryType == EntryTypeOfferService && e.Service.Ttl == 0 {
			return true
		}
	}
	return false
}

func entryOptionRuns(e SdEntry) (idx1, num1, idx2, num2 int) {
	if e.Service != nil {
		return int(e.Service.IndexFirstOption), int(e.Service.NumOptions1), int(e.Service.IndexSecondOption), int(e.Service.NumOptions2)
	}
	return int(e.Eventgroup.IndexFirstOption), int(e.Eventgroup.NumOptions1), int(e.Eventgroup.IndexSecondOption), int(e.Eventgroup.NumOptions2)
}

// OptionsForEntry resolves the options referenced by e's first and second
// option runs. Out-of-range indices are skipped rather than treated as
// errors, since the option array may be shared across several entries.
func (m *SdMessage) OptionsForEntry(e SdEntry) []SdOption {
	idx1, num1, idx2, num2 := entryOptionRuns(e)
	var out []SdOption
	for i := idx1; i < idx1+num1; i++ {
		if i >= 0 && i < len(m.Options) {
			out = append(out, m.Options[i])
		}
	}
	for i := idx2; i < idx2+num2; i++ {
		if i >= 0 && i < len(m.Options) {
			out = append(out, m.Options[i])
		}
	}
	return out
}

// EndpointsForEntry resolves e's options and returns just the ones that
// carry an endpoint address.
func (m *SdMessage) EndpointsForEntry(e SdEntry) []NetEndpoint {
	var out []NetEndpoint
	for _, o := range m.OptionsForEntry(e) {
		if ep, ok := EndpointFromOption(o); ok {
			out = append(out, ep)
		}
	}
	return out
}
