package someip

import "encoding/binary"

// MaxTtl is the all-ones 24-bit TTL value FindService entries use to mean
// "as long as possible".
const MaxTtl uint32 = 0xFFFFFF

// ServiceEntry is a FindService or OfferService SD entry.
type ServiceEntry struct {
	EntryType         EntryType
	IndexFirstOption  uint8
	IndexSecondOption uint8
	NumOptions1       uint8 // 4 bits
	NumOptions2       uint8 // 4 bits
	ServiceId         ServiceId
	InstanceId        InstanceId
	MajorVersion      uint8
	Ttl               uint32 // 24 bits; 0 means stop-offer
	MinorVersion      uint32
}

// FindServiceEntry builds a FindService entry with the conventional
// max-TTL value.
func FindServiceEntry(service ServiceId, instance InstanceId, major uint8, minor uint32) ServiceEntry {
	return ServiceEntry{
		EntryType:    EntryTypeFindService,
		ServiceId:    service,
		InstanceId:   instance,
		MajorVersion: major,
		Ttl:          MaxTtl,
		MinorVersion: minor,
	}
}

// OfferServiceEntry builds an OfferService entry with the given TTL.
func OfferServiceEntry(service ServiceId, instance InstanceId, major uint8, minor uint32, ttl uint32) ServiceEntry {
	return ServiceEntry{
		EntryType:    EntryTypeOfferService,
		ServiceId:    service,
		InstanceId:   instance,
		MajorVersion: major,
		Ttl:          ttl & MaxTtl,
		MinorVersion: minor,
	}
}

// StopOfferServiceEntry builds an OfferService entry with TTL=0.
func StopOfferServiceEntry(service ServiceId, instance InstanceId, major uint8, minor uint32) ServiceEntry {
	return OfferServiceEntry(service, instance, major, minor, 0)
}

// IsStopOffer reports whether e is an OfferService entry with TTL=0.
func (e ServiceEntry) IsStopOffer() bool {
	return e.EntryType == EntryTypeOfferService && e.Ttl == 0
}

// ToBytes serializes e to its 16-byte wire form.
func (e ServiceEntry) ToBytes() [SdEntrySize]byte {
	var buf [SdEntrySize]byte
	buf[0] = uint8(e.EntryType)
	buf[1] = e.IndexFirstOption
	buf[2] = e.IndexSecondOption
	buf[3] = ((e.NumOptions1 & 0x0F) << 4) | (e.NumOptions2 & 0x0F)
	binary.BigEndian.PutUint16(buf[4:6], uint16(e.ServiceId))
	binary.BigEndian.PutUint16(buf[6:8], uint16(e.InstanceId))
	buf[8] = e.MajorVersion
	ttl := e.Ttl & MaxTtl
	buf[9] = byte(ttl >> 16)
	buf[10] = byte(ttl >> 8)
	buf[11] = byte(ttl)
	binary.BigEndian.PutUint32(buf[12:16], e.MinorVersion)
	return buf
}

// ServiceEntryFromBytes parses a service entry from data, which must be at
// least SdEntrySize bytes and carry a service entry type.
func ServiceEntryFromBytes(data []byte) (ServiceEntry, error) {
	if len(data) < SdEntrySize {
		return ServiceEntry{}, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: SdEntrySize, Actual: len(data)}
	}
	t := EntryType(data[0])
	if !t.Valid() || !t.IsServiceEntry() {
		return ServiceEntry{}, &ProtocolError{Kind: ErrKindInvalidHeader, Reason: "expected service entry type"}
	}
	return ServiceEntry{
		EntryType:         t,
		IndexFirstOption:  data[1],
		IndexSecondOption: data[2],
		NumOptions1:       (data[3] >> 4) & 0x0F,
		NumOptions2:       data[3] & 0x0F,
		ServiceId:         ServiceId(binary.BigEndian.Uint16(data[4:6])),
		InstanceId:        InstanceId(binary.BigEndian.Uint16(data[6:8])),
		MajorVersion:      data[8],
		Ttl:               uint32(data[9])<<16 | uint32(data[10])<<8 | uint32(data[11]),
		MinorVersion:      binary.BigEndian.Uint32(data[12:16]),
	}, nil
}

// EventgroupEntry is a SubscribeEventgroup or SubscribeEventgroupAck entry.
type EventgroupEntry struct {
	EntryType         EntryType
	IndexFirstOption  uint8
	IndexSecondOption uint8
	NumOptions1       uint8
	NumOptions2       uint8
	ServiceId         ServiceId
	InstanceId        InstanceId
	MajorVersion      uint8
	Ttl               uint32 // 24 bits; 0 means unsubscribe/nack
	Counter           uint8  // 4 bits
	EventgroupId      EventgroupId
}

// SubscribeEventgroupEntry builds a Subscribe entry.
func SubscribeEventgroupEntry(service ServiceId, instance InstanceId, major uint8, eventgroup EventgroupId, ttl uint32) EventgroupEntry {
	return EventgroupEntry{
		EntryType:    EntryTypeSubscribeEventgroup,
		ServiceId:    service,
		InstanceId:   instance,
		MajorVersion: major,
		Ttl:          ttl & MaxTtl,
		EventgroupId: eventgroup,
	}
}

// UnsubscribeEventgroupEntry builds a Subscribe entry with TTL=0.
func UnsubscribeEventgroupEntry(service ServiceId, instance InstanceId, major uint8, eventgroup EventgroupId) EventgroupEntry {
	return SubscribeEventgroupEntry(service, instance, major, eventgroup, 0)
}

// SubscribeAckEntry builds a SubscribeEventgroupAck entry.
func SubscribeAckEntry(service ServiceId, instance InstanceId, major uint8, eventgroup EventgroupId, ttl uint32, counter uint8) EventgroupEntry {
	return EventgroupEntry{
		EntryType:    EntryTypeSubscribeEventgroupAck,
		ServiceId:    service,
		InstanceId:   instance,
		MajorVersion: major,
		Ttl:          ttl & MaxTtl,
		Counter:      counter,
		EventgroupId: eventgroup,
	}
}

// SubscribeNackEntry builds a SubscribeEventgroupAck entry with TTL=0.
func SubscribeNackEntry(service ServiceId, instance InstanceId, major uint8, eventgroup EventgroupId, counter uint8) EventgroupEntry {
	return SubscribeAckEntry(service, instance, major, eventgroup, 0, counter)
}

// IsNegative reports whether e is an unsubscribe or a nack (TTL=0).
func (e EventgroupEntry) IsNegative() bool {
	return e.Ttl == 0
}

// ToBytes serializes e to its 16-byte wire form.
func (e EventgroupEntry) ToBytes() [SdEntrySize]byte {
	var buf [SdEntrySize]byte
	buf[0] = uint8(e.EntryType)
	buf[1] = e.IndexFirstOption
	buf[2] = e.IndexSecondOption
	buf[3] = ((e.NumOptions1 & 0x0F) << 4) | (e.NumOptions2 & 0x0F)
	binary.BigEndian.PutUint16(buf[4:6], uint16(e.ServiceId))
	binary.BigEndian.PutUint16(buf[6:8], uint16(e.InstanceId))
	buf[8] = e.MajorVersion
	ttl := e.Ttl & MaxTtl
	buf[9] = byte(ttl >> 16)
	buf[10] = byte(ttl >> 8)
	buf[11] = byte(ttl)
	buf[12] = e.Counter & 0x0F
	buf[13] = 0
	binary.BigEndian.PutUint16(buf[14:16], uint16(e.EventgroupId))
	return buf
}

// EventgroupEntryFromBytes parses an eventgroup entry from data, which must
// be at least SdEntrySize bytes and carry an eventgroup entry type.
func EventgroupEntryFromBytes(data []byte) (EventgroupEntry, error) {
	if len(data) < SdEntrySize {
		return EventgroupEntry{}, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: SdEntrySize, Actual: len(data)}
	}
	t := EntryType(data[0])
	if !t.Valid() || !t.IsEventgroupEntry() {
		return EventgroupEntry{}, &ProtocolError{Kind: ErrKindInvalidHeader, Reason: "expected eventgroup entry type"}
	}
	return EventgroupEntry{
		EntryType:         t,
		IndexFirstOption:  data[1],
		IndexSecondOption: data[2],
		NumOptions1:       (data[3] >> 4) & 0x0F,
		NumOptions2:       data[3] & 0x0F,
		ServiceId:         ServiceId(binary.BigEndian.Uint16(data[4:6])),
		InstanceId:        InstanceId(binary.BigEndian.Uint16(data[6:8])),
		MajorVersion:      data[8],
		Ttl:               uint32(data[9])<<16 | uint32(data[10])<<8 | uint32(data[11]),
		Counter:           data[12] & 0x0F,
		EventgroupId:      EventgroupId(binary.BigEndian.Uint16(data[14:16])),
	}, nil
}

// SdEntry is either a ServiceEntry or an EventgroupEntry, discriminated by
// its wire-level entry type.
type SdEntry struct {
	Service    *ServiceEntry
	Eventgroup *EventgroupEntry
}

// ServiceId returns the entry's service id regardless of its underlying kind.
func (e SdEntry) ServiceId() ServiceId {
	if e.Service != nil {
		return e.Service.ServiceId
	}
	return e.Eventgroup.ServiceId
}

// InstanceId returns the entry's instance id regardless of its underlying kind.
func (e SdEntry) InstanceId() InstanceId {
	if e.Service != nil {
		return e.Service.InstanceId
	}
	return e.Eventgroup.InstanceId
}

// Ttl returns the entry's TTL regardless of its underlying kind.
func (e SdEntry) Ttl() uint32 {
	if e.Service != nil {
		return e.Service.Ttl
	}
	return e.Eventgroup.Ttl
}

// ToBytes serializes whichever entry e wraps.
func (e SdEntry) ToBytes() [SdEntrySize]byte {
	if e.Service != nil {
		return e.Service.ToBytes()
	}
	return e.Eventgroup.ToBytes()
}

// SdEntryFromBytes parses an entry from data and dispatches to the service
// or eventgroup decoder based on its entry type byte.
func SdEntryFromBytes(data []byte) (SdEntry, error) {
	if len(data) == 0 {
		return SdEntry{}, &ProtocolError{Kind: ErrKindMessageTooShort, Expected: 1, Actual: 0}
	}
	t := EntryType(data[0])
	switch {
	case t.Valid() && t.IsServiceEntry():
		se, err := ServiceEntryFromBytes(data)
		if err != nil {
			return SdEntry{}, err
		}
		return SdEntry{Service: &se}, nil
	case t.Valid() && t.IsEventgroupEntry():
		ee, err := EventgroupEntryFromBytes(data)
		if err != nil {
			return SdEntry{}, err
		}
		return SdEntry{Eventgroup: &ee}, nil
	default:
		return SdEntry{}, &ProtocolError{Kind: ErrKindInvalidHeader, Reason: "unknown SD entry type"}
	}
}
