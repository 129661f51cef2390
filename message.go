package someip

// Message pairs a decoded Header with its payload bytes.
type Message struct {
	Header  Header
	Payload []byte
}

// ToBytes encodes the message to its wire representation, recomputing
// Header.Length from len(Payload) deterministically.
func (m *Message) ToBytes() []byte {
	buf := make([]byte, HeaderSize+len(m.Payload))
	h := m.Header
	h.Length = uint32(8 + len(m.Payload))
	EncodeHeader(h, buf[:HeaderSize])
	copy(buf[HeaderSize:], m.Payload)
	return buf
}

// MessageFromBytes decodes a complete message from buf. It requires
// len(buf) to be at least HeaderSize plus the payload length declared in
// the header.
func MessageFromBytes(buf []byte) (*Message, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	want := HeaderSize + int(h.PayloadLength())
	if len(buf) < want {
		return nil, &ProtocolError{Kind: ErrKindLengthMismatch, Expected: want, Actual: len(buf)}
	}
	payload := make([]byte, h.PayloadLength())
	copy(payload, buf[HeaderSize:want])
	return &Message{Header: h, Payload: payload}, nil
}

// ExpectsResponse delegates to the message's MessageType.
func (m *Message) ExpectsResponse() bool { return m.Header.MessageType.ExpectsResponse() }

// IsResponse delegates to the message's MessageType.
func (m *Message) IsResponse() bool { return m.Header.MessageType.IsResponse() }

// RequestID delegates to the message's Header.
func (m *Message) RequestID() uint32 { return m.Header.RequestID() }

// CreateResponse starts a Builder for the response to this request,
// copying ServiceId, MethodId, ClientId, SessionId and InterfaceVersion.
func (m *Message) CreateResponse() *Builder {
	return &Builder{
		header: Header{
			ServiceId:        m.Header.ServiceId,
			MethodId:         m.Header.MethodId,
			ClientId:         m.Header.ClientId,
			SessionId:        m.Header.SessionId,
			InterfaceVersion: m.Header.InterfaceVersion,
			MessageType:      MessageTypeResponse,
			ReturnCode:       ReturnCodeOk,
		},
	}
}

// CreateErrorResponse starts a Builder for an Error response derived from
// this request, carrying the given ReturnCode.
func (m *Message) CreateErrorResponse(code ReturnCode) *Builder {
	b := m.CreateResponse()
	b.header.MessageType = MessageTypeError
	b.header.ReturnCode = code
	return b
}

// Builder accumulates fields for a Message before Build stamps the
// protocol-mandated ones and derives Length.
type Builder struct {
	header  Header
	payload []byte
}

// NewRequest starts a Builder for a Request to (service, method).
func NewRequest(service ServiceId, method MethodId) *Builder {
	return &Builder{header: Header{ServiceId: service, MethodId: method, MessageType: MessageTypeRequest}}
}

// NewRequestNoReturn starts a Builder for a fire-and-forget request.
func NewRequestNoReturn(service ServiceId, method MethodId) *Builder {
	return &Builder{header: Header{ServiceId: service, MethodId: method, MessageType: MessageTypeRequestNoReturn}}
}

// NewNotification starts a Builder for a Notification.
func NewNotification(service ServiceId, method MethodId) *Builder {
	return &Builder{header: Header{ServiceId: service, MethodId: method, MessageType: MessageTypeNotification}}
}

func (b *Builder) ClientId(id ClientId) *Builder {
	b.header.ClientId = id
	return b
}

func (b *Builder) SessionId(id SessionId) *Builder {
	b.header.SessionId = id
	return b
}

func (b *Builder) InterfaceVersion(v uint8) *Builder {
	b.header.InterfaceVersion = v
	return b
}

func (b *Builder) ReturnCode(rc ReturnCode) *Builder {
	b.header.ReturnCode = rc
	return b
}

func (b *Builder) Payload(p []byte) *Builder {
	b.payload = p
	return b
}

// Build stamps ProtocolVersion and derives Length from the payload size.
func (b *Builder) Build() *Message {
	h := b.header
	h.ProtocolVersion = ProtocolVersion
	h.Length = uint32(8 + len(b.payload))
	return &Message{Header: h, Payload: b.payload}
}
