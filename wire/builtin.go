package wire

// Reserved type id range for built-in control messages; applications
// register their own definitions in [BaseUserTypeID, 255].
const (
	BaseSystemTypeID = 1
	BaseUserTypeID   = 20
)

// ProtocolVersion is this implementation's handshake protocol number.
// A ConnectRequest carrying a different value is rejected.
const ProtocolVersion = 4

var (
	defConnectRequest = &Definition{
		TypeID: BaseSystemTypeID + 0, // 1
		Name:   "ConnectRequest",
		Fields: []FieldSpec{{Name: "protocol", Type: FieldUint8}},
	}
	defConnectRequestAccepted = &Definition{
		TypeID: BaseSystemTypeID + 1, // 2
		Name:   "ConnectRequestAccepted",
	}
	defConnectRequestRejected = &Definition{
		TypeID: BaseSystemTypeID + 2, // 3
		Name:   "ConnectRequestRejected",
	}
	defKeepAliveRequest = &Definition{
		TypeID: BaseSystemTypeID + 3, // 4
		Name:   "KeepAliveRequest",
		Fields: []FieldSpec{{Name: "id", Type: FieldUint16}},
	}
	defKeepAliveResponse = &Definition{
		TypeID: BaseSystemTypeID + 4, // 5
		Name:   "KeepAliveResponse",
		Fields: []FieldSpec{{Name: "id", Type: FieldUint16}},
	}
	defDisconnected = &Definition{
		TypeID: BaseSystemTypeID + 5, // 6
		Name:   "Disconnected",
	}
	defMessageAck = &Definition{
		TypeID: BaseSystemTypeID + 6, // 7
		Name:   "MessageAck",
		Fields: []FieldSpec{{Name: "message_to_ack", Type: FieldInt32}},
	}
	defPing = &Definition{
		TypeID: BaseSystemTypeID + 7, // 8
		Name:   "Ping",
		Fields: []FieldSpec{{Name: "id", Type: FieldUint16}},
	}
	defPong = &Definition{
		TypeID: BaseSystemTypeID + 8, // 9
		Name:   "Pong",
		Fields: []FieldSpec{{Name: "id", Type: FieldUint16}},
	}
)

func builtinDefinitions() []*Definition {
	return []*Definition{
		defConnectRequest,
		defConnectRequestAccepted,
		defConnectRequestRejected,
		defKeepAliveRequest,
		defKeepAliveResponse,
		defDisconnected,
		defMessageAck,
		defPing,
		defPong,
	}
}

// NewConnectRequest builds a ConnectRequest carrying this
// implementation's protocol version.
func NewConnectRequest() *Message {
	m := defConnectRequest.New()
	_ = m.SetUint8("protocol", ProtocolVersion)
	return m
}

func NewConnectRequestAccepted() *Message { return defConnectRequestAccepted.New() }
func NewConnectRequestRejected() *Message { return defConnectRequestRejected.New() }

func NewKeepAliveRequest(id uint16) *Message {
	m := defKeepAliveRequest.New()
	_ = m.SetUint16("id", id)
	return m
}

func NewKeepAliveResponse(id uint16) *Message {
	m := defKeepAliveResponse.New()
	_ = m.SetUint16("id", id)
	return m
}

func NewDisconnected() *Message { return defDisconnected.New() }

func NewMessageAck(messageToAck int32) *Message {
	m := defMessageAck.New()
	_ = m.SetInt32("message_to_ack", messageToAck)
	return m
}

func NewPing(id uint16) *Message {
	m := defPing.New()
	_ = m.SetUint16("id", id)
	return m
}

func NewPong(id uint16) *Message {
	m := defPong.New()
	_ = m.SetUint16("id", id)
	return m
}
