package room

import "encoding/json"

// Client -> server message types.
const (
	TypeControl              = "control" // play/pause/seek
	TypeChat                 = "chat"
	TypeSetSource            = "setSource"
	TypeIntroduceBroadcaster = "introduce-broadcaster"
	TypeEndBroadcast         = "end-broadcast"
	TypeWebRTCOffer          = "webrtc-offer"
	TypeWebRTCAnswer         = "webrtc-answer"
	TypeWebRTCICE            = "webrtc-ice"
)

// Server -> client message types.
const (
	TypeClientID     = "client-id"
	TypeMemberJoined = "member-joined"
	TypeMemberLeft   = "member-left"
	TypeMemberList   = "member-list"
)

// Envelope is the slice of an inbound message the server actually inspects.
// Everything else is opaque: relayed message kinds are forwarded as the
// verbatim bytes they arrived in, so client payload shapes can evolve
// without server changes.
type Envelope struct {
	Type     string `json:"type"`
	To       string `json:"to,omitempty"`       // target clientId for signaling types
	From     string `json:"from,omitempty"`     // sender clientId for signaling types
	URL      string `json:"url,omitempty"`      // setSource
	FileName string `json:"fileName,omitempty"` // setSource

	raw []byte
}

// ParseEnvelope decodes the fields the dispatcher reads and keeps the
// original bytes for verbatim relay.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	env.raw = data
	return &env, nil
}

// Raw returns the bytes the envelope was parsed from.
func (e *Envelope) Raw() []byte { return e.raw }

// Member is one entry of a member-list snapshot.
type Member struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

type welcomeMsg struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	RoomID   string `json:"roomId"`
	Name     string `json:"name"`
}

type sourceMsg struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}

type memberEventMsg struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

type memberListMsg struct {
	Type    string   `json:"type"`
	Members []Member `json:"members"`
}

// The server-side message shapes below cannot fail to marshal, so the
// error is discarded.

func welcomeMessage(clientID, roomID, name string) []byte {
	b, _ := json.Marshal(welcomeMsg{Type: TypeClientID, ClientID: clientID, RoomID: roomID, Name: name})
	return b
}

func sourceMessage(url, fileName string) []byte {
	b, _ := json.Marshal(sourceMsg{Type: TypeSetSource, URL: url, FileName: fileName})
	return b
}

func memberEventMessage(typ, clientID, name string) []byte {
	b, _ := json.Marshal(memberEventMsg{Type: typ, ClientID: clientID, Name: name})
	return b
}

func memberListMessage(members []Member) []byte {
	if members == nil {
		members = []Member{}
	}
	b, _ := json.Marshal(memberListMsg{Type: TypeMemberList, Members: members})
	return b
}
