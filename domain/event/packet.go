package event

import (
	"chat-realtime/domain"
	"encoding/json"
	"fmt"
)

// Packet travels on the shared broadcast layer between server processes.
// Origin identifies the publishing process so it can skip its own packets.
type Packet struct {
	Origin  string        `json:"origin"`
	Target  domain.Target `json:"target"`
	Exclude domain.UserID `json:"exclude,omitempty"`
	Frame   Frame         `json:"frame"`
}

func EncodePacket(p Packet) ([]byte, error) {
	return json.Marshal(p)
}

func DecodePacket(data []byte) (Packet, error) {
	var p Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return Packet{}, err
	}
	if p.Origin == "" || p.Target == "" || p.Frame.Event == "" {
		return Packet{}, fmt.Errorf("incomplete packet: origin=%q target=%q event=%q", p.Origin, p.Target, p.Frame.Event)
	}
	return p, nil
}
