package live

import (
	"encoding/json"
	"errors"
)

const (
	EventSendReply = "send-reply"
	EventNewReply  = "new-reply"
)

var (
	ErrRoomMismatch   = errors.New("reply does not belong to this room")
	ErrSenderMismatch = errors.New("reply was not sent by this connection's user")
)

// Frame is the websocket message shape in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// replyRef holds the fields of a reply the relay checks.
type replyRef struct {
	ID          string  `json:"id"`
	ComplaintID string  `json:"complaintId"`
	SenderID    *string `json:"senderId"`
}

// relayFrame turns an inbound send-reply into the new-reply frame for the
// other members of room. ok is false for frames that are not relayed. A
// reply is only relayed by the user who sent it.
func relayFrame(raw []byte, room, userID string) (out []byte, ok bool, err error) {
	var in Frame
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, false, err
	}
	if in.Event != EventSendReply {
		return nil, false, nil
	}

	var ref replyRef
	if err := json.Unmarshal(in.Data, &ref); err != nil {
		return nil, false, err
	}
	if ref.ID == "" || ref.ComplaintID != room {
		return nil, false, ErrRoomMismatch
	}
	if ref.SenderID == nil || *ref.SenderID == "" || *ref.SenderID != userID {
		return nil, false, ErrSenderMismatch
	}

	out, err = json.Marshal(Frame{Event: EventNewReply, Data: in.Data})
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}
