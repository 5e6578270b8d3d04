// Package protocol defines the JSON frames exchanged over a relay WebSocket.
// Every frame is one JSON object carrying a "type" discriminator.
package protocol

import (
	"time"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/Tyrowin/relaychat/internal/ids"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind is the value of a frame's "type" field.
type Kind string

const (
	KindChatMessage     Kind = "chatMessage"
	KindTypingIndicator Kind = "typingIndicator"
	KindReadReceipt     Kind = "readReceipt"
	KindStatusMessage   Kind = "statusMessage"
)

// Status is a presence state carried by statusMessage frames.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

var (
	// ErrMalformedFrame: not a JSON object, or a required field is missing or mistyped.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownKind: the "type" field names no inbound frame.
	ErrUnknownKind = errors.New("unknown frame type")
)

// Inbound is a decoded client frame: *ChatMessage, *TypingIndicator or *ReadReceipt.
type Inbound interface {
	Kind() Kind
}

// ChatMessage asks the relay to deliver Message to ToUserID.
type ChatMessage struct {
	ToUserID ids.UserID
	Message  string
}

func (*ChatMessage) Kind() Kind { return KindChatMessage }

// TypingIndicator tells ToUserID whether the sender is typing.
type TypingIndicator struct {
	ToUserID ids.UserID
	IsTyping bool
}

func (*TypingIndicator) Kind() Kind { return KindTypingIndicator }

// ReadReceipt acknowledges MessageID. ToUserID is the user who sent that
// message, not the author of the receipt.
type ReadReceipt struct {
	ToUserID  ids.UserID
	MessageID ids.MessageID
}

func (*ReadReceipt) Kind() Kind { return KindReadReceipt }

type inboundFrame struct {
	Type      Kind    `json:"type"`
	ToUserID  string  `json:"toUserId"`
	Message   *string `json:"message"`
	IsTyping  *bool   `json:"isTyping"`
	MessageID string  `json:"messageId"`
}

// Decode parses one client frame. Errors match ErrMalformedFrame,
// ErrUnknownKind or ids.ErrMalformed.
func Decode(raw []byte) (Inbound, error) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrapf(ErrMalformedFrame, "%v", err)
	}

	switch f.Type {
	case KindChatMessage:
		if f.Message == nil {
			return nil, errors.Wrap(ErrMalformedFrame, "chatMessage without message")
		}
		to, err := ids.ParseUserID(f.ToUserID)
		if err != nil {
			return nil, errors.Wrap(err, "chatMessage toUserId")
		}
		return &ChatMessage{ToUserID: to, Message: *f.Message}, nil

	case KindTypingIndicator:
		if f.IsTyping == nil {
			return nil, errors.Wrap(ErrMalformedFrame, "typingIndicator without isTyping")
		}
		to, err := ids.ParseUserID(f.ToUserID)
		if err != nil {
			return nil, errors.Wrap(err, "typingIndicator toUserId")
		}
		return &TypingIndicator{ToUserID: to, IsTyping: *f.IsTyping}, nil

	case KindReadReceipt:
		to, err := ids.ParseUserID(f.ToUserID)
		if err != nil {
			return nil, errors.Wrap(err, "readReceipt toUserId")
		}
		msgID, err := ids.ParseMessageID(f.MessageID)
		if err != nil {
			return nil, errors.Wrap(err, "readReceipt messageId")
		}
		return &ReadReceipt{ToUserID: to, MessageID: msgID}, nil

	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", f.Type)
	}
}

// ChatMessageOut is a chat message as delivered to recipients and echoed to
// the sender.
type ChatMessageOut struct {
	Type         Kind   `json:"type"`
	FromUserID   string `json:"fromUserId"`
	FromUsername string `json:"fromUsername"`
	ToUserID     string `json:"toUserId"`
	MessageID    string `json:"messageId"`
	Timestamp    string `json:"timestamp"`
	Message      string `json:"message"`
}

// NewChatMessageOut stamps a relayed chat message.
func NewChatMessageOut(from ids.UserID, fromUsername string, to ids.UserID, id ids.MessageID, at time.Time, text string) ChatMessageOut {
	return ChatMessageOut{
		Type:         KindChatMessage,
		FromUserID:   from.String(),
		FromUsername: fromUsername,
		ToUserID:     to.String(),
		MessageID:    id.String(),
		Timestamp:    at.UTC().Format(time.RFC3339Nano),
		Message:      text,
	}
}

// StatusMessageOut announces that a user came online or went offline.
type StatusMessageOut struct {
	Type     Kind   `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Status   Status `json:"status"`
}

func NewStatusMessageOut(userID ids.UserID, username string, status Status) StatusMessageOut {
	return StatusMessageOut{
		Type:     KindStatusMessage,
		UserID:   userID.String(),
		Username: username,
		Status:   status,
	}
}

// ReadReceiptOut tells a message's sender that FromUserID has read it.
type ReadReceiptOut struct {
	Type       Kind   `json:"type"`
	FromUserID string `json:"fromUserId"`
	MessageID  string `json:"messageId"`
}

func NewReadReceiptOut(reader ids.UserID, id ids.MessageID) ReadReceiptOut {
	return ReadReceiptOut{Type: KindReadReceipt, FromUserID: reader.String(), MessageID: id.String()}
}

// TypingIndicatorOut relays a typing state change.
type TypingIndicatorOut struct {
	Type       Kind   `json:"type"`
	FromUserID string `json:"fromUserId"`
	IsTyping   bool   `json:"isTyping"`
}

func NewTypingIndicatorOut(from ids.UserID, isTyping bool) TypingIndicatorOut {
	return TypingIndicatorOut{Type: KindTypingIndicator, FromUserID: from.String(), IsTyping: isTyping}
}

// Encode serializes an outbound frame.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode frame")
	}
	return b, nil
}

// DecodeInto unmarshals raw into v. Used for HTTP bodies and by tests that
// read outbound frames back.
func DecodeInto(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}
