package event

import (
	"chat-realtime/domain"
	"encoding/json"
	"time"
)

// Name is the event name carried on the wire.
type Name string

const (
	MessageNew     Name = "message:new"
	MessageEdited  Name = "message:edited"
	MessageDeleted Name = "message:deleted"
	UserOnline     Name = "user:online"
	UserOffline    Name = "user:offline"
	UserTyping     Name = "user:typing"
	Error          Name = "error"
)

// DomainEvent is anything that can be turned into a wire frame.
type DomainEvent interface {
	EventName() Name
}

type MessageCreated struct {
	MessageID string        `json:"messageId" validate:"required"`
	ChatID    domain.ChatID `json:"chatId" validate:"required"`
	SenderID  domain.UserID `json:"senderId" validate:"required"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
}

func (MessageCreated) EventName() Name { return MessageNew }

type MessageEditedEvent struct {
	MessageID string        `json:"messageId" validate:"required"`
	ChatID    domain.ChatID `json:"chatId" validate:"required"`
	Content   string        `json:"content"`
	EditedAt  time.Time     `json:"editedAt"`
}

func (MessageEditedEvent) EventName() Name { return MessageEdited }

type MessageDeletedEvent struct {
	MessageID string        `json:"messageId" validate:"required"`
	ChatID    domain.ChatID `json:"chatId" validate:"required"`
}

func (MessageDeletedEvent) EventName() Name { return MessageDeleted }

// Presence is emitted as user:online or user:offline depending on Status.
type Presence struct {
	UserID    domain.UserID `json:"userId"`
	Status    domain.Status `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

func (p Presence) EventName() Name {
	if p.Status == domain.StatusOnline {
		return UserOnline
	}
	return UserOffline
}

type Typing struct {
	UserID   domain.UserID `json:"userId"`
	ChatID   domain.ChatID `json:"chatId"`
	IsTyping bool          `json:"isTyping"`
}

func (Typing) EventName() Name { return UserTyping }

// Failure is sent right before a rejected connection is closed.
type Failure struct {
	Message string `json:"message"`
}

func (Failure) EventName() Name { return Error }

// Frame is the unit written to a connection.
type Frame struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NewFrame(e DomainEvent) (Frame, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: e.EventName(), Data: data}, nil
}
