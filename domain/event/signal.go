package event

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SignalKind is an inbound message name sent by a client on its socket.
type SignalKind string

const (
	SignalTypingStart SignalKind = "user:typing"
	SignalTypingStop  SignalKind = "user:stop-typing"

	// Short aliases accepted for the same two signals.
	signalTypingStartAlias SignalKind = "typing-start"
	signalTypingStopAlias  SignalKind = "typing-stop"
)

type SignalData struct {
	ChatID domain.ChatID `json:"chatId" validate:"required"`
}

type Signal struct {
	Event SignalKind `json:"event"`
	Data  SignalData `json:"data"`
}

// Normalize validates the signal and maps aliases onto their canonical kind.
func (s Signal) Normalize() (Signal, error) {
	switch s.Event {
	case SignalTypingStart, signalTypingStartAlias:
		s.Event = SignalTypingStart
	case SignalTypingStop, signalTypingStopAlias:
		s.Event = SignalTypingStop
	default:
		return Signal{}, fmt.Errorf("%w: %q", errors.ErrUnknownSignal, s.Event)
	}
	if err := validate.Struct(s.Data); err != nil {
		return Signal{}, err
	}
	return s, nil
}

// Validate checks the required fields of an inbound domain event.
func Validate(e DomainEvent) error {
	return validate.Struct(e)
}
