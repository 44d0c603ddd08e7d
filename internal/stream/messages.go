// Package stream carries live backtest events to WebSocket consumers.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
)

// Wire names of the message variants.
const (
	TypeLog             = "Log"
	TypePortfolioUpdate = "PortfolioUpdate"
	TypeTradeExecuted   = "TradeExecuted"
)

// ErrUnknownMessage is returned when decoding a frame whose type is not one of the known variants.
var ErrUnknownMessage = errors.New("unknown stream message type")

// Message is one of LogMessage, PortfolioUpdate or TradeExecuted.
// The set is closed: only this package can add variants.
type Message interface {
	Type() string
	isMessage()
}

// LogMessage is a log line forwarded to the live view.
type LogMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// PortfolioUpdate is the full account state after a fill.
type PortfolioUpdate struct {
	Cash          decimal.Decimal            `json:"cash"`
	TotalValue    decimal.Decimal            `json:"total_value"` // cash + value of open positions
	OpenPositions map[string]domain.Position `json:"open_positions"`
}

// TradeExecuted announces a single fill. It serialises as the bare execution.
type TradeExecuted struct {
	domain.Execution
}

func (LogMessage) Type() string      { return TypeLog }
func (PortfolioUpdate) Type() string { return TypePortfolioUpdate }
func (TradeExecuted) Type() string   { return TypeTradeExecuted }

func (LogMessage) isMessage()      {}
func (PortfolioUpdate) isMessage() {}
func (TradeExecuted) isMessage()   {}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode renders msg as {"type": ..., "payload": ...}.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("nil stream message")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msg.Type(), err)
	}
	return json.Marshal(envelope{Type: msg.Type(), Payload: payload})
}

// Decode parses one frame. Unknown types fail with ErrUnknownMessage.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode stream envelope: %w", err)
	}

	var msg Message
	switch env.Type {
	case TypeLog:
		var m LogMessage
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		msg = m
	case TypePortfolioUpdate:
		var m PortfolioUpdate
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		msg = m
	case TypeTradeExecuted:
		var m TradeExecuted
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	return msg, nil
}
