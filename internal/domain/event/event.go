// Package event defines the TokenEvent domain entity relayed to clients.
package event

import (
	"encoding/json"
	"errors"
	"time"
)

// Type identifies the kind of event.
type Type string

const (
	TypeTokenCreated Type = "token_created"
)

// TokenEvent is one decoded on-chain occurrence. It is built once by a
// decoder and never mutated afterwards; the bus carries its serialized form.
type TokenEvent struct {
	Type                 Type     `json:"event_type"`
	Timestamp            string   `json:"timestamp"` // RFC3339
	TransactionSignature string   `json:"transaction_signature"`
	Token                Token    `json:"token"`
	PumpData             PumpData `json:"pump_data"`
}

// Token describes the created SPL token.
type Token struct {
	MintAddress string `json:"mint_address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Creator     string `json:"creator"`
	Supply      uint64 `json:"supply"`
	Decimals    uint8  `json:"decimals"`
}

// PumpData holds the bonding curve state at creation.
type PumpData struct {
	BondingCurve         string `json:"bonding_curve"`
	VirtualSolReserves   uint64 `json:"virtual_sol_reserves"`
	VirtualTokenReserves uint64 `json:"virtual_token_reserves"`
}

// FormatTimestamp renders t the way TokenEvent.Timestamp expects.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Validate checks the fields every relayed event must carry.
func (e *TokenEvent) Validate() error {
	if e.Type == "" {
		return errors.New("event_type is required")
	}
	if e.TransactionSignature == "" {
		return errors.New("transaction_signature is required")
	}
	if _, err := time.Parse(time.RFC3339, e.Timestamp); err != nil {
		return errors.New("timestamp must be RFC3339")
	}
	return nil
}

// Marshal returns the wire form of e, one downstream text frame.
func (e *TokenEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
