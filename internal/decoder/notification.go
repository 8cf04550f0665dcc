// Package decoder implements the decoders that turn Solana logsSubscribe
// notifications into token events.
package decoder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/solrelay/internal/domain"
)

// logsNotification is the subset of a logsSubscribe push the decoders read.
type logsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string          `json:"signature"`
				Err       json.RawMessage `json:"err"`
				Logs      []string        `json:"logs"`
			} `json:"value"`
		} `json:"result"`
		Subscription uint64 `json:"subscription"`
	} `json:"params"`
}

// createMarkers identify a token creation in program logs.
var createMarkers = []string{
	"Instruction: Create",
	"initialize_token",
}

// parseNotification extracts signature and logs from raw. Subscription acks,
// failed transactions and frames without a signature are rejected with ErrDecode.
func parseNotification(raw []byte) (*logsNotification, error) {
	var n logsNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	v := n.Params.Result.Value
	if v.Signature == "" || v.Logs == nil {
		return nil, fmt.Errorf("%w: not a logs notification", domain.ErrDecode)
	}
	if len(v.Err) > 0 && string(v.Err) != "null" {
		return nil, fmt.Errorf("%w: transaction failed", domain.ErrDecode)
	}
	return &n, nil
}

// mentionsCreate reports whether any log line marks a token creation.
func mentionsCreate(logs []string) bool {
	for _, l := range logs {
		for _, m := range createMarkers {
			if strings.Contains(l, m) {
				return true
			}
		}
	}
	return false
}
