package decoder

import (
	"fmt"
	"time"

	"github.com/Strob0t/solrelay/internal/domain/event"
	"github.com/Strob0t/solrelay/internal/port/decoder"
)

// Fixture emits a fixed token_created event for every successful
// notification whose logs mention a create instruction. Only the signature
// and timestamp vary. Used for demos and tests against a live endpoint.
type Fixture struct {
	now func() time.Time
}

// NewFixture returns a Fixture stamped with the wall clock.
func NewFixture() *Fixture {
	return &Fixture{now: time.Now}
}

// NewFixtureWithClock returns a Fixture stamped by now.
func NewFixtureWithClock(now func() time.Time) *Fixture {
	return &Fixture{now: now}
}

// Decode implements decoder.Decoder.
func (f *Fixture) Decode(raw []byte) (event.TokenEvent, bool) {
	n, err := parseNotification(raw)
	if err != nil || !mentionsCreate(n.Params.Result.Value.Logs) {
		return event.TokenEvent{}, false
	}
	return FixtureEvent(n.Params.Result.Value.Signature, f.now()), true
}

// FixtureEvent returns the canned event for signature at ts.
func FixtureEvent(signature string, ts time.Time) event.TokenEvent {
	return event.TokenEvent{
		Type:                 event.TypeTokenCreated,
		Timestamp:            event.FormatTimestamp(ts),
		TransactionSignature: signature,
		Token: event.Token{
			MintAddress: "ABC123",
			Name:        "MyToken",
			Symbol:      "MTK",
			Creator:     "DEF456",
			Supply:      1_000_000_000,
			Decimals:    DefaultDecimals,
		},
		PumpData: event.PumpData{
			BondingCurve:         "GHI789",
			VirtualSolReserves:   DefaultVirtualSolReserves,
			VirtualTokenReserves: DefaultVirtualTokenReserves,
		},
	}
}

// New returns the decoder registered under name ("pump" or "fixture").
func New(name string) (decoder.Decoder, error) {
	switch name {
	case "pump", "":
		return NewPump(), nil
	case "fixture":
		return NewFixture(), nil
	default:
		return nil, fmt.Errorf("unknown decoder %q", name)
	}
}
