package decoder

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/Strob0t/solrelay/internal/domain/event"
)

const programDataPrefix = "Program data: "

// createEventDiscriminator is the Anchor event discriminator of the pump
// program's CreateEvent (first 8 bytes of sha256("event:CreateEvent")).
var createEventDiscriminator = []byte{27, 114, 169, 77, 222, 235, 99, 118}

// Launch parameters applied when the emitted CreateEvent predates the
// reserve and supply fields.
const (
	DefaultSupply               uint64 = 1_000_000_000_000_000
	DefaultDecimals             uint8  = 6
	DefaultVirtualSolReserves   uint64 = 30_000_000_000
	DefaultVirtualTokenReserves uint64 = 1_073_000_000_000_000
)

var errShortBuffer = errors.New("short buffer")

// Pump decodes pump program CreateEvents out of logsNotification frames.
type Pump struct {
	now func() time.Time
}

// NewPump returns the production decoder.
func NewPump() *Pump {
	return &Pump{now: time.Now}
}

// Decode implements decoder.Decoder.
func (p *Pump) Decode(raw []byte) (event.TokenEvent, bool) {
	n, err := parseNotification(raw)
	if err != nil {
		return event.TokenEvent{}, false
	}
	v := n.Params.Result.Value
	if !mentionsCreate(v.Logs) {
		return event.TokenEvent{}, false
	}

	for _, line := range v.Logs {
		data, ok := strings.CutPrefix(line, programDataPrefix)
		if !ok {
			continue
		}
		payload, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
		if err != nil || !bytes.HasPrefix(payload, createEventDiscriminator) {
			continue
		}
		ce, err := decodeCreateEvent(payload[len(createEventDiscriminator):])
		if err != nil {
			continue
		}
		return p.toEvent(v.Signature, ce), true
	}
	return event.TokenEvent{}, false
}

func (p *Pump) toEvent(signature string, ce *createEvent) event.TokenEvent {
	ts := p.now()
	if ce.timestamp > 0 {
		ts = time.Unix(ce.timestamp, 0)
	}
	creator := ce.creator
	if creator == "" {
		creator = ce.user
	}
	return event.TokenEvent{
		Type:                 event.TypeTokenCreated,
		Timestamp:            event.FormatTimestamp(ts),
		TransactionSignature: signature,
		Token: event.Token{
			MintAddress: ce.mint,
			Name:        ce.name,
			Symbol:      ce.symbol,
			Creator:     creator,
			Supply:      ce.supply,
			Decimals:    DefaultDecimals,
		},
		PumpData: event.PumpData{
			BondingCurve:         ce.bondingCurve,
			VirtualSolReserves:   ce.virtualSolReserves,
			VirtualTokenReserves: ce.virtualTokenReserves,
		},
	}
}

// createEvent mirrors the borsh layout of CreateEvent. Fields after user were
// appended by later program versions and are optional.
type createEvent struct {
	name, symbol, uri        string
	mint, bondingCurve, user string
	creator                  string
	timestamp                int64
	virtualTokenReserves     uint64
	virtualSolReserves       uint64
	realTokenReserves        uint64
	supply                   uint64
}

func decodeCreateEvent(b []byte) (*createEvent, error) {
	r := &borshReader{buf: b}
	ce := &createEvent{
		supply:               DefaultSupply,
		virtualSolReserves:   DefaultVirtualSolReserves,
		virtualTokenReserves: DefaultVirtualTokenReserves,
	}

	ce.name = r.string()
	ce.symbol = r.string()
	ce.uri = r.string()
	ce.mint = r.pubkey()
	ce.bondingCurve = r.pubkey()
	ce.user = r.pubkey()
	if r.err != nil {
		return nil, r.err
	}

	if r.remaining() >= 32+8+8*4 {
		ce.creator = r.pubkey()
		ce.timestamp = int64(r.u64())
		ce.virtualTokenReserves = r.u64()
		ce.virtualSolReserves = r.u64()
		ce.realTokenReserves = r.u64()
		ce.supply = r.u64()
	}
	return ce, r.err
}

// borshReader reads little-endian borsh primitives, latching the first error.
type borshReader struct {
	buf []byte
	off int
	err error
}

func (r *borshReader) remaining() int { return len(r.buf) - r.off }

func (r *borshReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.remaining() < n {
		r.err = errShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *borshReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *borshReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *borshReader) string() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	if int64(n) > int64(r.remaining()) {
		r.err = errShortBuffer
		return ""
	}
	return string(r.take(int(n)))
}

func (r *borshReader) pubkey() string {
	b := r.take(32)
	if b == nil {
		return ""
	}
	return base58.Encode(b)
}
