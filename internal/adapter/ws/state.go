package ws

import "time"

// ClientState is the lifecycle state of one client connection.
type ClientState int

const (
	ClientConnecting ClientState = iota
	ClientUpgraded
	ClientStreaming
	ClientClosed
)

func (s ClientState) String() string {
	switch s {
	case ClientConnecting:
		return "connecting"
	case ClientUpgraded:
		return "upgraded"
	case ClientStreaming:
		return "streaming"
	case ClientClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s ClientState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ClientInfo describes a connected client.
type ClientInfo struct {
	ID          string      `json:"id"`
	Remote      string      `json:"remote"`
	State       ClientState `json:"state"`
	ConnectedAt time.Time   `json:"connected_at"`
}
