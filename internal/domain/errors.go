// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrConnection indicates the upstream transport failed to establish or was lost.
// Always retried by the connector.
var ErrConnection = errors.New("upstream connection error")

// ErrDecode indicates a single raw upstream message could not be turned into an event.
var ErrDecode = errors.New("decode error")

// ErrClientHandshake indicates a downstream connection failed the WebSocket upgrade.
var ErrClientHandshake = errors.New("client handshake failed")

// ErrClientSend indicates a write to a connected downstream client failed.
var ErrClientSend = errors.New("client send failed")

// ErrBind indicates the listening socket could not be opened. It is the only
// error that aborts startup.
var ErrBind = errors.New("listener bind failed")
