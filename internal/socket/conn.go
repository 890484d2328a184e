package socket

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// ErrAuthFailed is returned when the server rejects the handshake token.
// It is terminal: the caller must obtain a fresh token before reconnecting.
var ErrAuthFailed = errors.New("authentication failed")

// ErrNotConnected is returned by outbound verbs while no live connection
// exists.
var ErrNotConnected = errors.New("not connected")

// Conn is the minimal surface of a websocket connection the manager needs.
// *websocket.Conn satisfies it; tests substitute scripted fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer establishes an authenticated connection to the chat endpoint.
type Dialer func(ctx context.Context, url, token string) (Conn, error)

func gorillaDial(ctx context.Context, url, token string) (Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake status %d", ErrAuthFailed, resp.StatusCode)
		}
		return nil, err
	}
	return conn, nil
}

// ConnState is the connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	}
	return "UNKNOWN"
}
