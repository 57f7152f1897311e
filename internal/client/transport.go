package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"drawza/internal/protocol"

	"github.com/gorilla/websocket"
)

// Transport is the bidirectional relay connection. Send may be called
// from any goroutine; Receive is expected to have a single reader.
type Transport interface {
	Send(env protocol.Envelope) error
	Receive() (protocol.Envelope, error)
	Close() error
}

type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Dial connects to the relay, presenting the access token as a bearer
// credential. A rejected credential surfaces as a handshake error with
// the HTTP status attached.
func Dial(ctx context.Context, url, token string) (Transport, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("relay handshake rejected (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) Send(env protocol.Envelope) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(env)
}

func (t *wsTransport) Receive() (protocol.Envelope, error) {
	var env protocol.Envelope
	err := t.conn.ReadJSON(&env)
	return env, err
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
