package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go-sonify/sequencer"
)

// Client is a feed producer or listener
type Client struct {
	ws *websocket.Conn
	mu sync.Mutex // one writer at a time
}

// Dial connects to a feed server, e.g. ws://127.0.0.1:5000/feed
func Dial(ctx context.Context, url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{ws: ws}, nil
}

// Send writes one frame
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// SendData sends an amplitude update. A nil peaks asks the server to derive them.
func (c *Client) SendData(amps []float64, peaks []int) error {
	msg, err := NewDataMessage(amps, peaks)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// SendAction sends a control action
func (c *Client) SendAction(a sequencer.Action) error {
	msg, err := NewActionMessage(a.Tag())
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// Read blocks for the next frame (relayed data, actions or errors)
func (c *Client) Read() (Message, error) {
	var msg Message
	if err := c.ws.ReadJSON(&msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Close sends a close frame and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}
