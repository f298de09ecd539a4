package main

import (
	"context"
	"encoding/json"
	"log"
	"net/url"

	"github.com/Comcast/stash/sio"

	"github.com/gorilla/websocket"
)

// WSCouplings is a sio.Couplings that talks to a remote WebSocket
// service.  Ops arrive from the remote side, and updates go back out.
type WSCouplings struct {
	URL string

	conn *websocket.Conn

	incoming chan *sio.Op
	outbound chan *sio.Update
	done     chan bool
}

func NewWSCouplings(urls string) *WSCouplings {
	return &WSCouplings{
		URL:      urls,
		incoming: make(chan *sio.Op),
		outbound: make(chan *sio.Update),
		done:     make(chan bool),
	}
}

// Start dials the remote service and starts the reader and writer
// loops.
func (c *WSCouplings) Start(ctx context.Context) error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	c.conn = conn

	log.Printf("WSCouplings connected: %s", c.URL)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("WSCouplings read error %s", err)
				close(c.done)
				return
			}

			op, err := sio.ParseOp(message)
			if err != nil {
				log.Printf("WSCouplings bad op %s on %s", err, message)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case c.incoming <- op:
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-c.outbound:
				js, err := json.Marshal(u)
				if err != nil {
					log.Printf("WSCouplings marshal error %s", err)
					continue
				}
				if err = conn.WriteMessage(websocket.TextMessage, js); err != nil {
					log.Printf("WSCouplings write error %s", err)
					return
				}
			}
		}
	}()

	return nil
}

// IO returns the channels for in-bound ops and out-bound updates.
func (c *WSCouplings) IO(ctx context.Context) (chan *sio.Op, chan *sio.Update, chan bool, error) {
	return c.incoming, c.outbound, c.done, nil
}

// Stop closes the connection.
func (c *WSCouplings) Stop(ctx context.Context) error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
