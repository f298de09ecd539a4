package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketService serves SOps at /ws/api.
//
// Every connected socket also hears the service's traffic: state
// changes and do/did records for the SOps the service processes, so a
// browser can watch its stores move.
func (s *Service) WebSocketService(ctx context.Context) error {

	s.ops = make(chan interface{}, 1024)

	var upgrader = websocket.Upgrader{} // Default options.

	// Each connection gets a buffered chan here, keyed by remote
	// address.
	socks := sync.Map{}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case x := <-s.ops:
				socks.Range(func(who, v interface{}) bool {
					Logf("Service.WebSocketService forwarding %s to %v", JS(x), who)
					c := v.(chan interface{})
					select {
					case c <- x:
					default:
						log.Printf("Service.WebSocketService %v backed up; dropping", who)
					}
					return true
				})
			}
		}
	}()

	handle := func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Service.WebSocketService upgrade error %s", err)
			return
		}
		defer conn.Close()

		who := conn.RemoteAddr().String()
		log.Printf("Service.WebSocketService connection from %s", who)

		traffic := make(chan interface{}, 32)
		socks.Store(who, traffic)
		defer socks.Delete(who)

		gone := make(chan bool)
		defer close(gone)

		// Writer: service traffic out to the socket.
		go func() {
			for {
				select {
				case <-gone:
					return
				case <-ctx.Done():
					return
				case x := <-traffic:
					js, err := json.Marshal(&x)
					if err != nil {
						log.Printf("Service.WebSocketService marshal error %s on %#v", err, x)
						continue
					}
					if err = conn.WriteMessage(websocket.TextMessage, js); err != nil {
						log.Printf("Service.WebSocketService write error %s", err)
					}
				}
			}
		}()

		// Reader: SOps in from the socket.
		for {
			mt, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("Service.WebSocketService %s closed: %s", who, err)
				return
			}

			var op SOp
			if err := json.Unmarshal(message, &op); err != nil {
				msg := fmt.Sprintf("can't parse: %s", err)
				if err = conn.WriteMessage(mt, []byte(msg)); err != nil {
					log.Printf("Service.WebSocketService write error %s", err)
				}
				continue
			}

			if err = op.Do(ctx, s); err != nil {
				// The op carries its own Err back out.
				log.Printf("Service.WebSocketService op error %s", err)
			}
		}
	}

	http.HandleFunc("/ws/api", handle)

	return nil
}
