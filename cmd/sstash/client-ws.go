package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"

	"github.com/gorilla/websocket"
)

// WebSocketClient dials a remote WebSocket service and works for it:
// SOps the remote side sends are applied here, and this service's
// state changes flow back.
//
// Useful for parking a stash behind something that can't reach it
// directly.
func (s *Service) WebSocketClient(ctx context.Context, urls string) error {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	u, err := url.Parse(urls)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("Service.WebSocketClient connected to %s", urls)

	s.wsClientC = make(chan interface{}, 10) // ?

	// Reader: in-bound SOps from the remote service.
	go func() {
		for {
			select {
			case <-ctx.Done():
				Logf("Service.WebSocketClient reader closing")
				return
			default:
			}

			_, message, err := conn.ReadMessage()
			if err != nil {
				s.err(err)
				continue
			}
			Logf("Service.WebSocketClient heard %s", message)

			var op SOp
			if err = json.Unmarshal(message, &op); err != nil {
				s.err(fmt.Errorf("WebSocketClient can't parse %s: %s", message, err))
				continue
			}

			if err = op.Do(ctx, s); err != nil {
				s.err(err)
			}
		}
	}()

	// Writer: out-bound state changes, fed by Service.change.
	for {
		select {
		case <-ctx.Done():
			Logf("Service.WebSocketClient writer closing")
			return nil
		case x := <-s.wsClientC:
			m, is := x.(map[string]interface{})
			if !is {
				s.err(fmt.Errorf("%s (%T) isn't a %T", JS(x), x, m))
				continue
			}

			js, err := json.Marshal(&m)
			if err != nil {
				s.err(err)
				continue
			}

			js = withStashEnvVars(js)

			Logf("Service.WebSocketClient writing %s", js)

			if err = conn.WriteMessage(websocket.TextMessage, js); err != nil {
				s.err(err)
			}
		}
	}
}

// withStashEnvVars replaces all substrings matching stashEnvVars with
// the corresponding environment variable values, so an out-bound
// message can name (say) $STASH_NODE without this process knowing it.
func withStashEnvVars(msg []byte) []byte {
	// ToDo: Make more efficient!
	return stashEnvVars.ReplaceAllFunc(msg, func(bs []byte) []byte {
		if val := os.Getenv(string(bs[1:])); val != "" {
			return []byte(val)
		}
		return bs
	})
}

var stashEnvVars = regexp.MustCompile(`\$STASH_\w+`)
