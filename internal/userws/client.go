// Package userws streams authenticated user-channel fill events from the
// CLOB websocket and normalizes them into ledger fills.
package userws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LarsOlovLindberg/Spelar/internal/ledger"
)

const DefaultURL = "wss://ws-subscriptions-clob.polymarket.com/ws/user"

const DefaultPingInterval = 5 * time.Second

// Auth is the L2 credential triple for the user channel.
type Auth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

type subscribeRequest struct {
	Type string `json:"type"`
	Auth Auth   `json:"auth"`
}

type Options struct {
	PingInterval time.Duration

	BackoffMin time.Duration
	BackoffMax time.Duration

	OutBuffer int
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.BackoffMin <= 0 {
		o.BackoffMin = time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 30 * time.Second
	}
	if o.OutBuffer <= 0 {
		o.OutBuffer = 256
	}
	return o
}

// Start connects to the user channel and emits decoded fills until ctx ends.
// Reconnects with jittered multiplicative backoff; duplicate deliveries are
// expected across reconnects, the ledger fill store de-duplicates by trade id.
func Start(ctx context.Context, url string, auth Auth, opts Options) (<-chan ledger.FillEvent, <-chan error) {
	opts = opts.withDefaults()
	if url == "" {
		url = DefaultURL
	}

	out := make(chan ledger.FillEvent, opts.OutBuffer)
	errs := make(chan error, 16)

	go func() {
		defer close(out)
		defer close(errs)

		backoff := opts.BackoffMin
		for {
			if ctx.Err() != nil {
				return
			}

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				emitErrNonBlocking(errs, fmt.Errorf("userws dial: %w", err))
				sleepWithJitter(ctx, backoff)
				backoff = nextBackoff(backoff, opts.BackoffMax)
				continue
			}

			backoff = opts.BackoffMin

			if err := runSession(ctx, conn, auth, opts.PingInterval, out, errs); err != nil && ctx.Err() == nil {
				emitErrNonBlocking(errs, err)
			}

			_ = conn.Close()
			if ctx.Err() != nil {
				return
			}
			sleepWithJitter(ctx, backoff)
			backoff = nextBackoff(backoff, opts.BackoffMax)
		}
	}()

	return out, errs
}

func runSession(
	ctx context.Context,
	conn *websocket.Conn,
	auth Auth,
	pingInterval time.Duration,
	out chan<- ledger.FillEvent,
	errs chan<- error,
) error {
	if conn == nil {
		return fmt.Errorf("userws session: nil conn")
	}

	req := subscribeRequest{Type: "user", Auth: auth}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("userws subscribe marshal: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, reqBytes); err != nil {
		return fmt.Errorf("userws subscribe write: %w", err)
	}

	var writeMu sync.Mutex
	stop := make(chan struct{})
	var stopOnce sync.Once
	stopAll := func() { stopOnce.Do(func() { close(stop) }) }

	go func() {
		defer stopAll()
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				writeMu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
				werr := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
				writeMu.Unlock()
				if werr != nil {
					emitErrNonBlocking(errs, fmt.Errorf("userws ping: %w", werr))
					_ = conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			stopAll()
			if errors.Is(err, websocket.ErrCloseSent) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("userws read: %w", err)
		}

		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if len(msg) == 0 {
			continue
		}
		if s := string(msg); s == "pong" || s == "ping" {
			continue
		}

		fills, err := ExtractFills(msg)
		if err != nil {
			emitErrNonBlocking(errs, fmt.Errorf("userws decode: %w", err))
			continue
		}
		for _, f := range fills {
			select {
			case out <- f:
			default:
			}
		}
	}
}

// ExtractFills pulls fill events out of a raw user-channel message. The feed
// mixes shapes: a bare fill object, an array of them, or an envelope whose
// trades/data/fills field holds either. Non-trade messages decode to nothing.
func ExtractFills(msg []byte) ([]ledger.FillEvent, error) {
	msg = []byte(strings.TrimSpace(string(msg)))
	if len(msg) == 0 {
		return nil, nil
	}

	if msg[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(msg, &items); err != nil {
			return nil, err
		}
		var out []ledger.FillEvent
		for _, item := range items {
			fills, err := ExtractFills(item)
			if err != nil {
				continue
			}
			out = append(out, fills...)
		}
		return out, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(msg, &obj); err != nil {
		return nil, err
	}

	// Envelope shapes first.
	for _, key := range []string{"trades", "fills", "data", "payload"} {
		if inner, ok := obj[key]; ok {
			fills, err := ExtractFills(inner)
			if err == nil && len(fills) > 0 {
				return fills, nil
			}
		}
	}

	if ev, err := ledger.FillFromLoose(obj); err == nil {
		return []ledger.FillEvent{ev}, nil
	}
	return nil, nil
}

func emitErrNonBlocking(ch chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	// Grow by 1.7x, gentler than doubling given how chatty the feed is.
	next := cur + cur*7/10
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	j := int64(d) / 7
	if j > 0 {
		d = time.Duration(int64(d) + rand.Int63n(2*j+1) - j)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
