package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// HeadSubscriber keeps an eth_subscribe("newHeads") stream open and calls
// OnHead for every new block announcement. It only nudges the poller —
// ordered log delivery always goes through eth_getLogs, so strict
// (block, logIndex) ordering is never at the mercy of the push stream.
type HeadSubscriber struct {
	URL    string
	OnHead func(blockNumber uint64)
}

func NewHeadSubscriber(url string, onHead func(uint64)) *HeadSubscriber {
	return &HeadSubscriber{URL: url, OnHead: onHead}
}

// Run blocks until ctx is cancelled, reconnecting with doubling backoff.
// A stream that delivered at least one message resets the backoff, so a
// long-lived connection dropping does not pay for earlier flapping.
func (s *HeadSubscriber) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		delivered, err := s.stream(ctx)
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("newHeads subscription dropped")
		}
		if delivered {
			backoff = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < time.Minute {
			backoff *= 2
		}
	}
}

type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Number string `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

// stream reports whether the connection delivered any message before it
// dropped.
func (s *HeadSubscriber) stream(ctx context.Context) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// Close the socket when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := rpcRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []any{"newHeads"}}
	if err := conn.WriteJSON(sub); err != nil {
		return false, err
	}

	log.Info().Str("url", s.URL).Msg("subscribed to newHeads")

	delivered := false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return delivered, err
		}
		delivered = true
		var note wsNotification
		if err := json.Unmarshal(raw, &note); err != nil || note.Method != "eth_subscription" {
			continue
		}
		num, err := parseHexUint(note.Params.Result.Number)
		if err != nil {
			continue
		}
		if s.OnHead != nil {
			s.OnHead(num)
		}
	}
}
