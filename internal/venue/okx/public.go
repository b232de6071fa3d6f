package okx

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/schema"
	"main/internal/venue"
	"main/pkg/exception"
)

const (
	channelBooks  = "books"
	channelTrades = "trades"

	actionSnapshot = "snapshot"
)

// PublicStream runs the books and trades channels for one instrument
// and normalizes pushes into engine events. Each Run call dials a fresh
// connection; the feed supervisor owns the reconnect policy.
type PublicStream struct {
	cfg  Config
	inst schema.Instrument

	mu  sync.Mutex
	wss *ws.WebSocket

	// Venue seqIds are sparse. The stream keeps its own dense counter
	// so the book store can enforce contiguity; a venue-side gap maps
	// to a dense gap, which the store rejects and the supervisor heals
	// with a resync.
	venueSeq int64
	denseSeq uint64
}

func NewPublicStream(cfg Config, inst schema.Instrument) *PublicStream {
	return &PublicStream{cfg: cfg.withDefaults(), inst: inst}
}

func (s *PublicStream) Run(ctx context.Context, handler venue.PublicHandler) error {
	wss := ws.New(ctx, s.cfg.PublicWsURL)
	if err := wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start public wss")
	}
	s.mu.Lock()
	s.wss = wss
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.wss = nil
		s.mu.Unlock()
		wss.Close()
	}()

	if err := s.request(ctx, wss, "subscribe", channelBooks); err != nil {
		return errors.Wrap(exception.ErrSubscribeFailed, err.Error())
	}
	if err := s.request(ctx, wss, "subscribe", channelTrades); err != nil {
		return errors.Wrap(exception.ErrSubscribeFailed, err.Error())
	}

	ch, cancel := wss.Subscribe()
	defer cancel()

	for {
		select {
		case <-sys.Shutdown():
			return ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return exception.ErrFeedClosed
			}
			s.dispatch(m, handler)
		}
	}
}

// Resubscribe drops and re-adds the books channel so the venue pushes a
// fresh snapshot on the live connection.
func (s *PublicStream) Resubscribe(ctx context.Context, instrumentID uint32) error {
	s.mu.Lock()
	wss := s.wss
	s.mu.Unlock()
	if wss == nil {
		return exception.ErrFeedClosed
	}

	if err := s.request(ctx, wss, "unsubscribe", channelBooks); err != nil {
		return errors.Wrap(err, "unsubscribe books")
	}
	if err := s.request(ctx, wss, "subscribe", channelBooks); err != nil {
		return errors.Wrap(exception.ErrSubscribeFailed, err.Error())
	}
	return nil
}

func (s *PublicStream) request(ctx context.Context, wss *ws.WebSocket, op, channel string) error {
	appendIntoRegister := op == "subscribe"
	if err := wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := wsRequest{
				Op:   op,
				Args: []any{wsSubArg{Channel: channel, InstID: s.inst.Name}},
			}
			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write request payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var ev wsEvent
			if err := m.Unmarshal(&ev); err != nil {
				return false, nil
			}
			if ev.Event == "error" {
				return false, errors.Errorf("%s %s, code: %s, msg: %s", op, channel, ev.Code, ev.Msg)
			}
			if ev.Event != op || ev.Arg.Channel != channel {
				return false, nil
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

func (s *PublicStream) dispatch(m ws.Message, handler venue.PublicHandler) {
	var probe wsEvent
	if err := m.Unmarshal(&probe); err != nil {
		return
	}
	if probe.Event != "" {
		if probe.Event == "error" {
			logs.Warnf("public stream error event, code: %s, msg: %s", probe.Code, probe.Msg)
		}
		return
	}

	switch probe.Arg.Channel {
	case channelBooks:
		s.handleBook(m, handler)
	case channelTrades:
		s.handleTrade(m, handler)
	}
}

func (s *PublicStream) handleBook(m ws.Message, handler venue.PublicHandler) {
	msg, ok := ws.ReadMessage[wsBookMsg](m)
	if !ok {
		return
	}
	for _, d := range msg.Data {
		seq, fresh := s.nextSeq(msg.Action, d)
		if !fresh {
			continue
		}
		update, err := toBookUpdate(s.inst, msg.Action, d, seq)
		if err != nil {
			logs.Warnf("drop malformed book push, err: %+v", err)
			continue
		}
		handler.OnBook(update)
	}
}

func (s *PublicStream) handleTrade(m ws.Message, handler venue.PublicHandler) {
	msg, ok := ws.ReadMessage[wsTradeMsg](m)
	if !ok {
		return
	}
	for _, d := range msg.Data {
		trade, err := toTrade(s.inst, d)
		if err != nil {
			logs.Warnf("drop malformed trade push, err: %+v", err)
			continue
		}
		handler.OnTrade(trade)
	}
}

// nextSeq maps the venue's sparse seqId chain onto the dense counter.
// Heartbeats (seqId == prevSeqId) and replays are dropped here; a chain
// break produces a non-contiguous dense seq on purpose.
func (s *PublicStream) nextSeq(action string, d wsBookData) (uint64, bool) {
	if action == actionSnapshot {
		s.venueSeq = d.SeqID
		s.denseSeq++
		return s.denseSeq, true
	}
	if d.SeqID == d.PrevSeqID || d.SeqID < s.venueSeq {
		return 0, false
	}
	if d.PrevSeqID == s.venueSeq {
		s.venueSeq = d.SeqID
		s.denseSeq++
		return s.denseSeq, true
	}

	s.venueSeq = d.SeqID
	s.denseSeq += 2
	return s.denseSeq, true
}

var _ venue.PublicFeed = (*PublicStream)(nil)
