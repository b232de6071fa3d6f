package okx

import (
	"context"
	"strconv"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/schema"
	"main/internal/venue"
	"main/pkg/exception"
)

const (
	channelOrders    = "orders"
	channelPositions = "positions"
	channelAccount   = "account"
)

// PrivateStream runs the authenticated orders, positions and account
// channels. Login rides the connection sidecar so it replays on every
// dial.
type PrivateStream struct {
	cfg  Config
	inst schema.Instrument
	now  func() time.Time

	// one clock per channel; pushes on a channel arrive in order, so a
	// per-channel clock keeps every order's sequence strictly increasing
	ordSeq seqClock
	posSeq seqClock
	balSeq seqClock
}

func NewPrivateStream(cfg Config, inst schema.Instrument) *PrivateStream {
	return &PrivateStream{cfg: cfg.withDefaults(), inst: inst, now: time.Now}
}

func (s *PrivateStream) Run(ctx context.Context, handler venue.PrivateHandler) error {
	wss := ws.New(ctx, s.cfg.PrivateWsURL)
	if err := wss.Start(ctx, s.loginSidecar()); err != nil {
		return errors.Wrap(err, "start private wss")
	}
	defer wss.Close()

	for _, arg := range []wsSubArg{
		{Channel: channelOrders, InstType: s.inst.Type.String(), InstID: s.inst.Name},
		{Channel: channelPositions, InstType: s.inst.Type.String(), InstID: s.inst.Name},
		{Channel: channelAccount},
	} {
		if err := s.subscribe(ctx, wss, arg); err != nil {
			return errors.Wrap(exception.ErrSubscribeFailed, err.Error())
		}
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

// loginSidecar signs the login frame at connect time. The venue wants
// a unix-seconds timestamp here, unlike the REST surface.
func (s *PrivateStream) loginSidecar() ws.Sidecar {
	return ws.Sidecar{
		Sender: func(ctx context.Context, wss *ws.WebSocket) error {
			ts := strconv.FormatInt(s.now().Unix(), 10)
			payload := wsRequest{
				Op: "login",
				Args: []any{wsLoginArg{
					APIKey:     s.cfg.Credentials.APIKey,
					Passphrase: s.cfg.Credentials.Passphrase,
					Timestamp:  ts,
					Sign:       wsLoginSign(s.cfg.Credentials.SecretKey, ts),
				}},
			}
			if err := wss.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write login payload")
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var ev wsEvent
			if err := m.Unmarshal(&ev); err != nil {
				return false, nil
			}
			switch ev.Event {
			case "login":
				return true, nil
			case "error":
				return false, errors.Errorf("login, code: %s, msg: %s", ev.Code, ev.Msg)
			default:
				return false, nil
			}
		},
	}
}

func (s *PrivateStream) subscribe(ctx context.Context, wss *ws.WebSocket, arg wsSubArg) error {
	appendIntoRegister := true
	if err := wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := wsRequest{Op: "subscribe", Args: []any{arg}}
			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var ev wsEvent
			if err := m.Unmarshal(&ev); err != nil {
				return false, nil
			}
			if ev.Event == "error" {
				return false, errors.Errorf("subscribe %s, code: %s, msg: %s", arg.Channel, ev.Code, ev.Msg)
			}
			if ev.Event != "subscribe" || ev.Arg.Channel != arg.Channel {
				return false, nil
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

func (s *PrivateStream) dispatch(m ws.Message, handler venue.PrivateHandler) {
	var probe wsEvent
	if err := m.Unmarshal(&probe); err != nil {
		return
	}
	if probe.Event != "" {
		if probe.Event == "error" {
			logs.Warnf("private stream error event, code: %s, msg: %s", probe.Code, probe.Msg)
		}
		return
	}

	switch probe.Arg.Channel {
	case channelOrders:
		s.handleOrders(m, handler)
	case channelPositions:
		s.handlePositions(m, handler)
	case channelAccount:
		s.handleAccount(m, handler)
	}
}

func (s *PrivateStream) handleOrders(m ws.Message, handler venue.PrivateHandler) {
	msg, ok := ws.ReadMessage[wsOrdersMsg](m)
	if !ok {
		return
	}
	for _, d := range msg.Data {
		if d.InstID != s.inst.Name {
			continue
		}
		update, err := toOrderUpdate(s.inst, d)
		if err != nil {
			logs.Warnf("drop malformed order push, err: %+v", err)
			continue
		}
		update.Seq = s.ordSeq.Next(update.Seq)
		handler.OnOrder(update)
	}
}

func (s *PrivateStream) handlePositions(m ws.Message, handler venue.PrivateHandler) {
	msg, ok := ws.ReadMessage[wsPositionsMsg](m)
	if !ok {
		return
	}
	for _, d := range msg.Data {
		if d.InstID != s.inst.Name {
			continue
		}
		pos, err := parseQty(s.inst, d.Pos.String())
		if err != nil {
			logs.Warnf("drop malformed position push, err: %+v", err)
			continue
		}
		avgPx, err := parsePrice(s.inst, d.AvgPx.String())
		if err != nil {
			avgPx = 0
		}
		millis := parseMillis(d.UTime)
		handler.OnPosition(schema.PositionUpdate{
			InstrumentID: uint32(s.inst.ID),
			Kind:         schema.UpdateKindSnapshot,
			Seq:          s.posSeq.Next(uint64(millis)),
			Position:     pos,
			AvgPrice:     avgPx,
			Ts:           millis * int64(time.Millisecond),
		})
	}
}

func (s *PrivateStream) handleAccount(m ws.Message, handler venue.PrivateHandler) {
	msg, ok := ws.ReadMessage[wsAccountMsg](m)
	if !ok {
		return
	}
	for _, d := range msg.Data {
		millis := parseMillis(d.UTime)
		for _, detail := range d.Details {
			avail, err := parseNotional(s.inst, detail.AvailBal.String())
			if err != nil {
				logs.Warnf("drop malformed balance push, err: %+v", err)
				continue
			}
			frozen, err := parseNotional(s.inst, detail.FrozenBal.String())
			if err != nil {
				logs.Warnf("drop malformed balance push, err: %+v", err)
				continue
			}
			handler.OnBalance(schema.BalanceUpdate{
				Currency:  schema.NewCcy(detail.Ccy),
				Kind:      schema.UpdateKindSnapshot,
				Seq:       s.balSeq.Next(uint64(millis)),
				Available: avail,
				Frozen:    frozen,
				Ts:        millis * int64(time.Millisecond),
			})
		}
	}
}

var _ venue.PrivateFeed = (*PrivateStream)(nil)
