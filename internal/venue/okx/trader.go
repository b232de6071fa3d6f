package okx

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"main/internal/schema"
	"main/internal/venue"
	"main/pkg/exception"
)

const (
	pathBatchPlace  = "/api/v5/trade/batch-orders"
	pathBatchAmend  = "/api/v5/trade/amend-batch-orders"
	pathBatchCancel = "/api/v5/trade/cancel-batch-orders"
	pathOrderQuery  = "/api/v5/trade/order"
)

// Trader is the signed REST trading client for one instrument.
type Trader struct {
	cfg    Config
	inst   schema.Instrument
	client *http.Client
	now    func() time.Time
}

// NewTrader builds the trading client. A nil http.Client gets a default
// with the request timeout applied.
func NewTrader(cfg Config, inst schema.Instrument, client *http.Client) *Trader {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Trader{
		cfg:    cfg.withDefaults(),
		inst:   inst,
		client: client,
		now:    time.Now,
	}
}

// Place sends one batch of new limit orders.
func (t *Trader) Place(ctx context.Context, reqs []schema.ActionRequest) ([]venue.Ack, error) {
	rows := make([]placeRow, len(reqs))
	for i, req := range reqs {
		rows[i] = placeRow{
			InstID:  t.inst.Name,
			TdMode:  tdMode(t.inst),
			ClOrdID: strconv.FormatUint(req.ClientID, 10),
			Side:    sideString(req.Side),
			OrdType: "limit",
			Px:      schema.FormatScaled(int64(req.Price), t.inst.Scale.PriceScale),
			Sz:      schema.FormatScaled(int64(req.Size), t.inst.Scale.QuantityScale),
		}
	}
	return t.sendBatch(ctx, pathBatchPlace, rows, reqs)
}

// Amend moves a batch of resting orders to new total price/size.
func (t *Trader) Amend(ctx context.Context, reqs []schema.ActionRequest) ([]venue.Ack, error) {
	rows := make([]amendRow, len(reqs))
	for i, req := range reqs {
		rows[i] = amendRow{
			InstID:  t.inst.Name,
			ClOrdID: strconv.FormatUint(req.ClientID, 10),
		}
		if req.Price > 0 {
			rows[i].NewPx = schema.FormatScaled(int64(req.Price), t.inst.Scale.PriceScale)
		}
		if req.Size > 0 {
			rows[i].NewSz = schema.FormatScaled(int64(req.Size), t.inst.Scale.QuantityScale)
		}
	}
	return t.sendBatch(ctx, pathBatchAmend, rows, reqs)
}

// Cancel removes a batch of resting orders.
func (t *Trader) Cancel(ctx context.Context, reqs []schema.ActionRequest) ([]venue.Ack, error) {
	rows := make([]cancelRow, len(reqs))
	for i, req := range reqs {
		rows[i] = cancelRow{
			InstID:  t.inst.Name,
			ClOrdID: strconv.FormatUint(req.ClientID, 10),
		}
	}
	return t.sendBatch(ctx, pathBatchCancel, rows, reqs)
}

// Query resolves one order by client id, used by the gateway after a
// dispatch timeout.
func (t *Trader) Query(ctx context.Context, clientID uint64) (venue.OrderState, error) {
	path := pathOrderQuery + "?instId=" + t.inst.Name + "&clOrdId=" + strconv.FormatUint(clientID, 10)
	body, err := t.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return venue.OrderState{}, err
	}

	var resp restResponse[orderDetail]
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return venue.OrderState{}, errors.Wrap(err, "decode order query response")
	}
	if code := parseCode(resp.Code); code != codeOK {
		if code == codeOrderNotFound {
			return venue.OrderState{}, nil
		}
		return venue.OrderState{}, errors.Wrapf(exception.ErrVenueRejected, "query order, code: %d, msg: %s", code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return venue.OrderState{}, nil
	}
	update, err := toOrderUpdate(t.inst, resp.Data[0])
	if err != nil {
		return venue.OrderState{}, err
	}
	return venue.OrderState{Known: true, Update: update}, nil
}

// sendBatch posts rows to a batch trade endpoint and aligns the per-row
// receipts with the request slice by client id.
func (t *Trader) sendBatch(ctx context.Context, path string, rows any, reqs []schema.ActionRequest) ([]venue.Ack, error) {
	payload, err := sonic.ConfigFastest.Marshal(rows)
	if err != nil {
		return nil, errors.Wrap(err, "encode batch")
	}

	body, err := t.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	var resp restResponse[orderAck]
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode batch response")
	}

	// A top-level retryable code fails the whole batch in transport
	// terms; the gateway redispatches it.
	if code := parseCode(resp.Code); code != codeOK && len(resp.Data) == 0 {
		if classify(code) == schema.OutcomeFailedRetryable {
			return nil, errors.Wrapf(exception.ErrVenueRateLimited, "code: %d, msg: %s", code, resp.Msg)
		}
		return nil, errors.Wrapf(exception.ErrVenueRejected, "code: %d, msg: %s", code, resp.Msg)
	}

	byClient := make(map[string]orderAck, len(resp.Data))
	for _, row := range resp.Data {
		byClient[row.ClOrdID] = row
	}

	acks := make([]venue.Ack, len(reqs))
	for i, req := range reqs {
		row, ok := byClient[strconv.FormatUint(req.ClientID, 10)]
		if !ok {
			acks[i] = venue.Ack{
				ClientID: req.ClientID,
				Code:     ^uint32(0),
				Message:  "missing receipt row",
				Outcome:  schema.OutcomeFailedRetryable,
			}
			continue
		}
		code := parseCode(row.SCode)
		exchangeID, _ := strconv.ParseUint(row.OrdID, 10, 64)
		acks[i] = venue.Ack{
			ClientID:   req.ClientID,
			ExchangeID: exchangeID,
			Code:       code,
			Message:    row.SMsg,
			Outcome:    classify(code),
		}
	}
	return acks, nil
}

// do signs and executes one REST call and returns the raw body.
func (t *Trader) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if len(payload) > 0 {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.cfg.RestURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	ts := restTimestamp(t.now())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", t.cfg.Credentials.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", sign(t.cfg.Credentials.SecretKey, ts, method, path, payload))
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", t.cfg.Credentials.Passphrase)
	if t.cfg.Simulated {
		req.Header.Set("x-simulated-trading", "1")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, errors.Wrapf(exception.ErrVenueUnavailable, "status: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(exception.ErrVenueRejected, "status: %d, body: %s", resp.StatusCode, body)
	}
	return body, nil
}

func sideString(side schema.Side) string {
	if side == schema.SideSell {
		return "sell"
	}
	return "buy"
}

var _ venue.Trader = (*Trader)(nil)
