package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const ActionRequestPayloadSize = 48

// EncodeActionRequest serializes an action request into a fixed-size payload.
func EncodeActionRequest(dst []byte, r schema.ActionRequest) []byte {
	if cap(dst) < ActionRequestPayloadSize {
		dst = make([]byte, ActionRequestPayloadSize)
	} else {
		dst = dst[:ActionRequestPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], r.RequestID)
	binary.LittleEndian.PutUint64(dst[8:16], r.ClientID)
	binary.LittleEndian.PutUint32(dst[16:20], r.InstrumentID)
	binary.LittleEndian.PutUint16(dst[20:22], uint16(r.Kind))
	binary.LittleEndian.PutUint16(dst[22:24], uint16(r.Side))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(r.Price))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(r.Size))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(r.Ts))

	return dst
}

// DecodeActionRequest parses a fixed-size action request payload.
func DecodeActionRequest(src []byte) (schema.ActionRequest, bool) {
	if len(src) < ActionRequestPayloadSize {
		return schema.ActionRequest{}, false
	}
	return schema.ActionRequest{
		RequestID:    binary.LittleEndian.Uint64(src[0:8]),
		ClientID:     binary.LittleEndian.Uint64(src[8:16]),
		InstrumentID: binary.LittleEndian.Uint32(src[16:20]),
		Kind:         schema.ActionKind(binary.LittleEndian.Uint16(src[20:22])),
		Side:         schema.Side(binary.LittleEndian.Uint16(src[22:24])),
		Price:        schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Size:         schema.Quantity(int64(binary.LittleEndian.Uint64(src[32:40]))),
		Ts:           int64(binary.LittleEndian.Uint64(src[40:48])),
	}, true
}

const ActionResultPayloadSize = 40

// EncodeActionResult serializes an action result into a fixed-size payload.
func EncodeActionResult(dst []byte, r schema.ActionResult) []byte {
	if cap(dst) < ActionResultPayloadSize {
		dst = make([]byte, ActionResultPayloadSize)
	} else {
		dst = dst[:ActionResultPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], r.RequestID)
	binary.LittleEndian.PutUint64(dst[8:16], r.ClientID)
	binary.LittleEndian.PutUint64(dst[16:24], r.ExchangeID)
	binary.LittleEndian.PutUint16(dst[24:26], uint16(r.Outcome))
	binary.LittleEndian.PutUint16(dst[26:28], r.Attempt)
	binary.LittleEndian.PutUint32(dst[28:32], r.Code)
	binary.LittleEndian.PutUint64(dst[32:40], uint64(r.Ts))

	return dst
}

// DecodeActionResult parses a fixed-size action result payload.
func DecodeActionResult(src []byte) (schema.ActionResult, bool) {
	if len(src) < ActionResultPayloadSize {
		return schema.ActionResult{}, false
	}
	return schema.ActionResult{
		RequestID:  binary.LittleEndian.Uint64(src[0:8]),
		ClientID:   binary.LittleEndian.Uint64(src[8:16]),
		ExchangeID: binary.LittleEndian.Uint64(src[16:24]),
		Outcome:    schema.ActionOutcome(binary.LittleEndian.Uint16(src[24:26])),
		Attempt:    binary.LittleEndian.Uint16(src[26:28]),
		Code:       binary.LittleEndian.Uint32(src[28:32]),
		Ts:         int64(binary.LittleEndian.Uint64(src[32:40])),
	}, true
}
