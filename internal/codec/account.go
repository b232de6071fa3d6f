package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const PositionUpdatePayloadSize = 40

// EncodePositionUpdate serializes a position update into a fixed-size payload.
func EncodePositionUpdate(dst []byte, u schema.PositionUpdate) []byte {
	if cap(dst) < PositionUpdatePayloadSize {
		dst = make([]byte, PositionUpdatePayloadSize)
	} else {
		dst = dst[:PositionUpdatePayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], u.InstrumentID)
	binary.LittleEndian.PutUint16(dst[4:6], uint16(u.Kind))
	binary.LittleEndian.PutUint16(dst[6:8], u.Reserved)
	binary.LittleEndian.PutUint64(dst[8:16], u.Seq)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(u.Position))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(u.AvgPrice))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(u.Ts))

	return dst
}

// DecodePositionUpdate parses a fixed-size position update payload.
func DecodePositionUpdate(src []byte) (schema.PositionUpdate, bool) {
	if len(src) < PositionUpdatePayloadSize {
		return schema.PositionUpdate{}, false
	}
	return schema.PositionUpdate{
		InstrumentID: binary.LittleEndian.Uint32(src[0:4]),
		Kind:         schema.UpdateKind(binary.LittleEndian.Uint16(src[4:6])),
		Reserved:     binary.LittleEndian.Uint16(src[6:8]),
		Seq:          binary.LittleEndian.Uint64(src[8:16]),
		Position:     schema.Quantity(int64(binary.LittleEndian.Uint64(src[16:24]))),
		AvgPrice:     schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Ts:           int64(binary.LittleEndian.Uint64(src[32:40])),
	}, true
}

const BalanceUpdatePayloadSize = 48

// EncodeBalanceUpdate serializes a balance update into a fixed-size payload.
func EncodeBalanceUpdate(dst []byte, u schema.BalanceUpdate) []byte {
	if cap(dst) < BalanceUpdatePayloadSize {
		dst = make([]byte, BalanceUpdatePayloadSize)
	} else {
		dst = dst[:BalanceUpdatePayloadSize]
	}

	copy(dst[0:8], u.Currency[:])
	binary.LittleEndian.PutUint16(dst[8:10], uint16(u.Kind))
	binary.LittleEndian.PutUint16(dst[10:12], u.Reserved)
	binary.LittleEndian.PutUint32(dst[12:16], u.Flags)
	binary.LittleEndian.PutUint64(dst[16:24], u.Seq)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(u.Available))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(u.Frozen))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(u.Ts))

	return dst
}

// DecodeBalanceUpdate parses a fixed-size balance update payload.
func DecodeBalanceUpdate(src []byte) (schema.BalanceUpdate, bool) {
	if len(src) < BalanceUpdatePayloadSize {
		return schema.BalanceUpdate{}, false
	}
	u := schema.BalanceUpdate{
		Kind:      schema.UpdateKind(binary.LittleEndian.Uint16(src[8:10])),
		Reserved:  binary.LittleEndian.Uint16(src[10:12]),
		Flags:     binary.LittleEndian.Uint32(src[12:16]),
		Seq:       binary.LittleEndian.Uint64(src[16:24]),
		Available: schema.Notional(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Frozen:    schema.Notional(int64(binary.LittleEndian.Uint64(src[32:40]))),
		Ts:        int64(binary.LittleEndian.Uint64(src[40:48])),
	}
	copy(u.Currency[:], src[0:8])
	return u, true
}
