package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const OrderUpdatePayloadSize = 80

// EncodeOrderUpdate serializes an order update into a fixed-size payload.
func EncodeOrderUpdate(dst []byte, u schema.OrderUpdate) []byte {
	if cap(dst) < OrderUpdatePayloadSize {
		dst = make([]byte, OrderUpdatePayloadSize)
	} else {
		dst = dst[:OrderUpdatePayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], u.ClientID)
	binary.LittleEndian.PutUint64(dst[8:16], u.ExchangeID)
	binary.LittleEndian.PutUint32(dst[16:20], u.InstrumentID)
	binary.LittleEndian.PutUint16(dst[20:22], uint16(u.Status))
	binary.LittleEndian.PutUint16(dst[22:24], uint16(u.Side))
	binary.LittleEndian.PutUint64(dst[24:32], u.Seq)
	binary.LittleEndian.PutUint64(dst[32:40], uint64(u.Price))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(u.Size))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(u.Remaining))
	binary.LittleEndian.PutUint64(dst[56:64], uint64(u.Filled))
	binary.LittleEndian.PutUint64(dst[64:72], uint64(u.AvgPrice))
	binary.LittleEndian.PutUint64(dst[72:80], uint64(u.Ts))

	return dst
}

// DecodeOrderUpdate parses a fixed-size order update payload.
func DecodeOrderUpdate(src []byte) (schema.OrderUpdate, bool) {
	if len(src) < OrderUpdatePayloadSize {
		return schema.OrderUpdate{}, false
	}
	return schema.OrderUpdate{
		ClientID:     binary.LittleEndian.Uint64(src[0:8]),
		ExchangeID:   binary.LittleEndian.Uint64(src[8:16]),
		InstrumentID: binary.LittleEndian.Uint32(src[16:20]),
		Status:       schema.OrderStatus(binary.LittleEndian.Uint16(src[20:22])),
		Side:         schema.Side(binary.LittleEndian.Uint16(src[22:24])),
		Seq:          binary.LittleEndian.Uint64(src[24:32]),
		Price:        schema.Price(int64(binary.LittleEndian.Uint64(src[32:40]))),
		Size:         schema.Quantity(int64(binary.LittleEndian.Uint64(src[40:48]))),
		Remaining:    schema.Quantity(int64(binary.LittleEndian.Uint64(src[48:56]))),
		Filled:       schema.Quantity(int64(binary.LittleEndian.Uint64(src[56:64]))),
		AvgPrice:     schema.Price(int64(binary.LittleEndian.Uint64(src[64:72]))),
		Ts:           int64(binary.LittleEndian.Uint64(src[72:80])),
	}, true
}
