package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const TradePayloadSize = 32

// EncodeTrade serializes a public trade into a fixed-size payload.
func EncodeTrade(dst []byte, t schema.Trade) []byte {
	if cap(dst) < TradePayloadSize {
		dst = make([]byte, TradePayloadSize)
	} else {
		dst = dst[:TradePayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], t.InstrumentID)
	binary.LittleEndian.PutUint16(dst[4:6], uint16(t.Side))
	binary.LittleEndian.PutUint16(dst[6:8], t.Flags)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(t.Price))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(t.Size))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(t.Ts))

	return dst
}

// DecodeTrade parses a fixed-size trade payload.
func DecodeTrade(src []byte) (schema.Trade, bool) {
	if len(src) < TradePayloadSize {
		return schema.Trade{}, false
	}
	return schema.Trade{
		InstrumentID: binary.LittleEndian.Uint32(src[0:4]),
		Side:         schema.Side(binary.LittleEndian.Uint16(src[4:6])),
		Flags:        binary.LittleEndian.Uint16(src[6:8]),
		Price:        schema.Price(int64(binary.LittleEndian.Uint64(src[8:16]))),
		Size:         schema.Quantity(int64(binary.LittleEndian.Uint64(src[16:24]))),
		Ts:           int64(binary.LittleEndian.Uint64(src[24:32])),
	}, true
}
