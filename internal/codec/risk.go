package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const RiskSamplePayloadSize = 88

// EncodeRiskSample serializes a risk sample into a fixed-size payload.
func EncodeRiskSample(dst []byte, s schema.RiskSample) []byte {
	if cap(dst) < RiskSamplePayloadSize {
		dst = make([]byte, RiskSamplePayloadSize)
	} else {
		dst = dst[:RiskSamplePayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], s.InstrumentID)
	binary.LittleEndian.PutUint16(dst[4:6], s.Flags)
	binary.LittleEndian.PutUint16(dst[6:8], s.Reserved)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(s.Ts))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(s.InceptionTs))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(s.MarkPrice))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(s.Position))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(s.ExposureBase))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(s.ExposureQuote))
	binary.LittleEndian.PutUint64(dst[56:64], uint64(s.AssetValue))
	binary.LittleEndian.PutUint64(dst[64:72], uint64(s.PnL))
	binary.LittleEndian.PutUint64(dst[72:80], uint64(s.NetFilled))
	binary.LittleEndian.PutUint64(dst[80:88], uint64(s.Volume))

	return dst
}

// DecodeRiskSample parses a fixed-size risk sample payload.
func DecodeRiskSample(src []byte) (schema.RiskSample, bool) {
	if len(src) < RiskSamplePayloadSize {
		return schema.RiskSample{}, false
	}
	return schema.RiskSample{
		InstrumentID:  binary.LittleEndian.Uint32(src[0:4]),
		Flags:         binary.LittleEndian.Uint16(src[4:6]),
		Reserved:      binary.LittleEndian.Uint16(src[6:8]),
		Ts:            int64(binary.LittleEndian.Uint64(src[8:16])),
		InceptionTs:   int64(binary.LittleEndian.Uint64(src[16:24])),
		MarkPrice:     schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Position:      schema.Quantity(int64(binary.LittleEndian.Uint64(src[32:40]))),
		ExposureBase:  schema.Quantity(int64(binary.LittleEndian.Uint64(src[40:48]))),
		ExposureQuote: schema.Notional(int64(binary.LittleEndian.Uint64(src[48:56]))),
		AssetValue:    schema.Notional(int64(binary.LittleEndian.Uint64(src[56:64]))),
		PnL:           schema.Notional(int64(binary.LittleEndian.Uint64(src[64:72]))),
		NetFilled:     schema.Quantity(int64(binary.LittleEndian.Uint64(src[72:80]))),
		Volume:        schema.Quantity(int64(binary.LittleEndian.Uint64(src[80:88]))),
	}, true
}
