package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const (
	// BookUpdateHeadSize is the fixed prefix before the level rows.
	BookUpdateHeadSize = 32
	// BookLevelSize is one (price, size) row.
	BookLevelSize = 16

	maxLevelCount = 1<<16 - 1
)

// BookUpdateSize returns the encoded size of the update.
func BookUpdateSize(u schema.BookUpdate) int {
	return BookUpdateHeadSize + (len(u.Bids)+len(u.Asks))*BookLevelSize
}

// EncodeBookUpdate serializes a book snapshot or delta. The level counts
// ride in the prefix; sides longer than 65535 levels are truncated.
func EncodeBookUpdate(dst []byte, u schema.BookUpdate) []byte {
	bids, asks := u.Bids, u.Asks
	if len(bids) > maxLevelCount {
		bids = bids[:maxLevelCount]
	}
	if len(asks) > maxLevelCount {
		asks = asks[:maxLevelCount]
	}
	size := BookUpdateHeadSize + (len(bids)+len(asks))*BookLevelSize
	if cap(dst) < size {
		dst = make([]byte, size)
	} else {
		dst = dst[:size]
	}

	binary.LittleEndian.PutUint32(dst[0:4], u.InstrumentID)
	binary.LittleEndian.PutUint16(dst[4:6], u.Flags)
	binary.LittleEndian.PutUint16(dst[6:8], u.Reserved)
	binary.LittleEndian.PutUint64(dst[8:16], u.Seq)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(u.Ts))
	binary.LittleEndian.PutUint32(dst[24:28], u.Checksum)
	binary.LittleEndian.PutUint16(dst[28:30], uint16(len(bids)))
	binary.LittleEndian.PutUint16(dst[30:32], uint16(len(asks)))

	off := BookUpdateHeadSize
	for _, lv := range bids {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(lv.Price))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(lv.Size))
		off += BookLevelSize
	}
	for _, lv := range asks {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(lv.Price))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(lv.Size))
		off += BookLevelSize
	}
	return dst
}

// DecodeBookUpdate parses a book update payload.
func DecodeBookUpdate(src []byte) (schema.BookUpdate, bool) {
	if len(src) < BookUpdateHeadSize {
		return schema.BookUpdate{}, false
	}
	bidCount := int(binary.LittleEndian.Uint16(src[28:30]))
	askCount := int(binary.LittleEndian.Uint16(src[30:32]))
	if len(src) < BookUpdateHeadSize+(bidCount+askCount)*BookLevelSize {
		return schema.BookUpdate{}, false
	}

	u := schema.BookUpdate{
		InstrumentID: binary.LittleEndian.Uint32(src[0:4]),
		Flags:        binary.LittleEndian.Uint16(src[4:6]),
		Reserved:     binary.LittleEndian.Uint16(src[6:8]),
		Seq:          binary.LittleEndian.Uint64(src[8:16]),
		Ts:           int64(binary.LittleEndian.Uint64(src[16:24])),
		Checksum:     binary.LittleEndian.Uint32(src[24:28]),
	}
	off := BookUpdateHeadSize
	if bidCount > 0 {
		u.Bids = make([]schema.BookLevel, bidCount)
		for i := range u.Bids {
			u.Bids[i] = schema.BookLevel{
				Price: schema.Price(int64(binary.LittleEndian.Uint64(src[off : off+8]))),
				Size:  schema.Quantity(int64(binary.LittleEndian.Uint64(src[off+8 : off+16]))),
			}
			off += BookLevelSize
		}
	}
	if askCount > 0 {
		u.Asks = make([]schema.BookLevel, askCount)
		for i := range u.Asks {
			u.Asks[i] = schema.BookLevel{
				Price: schema.Price(int64(binary.LittleEndian.Uint64(src[off : off+8]))),
				Size:  schema.Quantity(int64(binary.LittleEndian.Uint64(src[off+8 : off+16]))),
			}
			off += BookLevelSize
		}
	}
	return u, true
}
