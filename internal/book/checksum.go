package book

import (
	"hash/crc32"

	"main/internal/schema"
	"main/pkg/exception"
)

const checksumDepth = 25

// Checksum computes the venue book checksum: the top 25 levels of each
// side rendered as minimal decimal "price:size" pairs, interleaved
// bid:ask per level with exhausted sides skipped, colon-joined, CRC32.
func (s *Store) Checksum() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checksumLocked()
}

func (s *Store) checksumLocked() uint32 {
	buf := make([]byte, 0, 1024)
	priceScale := s.inst.Scale.PriceScale
	qtyScale := s.inst.Scale.QuantityScale

	appendLevel := func(row schema.BookLevel) {
		if len(buf) > 0 {
			buf = append(buf, ':')
		}
		buf = schema.AppendScaled(buf, int64(row.Price), priceScale)
		buf = append(buf, ':')
		buf = schema.AppendScaled(buf, int64(row.Size), qtyScale)
	}

	for i := 0; i < checksumDepth; i++ {
		if i < len(s.bids) {
			appendLevel(s.bids[i])
		}
		if i < len(s.asks) {
			appendLevel(s.asks[i])
		}
	}
	return crc32.ChecksumIEEE(buf)
}

// VerifyChecksum compares the stored book against the feed's value.
func (s *Store) VerifyChecksum(expected uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid {
		return exception.ErrBookEmpty
	}
	if s.checksumLocked() != expected {
		return exception.ErrChecksumMismatch
	}
	return nil
}
