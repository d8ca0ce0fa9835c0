// Package codec implements the metadata file's binary Header and Index
// records: fixed-offset little-endian encoding, CRC32-Castagnoli
// checksums, and torn-read detection on decode.
package codec

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// HeaderMagic and IndexMagic identify the two record kinds on disk.
const (
	HeaderMagic = "VHDR"
	IndexMagic  = "VIDX"
)

// HeaderSize is the fixed on-disk size of a Header record.
const HeaderSize = 48

// EntrySize is the fixed on-disk size of one Index entry.
const EntrySize = 16

const (
	headerChecksummedLen = 32 // magic..index_length, before checksum
	headerReservedLen    = HeaderSize - headerChecksummedLen - 4
	indexFixedLen        = 4 + 8 + 4 // magic + tick_num + num_entries
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrTornRead is returned when a decoded record's checksum or tick
// number does not match expectations; the caller should retry.
var ErrTornRead = errors.New("codec: torn read")

// ErrShortBuffer is returned when a buffer is too small to hold the
// record it claims to be.
var ErrShortBuffer = errors.New("codec: short buffer")

// ErrBadMagic is returned when a record's magic bytes do not match.
var ErrBadMagic = errors.New("codec: bad magic")

// Header mirrors the 48-byte on-disk Header record.
type Header struct {
	FSPageSize  uint32
	TickNum     uint64
	IndexOffset uint64
	IndexLength uint64
	Checksum    uint32
}

// Entry mirrors one 16-byte on-disk Index entry.
type Entry struct {
	HDF5Page uint32
	MDPage   uint32
	Length   uint32
	Checksum uint32
}

// IndexSize returns the on-disk size of an Index record holding n entries.
func IndexSize(n int) uint64 {
	return uint64(indexFixedLen + n*EntrySize + 4)
}

// EncodeHeader writes h into a freshly allocated 48-byte buffer,
// computing the trailing checksum over the preceding bytes.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], HeaderMagic)
	binary.LittleEndian.PutUint32(buf[4:8], h.FSPageSize)
	binary.LittleEndian.PutUint64(buf[8:16], h.TickNum)
	binary.LittleEndian.PutUint64(buf[16:24], h.IndexOffset)
	binary.LittleEndian.PutUint64(buf[24:32], h.IndexLength)
	sum := crc32.Checksum(buf[:headerChecksummedLen], castagnoli)
	binary.LittleEndian.PutUint32(buf[32:36], sum)
	// bytes 36..48 stay zero (reserved)
	return buf
}

// DecodeHeader parses a Header record, validating magic and checksum.
// A checksum mismatch is reported as ErrTornRead so callers can retry.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortBuffer
	}
	if string(buf[0:4]) != HeaderMagic {
		return Header{}, ErrBadMagic
	}
	want := binary.LittleEndian.Uint32(buf[32:36])
	got := crc32.Checksum(buf[:headerChecksummedLen], castagnoli)
	if want != got {
		return Header{}, ErrTornRead
	}
	return Header{
		FSPageSize:  binary.LittleEndian.Uint32(buf[4:8]),
		TickNum:     binary.LittleEndian.Uint64(buf[8:16]),
		IndexOffset: binary.LittleEndian.Uint64(buf[16:24]),
		IndexLength: binary.LittleEndian.Uint64(buf[24:32]),
		Checksum:    want,
	}, nil
}

// EncodeIndex writes tick and entries (which must already be sorted by
// HDF5Page) into a freshly allocated buffer of IndexSize(len(entries)).
func EncodeIndex(tick uint64, entries []Entry) []byte {
	body := indexFixedLen + len(entries)*EntrySize
	buf := make([]byte, body+4)
	copy(buf[0:4], IndexMagic)
	binary.LittleEndian.PutUint64(buf[4:12], tick)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(entries)))
	off := 16
	for _, e := range entries {
		binary.LittleEndian.PutUint32(buf[off:off+4], e.HDF5Page)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], e.MDPage)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], e.Length)
		binary.LittleEndian.PutUint32(buf[off+12:off+16], e.Checksum)
		off += EntrySize
	}
	sum := crc32.Checksum(buf[:body], castagnoli)
	binary.LittleEndian.PutUint32(buf[body:body+4], sum)
	return buf
}

// DecodeIndex parses an Index record, validating magic, checksum, and
// that its embedded tick number equals expectedTick (the tick number of
// the Header read just before the Index; mdfile.ReadTick re-reads the
// Header afterwards to complete the Header-Index-Header protocol).
// Any mismatch is reported as ErrTornRead.
func DecodeIndex(buf []byte, expectedTick uint64) ([]Entry, error) {
	if len(buf) < indexFixedLen+4 {
		return nil, ErrShortBuffer
	}
	if string(buf[0:4]) != IndexMagic {
		return nil, ErrBadMagic
	}
	tick := binary.LittleEndian.Uint64(buf[4:12])
	n := int(binary.LittleEndian.Uint32(buf[12:16]))
	body := indexFixedLen + n*EntrySize
	if len(buf) < body+4 {
		return nil, ErrShortBuffer
	}
	want := binary.LittleEndian.Uint32(buf[body : body+4])
	got := crc32.Checksum(buf[:body], castagnoli)
	if want != got || tick != expectedTick {
		return nil, ErrTornRead
	}
	entries := make([]Entry, n)
	off := 16
	for i := 0; i < n; i++ {
		entries[i] = Entry{
			HDF5Page: binary.LittleEndian.Uint32(buf[off : off+4]),
			MDPage:   binary.LittleEndian.Uint32(buf[off+4 : off+8]),
			Length:   binary.LittleEndian.Uint32(buf[off+8 : off+12]),
			Checksum: binary.LittleEndian.Uint32(buf[off+12 : off+16]),
		}
		off += EntrySize
	}
	return entries, nil
}

// ChecksumBytes computes the CRC32-Castagnoli checksum used for page
// images stored in the metadata file.
func ChecksumBytes(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}
