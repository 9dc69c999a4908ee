package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kailas-cloud/memcore/internal/domain/document"
)

// Header layout (big endian): magic[4] | version u16 | crc32(payload) u32 | payload length u64.
const (
	formatVersion = 1
	headerSize    = 4 + 2 + 4 + 8
)

var magic = [4]byte{'K', 'U', 'S', 'N'}

// Decode errors.
var (
	ErrTruncated          = errors.New("snapshot truncated")
	ErrBadMagic           = errors.New("snapshot magic mismatch")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrChecksum           = errors.New("snapshot checksum mismatch")
)

// Encode serializes d into the snapshot binary format.
func Encode(d *document.Document) ([]byte, error) {
	var packed bytes.Buffer
	if err := msgpack.NewEncoder(&packed).Encode(toDTO(d)); err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}

	zw, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	defer zw.Close()

	buf := make([]byte, headerSize, headerSize+packed.Len()/2)
	buf = zw.EncodeAll(packed.Bytes(), buf)
	payload := buf[headerSize:]

	copy(buf[0:4], magic[:])
	binary.BigEndian.PutUint16(buf[4:6], formatVersion)
	binary.BigEndian.PutUint32(buf[6:10], crc32.ChecksumIEEE(payload))
	binary.BigEndian.PutUint64(buf[10:18], uint64(len(payload)))
	return buf, nil
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) (*document.Document, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	if !bytes.Equal(data[0:4], magic[:]) {
		return nil, ErrBadMagic
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	sum := binary.BigEndian.Uint32(data[6:10])
	n := binary.BigEndian.Uint64(data[10:18])
	payload := data[headerSize:]
	if uint64(len(payload)) != n {
		return nil, fmt.Errorf("%w: payload %d bytes, header says %d", ErrTruncated, len(payload), n)
	}
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, ErrChecksum
	}

	zr, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()
	packed, err := zr.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}

	var dto snapshotDTO
	if err := msgpack.Unmarshal(packed, &dto); err != nil {
		return nil, fmt.Errorf("msgpack decode: %w", err)
	}
	return fromDTO(dto), nil
}
