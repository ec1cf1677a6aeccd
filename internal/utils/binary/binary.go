// internal/utils/binary/binary.go
package binary

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// ReadUint64LittleEndian reads a uint64 from a byte slice in little-endian format
func ReadUint64LittleEndian(data []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(data[offset : offset+8])
}

// ReadUint8 reads a uint8 (byte) from a byte slice
func ReadUint8(data []byte, offset int) uint8 {
	return data[offset]
}

// ReadPubKey reads a Solana public key from a byte slice
func ReadPubKey(data []byte, offset int) solana.PublicKey {
	return solana.PublicKeyFromBytes(data[offset : offset+32])
}

// WriteUint64LittleEndian writes a uint64 to a byte slice in little-endian format
func WriteUint64LittleEndian(val uint64, data []byte, offset int) {
	binary.LittleEndian.PutUint64(data[offset:offset+8], val)
}

// WriteUint16LittleEndian writes a uint16 to a byte slice in little-endian format
func WriteUint16LittleEndian(val uint16, data []byte, offset int) {
	binary.LittleEndian.PutUint16(data[offset:offset+2], val)
}

// WriteInt32LittleEndian writes an int32 to a byte slice in little-endian format
func WriteInt32LittleEndian(val int32, data []byte, offset int) {
	binary.LittleEndian.PutUint32(data[offset:offset+4], uint32(val))
}

// WriteUint128LittleEndian writes a 128-bit value given as (lo, hi) halves
func WriteUint128LittleEndian(lo, hi uint64, data []byte, offset int) {
	binary.LittleEndian.PutUint64(data[offset:offset+8], lo)
	binary.LittleEndian.PutUint64(data[offset+8:offset+16], hi)
}
