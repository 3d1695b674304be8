package varint

import "hash/crc32"

// ieeeTable is the standard IEEE polynomial (0xEDB88320) CRC32 table, the
// same polynomial stdlib's crc32.IEEETable uses.
var ieeeTable = crc32.MakeTable(crc32.IEEE)

// CRC32 computes the IEEE CRC32 of data with the standard initial value
// 0xFFFFFFFF and final XOR 0xFFFFFFFF (both already folded into
// hash/crc32's implementation).
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, ieeeTable)
}
