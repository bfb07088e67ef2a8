package hash

import "hash/crc32"

// Page computes the page checksum: CRC-32 with the IEEE polynomial, the
// same value zlib's crc32 produces. Block files store it little endian in
// the first four bytes of every page.
func Page(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// UpdatePage extends a running page checksum with data.
func UpdatePage(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, crc32.IEEETable, data)
}
