// Package blockfile implements a fixed-size page file with per-page checksums.
//
// Block 0 is the header page. Every block is PageSize bytes; its first four
// bytes hold the little-endian CRC-32 (IEEE) of the remaining bytes, which
// are the block payload. The header payload starts with a packed Header
// padded to a 64-byte region so fields can be added without moving page
// boundaries.
//
// Block files define page format and checksum discipline only. There is no
// allocator or free list yet; RootBlockID and FreeListHead are reserved and
// start out as -1.
//
//	bf, err := blockfile.Create("data/t.wt", blockfile.DefaultPageSize)
//	if err != nil {
//	    return err
//	}
//	defer bf.Close()
//
//	if err := bf.WriteBlock(1, []byte("hello")); err != nil {
//	    return err
//	}
//	payload, err := bf.ReadBlock(1) // len(payload) == PageSize-4, zero padded
package blockfile
