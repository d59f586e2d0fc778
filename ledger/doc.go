// Package ledger tracks the blocks of an arena as an address-ordered,
// doubly-linked chain of headers stored inside the arena itself.
//
// # Overview
//
// Every byte between the first header and the arena break belongs to exactly
// one block. Each block is a 32-byte header followed by its payload; a
// header's next link always points at the byte immediately after its payload.
// Links are arena offsets, never raw addresses, and every header access is a
// bounds-checked slice access.
//
// # Allocation
//
// Find(size) rounds the request up to 8 bytes and then:
//
//  1. creates the first block from the initial region if the ledger is empty
//  2. merges every run of adjacent free blocks
//  3. returns the first free block whose size matches exactly
//  4. otherwise picks the free block with the smallest excess, splitting off a
//     free remainder when the excess can hold a header plus 8 bytes
//  5. otherwise grows a free last block in place by the deficit, or appends a
//     new block at the break
//
// # Release
//
// Release marks a block free and merges it with free neighbors in both
// directions, so no two adjacent blocks are ever free after it returns.
//
// # Resize Helpers
//
// Shrink, GrowLast and Absorb are the in-place building blocks of the
// allocator's resize policy; the policy itself lives in package malloc.
//
// # Thread Safety
//
// Ledger instances are not thread-safe. Callers must synchronize access
// externally.
package ledger
