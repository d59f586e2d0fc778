// Package malloc is a general-purpose allocator in the classic sbrk/mmap
// mould: small and medium requests are carved from one growable arena,
// large ones get an anonymous mapping each.
//
// # Overview
//
// An Allocator exposes the four familiar operations:
//
//   - Malloc(size): at least size usable bytes
//   - Calloc(count, size): count*size bytes, zeroed
//   - Realloc(p, size): resize, moving only when it must
//   - Free(p): release
//
// Handles are opaque Ptr values rather than machine addresses. Bytes(p)
// returns the payload as a slice.
//
// # Routing
//
// A request whose 8-byte-rounded size reaches the mapping threshold minus
// one 32-byte header goes to its own mapping (package directmap). Everything
// else is served by the arena ledger (package ledger): exact fit first, then
// best fit, splitting off remainders of at least 40 bytes, and growing the
// arena when nothing fits.
//
// Calloc runs with a one-page threshold for that call only, so a zeroed
// request above roughly 4 KiB gets fresh pages. The returned region is
// cleared explicitly either way.
//
// # Realloc
//
// Realloc evaluates, in order:
//
//  1. Nil handle: behaves as Malloc.
//  2. Size <= 0: behaves as Free and returns Nil.
//  3. Released block: refused, returns Nil.
//  4. Mapped block: always relocated.
//  5. New size routes to a mapping: relocated.
//  6. Last arena block too small: arena grown by the deficit, same handle.
//  7. Block already large enough: split off the excess when it can hold a
//     free block, same handle.
//  8. Otherwise following free blocks are absorbed; if still too small the
//     block is relocated, copying everything it now holds.
//
// # Failure
//
// Bad arguments and misuse return Nil. An OS primitive failing (break
// extension, mmap, munmap) is fatal: the allocator reports a *FatalError to
// Config.OnFatal, which panics by default.
//
// # Thread Safety
//
// An Allocator is not safe for concurrent use. Use one per goroutine or
// guard it externally.
package malloc
