// Package arena emulates a process heap break for the block ledger.
//
// # Overview
//
// An Arena is one contiguous byte region that only grows. Extend(delta)
// behaves like sbrk: it moves the break forward by exactly delta bytes and
// returns the offset of the old break, which is where the new space starts.
// The arena never shrinks and never returns memory to the OS while open.
//
// # Backing
//
// On unix the whole Limit is reserved up front as inaccessible address space
// (PROT_NONE) on the first Extend, and page-rounded prefixes are committed
// read-write with mprotect as the break advances. Slices returned by Bytes
// therefore stay valid across growth.
//
// On other platforms the region is an ordinary heap slice that is copied into
// a larger one when capacity runs out; callers must re-fetch Bytes after every
// Extend.
//
// # Thread Safety
//
// Arena instances are not thread-safe. Callers must synchronize access
// externally.
package arena
