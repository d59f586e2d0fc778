// Command heapctl replays allocation traces against the heapkit allocator
// and reports what the arena and mappings looked like.
package main

func main() {
	execute()
}
