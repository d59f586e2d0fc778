package trace

import "math/rand"

// Generate builds a valid random trace of n operations followed by a free
// for every id still live. Sizes are mostly small with an occasional request
// near maxSize so both allocation paths are exercised.
func Generate(seed int64, n, maxSize int) []Op {
	if maxSize <= 0 {
		maxSize = 1
	}
	rng := rand.New(rand.NewSource(seed))
	small := max(1, min(maxSize, 4096))
	size := func() int {
		if rng.Intn(16) == 0 {
			return 1 + rng.Intn(maxSize)
		}
		return 1 + rng.Intn(small)
	}

	var live []int
	nextID := 1
	ops := make([]Op, 0, n+n/2)
	for range n {
		switch r := rng.Intn(10); {
		case r < 4 || len(live) == 0:
			ops = append(ops, Op{Kind: Malloc, ID: nextID, Size: size()})
			live = append(live, nextID)
			nextID++
		case r < 5:
			count := 1 + rng.Intn(16)
			ops = append(ops, Op{Kind: Calloc, ID: nextID, Count: count, Size: max(1, size()/count)})
			live = append(live, nextID)
			nextID++
		case r < 7:
			ops = append(ops, Op{Kind: Realloc, ID: live[rng.Intn(len(live))], Size: size()})
		default:
			i := rng.Intn(len(live))
			ops = append(ops, Op{Kind: Free, ID: live[i]})
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}
	for _, id := range live {
		ops = append(ops, Op{Kind: Free, ID: id})
	}
	return ops
}
