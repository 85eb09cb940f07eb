// Package workers splits index ranges into contiguous per-core chunks.
package workers

import (
	"runtime"
	"sync"
)

// Count returns n when positive and runtime.NumCPU() otherwise.
func Count(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Chunks divides [0,total) among numCores goroutines and blocks until every
// chunk is done. fn receives the worker id and its half-open range; workers
// whose range would be empty are not started. Callers write only to the
// slots of their own range, so no locking is needed.
func Chunks(total, numCores int, fn func(worker, start, end int)) {
	if total <= 0 {
		return
	}
	numCores = Count(numCores)
	if numCores > total {
		numCores = total
	}
	perCore := (total + numCores - 1) / numCores

	var wg sync.WaitGroup
	for c := 0; c < numCores; c++ {
		start := c * perCore
		if start >= total {
			break
		}
		end := min(start+perCore, total)

		wg.Add(1)
		go func(coreID, start, end int) {
			defer wg.Done()
			fn(coreID, start, end)
		}(c, start, end)
	}
	wg.Wait()
}
