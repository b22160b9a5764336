package pipeline

import (
	"sync"
)

// Dispatch runs each job on a fixed pool of workers and returns the results
// indexed by job: result[i] always belongs to jobs[i], regardless of
// completion order. The first job error cancels nothing already running but
// fails the whole dispatch; there is no partial-success mode.
func Dispatch[T any](workers int, jobs []func() (T, error)) ([]T, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]T, len(jobs))
	indexes := make(chan int)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				res, err := jobs[i]()
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				results[i] = res
			}
		}()
	}

	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
