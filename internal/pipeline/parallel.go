package pipeline

import (
	"context"
	"sync"
)

// ForEach calls fn for every index in [0,n) using up to workers goroutines.
// fn must write its result into a slot owned by i, which keeps output order
// independent of scheduling. Once ctx is done no further indices are handed
// out and ctx.Err() is returned after in-flight calls finish.
func ForEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int)) error {
	if n <= 0 {
		return ctx.Err()
	}
	if workers <= 1 || n == 1 {
		for i := range n {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(ctx, i)
		}
		return ctx.Err()
	}

	workers = min(workers, n)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(ctx, i)
			}
		}()
	}

send:
	for i := range n {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()
	return ctx.Err()
}
