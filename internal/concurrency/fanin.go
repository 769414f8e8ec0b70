// Package concurrency provides the channel plumbing shared by the
// per-session pipelines.
package concurrency

import (
	"context"
	"sync"
)

// Merge aggregates multiple input channels into a single output
// channel. Ordering within each input is preserved; the output closes
// once every input has closed.
func Merge[T any](ctx context.Context, inputs []<-chan T) <-chan T {
	output := make(chan T)

	var wg sync.WaitGroup

	for _, input := range inputs {
		wg.Add(1)
		go func(ch <-chan T) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-ch:
					if !ok {
						return
					}
					select {
					case output <- v:
					case <-ctx.Done():
						return
					}
				}
			}
		}(input)
	}

	go func() {
		wg.Wait()
		close(output)
	}()

	return output
}
