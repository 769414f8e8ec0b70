package concurrency

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeDeliversEverythingAndCloses(t *testing.T) {
	a := make(chan int, 3)
	b := make(chan int, 3)
	for _, v := range []int{1, 2, 3} {
		a <- v
	}
	for _, v := range []int{10, 20} {
		b <- v
	}
	close(a)
	close(b)

	out := Merge(context.Background(), []<-chan int{a, b})

	var got []int
	for v := range out {
		got = append(got, v)
	}
	sort.Ints(got)
	assert.Equal(t, []int{1, 2, 3, 10, 20}, got)
}

func TestMergePreservesPerInputOrder(t *testing.T) {
	a := make(chan int, 4)
	for _, v := range []int{1, 2, 3, 4} {
		a <- v
	}
	close(a)

	out := Merge(context.Background(), []<-chan int{a})

	var got []int
	for v := range out {
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestMergeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := make(chan int) // never written, never closed

	out := Merge(ctx, []<-chan int{a})
	cancel()

	_, open := <-out
	assert.False(t, open, "output must close after cancellation")
}
