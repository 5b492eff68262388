package nftkit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPubSubQueue(t *testing.T) {
	q := NewQueue[int]()

	var mu sync.Mutex
	var a, b []int

	offA := q.On(func(m int) {
		mu.Lock()
		defer mu.Unlock()
		a = append(a, m)
	})
	q.On(func(m int) {
		mu.Lock()
		defer mu.Unlock()
		b = append(b, m)
	})

	for i := 0; i < 5; i++ {
		q.Broadcast(i)
	}
	assert.Nil(t, q.Wait(time.Second))

	mu.Lock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, a, "messages arrive in order")
	assert.Equal(t, []int{0, 1, 2, 3, 4}, b)
	mu.Unlock()

	offA()
	offA()
	q.Broadcast(5)
	assert.Nil(t, q.Wait(time.Second))

	mu.Lock()
	assert.Len(t, a, 5, "no delivery after cleanup")
	assert.Len(t, b, 6)
	mu.Unlock()

	q.Close()
	q.Broadcast(6)
	assert.Nil(t, q.Wait(time.Second))
	mu.Lock()
	assert.Len(t, b, 6, "no delivery after close")
	mu.Unlock()

	off := q.On(func(int) {})
	off()
}

func TestPubSubQueue_WaitTimeout(t *testing.T) {
	q := NewQueue[string]()
	release := make(chan struct{})
	q.On(func(string) { <-release })

	q.Broadcast("slow")
	assert.Error(t, q.Wait(10*time.Millisecond))

	close(release)
	assert.Nil(t, q.Wait(time.Second))
	q.Close()
}
