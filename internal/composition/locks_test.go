package composition_test

import (
	"sync"
	"testing"

	"storyhub/internal/composition"
)

func TestLocksSerializePerStory(t *testing.T) {
	locks := composition.NewLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Lock("story-1")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
}

func TestLocksIndependentStories(t *testing.T) {
	locks := composition.NewLocks()

	releaseA := locks.Lock("story-a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release := locks.Lock("story-b")
		release()
		close(done)
	}()

	// story-b must not wait on story-a's lock
	<-done
}
