package services

import (
	"sync"
	"testing"
)

func TestKeyedMutex(t *testing.T) {
	km := newKeyedMutex()

	counters := map[string]*int{"a": new(int), "b": new(int)}
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		key := "a"
		if i%2 == 0 {
			key = "b"
		}
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			unlock := km.Lock(key)
			*counters[key]++
			unlock()
		}(key)
	}
	wg.Wait()

	if *counters["a"] != 100 || *counters["b"] != 100 {
		t.Errorf("Expected 100/100, got %d/%d", *counters["a"], *counters["b"])
	}
	if km.size() != 0 {
		t.Errorf("Expected released entries to be dropped, got %d", km.size())
	}
}
