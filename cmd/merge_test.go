package cmd

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The bar's prepend func reads the label on the uiprogress goroutine while
// the merge observer writes it. Run with -race.
func TestTableLabel_ConcurrentSetAndGet(t *testing.T) {
	label := &tableLabel{}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			label.Set(fmt.Sprintf("table_%d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = fmt.Sprintf("Merging %-20s ", label.Get())
		}
	}()
	wg.Wait()

	assert.Equal(t, "table_999", label.Get())
}
