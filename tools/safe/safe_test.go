package safe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoRecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	Go("test", func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()

	ran := make(chan struct{})
	Go("after", func() { close(ran) })
	<-ran
	assert.True(t, true, "process survived the panic")
}
