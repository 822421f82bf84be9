package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetStringIsEmpty(t *testing.T) {
	sb := GetString()
	sb.WriteString("X-Frame-Options: DENY")
	PutString(sb)

	again := GetString()
	defer PutString(again)
	assert.Equal(t, 0, again.Len())
}

func TestPutStringNil(t *testing.T) {
	assert.NotPanics(t, func() { PutString(nil) })
}

func TestGetSliceLengths(t *testing.T) {
	tests := []struct {
		size    int
		wantCap int
	}{
		{1, 4096},
		{4096, 4096},
		{4097, 8192},
		{65536, 65536},
		{1 << 20, 1 << 20},
	}
	for _, tt := range tests {
		buf := GetSlice(tt.size)
		assert.Len(t, buf, tt.size)
		assert.Equal(t, tt.wantCap, cap(buf))
		PutSlice(buf)
	}
}

func TestGetSliceOversized(t *testing.T) {
	buf := GetSlice(3 << 20)
	assert.Len(t, buf, 3<<20)
	assert.NotPanics(t, func() { PutSlice(buf) })
	assert.Nil(t, GetSlice(0))
}

func TestPutSliceForeign(t *testing.T) {
	assert.NotPanics(t, func() {
		PutSlice(make([]byte, 100))
		PutSlice(nil)
	})
}

func TestConcurrentSlices(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			buf := GetSlice(1024 * (n + 1))
			buf[0] = byte(n)
			PutSlice(buf)
		}(i)
	}
	wg.Wait()
}
