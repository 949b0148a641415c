package util

import "testing"

func TestBufPool(t *testing.T) {
	buf := GetBuf()
	if len(*buf) != ReadChunkSize {
		t.Fatalf("len = %d, want %d", len(*buf), ReadChunkSize)
	}
	PutBuf(buf)
	PutBuf(nil)
}
