package util

import "sync"

// ReadChunkSize is the size of the scratch buffer a transport reader
// fills per read (32 KiB).
const ReadChunkSize = 32 * 1024

// BufPool holds read scratch buffers so a reconnect does not allocate
// a fresh one for every transport.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ReadChunkSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
