package io

import (
	"errors"
	"io"
)

// ChunkProgress is a snapshot of ChunkReader after a chunk is pulled.
type ChunkProgress struct {
	// Chunks is the number of chunks pulled so far.
	Chunks int

	// ReadSoFar is the cumulative number of bytes pulled so far.
	ReadSoFar int64

	// Total is the expected size of the whole stream. 0 if unknown.
	Total int64
}

// Percent returns ReadSoFar / Total in percent.
//
// When Total is unknown, it returns 100 once anything is read.
func (p ChunkProgress) Percent() float64 {
	if p.Total <= 0 {
		if 0 < p.ReadSoFar {
			return 100
		}
		return 0
	}
	return float64(p.ReadSoFar) * 100 / float64(p.Total)
}

// ChunkReader pulls its source in fixed size chunks.
//
// Each chunk is exactly chunkSize bytes except the last one,
// so a stream of N bytes is pulled in ceil(N/chunkSize) chunks.
type ChunkReader struct {
	src     io.Reader
	buf     []byte
	pending []byte
	total   int64
	onChunk func(ChunkProgress)

	chunks    int
	readSoFar int64
	err       error
}

// NewChunkReader creates a ChunkReader.
//
// # Args
//
// - src: source stream.
//
// - chunkSize: size of each chunk. Must be positive.
//
// - total: expected size of src, used for percentage. 0 if unknown.
//
// - onChunk: called after each chunk is pulled. nil is allowed.
func NewChunkReader(src io.Reader, chunkSize int, total int64, onChunk func(ChunkProgress)) *ChunkReader {
	if chunkSize <= 0 {
		panic("chunk size should be positive")
	}
	return &ChunkReader{
		src:     src,
		buf:     make([]byte, chunkSize),
		total:   total,
		onChunk: onChunk,
	}
}

// Next pulls the next chunk.
//
// Returned slice is valid until next call of Next or Read.
// After the last chunk, it returns io.EOF.
func (c *ChunkReader) Next() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}

	n, err := io.ReadFull(c.src, c.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.err = io.EOF
	default:
		c.err = err
	}

	if n == 0 {
		return nil, c.err
	}

	c.chunks += 1
	c.readSoFar += int64(n)
	if c.onChunk != nil {
		c.onChunk(c.Progress())
	}
	return c.buf[:n], nil
}

// Read implements io.Reader by draining chunks one by one.
func (c *ChunkReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(c.pending) == 0 {
		chunk, err := c.Next()
		if err != nil {
			return 0, err
		}
		c.pending = chunk
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Len returns the expected total size.
func (c *ChunkReader) Len() int64 {
	return c.total
}

// Progress returns the current progress.
func (c *ChunkReader) Progress() ChunkProgress {
	return ChunkProgress{Chunks: c.chunks, ReadSoFar: c.readSoFar, Total: c.total}
}
