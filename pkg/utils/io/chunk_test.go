package io_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	kio "github.com/pyx-ai/pyx-cli/pkg/utils/io"
	"github.com/pyx-ai/pyx-cli/pkg/utils/try"
)

func TestChunkReader(t *testing.T) {
	type When struct {
		size      int
		chunkSize int
		// read via io.Copy instead of Next
		viaRead bool
	}
	type Then struct {
		chunks int
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			payload := make([]byte, when.size)
			try.To(rand.Read(payload)).OrFatal(t)

			reported := []kio.ChunkProgress{}
			testee := kio.NewChunkReader(
				bytes.NewReader(payload), when.chunkSize, int64(when.size),
				func(p kio.ChunkProgress) { reported = append(reported, p) },
			)

			got := new(bytes.Buffer)
			if when.viaRead {
				try.To(io.Copy(got, testee)).OrFatal(t)
			} else {
				for {
					chunk, err := testee.Next()
					if errors.Is(err, io.EOF) {
						break
					} else if err != nil {
						t.Fatal(err)
					}
					if when.chunkSize < len(chunk) {
						t.Errorf("chunk is too large: %d", len(chunk))
					}
					got.Write(chunk)
				}
			}

			if !bytes.Equal(got.Bytes(), payload) {
				t.Error("content is broken")
			}

			prog := testee.Progress()
			if prog.Chunks != then.chunks {
				t.Errorf("chunks: got %d, want %d", prog.Chunks, then.chunks)
			}
			if prog.ReadSoFar != int64(when.size) {
				t.Errorf("read so far: got %d, want %d", prog.ReadSoFar, when.size)
			}
			if len(reported) != then.chunks {
				t.Errorf("callback is called %d times, want %d", len(reported), then.chunks)
			}
			for nth, r := range reported {
				if r.Chunks != nth+1 {
					t.Errorf("reported #%d has wrong chunk count: %d", nth, r.Chunks)
				}
			}
			if 0 < then.chunks && reported[len(reported)-1].Percent() != 100 {
				t.Errorf("last percentage is not 100: %f", reported[len(reported)-1].Percent())
			}
		}
	}

	t.Run("empty stream has no chunks", theory(
		When{size: 0, chunkSize: 16}, Then{chunks: 0},
	))
	t.Run("stream of exact multiple of chunk size", theory(
		When{size: 64, chunkSize: 16}, Then{chunks: 4},
	))
	t.Run("stream with a short last chunk", theory(
		When{size: 65, chunkSize: 16}, Then{chunks: 5},
	))
	t.Run("stream smaller than a chunk", theory(
		When{size: 3, chunkSize: 16}, Then{chunks: 1},
	))
	t.Run("reading with io.Copy pulls the same chunks", theory(
		When{size: 1000, chunkSize: 7, viaRead: true}, Then{chunks: 143},
	))
}

func TestChunkReader_SourceError(t *testing.T) {
	expected := errors.New("fake error")
	testee := kio.NewChunkReader(
		io.MultiReader(bytes.NewReader([]byte("abc")), errReader{expected}),
		2, 0, nil,
	)

	if _, err := io.ReadAll(testee); !errors.Is(err, expected) {
		t.Errorf("unexpected error: %v", err)
	}
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
