package io

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
)

// ChecksumWriter hashes bytes passing through it.
type ChecksumWriter interface {
	io.Writer

	// Sum returns the digest of bytes have been written.
	Sum() []byte

	// HexSum returns Sum as lower-case hex string.
	HexSum() string
}

// ChecksumReader hashes bytes passing through it.
type ChecksumReader interface {
	io.Reader

	// Sum returns the digest of bytes have been read.
	Sum() []byte

	// HexSum returns Sum as lower-case hex string.
	HexSum() string
}

type hashWriter struct {
	dest io.Writer
	h    hash.Hash
}

// NewHashWriter wraps dest so that every written byte is also fed to h.
func NewHashWriter(dest io.Writer, h hash.Hash) ChecksumWriter {
	return &hashWriter{dest: dest, h: h}
}

// NewMD5Writer is NewHashWriter with MD5.
func NewMD5Writer(dest io.Writer) ChecksumWriter {
	return NewHashWriter(dest, md5.New())
}

func (hw *hashWriter) Write(buf []byte) (int, error) {
	n, err := hw.dest.Write(buf)
	if 0 < n {
		hw.h.Write(buf[:n])
	}
	return n, err
}

func (hw *hashWriter) Sum() []byte {
	return hw.h.Sum(nil)
}

func (hw *hashWriter) HexSum() string {
	return hex.EncodeToString(hw.Sum())
}

type hashReader struct {
	source io.Reader
	h      hash.Hash
}

// NewHashReader wraps source so that every byte read is also fed to h.
func NewHashReader(source io.Reader, h hash.Hash) ChecksumReader {
	return &hashReader{source: source, h: h}
}

// NewMD5Reader is NewHashReader with MD5.
func NewMD5Reader(source io.Reader) ChecksumReader {
	return NewHashReader(source, md5.New())
}

func (hr *hashReader) Read(p []byte) (int, error) {
	n, err := hr.source.Read(p)
	if 0 < n {
		hr.h.Write(p[:n])
	}
	return n, err
}

func (hr *hashReader) Sum() []byte {
	return hr.h.Sum(nil)
}

func (hr *hashReader) HexSum() string {
	return hex.EncodeToString(hr.Sum())
}
