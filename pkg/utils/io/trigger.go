package io

import (
	"errors"
	"io"
	"sync"
)

// TriggerReader calls callbacks once, when the underlying stream hits EOF.
type TriggerReader interface {
	io.Reader

	// OnEnd registers a callback.
	//
	// If the stream is already exhausted, callback is called immediately.
	OnEnd(callback func())
}

type triggerReader struct {
	base      io.Reader
	onEnd     []func()
	exhausted bool
	mux       sync.Mutex
}

func NewTriggerReader(base io.Reader) TriggerReader {
	return &triggerReader{base: base}
}

func (t *triggerReader) Read(p []byte) (int, error) {
	n, err := t.base.Read(p)
	if !errors.Is(err, io.EOF) {
		return n, err
	}

	t.mux.Lock()
	defer t.mux.Unlock()
	if !t.exhausted {
		t.exhausted = true
		for _, f := range t.onEnd {
			f()
		}
		t.onEnd = nil
	}
	return n, err
}

func (t *triggerReader) OnEnd(callback func()) {
	t.mux.Lock()
	defer t.mux.Unlock()

	if t.exhausted {
		callback()
		return
	}
	t.onEnd = append(t.onEnd, callback)
}
