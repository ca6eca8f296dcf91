package sse_test

import (
	"io"
	"log/slog"
	"sync"

	"lance/adapters/sse"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeSource 由測試直接推送訊息
type fakeSource struct {
	ch   chan sse.Envelope[string]
	once sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan sse.Envelope[string])}
}

func (s *fakeSource) Messages() <-chan sse.Envelope[string] {
	return s.ch
}

func (s *fakeSource) Send(channel, message string) {
	s.ch <- sse.Envelope[string]{Channel: channel, Message: message}
}

func (s *fakeSource) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}
