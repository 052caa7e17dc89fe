package capture

import (
	"context"
	"fmt"
	"os"
	"sync"
)

const defaultChunkSize = 64 * 1024

// FileDevice replays a local media file through the capture pipeline. It
// stands in for hardware on headless setups and in the record subcommand.
type FileDevice struct {
	Path      string
	ChunkSize int
}

// RequestStream opens the backing file. An unreadable file behaves like a
// denied device permission.
func (d FileDevice) RequestStream(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}

	chunk := d.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	return &fileStream{file: f, chunkSize: chunk}, nil
}

type fileStream struct {
	file      *os.File
	chunkSize int

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	closed  bool
	started bool
}

func (s *fileStream) Start(sink func(chunk []byte)) {
	s.mu.Lock()
	if s.closed || s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop = stop
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		buf := make([]byte, s.chunkSize)
		for {
			select {
			case <-stop:
				return
			default:
			}

			n, err := s.file.Read(buf)
			if n > 0 {
				sink(buf[:n])
			}
			if err != nil {
				// EOF or a mid-stream read error both end delivery; the
				// accumulated chunks still form the clip.
				return
			}
		}
	}()
}

func (s *fileStream) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stop := s.stop
	done := s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

func (s *fileStream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	stop := s.stop
	done := s.done
	s.started = false
	s.mu.Unlock()

	if started {
		close(stop)
		<-done
	}
	_ = s.file.Close()
}
