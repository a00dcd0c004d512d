package streamsrc

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/payops/sentinel/internal/txn"
)

// FileTailSource tails a newline-delimited JSON transaction log, pushing
// each decoded line onto its channel as it's appended. Used as a demo
// external-ingress path: point it at a file a separate process appends
// to, instead of internal/generator's synthetic drift simulation.
type FileTailSource struct {
	ch       chan txn.Transaction
	watcher  *fsnotify.Watcher
	file     *os.File
	reader   *bufio.Reader
	done     chan struct{}
	closeOne sync.Once
	logger   *slog.Logger
}

// NewFileTailSource opens path and starts tailing it from its current
// end-of-file — only lines appended after the tail starts are delivered.
func NewFileTailSource(path string, logger *slog.Logger) (*FileTailSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := w.Add(path); err != nil {
		f.Close()
		w.Close()
		return nil, err
	}

	s := &FileTailSource{
		ch:      make(chan txn.Transaction, 256),
		watcher: w,
		file:    f,
		reader:  bufio.NewReader(f),
		done:    make(chan struct{}),
		logger:  logger.With("component", "streamsrc.FileTailSource", "path", path),
	}
	go s.loop()
	return s, nil
}

func (s *FileTailSource) loop() {
	defer close(s.ch)

	for {
		s.drain()

		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Write) {
				continue
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)
		}
	}
}

// drain reads every complete line currently available and decodes it.
// Malformed lines are logged and skipped rather than killing the tail.
func (s *FileTailSource) drain() {
	for {
		line, err := s.reader.ReadString('\n')
		if line != "" {
			var t txn.Transaction
			if jsonErr := json.Unmarshal([]byte(line), &t); jsonErr != nil {
				s.logger.Warn("skipping malformed transaction line", "error", jsonErr)
			} else {
				select {
				case s.ch <- t:
				case <-s.done:
					return
				}
			}
		}
		if err != nil {
			return // hit EOF (or a read error) — wait for the next write event
		}
	}
}

func (s *FileTailSource) Transactions() <-chan txn.Transaction {
	return s.ch
}

func (s *FileTailSource) Close() error {
	s.closeOne.Do(func() {
		close(s.done)
		s.watcher.Close()
		s.file.Close()
	})
	return nil
}
