package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tokenscope/internal/model"
)

// JsonlSink appends summary documents as JSON lines under a directory,
// one file per document kind.
type JsonlSink struct {
	dir string
	mu  sync.Mutex
}

func NewJsonlSink(dir string) *JsonlSink {
	return &JsonlSink{dir: dir}
}

func (s *JsonlSink) SaveDistribution(_ context.Context, summary *model.DistributionSummary) error {
	return s.appendLine("distributions.jsonl", summary)
}

func (s *JsonlSink) SaveWalletSummary(_ context.Context, summary *model.WalletSummary) error {
	return s.appendLine("wallets.jsonl", summary)
}

func (s *JsonlSink) appendLine(name string, doc any) error {
	line, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
