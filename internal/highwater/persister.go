package highwater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/shopspring/decimal"
)

const formatVersion = 1

// Persister stores the high-water state durably.
type Persister interface {
	// Load returns false when nothing has been persisted yet.
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, state State) error
}

// FilePersister keeps the state as a small versioned JSON document.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister writing to path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the state file location.
func (p *FilePersister) Path() string { return p.path }

type fileState struct {
	Version  int             `json:"version"`
	TotalBid decimal.Decimal `json:"total_bid"`
	Exchange string          `json:"exchange"`
	Coin     string          `json:"coin"`
	Time     time.Time       `json:"time"`
}

// Load reads the state file. A missing file is not an error.
func (p *FilePersister) Load(ctx context.Context) (State, bool, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("read high-water file: %w", err)
	}

	var doc fileState
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, false, fmt.Errorf("decode high-water file %s: %w", p.path, err)
	}
	if doc.Version != formatVersion {
		return State{}, false, fmt.Errorf("high-water file %s: unsupported version %d", p.path, doc.Version)
	}

	return State{
		TotalBid: doc.TotalBid,
		Exchange: doc.Exchange,
		Coin:     doc.Coin,
		Time:     doc.Time.UTC(),
	}, true, nil
}

// Save atomically replaces the state file. The data is synced before the rename.
func (p *FilePersister) Save(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(state)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(p.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create high-water dir: %w", err)
		}
	}

	if err := renameio.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("write high-water file: %w", err)
	}
	return nil
}

func encode(state State) ([]byte, error) {
	doc := fileState{
		Version:  formatVersion,
		TotalBid: state.TotalBid,
		Exchange: state.Exchange,
		Coin:     state.Coin,
		Time:     state.Time.UTC(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode high-water state: %w", err)
	}
	return append(data, '\n'), nil
}

var _ Persister = (*FilePersister)(nil)
