package billing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"

	corebilling "github.com/kilianp07/evstation/core/billing"
	"github.com/kilianp07/evstation/core/model"
)

// JSONLStore appends bills to a newline-delimited JSON file. Queries re-read
// the file, which is acceptable for the store's intended audit use.
type JSONLStore struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewJSONLStore opens or creates the file in append mode.
func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLStore{path: path, f: f}, nil
}

// Append writes one bill as a JSON line.
func (s *JSONLStore) Append(_ context.Context, bill model.Bill) error {
	line, err := json.Marshal(bill)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(append(line, '\n')); err != nil {
		return err
	}
	return s.f.Sync()
}

// Query scans the file and returns bills matching the filter.
func (s *JSONLStore) Query(_ context.Context, q corebilling.Query) ([]model.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var res []model.Bill
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var bill model.Bill
		if err := json.Unmarshal(line, &bill); err != nil {
			return nil, err
		}
		if matches(q, bill) {
			res = append(res, bill)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the append handle.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

func matches(q corebilling.Query, bill model.Bill) bool {
	if !q.Start.IsZero() && bill.EndTime.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && bill.EndTime.After(q.End) {
		return false
	}
	if q.PileID != "" && bill.PileID != q.PileID {
		return false
	}
	if q.VehicleID != "" && bill.VehicleID != q.VehicleID {
		return false
	}
	return true
}
