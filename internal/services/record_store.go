package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tankkwon/delivery-app/internal/core"
	"github.com/tankkwon/delivery-app/internal/log"
	"github.com/tankkwon/delivery-app/internal/metrics"
	"github.com/tankkwon/delivery-app/internal/storage"
)

// RecordStore owns the ordered record sequence and keeps it in sync with the
// deliveryRecords key. Records are only appended or deleted, never edited.
type RecordStore struct {
	kv     storage.KV
	logger *log.Logger
	now    func() time.Time

	mu      sync.RWMutex
	records []core.Record
	lastID  int64
	// version changes whenever records is replaced.
	version uint64
}

func NewRecordStore(kv storage.KV, logger *log.Logger, now func() time.Time) *RecordStore {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if now == nil {
		now = time.Now
	}
	return &RecordStore{
		kv:      kv,
		logger:  logger.WithComponent(log.ComponentRecords),
		now:     now,
		records: []core.Record{},
	}
}

// Load replaces the in-memory sequence with the persisted one. A missing,
// unreadable or malformed payload yields an empty sequence.
func (s *RecordStore) Load(ctx context.Context) {
	records := s.read(ctx)

	var lastID int64
	for _, r := range records {
		if r.ID > lastID {
			lastID = r.ID
		}
	}

	s.mu.Lock()
	s.records = records
	s.version++
	if lastID > s.lastID {
		s.lastID = lastID
	}
	s.mu.Unlock()

	metrics.RecordsStored.Set(float64(len(records)))
	s.logger.InfoContext(ctx, "Records loaded", log.FieldCount, len(records), log.FieldOperation, log.OpLoad)
}

func (s *RecordStore) read(ctx context.Context) []core.Record {
	raw, ok, err := s.kv.Get(ctx, storage.KeyRecords)
	if err != nil {
		s.recover(ctx, "Failed to read records, starting empty", err)
		return []core.Record{}
	}
	if !ok {
		return []core.Record{}
	}

	var records []core.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.recover(ctx, "Stored records are malformed, starting empty", err)
		return []core.Record{}
	}
	if records == nil {
		records = []core.Record{}
	}
	return records
}

func (s *RecordStore) recover(ctx context.Context, msg string, err error) {
	metrics.StorageRecoveries.WithLabelValues(storage.KeyRecords).Inc()
	s.logger.WarnContext(ctx, msg, log.FieldKey, storage.KeyRecords, log.FieldError, err)
}

// Add validates the input, assigns the next id and persists the sequence.
// The in-memory sequence changes only once the write has succeeded.
func (s *RecordStore) Add(ctx context.Context, in core.RecordInput) (core.Record, error) {
	if err := in.Validate(); err != nil {
		return core.Record{}, err
	}
	in = in.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	rec := core.Record{
		ID:            id,
		Date:          in.Date,
		Platform:      in.Platform,
		DeliveryCount: in.DeliveryCount,
		Amount:        in.Amount,
		Memo:          in.Memo,
	}

	next := make([]core.Record, len(s.records), len(s.records)+1)
	copy(next, s.records)
	next = append(next, rec)

	if err := s.persist(ctx, next); err != nil {
		return core.Record{}, err
	}
	s.records = next
	s.version++
	s.lastID = id

	metrics.RecordsAdded.WithLabelValues(string(rec.Platform)).Inc()
	metrics.RecordsStored.Set(float64(len(next)))
	s.logger.InfoContext(ctx, "Record added", log.NewFields().
		WithRecord(rec.ID, rec.Date, string(rec.Platform), rec.Amount, rec.Deliveries()).
		WithOperation(log.OpCreate).
		ToSlice()...)

	return rec, nil
}

// Delete removes the record with id. An unknown id is not an error.
func (s *RecordStore) Delete(ctx context.Context, id int64) error {
	_, err := s.remove(ctx, id)
	return err
}

// remove persists the sequence without id and reports whether a record was
// actually removed.
func (s *RecordStore) remove(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]core.Record, 0, len(s.records))
	for _, r := range s.records {
		if r.ID != id {
			next = append(next, r)
		}
	}
	removed := len(next) != len(s.records)

	if err := s.persist(ctx, next); err != nil {
		return false, err
	}
	s.records = next
	s.version++

	if removed {
		metrics.RecordsDeleted.Inc()
		metrics.RecordsStored.Set(float64(len(next)))
		s.logger.InfoContext(ctx, "Record deleted", log.FieldRecordID, id, log.FieldOperation, log.OpDelete)
	} else {
		s.logger.DebugContext(ctx, "Delete of unknown record ignored", log.FieldRecordID, id)
	}
	return removed, nil
}

// persist writes the full sequence. s.mu must be held.
func (s *RecordStore) persist(ctx context.Context, records []core.Record) error {
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeyRecords, string(b)); err != nil {
		metrics.StorageWriteErrors.WithLabelValues(storage.KeyRecords).Inc()
		return fmt.Errorf("persist records: %w", err)
	}
	return nil
}

// Records returns a copy of the sequence in insertion order.
func (s *RecordStore) Records() []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Snapshot returns a copy of the sequence together with its version. Equal
// versions mean equal contents.
func (s *RecordStore) Snapshot() ([]core.Record, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Record, len(s.records))
	copy(out, s.records)
	return out, s.version
}

// Get returns the record with id, if present.
func (s *RecordStore) Get(id int64) (core.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return core.Record{}, false
}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
