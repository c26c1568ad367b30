// Package repository persists the history of sieve runs.
package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/prime-sieve/pkg/model"
)

// RunRecord represents the sieve_runs table.
type RunRecord struct {
	ID          int64             `gorm:"column:id;primaryKey;autoIncrement"`
	RunID       string            `gorm:"column:run_id;type:varchar(64);uniqueIndex"`
	Backend     model.BackendType `gorm:"column:backend;type:varchar(32);index"`
	Limit       int               `gorm:"column:sieve_limit"`
	Count       int               `gorm:"column:prime_count"`
	Requested   int               `gorm:"column:requested_workers"`
	Workers     int               `gorm:"column:workers"`
	Collectors  int               `gorm:"column:collectors"`
	Found       int               `gorm:"column:found"`
	LastPrime   int               `gorm:"column:last_prime"`
	Primes      JSONField         `gorm:"column:primes;type:json"`
	MarkNs      int64             `gorm:"column:mark_ns"`
	CollectNs   int64             `gorm:"column:collect_ns"`
	ElapsedNs   int64             `gorm:"column:elapsed_ns"`
	ArtifactURL string            `gorm:"column:artifact_url;type:varchar(512)"`
	CreatedAt   time.Time         `gorm:"column:created_at"`
}

// TableName returns the table name for RunRecord.
func (RunRecord) TableName() string {
	return "sieve_runs"
}

// NewRunRecord converts a result into a row.
func NewRunRecord(r *model.Result) (*RunRecord, error) {
	primes, err := json.Marshal(r.Primes)
	if err != nil {
		return nil, err
	}
	return &RunRecord{
		RunID:      r.RunID,
		Backend:    r.Backend,
		Limit:      r.Params.Limit,
		Count:      r.Params.Count,
		Requested:  r.Params.Workers,
		Workers:    r.Workers,
		Collectors: r.Params.Collectors,
		Found:      r.Len(),
		LastPrime:  r.Last(),
		Primes:     primes,
		MarkNs:     int64(r.Phases.Mark),
		CollectNs:  int64(r.Phases.Collect),
		ElapsedNs:  int64(r.Elapsed),
		CreatedAt:  r.CreatedAt,
	}, nil
}

// ToModel converts RunRecord back to model.Result.
func (rr *RunRecord) ToModel() (*model.Result, error) {
	result := &model.Result{
		RunID:   rr.RunID,
		Backend: rr.Backend,
		Params: model.Params{
			Limit:      rr.Limit,
			Count:      rr.Count,
			Workers:    rr.Requested,
			Collectors: rr.Collectors,
		},
		Workers: rr.Workers,
		Primes:  []int{},
		Phases: model.Phases{
			Mark:    time.Duration(rr.MarkNs),
			Collect: time.Duration(rr.CollectNs),
		},
		Elapsed:   time.Duration(rr.ElapsedNs),
		CreatedAt: rr.CreatedAt,
	}

	if rr.Primes != nil {
		if err := json.Unmarshal(rr.Primes, &result.Primes); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Elapsed returns the wall-clock time of the run.
func (rr *RunRecord) Elapsed() time.Duration {
	return time.Duration(rr.ElapsedNs)
}

// JSONField is a raw JSON column.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
