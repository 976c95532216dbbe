package records

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthtrack/healthtrack/internal/platform/session"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

// LocalKeyPrefix prefixes the session key holding a user's records.
const LocalKeyPrefix = "healthRecords_"

// LocalRepository keeps records in the session store, one JSON array per
// owner. It needs no backend.
type LocalRepository struct {
	mu    sync.Mutex
	store session.Store
	seed  bool
	now   func() time.Time
}

type LocalOption func(*LocalRepository)

// WithSeed fills an owner's list with the demo readings the first time it is
// read.
func WithSeed() LocalOption {
	return func(r *LocalRepository) { r.seed = true }
}

func NewLocalRepository(store session.Store, opts ...LocalOption) *LocalRepository {
	r := &LocalRepository{store: store, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// localRecord is the legacy flat shape as stored on disk.
type localRecord struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Type        string      `json:"type"`
	Value       interface{} `json:"value"`
	Unit        string      `json:"unit"`
	Notes       string      `json:"notes"`
	Date        string      `json:"date,omitempty"`
	HeartRate   *float64    `json:"heartRate,omitempty"`
	SystolicBp  *float64    `json:"systolicBp,omitempty"`
	DiastolicBp *float64    `json:"diastolicBp,omitempty"`
	Diagnosis   string      `json:"diagnosis,omitempty"`
	UpdatedAt   string      `json:"updatedAt,omitempty"`
}

func toLocal(r HealthRecord, updated time.Time) localRecord {
	lr := localRecord{
		ID:          r.ID,
		UserID:      r.OwnerID,
		Type:        r.Type,
		Value:       r.Value,
		Unit:        r.Unit,
		Notes:       r.Notes,
		HeartRate:   r.HeartRate,
		SystolicBp:  r.SystolicBp,
		DiastolicBp: r.DiastolicBp,
		Diagnosis:   r.Diagnosis,
		UpdatedAt:   updated.UTC().Format(time.RFC3339),
	}
	if r.Type == healthmodels.RecordTypeBloodPressure {
		if sys, dia, ok := r.BloodPressure(); ok {
			lr.Value = map[string]float64{"systolic": sys, "diastolic": dia}
			lr.SystolicBp, lr.DiastolicBp = nil, nil
		}
	}
	if r.HasDate() {
		lr.Date = r.Date.UTC().Format(time.RFC3339Nano)
	}
	return lr
}

func (r *LocalRepository) key(ownerID string) string {
	return LocalKeyPrefix + ownerID
}

func (r *LocalRepository) load(ctx context.Context, ownerID string) ([]HealthRecord, error) {
	raw, ok, err := r.store.Get(ctx, r.key(ownerID))
	if err != nil {
		return nil, fmt.Errorf("records: load %s: %w", ownerID, err)
	}
	if !ok {
		if !r.seed {
			return []HealthRecord{}, nil
		}
		seeded := SeedRecords(ownerID, r.now())
		if err := r.save(ctx, ownerID, seeded); err != nil {
			return nil, err
		}
		return seeded, nil
	}
	return DecodeRecords([]byte(raw)), nil
}

func (r *LocalRepository) save(ctx context.Context, ownerID string, recs []HealthRecord) error {
	now := r.now()
	out := make([]localRecord, len(recs))
	for i, rec := range recs {
		out[i] = toLocal(rec, now)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("records: encode: %w", err)
	}
	if err := r.store.Set(ctx, r.key(ownerID), string(data), 0); err != nil {
		return fmt.Errorf("records: save %s: %w", ownerID, err)
	}
	return nil
}

func (r *LocalRepository) List(ctx context.Context, ownerID string) ([]HealthRecord, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx, ownerID)
}

func (r *LocalRepository) Get(ctx context.Context, ownerID, id string) (*HealthRecord, error) {
	recs, err := r.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].ID == id {
			return &recs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Create prepends the record so the newest entry is first in storage.
func (r *LocalRepository) Create(ctx context.Context, ownerID string, in NewRecord) (*HealthRecord, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	date := r.now().UTC()
	if in.Date != nil {
		date = in.Date.UTC()
	}
	rec := HealthRecord{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Type:        NormalizeType(in.Type),
		Value:       in.Value,
		Unit:        in.Unit,
		Notes:       in.Notes,
		Date:        &date,
		HeartRate:   in.HeartRate,
		SystolicBp:  in.SystolicBp,
		DiastolicBp: in.DiastolicBp,
		Diagnosis:   in.Diagnosis,
	}
	if rec.Type == healthmodels.RecordTypeBloodPressure && rec.SystolicBp == nil {
		liftBloodPressure(&rec)
	}

	recs = append([]HealthRecord{rec}, recs...)
	if err := r.save(ctx, ownerID, recs); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *LocalRepository) Update(ctx context.Context, ownerID, id string, upd Update) (*HealthRecord, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].ID != id {
			continue
		}
		rec := &recs[i]
		if upd.Type != nil {
			rec.Type = NormalizeType(*upd.Type)
		}
		if upd.Value != nil {
			rec.Value = *upd.Value
			if rec.Type == healthmodels.RecordTypeBloodPressure {
				rec.SystolicBp, rec.DiastolicBp = nil, nil
				liftBloodPressure(rec)
			}
		}
		if upd.Unit != nil {
			rec.Unit = *upd.Unit
		}
		if upd.Notes != nil {
			rec.Notes = *upd.Notes
		}
		if upd.Date != nil {
			d := upd.Date.UTC()
			rec.Date = &d
		}
		if err := r.save(ctx, ownerID, recs); err != nil {
			return nil, err
		}
		out := *rec
		return &out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (r *LocalRepository) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return ErrNoOwner
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.load(ctx, ownerID)
	if err != nil {
		return err
	}
	kept := recs[:0]
	for _, rec := range recs {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(recs) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.save(ctx, ownerID, kept)
}

// liftBloodPressure reads "120/80" style values into the structured fields.
func liftBloodPressure(rec *HealthRecord) {
	var sys, dia float64
	if _, err := fmt.Sscanf(rec.Value, "%g/%g", &sys, &dia); err == nil {
		rec.SystolicBp, rec.DiastolicBp = &sys, &dia
	}
}

// SeedRecords returns the demo readings: a resting heart rate taken now and a
// blood pressure reading from the day before.
func SeedRecords(ownerID string, now time.Time) []HealthRecord {
	today := now.UTC()
	yesterday := today.Add(-24 * time.Hour)
	sys, dia := 120.0, 80.0
	return []HealthRecord{
		{
			ID:      "1",
			OwnerID: ownerID,
			Type:    healthmodels.RecordTypeHeartRate,
			Value:   "72",
			Unit:    "bpm",
			Notes:   "Resting heart rate",
			Date:    &today,
		},
		{
			ID:          "2",
			OwnerID:     ownerID,
			Type:        healthmodels.RecordTypeBloodPressure,
			Value:       "120/80",
			Unit:        "mmHg",
			Notes:       "Morning reading",
			Date:        &yesterday,
			SystolicBp:  &sys,
			DiastolicBp: &dia,
		},
	}
}
