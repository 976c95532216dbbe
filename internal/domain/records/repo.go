package records

import "context"

// Repository is the record source. Implementations normalize backend shapes
// into HealthRecord before returning.
type Repository interface {
	List(ctx context.Context, ownerID string) ([]HealthRecord, error)
	Get(ctx context.Context, ownerID, id string) (*HealthRecord, error)
	Create(ctx context.Context, ownerID string, in NewRecord) (*HealthRecord, error)
	Update(ctx context.Context, ownerID, id string, upd Update) (*HealthRecord, error)
	Delete(ctx context.Context, ownerID, id string) error
}
