package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/voter-check/internal/embedding"
)

var (
	// ErrDuplicateIdentity is returned when an insert targets a voter id that
	// already holds an embedding. One voter id, one embedding, no overwrite.
	ErrDuplicateIdentity = errors.New("voter id already enrolled")

	// ErrNotFound is returned when the voter id has no enrolled record.
	ErrNotFound = errors.New("voter id not enrolled")

	// ErrInvalidInput is returned for blank identifiers, blank names, or
	// empty embeddings.
	ErrInvalidInput = errors.New("invalid input")
)

// IdentityRecord is the persisted binding between a voter id and its face
// embedding. The embedding column holds the canonical JSON text form and is
// never included in bulk listings.
type IdentityRecord struct {
	VoterID    string    `gorm:"column:voter_id;primaryKey;size:64"`
	FullName   string    `gorm:"column:full_name;size:255;not null"`
	Embedding  string    `gorm:"column:embedding;type:text;not null"`
	EnrolledAt time.Time `gorm:"column:enrolled_at;not null"`
}

// TableName overrides the default table name.
func (IdentityRecord) TableName() string {
	return "face_embeddings"
}

// Identity is the decoded form handed to callers of Get.
type Identity struct {
	VoterID    string
	FullName   string
	Embedding  []float32
	EnrolledAt time.Time
}

// RosterEntry is a listing row. Embeddings are deliberately absent.
type RosterEntry struct {
	VoterID    string    `json:"voter_id"`
	FullName   string    `json:"full_name"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// IdentityRepository provides persistence for voter face enrollments.
type IdentityRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewIdentityRepository creates a new repository instance.
func NewIdentityRepository(db *gorm.DB, logger *zap.Logger) *IdentityRepository {
	return &IdentityRepository{db: db, logger: logger.Named("identity_repository")}
}

// AutoMigrate ensures the schema is available.
func (r *IdentityRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&IdentityRecord{})
}

// Insert persists a new enrollment. The duplicate check rides on the primary
// key: the insert runs with ON CONFLICT DO NOTHING and a zero rows-affected
// count means another record already holds the voter id. Concurrent inserts
// for the same id therefore race at the database, not in application code.
func (r *IdentityRepository) Insert(ctx context.Context, voterID, fullName string, vector []float32) error {
	voterID = strings.TrimSpace(voterID)
	fullName = strings.TrimSpace(fullName)
	if voterID == "" || fullName == "" || len(vector) == 0 {
		return ErrInvalidInput
	}

	encoded, err := embedding.Encode(vector)
	if err != nil {
		return err
	}

	record := &IdentityRecord{
		VoterID:    voterID,
		FullName:   fullName,
		Embedding:  encoded,
		EnrolledAt: time.Now().UTC(),
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "voter_id"}}, DoNothing: true}).
		Create(record)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDuplicateIdentity
	}
	r.logger.Info("identity enrolled", zap.String("voter_id", voterID))
	return nil
}

// Exists reports whether the voter id has an enrollment. Blank ids are
// treated as absent rather than as an error.
func (r *IdentityRepository) Exists(ctx context.Context, voterID string) (bool, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&IdentityRecord{}).
		Where("voter_id = ?", voterID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Get retrieves and decodes the enrollment for a voter id.
func (r *IdentityRepository) Get(ctx context.Context, voterID string) (*Identity, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return nil, ErrNotFound
	}
	var record IdentityRecord
	err := r.db.WithContext(ctx).First(&record, "voter_id = ?", voterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	vector, err := embedding.Decode(record.Embedding)
	if err != nil {
		return nil, err
	}
	return &Identity{
		VoterID:    record.VoterID,
		FullName:   record.FullName,
		Embedding:  vector,
		EnrolledAt: record.EnrolledAt,
	}, nil
}

// Update replaces the name and/or embedding of an existing enrollment. The
// column set is picked from a closed list of variants rather than assembled
// dynamically; every variant refreshes enrolled_at.
func (r *IdentityRepository) Update(ctx context.Context, voterID string, fullName string, vector []float32) error {
	voterID = strings.TrimSpace(voterID)
	fullName = strings.TrimSpace(fullName)
	if voterID == "" {
		return ErrInvalidInput
	}

	columns, err := updateColumns(fullName, vector)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&IdentityRecord{}).
		Where("voter_id = ?", voterID).
		Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.logger.Info("identity updated", zap.String("voter_id", voterID))
	return nil
}

// updateColumns selects one of three fixed update shapes: name only,
// embedding only, or both. No fields at all is an input error.
func updateColumns(fullName string, vector []float32) (map[string]any, error) {
	now := time.Now().UTC()
	switch {
	case fullName != "" && len(vector) > 0:
		encoded, err := embedding.Encode(vector)
		if err != nil {
			return nil, err
		}
		return map[string]any{"full_name": fullName, "embedding": encoded, "enrolled_at": now}, nil
	case fullName != "":
		return map[string]any{"full_name": fullName, "enrolled_at": now}, nil
	case len(vector) > 0:
		encoded, err := embedding.Encode(vector)
		if err != nil {
			return nil, err
		}
		return map[string]any{"embedding": encoded, "enrolled_at": now}, nil
	default:
		return nil, ErrInvalidInput
	}
}

// Delete removes an enrollment.
func (r *IdentityRepository) Delete(ctx context.Context, voterID string) error {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return ErrNotFound
	}
	result := r.db.WithContext(ctx).Delete(&IdentityRecord{}, "voter_id = ?", voterID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.logger.Info("identity deleted", zap.String("voter_id", voterID))
	return nil
}

// ListAll returns every enrollment newest first, without embeddings.
func (r *IdentityRepository) ListAll(ctx context.Context) ([]RosterEntry, error) {
	var entries []RosterEntry
	err := r.db.WithContext(ctx).
		Model(&IdentityRecord{}).
		Select("voter_id", "full_name", "enrolled_at").
		Order("enrolled_at DESC, voter_id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of enrollments.
func (r *IdentityRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&IdentityRecord{}).Count(&count).Error
	return count, err
}
