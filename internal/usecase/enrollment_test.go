package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/voter-check/internal/faceengine"
	"github.com/example/voter-check/internal/repository"
)

type stubStore struct {
	existing   map[string]*repository.Identity
	insertErr  error
	existsErr  error
	inserted   []string
	existCalls int
}

func (s *stubStore) Exists(ctx context.Context, voterID string) (bool, error) {
	s.existCalls++
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.existing[voterID]
	return ok, nil
}

func (s *stubStore) Insert(ctx context.Context, voterID, fullName string, vector []float32) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, voterID)
	if s.existing == nil {
		s.existing = map[string]*repository.Identity{}
	}
	s.existing[voterID] = &repository.Identity{
		VoterID:    voterID,
		FullName:   fullName,
		Embedding:  vector,
		EnrolledAt: time.Now().UTC(),
	}
	return nil
}

func (s *stubStore) Get(ctx context.Context, voterID string) (*repository.Identity, error) {
	if identity, ok := s.existing[voterID]; ok {
		return identity, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubStore) Update(ctx context.Context, voterID, fullName string, vector []float32) error {
	return nil
}

func (s *stubStore) Delete(ctx context.Context, voterID string) error { return nil }

func (s *stubStore) ListAll(ctx context.Context) ([]repository.RosterEntry, error) {
	return nil, nil
}

func (s *stubStore) Count(ctx context.Context) (int64, error) {
	return int64(len(s.existing)), nil
}

type stubEngine struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEngine) Represent(ctx context.Context, image []byte) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func imagePayload() string {
	return base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes"))
}

func TestEnrollSucceeds(t *testing.T) {
	store := &stubStore{}
	engine := &stubEngine{vector: []float32{0.1, 0.2, 0.3}}
	uc := NewEnrollmentUseCase(store, engine, zap.NewNop())

	voterID, err := uc.Enroll(context.Background(), "XWC0001", imagePayload(), "Asha Rao")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if voterID != "XWC0001" {
		t.Fatalf("unexpected voter id: %s", voterID)
	}
	exists, _ := store.Exists(context.Background(), "XWC0001")
	if !exists {
		t.Fatal("enrollment not persisted")
	}
	if store.existing["XWC0001"].FullName != "Asha Rao" {
		t.Fatalf("full name not stored: %+v", store.existing["XWC0001"])
	}
}

func TestEnrollDefaultsNameToVoterID(t *testing.T) {
	store := &stubStore{}
	engine := &stubEngine{vector: []float32{1}}
	uc := NewEnrollmentUseCase(store, engine, zap.NewNop())

	if _, err := uc.Enroll(context.Background(), "XWC0002", imagePayload(), "  "); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if store.existing["XWC0002"].FullName != "XWC0002" {
		t.Fatalf("expected name to default to voter id, got %q", store.existing["XWC0002"].FullName)
	}
}

func TestEnrollRejectsDuplicateBeforeEngineCall(t *testing.T) {
	store := &stubStore{existing: map[string]*repository.Identity{
		"XWC0001": {VoterID: "XWC0001"},
	}}
	engine := &stubEngine{vector: []float32{1}}
	uc := NewEnrollmentUseCase(store, engine, zap.NewNop())

	_, err := uc.Enroll(context.Background(), "XWC0001", imagePayload(), "")
	if !errors.Is(err, repository.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
	if engine.calls != 0 {
		t.Fatalf("engine must not be called for a duplicate, got %d calls", engine.calls)
	}
}

func TestEnrollValidatesInputsBeforeAnyWork(t *testing.T) {
	store := &stubStore{}
	engine := &stubEngine{vector: []float32{1}}
	uc := NewEnrollmentUseCase(store, engine, zap.NewNop())

	cases := []struct {
		voterID, image string
	}{
		{"", imagePayload()},
		{"   ", imagePayload()},
		{"XWC0001", ""},
		{"XWC0001", "!!! not base64 !!!"},
	}
	for _, tc := range cases {
		_, err := uc.Enroll(context.Background(), tc.voterID, tc.image, "")
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("voterID=%q image=%q: expected ErrInvalidInput, got %v", tc.voterID, tc.image, err)
		}
	}
	if store.existCalls != 0 || engine.calls != 0 {
		t.Fatal("validation failures must not reach the store or the engine")
	}
}

func TestEnrollSurfacesEngineErrorsUnchanged(t *testing.T) {
	for _, sentinel := range []error{
		faceengine.ErrNoFaceDetected,
		faceengine.ErrMultipleFaces,
		faceengine.ErrImageDecode,
	} {
		store := &stubStore{}
		engine := &stubEngine{err: sentinel}
		uc := NewEnrollmentUseCase(store, engine, zap.NewNop())

		_, err := uc.Enroll(context.Background(), "XWC0001", imagePayload(), "")
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected %v to pass through, got %v", sentinel, err)
		}
		if len(store.inserted) != 0 {
			t.Fatal("nothing may be persisted when the engine fails")
		}
	}
}

func TestEnrollSurfacesInsertRaceAsDuplicate(t *testing.T) {
	store := &stubStore{insertErr: repository.ErrDuplicateIdentity}
	engine := &stubEngine{vector: []float32{1}}
	uc := NewEnrollmentUseCase(store, engine, zap.NewNop())

	_, err := uc.Enroll(context.Background(), "XWC0001", imagePayload(), "")
	if !errors.Is(err, repository.ErrDuplicateIdentity) {
		t.Fatalf("expected insert race to surface as duplicate, got %v", err)
	}
}
