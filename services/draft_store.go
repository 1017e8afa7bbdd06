package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"taxforms-api/models"

	"github.com/redis/go-redis/v9"
)

// DraftTTL bounds how long an untouched wizard draft is kept.
const DraftTTL = 24 * time.Hour

// DraftStore keeps server-held wizards. Drafts are only visible to the
// user who created them.
type DraftStore interface {
	Save(ctx context.Context, w *Wizard) error
	Load(ctx context.Context, userID, id string) (*Wizard, error)
	Delete(ctx context.Context, userID, id string) error
}

func draftKey(userID, id string) string {
	return "wizard:" + userID + ":" + id
}

func encodeDraft(w *Wizard) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return json.Marshal(w)
}

func decodeDraft(raw []byte) (*Wizard, error) {
	var w Wizard
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode wizard draft: %w", err)
	}
	if w.Files == nil {
		w.Files = map[string]models.UploadedFileRef{}
	}
	return &w, nil
}

// MemoryDraftStore keeps drafts in process memory. Drafts are stored
// encoded so callers never share a live *Wizard.
type MemoryDraftStore struct {
	mu        sync.Mutex
	drafts    map[string]memoryDraft
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

// draftSweepInterval bounds how often Save scans for expired drafts.
const draftSweepInterval = time.Minute

type memoryDraft struct {
	raw     []byte
	expires time.Time
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{
		drafts: make(map[string]memoryDraft),
		ttl:    DraftTTL,
		now:    time.Now,
	}
}

func (s *MemoryDraftStore) Save(ctx context.Context, w *Wizard) error {
	raw, err := encodeDraft(w)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !now.Before(s.nextSweep) {
		s.sweep(now)
	}
	s.drafts[draftKey(w.UserID, w.ID)] = memoryDraft{raw: raw, expires: now.Add(s.ttl)}
	return nil
}

// sweep drops every expired draft. Callers hold mu.
func (s *MemoryDraftStore) sweep(now time.Time) {
	for key, d := range s.drafts {
		if now.After(d.expires) {
			delete(s.drafts, key)
		}
	}
	s.nextSweep = now.Add(draftSweepInterval)
}

func (s *MemoryDraftStore) Load(ctx context.Context, userID, id string) (*Wizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := draftKey(userID, id)
	d, ok := s.drafts[key]
	if !ok {
		return nil, fmt.Errorf("wizard %s: %w", id, ErrNotFound)
	}
	if s.now().After(d.expires) {
		delete(s.drafts, key)
		return nil, fmt.Errorf("wizard %s: %w", id, ErrNotFound)
	}
	return decodeDraft(d.raw)
}

func (s *MemoryDraftStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, draftKey(userID, id))
	return nil
}

// RedisDraftStore shares drafts between API instances.
type RedisDraftStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDraftStore(rdb *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{rdb: rdb, ttl: DraftTTL}
}

func (s *RedisDraftStore) Save(ctx context.Context, w *Wizard) error {
	raw, err := encodeDraft(w)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, draftKey(w.UserID, w.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save wizard draft: %w", err)
	}
	return nil
}

func (s *RedisDraftStore) Load(ctx context.Context, userID, id string) (*Wizard, error) {
	raw, err := s.rdb.Get(ctx, draftKey(userID, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("wizard %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load wizard draft: %w", err)
	}
	return decodeDraft(raw)
}

func (s *RedisDraftStore) Delete(ctx context.Context, userID, id string) error {
	if err := s.rdb.Del(ctx, draftKey(userID, id)).Err(); err != nil {
		return fmt.Errorf("delete wizard draft: %w", err)
	}
	return nil
}
