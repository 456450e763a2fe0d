package usecase

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"secure-file-service/internal/domain"
)

// memFileRepository はテスト用のインメモリFileRepository。
type memFileRepository struct {
	mu        sync.Mutex
	files     map[string]*domain.EncryptedFile
	grants    map[string]*domain.KeyGrant // key: fileID + "/" + granteeID
	createErr error
	markErr   error
}

func newMemFileRepository() *memFileRepository {
	return &memFileRepository{
		files:  make(map[string]*domain.EncryptedFile),
		grants: make(map[string]*domain.KeyGrant),
	}
}

func grantKey(fileID, granteeID string) string { return fileID + "/" + granteeID }

func (r *memFileRepository) CreateFile(ctx context.Context, file *domain.EncryptedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *file
	r.files[file.ID] = &cp
	return nil
}

func (r *memFileRepository) FindFileByID(ctx context.Context, id string) (*domain.EncryptedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (r *memFileRepository) DeleteFile(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return false, nil
	}
	delete(r.files, id)
	for k, g := range r.grants {
		if g.FileID == id {
			delete(r.grants, k)
		}
	}
	return true, nil
}

func summary(f *domain.EncryptedFile) *domain.FileSummary {
	return &domain.FileSummary{
		ID:          f.ID,
		OwnerID:     f.OwnerID,
		Metadata:    f.Metadata,
		IsHoneyfile: f.IsHoneyfile,
		CreatedAt:   f.CreatedAt,
	}
}

func (r *memFileRepository) FindFilesByOwner(ctx context.Context, ownerID string) ([]*domain.FileSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.FileSummary
	for _, f := range r.files {
		if f.OwnerID == ownerID {
			out = append(out, summary(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memFileRepository) FindFilesSharedWith(ctx context.Context, granteeID string) ([]*domain.FileSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.FileSummary
	for _, g := range r.grants {
		if g.GranteeID == granteeID {
			if f, ok := r.files[g.FileID]; ok {
				out = append(out, summary(f))
			}
		}
	}
	return out, nil
}

func (r *memFileRepository) FindGrant(ctx context.Context, fileID, granteeID string) (*domain.KeyGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[grantKey(fileID, granteeID)]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (r *memFileRepository) FindGrantsByFileID(ctx context.Context, fileID string) ([]*domain.KeyGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.KeyGrant
	for _, g := range r.grants {
		if g.FileID == fileID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memFileRepository) CreateGrantIfAbsent(ctx context.Context, grant *domain.KeyGrant) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := grantKey(grant.FileID, grant.GranteeID)
	if _, ok := r.grants[k]; ok {
		return false, nil
	}
	cp := *grant
	r.grants[k] = &cp
	return true, nil
}

func (r *memFileRepository) DeleteGrant(ctx context.Context, fileID, granteeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := grantKey(fileID, granteeID)
	if _, ok := r.grants[k]; !ok {
		return false, nil
	}
	delete(r.grants, k)
	return true, nil
}

func (r *memFileRepository) MarkTriggered(ctx context.Context, fileID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return false, r.markErr
	}
	f, ok := r.files[fileID]
	if !ok || f.Triggered {
		return false, nil
	}
	f.Triggered = true
	return true, nil
}

func (r *memFileRepository) CountHoneyfiles(ctx context.Context, ownerID string) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total, sprung int64
	for _, f := range r.files {
		if f.OwnerID == ownerID && f.IsHoneyfile {
			total++
			if f.Triggered {
				sprung++
			}
		}
	}
	return total, sprung, nil
}

// memBlobStore はテスト用のインメモリBlobStore。
type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (s *memBlobStore) Put(ctx context.Context, ref string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = append([]byte(nil), data...)
	return nil
}

func (s *memBlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, domain.NotFound("blob", ref)
	}
	return data, nil
}

func (s *memBlobStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
	return nil
}

func (s *memBlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// prefixSealer は保存時の封印を模したモック。
type prefixSealer struct{}

var sealPrefix = []byte("sealed:")

func (prefixSealer) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	return append(append([]byte(nil), sealPrefix...), plaintext...), nil
}

func (prefixSealer) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if !bytes.HasPrefix(ciphertext, sealPrefix) {
		return nil, errors.New("not sealed")
	}
	return ciphertext[len(sealPrefix):], nil
}

// memAuditLog はテスト用のAuditSink兼AuditReader。
type memAuditLog struct {
	mu        sync.Mutex
	events    []*domain.SecurityEvent
	recordErr error
	files     *memFileRepository
}

func (l *memAuditLog) Record(ctx context.Context, event *domain.SecurityEvent) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *memAuditLog) newestFirst(match func(*domain.SecurityEvent) bool, limit int) []*domain.SecurityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.SecurityEvent
	for i := len(l.events) - 1; i >= 0 && len(out) < limit; i-- {
		if match(l.events[i]) {
			out = append(out, l.events[i])
		}
	}
	return out
}

func (l *memAuditLog) FindByActor(ctx context.Context, actorID string, limit int) ([]*domain.SecurityEvent, error) {
	return l.newestFirst(func(e *domain.SecurityEvent) bool {
		return e.ActorID == actorID && e.Action != domain.AuditHoneyfileTriggered
	}, limit), nil
}

func (l *memAuditLog) FindByFile(ctx context.Context, fileID string, limit int) ([]*domain.SecurityEvent, error) {
	return l.newestFirst(func(e *domain.SecurityEvent) bool { return e.FileID == fileID }, limit), nil
}

func (l *memAuditLog) FindHoneyfileTriggers(ctx context.Context, ownerID string, limit int) ([]*domain.SecurityEvent, error) {
	return l.newestFirst(func(e *domain.SecurityEvent) bool {
		if e.Action != domain.AuditHoneyfileTriggered || l.files == nil {
			return false
		}
		f, _ := l.files.FindFileByID(context.Background(), e.FileID)
		return f != nil && f.OwnerID == ownerID
	}, limit), nil
}

func (l *memAuditLog) actions() []domain.AuditAction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.AuditAction, len(l.events))
	for i, e := range l.events {
		out[i] = e.Action
	}
	return out
}

func (l *memAuditLog) count(action domain.AuditAction) int {
	n := 0
	for _, a := range l.actions() {
		if a == action {
			n++
		}
	}
	return n
}

// memUserRepository はテスト用のインメモリUserRepository。
type memUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepository(users ...*domain.User) *memUserRepository {
	r := &memUserRepository{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepository) Search(ctx context.Context, query, excludeID string, limit int) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if u.ID != excludeID && strings.Contains(strings.ToLower(u.Username), strings.ToLower(query)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
