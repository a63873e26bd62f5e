package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tropicaldog17/mangaguard/internal/cache"
	"github.com/tropicaldog17/mangaguard/internal/classifier"
	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
	"github.com/tropicaldog17/mangaguard/internal/models"
	"github.com/tropicaldog17/mangaguard/internal/repositories"
)

// ---- Mocks for repositories, classifier and cache used in unit tests ----

type mockPostRepo struct {
	mu          sync.Mutex
	posts       map[int64]*models.Post
	logs        []*models.ModerationLog
	transitions []*repositories.Transition
	nextID      int64
	createErr   error
	applyErr    error

	// applyCtxErrs records ctx.Err() seen by each ApplyTransition call.
	applyCtxErrs []error
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{posts: map[int64]*models.Post{}}
}

func (m *mockPostRepo) put(p *models.Post) *models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		m.nextID++
		p.ID = m.nextID
	} else if p.ID > m.nextID {
		m.nextID = p.ID
	}
	if p.DetectedRisks == nil {
		p.DetectedRisks = models.RiskList{}
	}
	m.posts[p.ID] = p
	return p
}

func (m *mockPostRepo) CreatePending(ctx context.Context, post *models.Post) error {
	if m.createErr != nil {
		return m.createErr
	}
	post.ID = 0
	post.Status = models.StatusPending
	post.CreatedAt = time.Now().UTC()
	post.UpdatedAt = post.CreatedAt
	cp := *post
	m.put(&cp)
	post.ID = cp.ID
	return nil
}

func (m *mockPostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, fmt.Errorf("%w: post %d", apperrors.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockPostRepo) List(ctx context.Context, filter *models.PostFilter) ([]*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Post
	for _, p := range m.posts {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.EditorialOnly && !p.EditorialFlag {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockPostRepo) Count(ctx context.Context, filter *models.PostFilter) (int64, error) {
	posts, err := m.List(ctx, filter)
	return int64(len(posts)), err
}

func (m *mockPostRepo) ApplyTransition(ctx context.Context, id int64, t *repositories.Transition) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCtxErrs = append(m.applyCtxErrs, ctx.Err())
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	m.transitions = append(m.transitions, t)

	p, ok := m.posts[id]
	if !ok {
		return nil, fmt.Errorf("%w: post %d", apperrors.ErrNotFound, id)
	}
	allowed := false
	for _, s := range t.From {
		allowed = allowed || s == p.Status
	}
	if !allowed || (t.RequireClassified && !p.Classified()) || (t.RequireUnclassified && p.Classified()) {
		return nil, fmt.Errorf("%w: post %d is %s", apperrors.ErrConflict, id, p.Status)
	}

	entry := t.Log
	entry.ID = int64(len(m.logs) + 1)
	entry.PostID = id
	entry.PreviousStatus = p.Status
	entry.NewStatus = t.To
	entry.CreatedAt = time.Now().UTC()
	m.logs = append(m.logs, &entry)

	p.Status = t.To
	if t.Score != nil {
		s := *t.Score
		p.AIScore = &s
	}
	if t.Analysis != nil {
		p.AIAnalysis = t.Analysis
	}
	if t.DetectedRisks != nil {
		p.DetectedRisks = t.DetectedRisks
	}
	if t.EditorialFlag != nil {
		p.EditorialFlag = *t.EditorialFlag
	}
	if t.ReviewedBy != nil {
		p.ReviewedBy = t.ReviewedBy
	}
	if t.ReviewedAt != nil {
		p.ReviewedAt = t.ReviewedAt
	}
	cp := *p
	return &cp, nil
}

func (m *mockPostRepo) ListLogs(ctx context.Context, postID int64) ([]*models.ModerationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ModerationLog
	for _, l := range m.logs {
		if l.PostID == postID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockPostRepo) LatestLogs(ctx context.Context, postIDs []int64) (map[int64]*models.ModerationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := map[int64]*models.ModerationLog{}
	for _, id := range postIDs {
		for _, l := range m.logs {
			if l.PostID == id {
				latest[id] = l
			}
		}
	}
	return latest, nil
}

type mockReportingRepo struct {
	totals      []models.StatusCount
	window      []*models.Post
	logs        []*models.ModerationLog
	candidates  []*models.Post
	activity    []*models.Post
	userPosts   map[string][]*models.Post
	gotKeywords []string
	gotExclude  int64
	gotSince    time.Time
	windowCalls int
	err         error
}

func (m *mockReportingRepo) StatusTotals(ctx context.Context) ([]models.StatusCount, error) {
	return m.totals, m.err
}

func (m *mockReportingRepo) PostsCreatedSince(ctx context.Context, since time.Time) ([]*models.Post, error) {
	m.windowCalls++
	m.gotSince = since
	return m.window, m.err
}

func (m *mockReportingRepo) LogsCreatedSince(ctx context.Context, since time.Time) ([]*models.ModerationLog, error) {
	return m.logs, m.err
}

func (m *mockReportingRepo) SimilarCandidates(ctx context.Context, excludeID int64, keywords []string, limit int) ([]*models.Post, error) {
	m.gotExclude = excludeID
	m.gotKeywords = keywords
	if len(m.candidates) > limit {
		return m.candidates[:limit], m.err
	}
	return m.candidates, m.err
}

func (m *mockReportingRepo) ActivityPosts(ctx context.Context, filter *models.UserActivityFilter) ([]*models.Post, error) {
	return m.activity, m.err
}

func (m *mockReportingRepo) UserPosts(ctx context.Context, userID string) ([]*models.Post, error) {
	return m.userPosts[userID], m.err
}

// mockClassifier returns result (copied) or err and records the last request.
type mockClassifier struct {
	result  *models.ClassificationResult
	err     error
	calls   int
	content string
	cc      models.ClassificationContext
	// cancel, when set, is invoked during Classify to simulate the caller going away.
	cancel context.CancelFunc
}

func (m *mockClassifier) Classify(ctx context.Context, content string, cc models.ClassificationContext) (*models.ClassificationResult, error) {
	m.calls++
	m.content = content
	m.cc = cc
	if m.cancel != nil {
		m.cancel()
	}
	if m.err != nil {
		return nil, m.err
	}
	r := *m.result
	r.Normalize()
	return &r, nil
}

func classification(overall float64, risks map[models.RiskCategory]float64) *models.ClassificationResult {
	return &models.ClassificationResult{
		OverallScore: overall,
		Risks:        risks,
		Reasoning:    "test reasoning",
		Provider:     models.ProvenanceExternal,
		AnalyzedAt:   time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}

// memoryCache is an in-process cache.Service.
type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
	sets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.items[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = b
	c.sets++
	return nil
}

func (c *memoryCache) IsAvailable() bool              { return true }
func (c *memoryCache) Ping(ctx context.Context) error { return nil }
func (c *memoryCache) Close() error                   { return nil }

// compile-time checks that mocks satisfy interfaces
var _ repositories.PostRepository = (*mockPostRepo)(nil)
var _ repositories.ReportingRepository = (*mockReportingRepo)(nil)
var _ classifier.Classifier = (*mockClassifier)(nil)
var _ cache.Service = (*memoryCache)(nil)
