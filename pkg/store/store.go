// Package store implements the State Store (C8): a transactional mapping
// of sessions, resources, edges, and templates with foreign-key cascades.
// Persistence schema particulars are out of scope (spec §1); this package
// gives the core a concrete, in-process Store it can run and be tested
// against, grounded on the shape of the teacher's pkg/state
// (StateCacheManager.Save/Load/Invalidate keyed by environment name,
// state_cache_test.go) generalized here to per-entity rows keyed by id with
// session-scoped secondary indices, as spec §4.8 and §8 require ("templates
// by session ordered by level", "resources by session ordered by level").
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/clonerr"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
)

// Store is the persistence surface the engine components depend on. A
// single implementation (MemoryStore) is provided; a real deployment would
// substitute one backed by a SQL/NoSQL engine behind the same interface
// (spec §1: "persistence schema particulars" are an external collaborator).
type Store interface {
	SaveDiscoverySession(ctx context.Context, s *model.DiscoverySession) error
	GetDiscoverySession(ctx context.Context, id string) (*model.DiscoverySession, error)
	LatestCompletedDiscovery(ctx context.Context, connectionID string) (*model.DiscoverySession, error)

	SaveResources(ctx context.Context, resources []*model.CloudResource) error
	ResourcesBySession(ctx context.Context, sessionID string) ([]*model.CloudResource, error)

	SaveEdges(ctx context.Context, edges []model.ResourceEdge) error
	EdgesBySession(ctx context.Context, sessionID string) ([]model.ResourceEdge, error)

	SaveDeploymentSession(ctx context.Context, s *model.DeploymentSession) error
	GetDeploymentSession(ctx context.Context, id string) (*model.DeploymentSession, error)

	SaveTemplates(ctx context.Context, templates []*model.TemplateDeployment) error
	SaveTemplate(ctx context.Context, t *model.TemplateDeployment) error
	GetTemplate(ctx context.Context, id string) (*model.TemplateDeployment, error)
	TemplatesBySession(ctx context.Context, deploymentSessionID string) ([]*model.TemplateDeployment, error)

	// DeleteDiscoverySession cascades to the session's resources and edges
	// (spec §3: "Deleting a session cascades").
	DeleteDiscoverySession(ctx context.Context, id string) error
}

// MemoryStore is an in-process, mutex-guarded Store implementation.
type MemoryStore struct {
	mu sync.Mutex

	discoverySessions map[string]*model.DiscoverySession
	resourcesBySess   map[string]map[string]*model.CloudResource // sessionId -> compositeId -> resource
	edgesBySess       map[string]map[string]model.ResourceEdge  // sessionId -> edgeId -> edge

	deploymentSessions map[string]*model.DeploymentSession
	templates          map[string]*model.TemplateDeployment
	templatesBySession map[string]map[string]bool // deploymentSessionId -> templateId set
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		discoverySessions:  make(map[string]*model.DiscoverySession),
		resourcesBySess:    make(map[string]map[string]*model.CloudResource),
		edgesBySess:        make(map[string]map[string]model.ResourceEdge),
		deploymentSessions: make(map[string]*model.DeploymentSession),
		templates:          make(map[string]*model.TemplateDeployment),
		templatesBySession: make(map[string]map[string]bool),
	}
}

func (s *MemoryStore) SaveDiscoverySession(ctx context.Context, session *model.DiscoverySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.discoverySessions[session.ID] = &cp
	return nil
}

func (s *MemoryStore) GetDiscoverySession(ctx context.Context, id string) (*model.DiscoverySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.discoverySessions[id]
	if !ok {
		return nil, clonerr.New(clonerr.NotFound, "DiscoverySessionNotFound", id)
	}
	cp := *session
	return &cp, nil
}

// LatestCompletedDiscovery implements C2's GetExistingDiscovery: the most
// recent Completed session for a connection, used to skip rediscovery.
func (s *MemoryStore) LatestCompletedDiscovery(ctx context.Context, connectionID string) (*model.DiscoverySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.DiscoverySession
	for _, session := range s.discoverySessions {
		if session.ConnectionID != connectionID || session.Status != model.DiscoveryCompleted {
			continue
		}
		if best == nil || (session.CompletedAt != nil && best.CompletedAt != nil && session.CompletedAt.After(*best.CompletedAt)) {
			best = session
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *MemoryStore) SaveResources(ctx context.Context, resources []*model.CloudResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range resources {
		bucket, ok := s.resourcesBySess[r.SessionID]
		if !ok {
			bucket = make(map[string]*model.CloudResource)
			s.resourcesBySess[r.SessionID] = bucket
		}
		cp := *r
		bucket[model.CompositeID(r.SessionID, r.AzureID)] = &cp
	}
	return nil
}

func (s *MemoryStore) ResourcesBySession(ctx context.Context, sessionID string) ([]*model.CloudResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.resourcesBySess[sessionID]
	out := make([]*model.CloudResource, 0, len(bucket))
	for _, r := range bucket {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DependencyLevel != out[j].DependencyLevel {
			return out[i].DependencyLevel < out[j].DependencyLevel
		}
		return out[i].AzureID < out[j].AzureID
	})
	return out, nil
}

func (s *MemoryStore) SaveEdges(ctx context.Context, edges []model.ResourceEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range edges {
		sessionID := sessionIDFromCompositeID(e.SourceID)
		bucket, ok := s.edgesBySess[sessionID]
		if !ok {
			bucket = make(map[string]model.ResourceEdge)
			s.edgesBySess[sessionID] = bucket
		}
		bucket[e.ID] = e
	}
	return nil
}

func (s *MemoryStore) EdgesBySession(ctx context.Context, sessionID string) ([]model.ResourceEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.edgesBySess[sessionID]
	out := make([]model.ResourceEdge, 0, len(bucket))
	for _, e := range bucket {
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) SaveDeploymentSession(ctx context.Context, session *model.DeploymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.deploymentSessions[session.ID] = &cp
	return nil
}

func (s *MemoryStore) GetDeploymentSession(ctx context.Context, id string) (*model.DeploymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.deploymentSessions[id]
	if !ok {
		return nil, clonerr.New(clonerr.NotFound, "DeploymentSessionNotFound", id)
	}
	cp := *session
	return &cp, nil
}

func (s *MemoryStore) SaveTemplates(ctx context.Context, templates []*model.TemplateDeployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range templates {
		s.saveTemplateLocked(t)
	}
	return nil
}

func (s *MemoryStore) SaveTemplate(ctx context.Context, t *model.TemplateDeployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveTemplateLocked(t)
	return nil
}

func (s *MemoryStore) saveTemplateLocked(t *model.TemplateDeployment) {
	cp := *t
	s.templates[t.ID] = &cp
	bucket, ok := s.templatesBySession[t.DeploymentSessionID]
	if !ok {
		bucket = make(map[string]bool)
		s.templatesBySession[t.DeploymentSessionID] = bucket
	}
	bucket[t.ID] = true
}

func (s *MemoryStore) GetTemplate(ctx context.Context, id string) (*model.TemplateDeployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, clonerr.New(clonerr.NotFound, "TemplateNotFound", id)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) TemplatesBySession(ctx context.Context, deploymentSessionID string) ([]*model.TemplateDeployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.templatesBySession[deploymentSessionID]
	out := make([]*model.TemplateDeployment, 0, len(ids))
	for id := range ids {
		cp := *s.templates[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DependencyLevel != out[j].DependencyLevel {
			return out[i].DependencyLevel < out[j].DependencyLevel
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemoryStore) DeleteDiscoverySession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.discoverySessions, id)
	delete(s.resourcesBySess, id)
	delete(s.edgesBySess, id)
	return nil
}

func sessionIDFromCompositeID(compositeID string) string {
	for i := 0; i < len(compositeID); i++ {
		if compositeID[i] == '/' {
			return compositeID[:i]
		}
	}
	return compositeID
}
