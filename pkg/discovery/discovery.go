// Package discovery implements the Discovery Engine (C2): it drives one
// DiscoverySession through pagination, per-type API-version enrichment,
// batched persistence, dependency analysis, and leveling, per spec §4.2.
// Grounded on the teacher's provisioning-state-machine shape (each step
// updates status and is individually retriable) and composed directly from
// pkg/cloudapi (C1), pkg/depgraph (C3/C4), and pkg/store (C8).
package discovery

import (
	"context"
	"log"
	"time"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/cloneconfig"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/cloudapi"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/depgraph"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/store"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/telemetry"
	"github.com/google/uuid"
)

// cloudClient is the subset of pkg/cloudapi.Client the discovery engine
// drives, declared locally so tests can substitute a fake (same seam
// pattern as pkg/deployengine.cloudClient).
type cloudClient interface {
	QueryResources(ctx context.Context, subscriptionID string, filters model.ResourceFilters, continuation *int32) ([]cloudapi.ResourceRecord, *int32, error)
	GetAPIVersion(ctx context.Context, subscriptionID, resourceType, location string) (string, error)
}

// StartRequest is the input to Start.
type StartRequest struct {
	Name         string
	ConnectionID string
	SourceSubID  string
	TargetSubID  string
	Filters      model.ResourceFilters
}

// Engine is the Discovery Engine (C2).
type Engine struct {
	store  store.Store
	client cloudClient
	cfg    cloneconfig.Options
}

// New builds an Engine.
func New(st store.Store, client cloudClient, cfg cloneconfig.Options) *Engine {
	return &Engine{store: st, client: client, cfg: cfg}
}

// GetExistingDiscovery returns the most recent Completed discovery session
// for connectionID, used to skip rediscovery (spec §4.2).
func (e *Engine) GetExistingDiscovery(ctx context.Context, connectionID string) (*model.DiscoverySession, error) {
	return e.store.LatestCompletedDiscovery(ctx, connectionID)
}

// Start runs the full discovery pipeline of spec §4.2 synchronously and
// returns the finished (or failed) session.
func (e *Engine) Start(ctx context.Context, req StartRequest) (result *model.DiscoverySession, err error) {
	ctx, span := telemetry.StartSpan(ctx, "discovery.Start", "connectionId", req.ConnectionID)
	defer func() { telemetry.EndWithError(span, err) }()

	session := &model.DiscoverySession{
		ID:           uuid.NewString(),
		Name:         req.Name,
		ConnectionID: req.ConnectionID,
		SourceSubID:  req.SourceSubID,
		TargetSubID:  req.TargetSubID,
		Filters:      req.Filters,
		Status:       model.DiscoveryInProgress,
		StartedAt:    time.Now(),
	}
	if err := e.store.SaveDiscoverySession(ctx, session); err != nil {
		return nil, err
	}
	return e.run(ctx, session)
}

// Resume loads an already-persisted session (created out-of-band, e.g. by
// an API handler queuing a resource-discovery message per spec §4.7) and
// drives it through the same pipeline as Start.
func (e *Engine) Resume(ctx context.Context, sessionID string) (result *model.DiscoverySession, err error) {
	ctx, span := telemetry.StartSpan(ctx, "discovery.Resume", "sessionId", sessionID)
	defer func() { telemetry.EndWithError(span, err) }()

	session, err := e.store.GetDiscoverySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Status = model.DiscoveryInProgress
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	if err := e.store.SaveDiscoverySession(ctx, session); err != nil {
		return nil, err
	}
	return e.run(ctx, session)
}

func (e *Engine) run(ctx context.Context, session *model.DiscoverySession) (*model.DiscoverySession, error) {
	resources, err := e.enumerate(ctx, session)
	if err != nil {
		return e.fail(ctx, session, err)
	}

	if err := e.enrichAndPersist(ctx, session, resources); err != nil {
		return e.fail(ctx, session, err)
	}

	all, err := e.store.ResourcesBySession(ctx, session.ID)
	if err != nil {
		return e.fail(ctx, session, err)
	}

	edges := depgraph.Analyze(all)
	if err := e.store.SaveEdges(ctx, edges); err != nil {
		return e.fail(ctx, session, err)
	}

	levels := depgraph.ComputeLevels(all, edges)
	depgraph.ApplyLevels(all, levels)
	if err := e.store.SaveResources(ctx, all); err != nil {
		return e.fail(ctx, session, err)
	}

	session.Status = model.DiscoveryCompleted
	session.CompletedAt = timePtr(time.Now())
	if err := e.store.SaveDiscoverySession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// enumerate pages through QueryResources, sleeping ResourceGraphDelayMs
// between pages (spec §4.2 step 2).
func (e *Engine) enumerate(ctx context.Context, session *model.DiscoverySession) ([]cloudapi.ResourceRecord, error) {
	var all []cloudapi.ResourceRecord
	var cont *int32
	for {
		page, next, err := e.client.QueryResources(ctx, session.SourceSubID, session.Filters, cont)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == nil {
			break
		}
		cont = next
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.cfg.ResourceGraphDelay()):
		}
	}
	session.TotalDiscovered = len(all)
	return all, nil
}

// enrichAndPersist looks up an API version for each resource (best-effort,
// spec §4.2 step 3) and persists in ProcessingBatchSize batches, sleeping
// RetryDelayMs between batches (step 4).
func (e *Engine) enrichAndPersist(ctx context.Context, session *model.DiscoverySession, records []cloudapi.ResourceRecord) error {
	batchSize := e.cfg.ProcessingBatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		resources := make([]*model.CloudResource, 0, len(batch))
		for _, rec := range batch {
			resources = append(resources, e.toCloudResource(ctx, session, rec))
		}
		if err := e.store.SaveResources(ctx, resources); err != nil {
			return err
		}

		session.Processed += len(batch)
		if err := e.store.SaveDiscoverySession(ctx, session); err != nil {
			return err
		}

		if end < len(records) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.RetryDelay()):
			}
		}
	}
	return nil
}

func (e *Engine) toCloudResource(ctx context.Context, session *model.DiscoverySession, rec cloudapi.ResourceRecord) *model.CloudResource {
	apiVersion := ""
	if rec.Type != "" {
		v, err := e.client.GetAPIVersion(ctx, session.SourceSubID, rec.Type, rec.Location)
		if err != nil {
			log.Printf("discovery: api version lookup failed for %s: %v", rec.Type, err)
		} else {
			apiVersion = v
		}
	}

	return &model.CloudResource{
		ID:            model.CompositeID(session.ID, rec.ID),
		SessionID:     session.ID,
		AzureID:       rec.ID,
		Name:          rec.Name,
		Type:          rec.Type,
		ResourceGroup: rec.ResourceGroup,
		Subscription:  rec.SubscriptionID,
		Location:      rec.Location,
		Kind:          rec.Kind,
		SKU:           rec.SKU,
		Identity:      rec.Identity,
		Plan:          rec.Plan,
		Properties:    rec.Properties,
		Tags:          rec.Tags,
		APIVersion:    apiVersion,
		Status:        model.ResourceDiscovered,
		DiscoveredAt:  time.Now(),
	}
}

func (e *Engine) fail(ctx context.Context, session *model.DiscoverySession, cause error) (*model.DiscoverySession, error) {
	session.Status = model.DiscoveryFailed
	session.ErrorMsg = cause.Error()
	session.CompletedAt = timePtr(time.Now())
	_ = e.store.SaveDiscoverySession(ctx, session)
	return session, cause
}

func timePtr(t time.Time) *time.Time { return &t }
