// Package deployengine implements the Deployment Engine (C6): it creates
// deployment sessions from a completed discovery, synthesizes templates via
// pkg/synth, and drives the validate -> deploy loop in dependency-level
// order, aggregating session outcome. Grounded on the teacher's
// standard_deployments.go for level-grouped, per-resource-group deployment
// orchestration (resourceGroupsFromDeployment, sequential per-level
// submission) and on pkg/azapi's deployment-polling loop shape.
package deployengine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/clonerr"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/cloneconfig"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/cloudapi"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/store"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/synth"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/telemetry"
	"github.com/google/uuid"
)

const locationParamKey = "_resourceGroupLocation"

const defaultLocation = "eastus"

// CreateRequest is the input to CreateDeploymentSession.
type CreateRequest struct {
	Name               string
	DiscoverySessionID string
	TargetSubID        string
	Mode               model.DeploymentMode
}

// ValidationResult is the structured outcome of validating one template
// (spec §4.6).
type ValidationResult struct {
	TemplateID string
	IsValid    bool
	Errors     []string
	Warnings   []string
	Duration   time.Duration
	At         time.Time
}

// SessionValidationResult aggregates ValidateAllTemplates across a session.
type SessionValidationResult struct {
	Results []ValidationResult
	AllValid bool
}

// cloudClient is the subset of pkg/cloudapi.Client the deployment engine
// drives; declared locally so tests can substitute a fake without reaching
// into cloudapi's unexported backend seams.
type cloudClient interface {
	ResolveLocation(ctx context.Context, subscriptionID, preferred, fallback string) (string, error)
	EnsureResourceGroup(ctx context.Context, subscriptionID, name, location string) error
	ValidateDeployment(ctx context.Context, subscriptionID, rg, name string, template, parameters map[string]any) (cloudapi.ValidationOutcome, error)
	SubmitDeployment(ctx context.Context, subscriptionID, rg, name string, template, parameters map[string]any) (cloudapi.DeploymentHandle, error)
	GetDeployment(ctx context.Context, subscriptionID, rg, name string) (cloudapi.DeploymentSnapshot, error)
	CancelDeployment(ctx context.Context, subscriptionID, rg, name string) (bool, error)
}

// Engine is the Deployment Engine (C6).
type Engine struct {
	store  store.Store
	client cloudClient
	cfg    cloneconfig.Options
}

// New builds an Engine.
func New(st store.Store, client *cloudapi.Client, cfg cloneconfig.Options) *Engine {
	return &Engine{store: st, client: client, cfg: cfg}
}

// newWithClient builds an Engine against an arbitrary cloudClient (used by
// tests to substitute a fake).
func newWithClient(st store.Store, client cloudClient, cfg cloneconfig.Options) *Engine {
	return &Engine{store: st, client: client, cfg: cfg}
}

// CreateDeploymentSession implements spec §4.6's CreateDeploymentSession.
func (e *Engine) CreateDeploymentSession(ctx context.Context, req CreateRequest) (result *model.DeploymentSession, err error) {
	ctx, span := telemetry.StartSpan(ctx, "deployengine.CreateDeploymentSession")
	defer func() { telemetry.EndWithError(span, err) }()

	discovery, err := e.store.GetDiscoverySession(ctx, req.DiscoverySessionID)
	if err != nil {
		return nil, err
	}
	if discovery.Status != model.DiscoveryCompleted {
		return nil, clonerr.New(clonerr.InvalidState, "DiscoveryNotCompleted",
			fmt.Sprintf("discovery session %s is %s, not Completed", discovery.ID, discovery.Status))
	}

	mode := req.Mode
	if mode == "" {
		mode = model.ModeIncremental
	}

	session := &model.DeploymentSession{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		DiscoverySessionID: req.DiscoverySessionID,
		TargetSubID:        req.TargetSubID,
		Mode:               mode,
		Status:             model.DeploymentCreated,
		StartedAt:          time.Now(),
		Outputs:            map[string]any{},
	}

	resources, err := e.store.ResourcesBySession(ctx, req.DiscoverySessionID)
	if err != nil {
		return nil, err
	}
	edges, err := e.store.EdgesBySession(ctx, req.DiscoverySessionID)
	if err != nil {
		return nil, err
	}

	groups := synth.Group(resources, edges)
	templates := make([]*model.TemplateDeployment, 0, len(groups))
	for _, g := range groups {
		params := g.Parameters
		if params == nil {
			params = map[string]any{}
		}
		params[locationParamKey] = g.Location

		templates = append(templates, &model.TemplateDeployment{
			ID:                  uuid.NewString(),
			DeploymentSessionID: session.ID,
			Name:                session.Name + "-" + g.ResourceGroup,
			ResourceGroup:       g.ResourceGroup,
			TemplateContent:     g.Content,
			ParametersContent:   params,
			Status:              model.TemplateCreated,
			DependencyLevel:     g.DependencyLevel,
			CreatedAt:           time.Now(),
		})
	}
	session.TotalTemplates = len(templates)

	if err := e.store.SaveDeploymentSession(ctx, session); err != nil {
		return nil, err
	}
	if err := e.store.SaveTemplates(ctx, templates); err != nil {
		return nil, err
	}
	return session, nil
}

// ValidateTemplate implements spec §4.6's ValidateTemplate.
func (e *Engine) ValidateTemplate(ctx context.Context, templateID string) (*ValidationResult, error) {
	tpl, err := e.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	tpl.Status = model.TemplateValidating
	if err := e.store.SaveTemplate(ctx, tpl); err != nil {
		return nil, err
	}

	start := time.Now()
	pre := synth.PreValidate(tpl.TemplateContent)
	if !pre.IsValid {
		tpl.Status = model.TemplateValidationFailed
		tpl.ValidatedAt = timePtr(time.Now())
		tpl.ValidationJSON = map[string]any{"errors": pre.Errors}
		tpl.ErrorMsg = "MissingSchema"
		if len(pre.Errors) > 0 {
			tpl.ErrorMsg = pre.Errors[0]
		}
		if err := e.store.SaveTemplate(ctx, tpl); err != nil {
			return nil, err
		}
		return &ValidationResult{
			TemplateID: templateID, IsValid: false, Errors: pre.Errors,
			Duration: time.Since(start), At: time.Now(),
		}, nil
	}

	subscriptionID := e.targetSubIDFor(ctx, tpl)
	outcome, err := e.client.ValidateDeployment(ctx, subscriptionID, tpl.ResourceGroup, tpl.Name, tpl.TemplateContent, tpl.ParametersContent)
	if err != nil {
		tpl.Status = model.TemplateValidationFailed
		tpl.ValidatedAt = timePtr(time.Now())
		tpl.ErrorMsg = err.Error()
		_ = e.store.SaveTemplate(ctx, tpl)
		return nil, err
	}

	if outcome.IsValid {
		tpl.Status = model.TemplateValidationPassed
	} else {
		tpl.Status = model.TemplateValidationFailed
	}
	tpl.ValidatedAt = timePtr(time.Now())
	tpl.ValidationJSON = map[string]any{"errors": outcome.Errors, "warnings": outcome.Warnings}
	if err := e.store.SaveTemplate(ctx, tpl); err != nil {
		return nil, err
	}

	return &ValidationResult{
		TemplateID: templateID, IsValid: outcome.IsValid, Errors: outcome.Errors,
		Warnings: outcome.Warnings, Duration: time.Since(start), At: time.Now(),
	}, nil
}

// ValidateAllTemplates implements spec §4.6's ValidateAllTemplates:
// sequential validation, session status reflects all-or-nothing.
func (e *Engine) ValidateAllTemplates(ctx context.Context, sessionID string) (*SessionValidationResult, error) {
	session, err := e.store.GetDeploymentSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	templates, err := e.store.TemplatesBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	agg := &SessionValidationResult{AllValid: true}
	for _, tpl := range templates {
		result, err := e.ValidateTemplate(ctx, tpl.ID)
		if err != nil {
			agg.AllValid = false
			agg.Results = append(agg.Results, ValidationResult{TemplateID: tpl.ID, IsValid: false, Errors: []string{err.Error()}})
			continue
		}
		agg.Results = append(agg.Results, *result)
		if !result.IsValid {
			agg.AllValid = false
		}
	}

	if agg.AllValid {
		session.Status = model.DeploymentValidationPassed
	} else {
		session.Status = model.DeploymentValidationFailed
	}
	if err := e.store.SaveDeploymentSession(ctx, session); err != nil {
		return nil, err
	}
	return agg, nil
}

// DeployTemplate implements spec §4.6's DeployTemplate: ensure the target
// resource group exists, submit the deployment, then poll to completion.
func (e *Engine) DeployTemplate(ctx context.Context, templateID string) error {
	tpl, err := e.store.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}

	subscriptionID := e.targetSubIDFor(ctx, tpl)
	location, err := e.client.ResolveLocation(ctx, subscriptionID, locationOf(tpl, defaultLocation), defaultLocation)
	if err != nil {
		return e.failTemplate(ctx, tpl, err)
	}

	if err := e.client.EnsureResourceGroup(ctx, subscriptionID, tpl.ResourceGroup, location); err != nil {
		return e.failTemplate(ctx, tpl, err)
	}

	tpl.Status = model.TemplateDeploying
	if err := e.store.SaveTemplate(ctx, tpl); err != nil {
		return err
	}

	if _, err := e.client.SubmitDeployment(ctx, subscriptionID, tpl.ResourceGroup, tpl.Name, tpl.TemplateContent, tpl.ParametersContent); err != nil {
		return e.failTemplate(ctx, tpl, err)
	}

	snap, err := e.pollUntilTerminal(ctx, subscriptionID, tpl.ResourceGroup, tpl.Name)
	if err != nil {
		return e.failTemplate(ctx, tpl, err)
	}

	tpl.DeployedAt = timePtr(time.Now())
	tpl.DeploymentJSON = map[string]any{"state": string(snap.State), "outputs": snap.Outputs, "errors": snap.Errors}
	if snap.State == cloudapi.DeploymentSucceeded {
		tpl.Status = model.TemplateDeployed
		return e.store.SaveTemplate(ctx, tpl)
	}

	tpl.Status = model.TemplateFailed
	tpl.ErrorMsg = fmt.Sprintf("deployment ended in state %s", snap.State)
	if saveErr := e.store.SaveTemplate(ctx, tpl); saveErr != nil {
		return saveErr
	}
	return clonerr.New(clonerr.TransientCloud, "DeploymentFailed", tpl.ErrorMsg)
}

// pollUntilTerminal polls GetDeployment at the configured interval until a
// terminal state or the attempt budget is exhausted (spec §4.6: "poll ...
// every 30s until terminal, for at most 60 attempts (30 min)").
func (e *Engine) pollUntilTerminal(ctx context.Context, subscriptionID, rg, name string) (cloudapi.DeploymentSnapshot, error) {
	interval := e.cfg.DeploymentPollInterval
	maxAttempts := e.cfg.DeploymentPollMaxAttempts

	for attempt := 0; attempt < maxAttempts; attempt++ {
		snap, err := e.client.GetDeployment(ctx, subscriptionID, rg, name)
		if err != nil {
			return cloudapi.DeploymentSnapshot{}, err
		}
		if snap.State.IsTerminal() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return cloudapi.DeploymentSnapshot{}, ctx.Err()
		case <-time.After(interval):
		}
	}
	return cloudapi.DeploymentSnapshot{}, clonerr.New(clonerr.DeploymentTimeout, "DeploymentTimeout",
		fmt.Sprintf("deployment %s/%s did not reach a terminal state within %d attempts", rg, name, maxAttempts))
}

func (e *Engine) failTemplate(ctx context.Context, tpl *model.TemplateDeployment, cause error) error {
	tpl.Status = model.TemplateFailed
	tpl.ErrorMsg = cause.Error()
	tpl.DeployedAt = timePtr(time.Now())
	_ = e.store.SaveTemplate(ctx, tpl)
	return cause
}

// DeployAllTemplates implements spec §4.6's DeployAllTemplates: level-by-
// level sequential deployment, stop-on-first-failure-per-level.
func (e *Engine) DeployAllTemplates(ctx context.Context, sessionID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "deployengine.DeployAllTemplates")
	defer func() { telemetry.EndWithError(span, err) }()

	session, err := e.store.GetDeploymentSession(ctx, sessionID)
	if err != nil {
		return err
	}
	templates, err := e.store.TemplatesBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	if session.Status == model.DeploymentCancelled {
		return nil // a cancelled session submits no new deployments (spec §4.6, §8 P7)
	}

	levels := groupByLevel(templates)
	session.Status = model.DeploymentDeploying
	if err := e.store.SaveDeploymentSession(ctx, session); err != nil {
		return err
	}

	deployed, failed := 0, 0
	stopped := false

	for i, level := range levels {
		if e.isCancelled(ctx, sessionID) {
			stopped = true
			break
		}
		for _, tpl := range level {
			if err := e.DeployTemplate(ctx, tpl.ID); err != nil {
				failed++
				stopped = true
				break
			}
			deployed++
			if deployedTpl, err := e.store.GetTemplate(ctx, tpl.ID); err == nil {
				if outputs, ok := deployedTpl.DeploymentJSON["outputs"].(map[string]any); ok {
					for k, v := range outputs {
						session.Outputs[k] = v
					}
				}
			}
		}
		if stopped {
			break
		}
		if i < len(levels)-1 {
			time.Sleep(e.cfg.RetryDelay())
		}
	}

	session.Deployed = deployed
	session.Failed = failed
	session.CompletedAt = timePtr(time.Now())
	switch {
	case failed == 0 && !stopped:
		session.Status = model.DeploymentDeployed
	case deployed > 0:
		session.Status = model.DeploymentPartiallyDeployed
	default:
		session.Status = model.DeploymentFailed
	}
	return e.store.SaveDeploymentSession(ctx, session)
}

// CancelDeployment implements spec §4.6's CancelDeployment.
func (e *Engine) CancelDeployment(ctx context.Context, sessionID string) error {
	session, err := e.store.GetDeploymentSession(ctx, sessionID)
	if err != nil {
		return err
	}
	session.Status = model.DeploymentCancelled
	session.CompletedAt = timePtr(time.Now())
	if err := e.store.SaveDeploymentSession(ctx, session); err != nil {
		return err
	}

	templates, err := e.store.TemplatesBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, tpl := range templates {
		if tpl.Status != model.TemplateDeploying && tpl.Status != model.TemplateQueued {
			continue
		}
		subscriptionID := e.targetSubIDFor(ctx, tpl)
		_, _ = e.client.CancelDeployment(ctx, subscriptionID, tpl.ResourceGroup, tpl.Name)
		tpl.Status = model.TemplateSkipped
		tpl.ErrorMsg = "skipped: deployment session cancelled"
		_ = e.store.SaveTemplate(ctx, tpl)
	}
	return nil
}

func (e *Engine) isCancelled(ctx context.Context, sessionID string) bool {
	session, err := e.store.GetDeploymentSession(ctx, sessionID)
	if err != nil {
		return false
	}
	return session.Status == model.DeploymentCancelled
}

func (e *Engine) targetSubIDFor(ctx context.Context, tpl *model.TemplateDeployment) string {
	session, err := e.store.GetDeploymentSession(ctx, tpl.DeploymentSessionID)
	if err != nil {
		return ""
	}
	return session.TargetSubID
}

func locationOf(tpl *model.TemplateDeployment, fallback string) string {
	if v, ok := tpl.ParametersContent[locationParamKey].(string); ok && v != "" {
		return v
	}
	return fallback
}

// groupByLevel buckets templates by DependencyLevel, returned in ascending
// level order, per spec §4.6's "group templates by dependencyLevel; iterate
// levels in ascending order".
func groupByLevel(templates []*model.TemplateDeployment) [][]*model.TemplateDeployment {
	byLevel := make(map[int][]*model.TemplateDeployment)
	var levels []int
	for _, tpl := range templates {
		if _, ok := byLevel[tpl.DependencyLevel]; !ok {
			levels = append(levels, tpl.DependencyLevel)
		}
		byLevel[tpl.DependencyLevel] = append(byLevel[tpl.DependencyLevel], tpl)
	}
	sort.Ints(levels)
	out := make([][]*model.TemplateDeployment, 0, len(levels))
	for _, l := range levels {
		out = append(out, byLevel[l])
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }
