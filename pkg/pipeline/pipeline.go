// Package pipeline wires the Workflow Broker's four named queues (pkg/broker)
// to the engines that do the actual work (pkg/discovery, pkg/deployengine),
// per spec §4.7's handler table. It is a separate package from pkg/broker so
// that broker stays a dependency-free messaging primitive: broker imports
// nothing from discovery/deployengine/synth, and pipeline imports all three,
// avoiding an import cycle.
package pipeline

import (
	"context"
	"time"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/broker"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/deployengine"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/discovery"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/store"
)

// Pipeline owns the broker and the engines its handlers call into.
type Pipeline struct {
	broker  *broker.Broker
	store   store.Store
	disc    *discovery.Engine
	deploy  *deployengine.Engine
}

// New builds a Pipeline over an already-constructed broker and engines.
func New(b *broker.Broker, st store.Store, disc *discovery.Engine, deploy *deployengine.Engine) *Pipeline {
	return &Pipeline{broker: b, store: st, disc: disc, deploy: deploy}
}

// Register starts workerCount workers on each of the four queues, wiring
// each to its spec §4.7 handler action.
func (p *Pipeline) Register(ctx context.Context, workerCount int) {
	p.broker.Subscribe(ctx, broker.QueueResourceDiscovery, workerCount, p.handleResourceDiscovery)
	p.broker.Subscribe(ctx, broker.QueueTemplateCreated, workerCount, p.handleTemplateCreated)
	p.broker.Subscribe(ctx, broker.QueueTemplateValidation, workerCount, p.handleTemplateValidation)
	p.broker.Subscribe(ctx, broker.QueueTemplateDeployment, workerCount, p.handleTemplateDeployment)
	p.broker.Subscribe(ctx, broker.QueueTemplateDeploymentResult, workerCount, p.handleTemplateDeploymentResult)
}

// handleResourceDiscovery runs discovery for the session named in the
// message (spec §4.7: "resource-discovery" -> "Run §4.2 for the session.").
func (p *Pipeline) handleResourceDiscovery(ctx context.Context, env *broker.Envelope) error {
	sessionID, _ := env.Body["sessionId"].(string)
	if sessionID == "" {
		return nil // malformed message, nothing to retry into
	}
	_, err := p.disc.Resume(ctx, sessionID)
	return err
}

// handleTemplateCreated calls ValidateTemplate and emits the outcome onto
// template-validation (spec §4.7).
func (p *Pipeline) handleTemplateCreated(ctx context.Context, env *broker.Envelope) error {
	templateID, _ := env.Body["templateId"].(string)
	if templateID == "" {
		return nil
	}

	result, err := p.deploy.ValidateTemplate(ctx, templateID)
	if err != nil {
		return err
	}

	p.broker.Publish(broker.QueueTemplateValidation, map[string]any{
		"templateId":           templateID,
		"deploymentSessionId":  env.Body["deploymentSessionId"],
		"discoverySessionId":   env.Body["discoverySessionId"],
		"name":                 env.Body["name"],
		"rg":                   env.Body["rg"],
		"level":                env.Body["level"],
		"isValid":              result.IsValid,
		"validationJson":       map[string]any{"errors": result.Errors, "warnings": result.Warnings},
		"at":                   time.Now(),
	})
	return nil
}

// handleTemplateValidation persists nothing further (ValidateTemplate
// already persisted the template's validation state) and, if the template is
// valid, emits template-deployment (spec §4.7).
func (p *Pipeline) handleTemplateValidation(ctx context.Context, env *broker.Envelope) error {
	templateID, _ := env.Body["templateId"].(string)
	if templateID == "" {
		return nil
	}
	isValid, _ := env.Body["isValid"].(bool)
	if !isValid {
		return nil
	}

	p.broker.Publish(broker.QueueTemplateDeployment, map[string]any{
		"templateId":          templateID,
		"deploymentSessionId": env.Body["deploymentSessionId"],
		"discoverySessionId":  env.Body["discoverySessionId"],
		"name":                env.Body["name"],
		"rg":                  env.Body["rg"],
		"level":               env.Body["level"],
		"requestedAt":         time.Now(),
	})
	return nil
}

// handleTemplateDeployment calls DeployTemplate and emits the outcome onto
// template-deployment-result (spec §4.7).
func (p *Pipeline) handleTemplateDeployment(ctx context.Context, env *broker.Envelope) error {
	templateID, _ := env.Body["templateId"].(string)
	if templateID == "" {
		return nil
	}

	deployErr := p.deploy.DeployTemplate(ctx, templateID)
	tpl, err := p.store.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}

	p.broker.Publish(broker.QueueTemplateDeploymentResult, map[string]any{
		"templateId":          templateID,
		"deploymentSessionId": env.Body["deploymentSessionId"],
		"discoverySessionId":  env.Body["discoverySessionId"],
		"name":                env.Body["name"],
		"rg":                  env.Body["rg"],
		"level":               env.Body["level"],
		"isSuccess":           deployErr == nil,
		"deploymentJson":      tpl.DeploymentJSON,
		"completedAt":         time.Now(),
	})
	return nil
}

// handleTemplateDeploymentResult persists nothing further (DeployTemplate
// already persisted the template's terminal state) and, once every template
// in the deployment session is terminal, sets the session's final status
// (spec §4.7: "Deployed if all succeeded, else Failed"). This handler is
// idempotent (spec §8 P6): recomputing the aggregate over already-terminal
// templates and re-saving the same status is a no-op.
func (p *Pipeline) handleTemplateDeploymentResult(ctx context.Context, env *broker.Envelope) error {
	deploymentSessionID, _ := env.Body["deploymentSessionId"].(string)
	if deploymentSessionID == "" {
		return nil
	}

	session, err := p.store.GetDeploymentSession(ctx, deploymentSessionID)
	if err != nil {
		return err
	}
	if session.Status == model.DeploymentDeployed || session.Status == model.DeploymentFailed ||
		session.Status == model.DeploymentCancelled {
		return nil // already terminal; replaying this message must be a no-op
	}

	templates, err := p.store.TemplatesBySession(ctx, deploymentSessionID)
	if err != nil {
		return err
	}

	allTerminal := true
	succeeded, failed := 0, 0
	for _, tpl := range templates {
		if !tpl.Status.Terminal() {
			allTerminal = false
			break
		}
		if tpl.Status == model.TemplateDeployed {
			succeeded++
		} else {
			failed++
		}
	}
	if !allTerminal {
		return nil
	}

	session.Deployed = succeeded
	session.Failed = failed
	session.CompletedAt = timePtr(time.Now())
	if failed == 0 {
		session.Status = model.DeploymentDeployed
	} else if succeeded > 0 {
		session.Status = model.DeploymentPartiallyDeployed
	} else {
		session.Status = model.DeploymentFailed
	}
	return p.store.SaveDeploymentSession(ctx, session)
}

func timePtr(t time.Time) *time.Time { return &t }
