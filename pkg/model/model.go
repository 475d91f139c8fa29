// Package model defines the entities shared across the discovery and
// deployment pipeline. Entities are plain records referenced by id; callers
// navigate relationships through the store (pkg/store), never through
// in-memory pointers, so the graph can hold cycles without becoming a
// cyclic object graph in the runtime sense.
package model

import "time"

// DiscoverySessionStatus is the lifecycle of a DiscoverySession.
type DiscoverySessionStatus string

const (
	DiscoveryInProgress DiscoverySessionStatus = "InProgress"
	DiscoveryCompleted  DiscoverySessionStatus = "Completed"
	DiscoveryFailed     DiscoverySessionStatus = "Failed"
	DiscoveryCancelled  DiscoverySessionStatus = "Cancelled"
)

// terminal reports whether the status admits no further transitions other
// than metadata updates.
func (s DiscoverySessionStatus) terminal() bool {
	switch s {
	case DiscoveryCompleted, DiscoveryFailed, DiscoveryCancelled:
		return true
	default:
		return false
	}
}

// ResourceFilters narrows a discovery run to a subset of the subscription.
type ResourceFilters struct {
	ResourceGroups []string
	ResourceTypes  []string
}

// DiscoverySession tracks one enumeration run against a source subscription.
type DiscoverySession struct {
	ID              string
	Name            string
	ConnectionID    string
	SourceSubID     string
	TargetSubID     string
	Filters         ResourceFilters
	Status          DiscoverySessionStatus
	StartedAt       time.Time
	CompletedAt     *time.Time
	TotalDiscovered int
	Processed       int
	ErrorMsg        string
}

// IsTerminal reports whether the session has reached a final status.
func (s *DiscoverySession) IsTerminal() bool { return s.Status.terminal() }

// ResourceStatus is the lifecycle of a CloudResource within its session.
type ResourceStatus string

const (
	ResourceDiscovered        ResourceStatus = "Discovered"
	ResourceAnalyzed          ResourceStatus = "Analyzed"
	ResourceTemplateGenerated ResourceStatus = "TemplateGenerated"
	ResourceReadyForCloning   ResourceStatus = "ReadyForCloning"
	ResourceCloning           ResourceStatus = "Cloning"
	ResourceCloned            ResourceStatus = "Cloned"
	ResourceFailed            ResourceStatus = "Failed"
)

// CloudResource is one discovered resource-graph record.
type CloudResource struct {
	ID              string // composite: sessionId/azureId
	SessionID       string
	AzureID         string
	Name            string
	Type            string
	ResourceGroup   string
	Subscription    string
	Location        string
	Kind            string
	SKU             map[string]any
	Identity        map[string]any
	Plan            map[string]any
	Properties      map[string]any
	Tags            map[string]string
	APIVersion      string // empty when unresolved
	ParentID        string
	DependencyLevel int
	Status          ResourceStatus
	DiscoveredAt    time.Time
}

// CompositeID returns the (sessionId, azureId) composite key this record is
// uniquely identified by.
func CompositeID(sessionID, azureID string) string { return sessionID + "/" + azureID }

// EdgeType classifies a ResourceEdge.
type EdgeType string

const (
	EdgeNetwork            EdgeType = "Network"
	EdgeStorage            EdgeType = "Storage"
	EdgeIdentity           EdgeType = "Identity"
	EdgeConfiguration      EdgeType = "Configuration"
	EdgeParentChild        EdgeType = "ParentChild"
	EdgeCrossResourceGroup EdgeType = "CrossResourceGroup"
)

// ResourceEdge is a directed dependency: Source depends on (requires) Target.
type ResourceEdge struct {
	ID       string
	SourceID string
	TargetID string
	Type     EdgeType
	Required bool
}

// DeploymentMode distinguishes ARM's incremental vs. complete deployment modes.
type DeploymentMode string

const (
	ModeIncremental DeploymentMode = "Incremental"
	ModeComplete    DeploymentMode = "Complete"
)

// DeploymentSessionStatus is the lifecycle of a DeploymentSession.
type DeploymentSessionStatus string

const (
	DeploymentCreated           DeploymentSessionStatus = "Created"
	DeploymentValidating        DeploymentSessionStatus = "Validating"
	DeploymentValidationFailed  DeploymentSessionStatus = "ValidationFailed"
	DeploymentValidationPassed  DeploymentSessionStatus = "ValidationPassed"
	DeploymentDeploying         DeploymentSessionStatus = "Deploying"
	DeploymentPartiallyDeployed DeploymentSessionStatus = "PartiallyDeployed"
	DeploymentDeployed          DeploymentSessionStatus = "Deployed"
	DeploymentFailed            DeploymentSessionStatus = "Failed"
	DeploymentCancelled         DeploymentSessionStatus = "Cancelled"
)

// DeploymentSession tracks one clone-into-target run driven from a
// completed DiscoverySession.
type DeploymentSession struct {
	ID                  string
	Name                string
	DiscoverySessionID  string
	TargetSubID         string
	TargetResourceGroup string
	Mode                DeploymentMode
	Status              DeploymentSessionStatus
	StartedAt           time.Time
	CompletedAt         *time.Time
	TotalTemplates      int
	Deployed            int
	Failed              int
	ErrorMsg            string
	Outputs             map[string]any
}

// TemplateStatus is the lifecycle of a TemplateDeployment.
type TemplateStatus string

const (
	TemplateCreated          TemplateStatus = "Created"
	TemplateValidating       TemplateStatus = "Validating"
	TemplateValidationFailed TemplateStatus = "ValidationFailed"
	TemplateValidationPassed TemplateStatus = "ValidationPassed"
	TemplateQueued           TemplateStatus = "Queued"
	TemplateDeploying        TemplateStatus = "Deploying"
	TemplateDeployed         TemplateStatus = "Deployed"
	TemplateFailed           TemplateStatus = "Failed"
	TemplateSkipped          TemplateStatus = "Skipped"
)

// terminal reports whether the template status admits no further handler
// transitions (used by the broker to decide when a session is done).
func (s TemplateStatus) Terminal() bool {
	switch s {
	case TemplateDeployed, TemplateFailed, TemplateSkipped, TemplateValidationFailed:
		return true
	default:
		return false
	}
}

// TemplateDeployment is one per-(session,resourceGroup) ARM template.
type TemplateDeployment struct {
	ID                  string
	DeploymentSessionID string
	Name                string
	ResourceGroup       string
	TemplateContent     map[string]any
	ParametersContent   map[string]any
	Status              TemplateStatus
	DependencyLevel     int
	CreatedAt           time.Time
	ValidatedAt         *time.Time
	DeployedAt          *time.Time
	ValidationJSON      map[string]any
	DeploymentJSON      map[string]any
	ErrorMsg            string
}

// TargetResourceGroups derives the distinct resource groups a deployment
// session touches from its templates, mirroring the teacher's
// resourceGroupsFromDeployment helper (pkg/azapi/standard_deployments.go).
func TargetResourceGroups(templates []*TemplateDeployment) []string {
	seen := make(map[string]bool, len(templates))
	var groups []string
	for _, t := range templates {
		if t.ResourceGroup == "" || seen[t.ResourceGroup] {
			continue
		}
		seen[t.ResourceGroup] = true
		groups = append(groups, t.ResourceGroup)
	}
	return groups
}
