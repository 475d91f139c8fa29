// Package cloudapi implements the Cloud API Client (C1): typed calls to the
// resource-graph query endpoint, provider-metadata lookup, deployment
// PUT/GET/cancel, and resource-group upsert, with bearer-token injection,
// pagination, and error mapping. Grounded on the teacher's pkg/azapi
// (AzureClient/ResourceService wrapping azcore/runtime pipelines with an
// injected SubscriptionCredentialProvider) and the REST surface of spec §6.
package cloudapi

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// SubscriptionCredentialProvider resolves a bearer-token credential scoped
// to a subscription. Modeled on the teacher's test mock
// mockaccount.SubscriptionCredentialProviderFunc; kept external per spec §1
// ("credential providers" are an external collaborator).
type SubscriptionCredentialProvider interface {
	CredentialForSubscription(ctx context.Context, subscriptionID string) (azcore.TokenCredential, error)
}

// SubscriptionCredentialProviderFunc adapts a function to the interface.
type SubscriptionCredentialProviderFunc func(ctx context.Context, subscriptionID string) (azcore.TokenCredential, error)

func (f SubscriptionCredentialProviderFunc) CredentialForSubscription(
	ctx context.Context, subscriptionID string,
) (azcore.TokenCredential, error) {
	return f(ctx, subscriptionID)
}

// ResourceRecord is one row returned by the resource-graph query, carrying
// exactly the projected columns of spec §4.1's query skeleton.
type ResourceRecord struct {
	ID               string
	Name             string
	Type             string
	ResourceGroup    string
	SubscriptionID   string
	Location         string
	Kind             string
	SKU              map[string]any
	Identity         map[string]any
	Plan             map[string]any
	Properties       map[string]any
	Tags             map[string]string
}

// ValidationOutcome is the result of an ARM template validation call.
type ValidationOutcome struct {
	IsValid bool
	Errors  []string
	Warnings []string
	Raw     map[string]any
}

// DeploymentHandle is the cloud-side identifier returned by SubmitDeployment.
type DeploymentHandle struct {
	ID   string
	Name string
}

// DeploymentState mirrors ARM's provisioningState for a deployment.
type DeploymentState string

const (
	DeploymentNotStarted DeploymentState = "NotStarted"
	DeploymentRunning    DeploymentState = "Running"
	DeploymentSucceeded  DeploymentState = "Succeeded"
	DeploymentFailed     DeploymentState = "Failed"
	DeploymentCanceled   DeploymentState = "Canceled"
)

// IsTerminal reports whether polling should stop.
func (s DeploymentState) IsTerminal() bool {
	switch s {
	case DeploymentSucceeded, DeploymentFailed, DeploymentCanceled:
		return true
	default:
		return false
	}
}

// DeploymentSnapshot is a point-in-time read of a cloud deployment.
type DeploymentSnapshot struct {
	State   DeploymentState
	Outputs map[string]any
	Errors  map[string]any
}

// ProviderInfo is the per-namespace metadata needed to resolve an
// API version, decoupled from the raw armresources.Provider SDK shape so
// apiversion.go can be unit tested without the SDK.
type ProviderInfo struct {
	Namespace     string
	ResourceTypes []ProviderResourceType
}

// ProviderResourceType is one entry of a provider's supported resource types.
type ProviderResourceType struct {
	ResourceType string
	Locations    []string
	APIVersions  []string // ordered newest-first, as ARM returns them
}
