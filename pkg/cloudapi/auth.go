package cloudapi

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// scopeARM is the token scope every Resource Manager / Resource Graph call in
// this package needs.
const scopeARM = "https://management.azure.com/.default"

// DefaultCredentialProvider resolves one azidentity.DefaultAzureCredential
// (environment, managed identity, Azure CLI, in that order) and hands back
// the same credential for every subscription, validating it once up front so
// auth failures surface before the first real API call rather than mid
// discovery run. Grounded on the teacher's extensions/azure.ai.agents
// internal/pkg/azure.NewCredential (validate-by-GetToken-on-construction
// pattern), generalized here from AzureDeveloperCLICredential (azd-specific)
// to DefaultAzureCredential, the general-purpose chain appropriate for a
// standalone service.
type DefaultCredentialProvider struct {
	cred azcore.TokenCredential
}

// NewDefaultCredentialProvider constructs and validates the credential
// chain.
func NewDefaultCredentialProvider(ctx context.Context) (*DefaultCredentialProvider, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	if _, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{scopeARM}}); err != nil {
		return nil, fmt.Errorf("failed to obtain an Azure AD token: %w", err)
	}
	return &DefaultCredentialProvider{cred: cred}, nil
}

// CredentialForSubscription implements SubscriptionCredentialProvider.
func (p *DefaultCredentialProvider) CredentialForSubscription(ctx context.Context, subscriptionID string) (azcore.TokenCredential, error) {
	return p.cred, nil
}
