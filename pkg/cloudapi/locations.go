package cloudapi

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/clonerr"
)

// locationLookup lists the Azure regions a subscription can deploy into.
// The production implementation wraps armsubscriptions.Client; tests
// substitute a fake.
type locationLookup interface {
	list(ctx context.Context, subscriptionID string) ([]string, error)
}

// ResolveLocation validates that preferred is an available region for
// subscriptionID, falling back to fallback otherwise (spec §4.6: a cloned
// resource group's location must be one the target subscription actually
// offers, since the source subscription's region may not be enabled on the
// target). Grounded on the teacher's AzureClient.ListLocations
// (extensions/azure.ai.agents/internal/pkg/azure/azure_client.go).
func (c *Client) ResolveLocation(ctx context.Context, subscriptionID, preferred, fallback string) (string, error) {
	if err := c.armBucket.Wait(ctx); err != nil {
		return "", err
	}
	available, err := c.locations.list(ctx, subscriptionID)
	if err != nil {
		return "", clonerr.Wrap(clonerr.TransientCloud, err)
	}
	for _, loc := range available {
		if loc == preferred {
			return preferred, nil
		}
	}
	return fallback, nil
}

type sdkLocationLookup struct {
	creds SubscriptionCredentialProvider
}

func (s *sdkLocationLookup) list(ctx context.Context, subscriptionID string) ([]string, error) {
	cred, err := s.creds.CredentialForSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, clonerr.Wrap(clonerr.AuthFailure, err)
	}
	client, err := armsubscriptions.NewClient(cred, nil)
	if err != nil {
		return nil, err
	}

	var names []string
	pager := client.NewListLocationsPager(subscriptionID, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classifyTransportError(err)
		}
		for _, loc := range page.Value {
			if loc.Name != nil {
				names = append(names, *loc.Name)
			}
		}
	}
	return names, nil
}
