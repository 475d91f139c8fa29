package cloudapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/clonerr"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/cloneconfig"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/ratelimit"
)

// graphPage is one page of resource-graph results plus the continuation
// token ARM hands back, decoupled from the armresourcegraph SDK response
// type so callers can be tested against a fake.
type graphPage struct {
	Records      []ResourceRecord
	TotalRecords int64
	NextSkip     int32 // resource-graph uses a numeric Skip, not an opaque token
}

// graphRunner issues one resource-graph query page. The production
// implementation wraps armresourcegraph.Client; tests substitute a fake.
type graphRunner interface {
	run(ctx context.Context, subscriptionID, query string, skip int32) (graphPage, error)
}

// providerLookup resolves one provider namespace's metadata. The production
// implementation wraps armresources.ProvidersClient; tests substitute a fake.
type providerLookup interface {
	get(ctx context.Context, subscriptionID, namespace string) (ProviderInfo, error)
}

// deploymentBackend issues the ARM deployment/resource-group calls of spec
// §4.1. The production implementation wraps armresources' clients.
type deploymentBackend interface {
	ensureResourceGroup(ctx context.Context, subscriptionID, name, location string) error
	validate(ctx context.Context, subscriptionID, rg, name string, template, parameters map[string]any) (ValidationOutcome, error)
	submit(ctx context.Context, subscriptionID, rg, name string, template, parameters map[string]any) (DeploymentHandle, error)
	get(ctx context.Context, subscriptionID, rg, name string) (DeploymentSnapshot, error)
	cancel(ctx context.Context, subscriptionID, rg, name string) (bool, error)
}

// Client is the Cloud API Client (C1). It owns per-service rate limiting
// and a circuit breaker (spec §5), caches provider API versions per
// namespace (read-mostly, write-locked — spec §5 "Shared resources"), and
// translates transport errors into clonerr.CloudError.
type Client struct {
	creds   SubscriptionCredentialProvider
	graph   graphRunner
	provider providerLookup
	deploy  deploymentBackend
	locations locationLookup
	cfg     cloneconfig.Options

	graphBucket   *ratelimit.Bucket
	armBucket     *ratelimit.Bucket
	breaker       *ratelimit.Breaker

	versionCache *providerCache
}

// NewClient builds a production Client backed by the Azure SDK, authorizing
// every call through creds (spec §6: "tokens are acquired by an externally
// supplied credential provider").
func NewClient(creds SubscriptionCredentialProvider, cfg cloneconfig.Options) *Client {
	return newClientWithBackends(
		creds,
		cfg,
		&sdkGraphRunner{creds: creds},
		&sdkProviderLookup{creds: creds},
		&sdkDeploymentBackend{creds: creds},
		&sdkLocationLookup{creds: creds},
	)
}

func newClientWithBackends(
	creds SubscriptionCredentialProvider,
	cfg cloneconfig.Options,
	graph graphRunner,
	provider providerLookup,
	deploy deploymentBackend,
	locations locationLookup,
) *Client {
	return &Client{
		creds:        creds,
		graph:        graph,
		provider:     provider,
		deploy:       deploy,
		locations:    locations,
		cfg:          cfg,
		graphBucket:  ratelimit.NewBucket(cfg.ServiceRateLimits.ResourceGraph),
		armBucket:    ratelimit.NewBucket(cfg.ServiceRateLimits.ARM),
		breaker:      ratelimit.NewBreaker(5, 30*time.Second),
		versionCache: newProviderCache(),
	}
}

// QueryResources pages through the resource-graph endpoint, applying the
// rate limiter and circuit breaker to every call (spec §4.1). continuation
// is the Skip offset to resume from; nil means "start from the beginning".
func (c *Client) QueryResources(
	ctx context.Context, subscriptionID string, filters model.ResourceFilters, continuation *int32,
) ([]ResourceRecord, *int32, error) {
	if !c.breaker.Allow() {
		return nil, nil, clonerr.New(clonerr.TransientCloud, "CircuitOpen", "resource graph circuit breaker is open")
	}
	if err := c.graphBucket.Wait(ctx); err != nil {
		return nil, nil, err
	}

	var skip int32
	if continuation != nil {
		skip = *continuation
	}
	query := BuildQuery(filters)

	var page graphPage
	err := ratelimit.WithBackoff(ctx, c.cfg.RetryDelay(), c.cfg.RetryAttempts, func(ctx context.Context) error {
		var runErr error
		page, runErr = c.graph.run(ctx, subscriptionID, query, skip)
		return runErr
	})
	if err != nil {
		c.breaker.RecordFailure()
		// Wrap preserves an existing CloudError's Kind (e.g. AuthFailure),
		// only defaulting to TransientCloud for an unclassified error.
		return nil, nil, clonerr.Wrap(clonerr.TransientCloud, err)
	}
	c.breaker.RecordSuccess()

	var next *int32
	nextSkip := skip + int32(len(page.Records))
	if int64(nextSkip) < page.TotalRecords {
		next = &nextSkip
	}
	return page.Records, next, nil
}

// GetAPIVersion fetches (and caches) a provider's metadata and selects the
// API version for resourceType in location, per spec §4.1. A nil result
// means the type isn't supported in that region; this is not an error.
func (c *Client) GetAPIVersion(
	ctx context.Context, subscriptionID, resourceType, location string,
) (string, error) {
	namespace, _, ok := SplitProviderAndType(resourceType)
	if !ok {
		return "", nil
	}

	info, ok := c.versionCache.get(namespace)
	if !ok {
		if err := c.armBucket.Wait(ctx); err != nil {
			return "", err
		}
		fetched, err := c.provider.get(ctx, subscriptionID, namespace)
		if err != nil {
			return "", clonerr.Wrap(clonerr.TransientCloud, err)
		}
		c.versionCache.put(namespace, fetched)
		info = fetched
	}

	version, found := SelectAPIVersion(info, resourceType, location)
	if !found {
		return "", nil
	}
	return version, nil
}

// EnsureResourceGroup idempotently creates/updates a resource group.
func (c *Client) EnsureResourceGroup(ctx context.Context, subscriptionID, name, location string) error {
	if err := c.armBucket.Wait(ctx); err != nil {
		return err
	}
	return clonerr.Wrap(clonerr.TransientCloud, c.deploy.ensureResourceGroup(ctx, subscriptionID, name, location))
}

// ValidateDeployment validates a template without deploying it.
func (c *Client) ValidateDeployment(
	ctx context.Context, subscriptionID, rg, name string, template, parameters map[string]any,
) (ValidationOutcome, error) {
	if err := c.armBucket.Wait(ctx); err != nil {
		return ValidationOutcome{}, err
	}
	outcome, err := c.deploy.validate(ctx, subscriptionID, rg, name, template, parameters)
	if err != nil {
		return ValidationOutcome{}, clonerr.Wrap(clonerr.ValidationFailure, err)
	}
	return outcome, nil
}

// SubmitDeployment PUTs a deployment and returns its cloud-side handle.
func (c *Client) SubmitDeployment(
	ctx context.Context, subscriptionID, rg, name string, template, parameters map[string]any,
) (DeploymentHandle, error) {
	if err := c.armBucket.Wait(ctx); err != nil {
		return DeploymentHandle{}, err
	}
	handle, err := c.deploy.submit(ctx, subscriptionID, rg, name, template, parameters)
	if err != nil {
		return DeploymentHandle{}, clonerr.Wrap(clonerr.TransientCloud, err)
	}
	return handle, nil
}

// GetDeployment reads the current state of a submitted deployment.
func (c *Client) GetDeployment(ctx context.Context, subscriptionID, rg, name string) (DeploymentSnapshot, error) {
	if err := c.armBucket.Wait(ctx); err != nil {
		return DeploymentSnapshot{}, err
	}
	snap, err := c.deploy.get(ctx, subscriptionID, rg, name)
	if err != nil {
		return DeploymentSnapshot{}, clonerr.Wrap(clonerr.TransientCloud, err)
	}
	return snap, nil
}

// CancelDeployment best-effort cancels an in-flight cloud deployment.
func (c *Client) CancelDeployment(ctx context.Context, subscriptionID, rg, name string) (bool, error) {
	ok, err := c.deploy.cancel(ctx, subscriptionID, rg, name)
	if err != nil {
		return false, clonerr.Wrap(clonerr.TransientCloud, err)
	}
	return ok, nil
}

// providerCache is the read-mostly, write-locked per-provider-namespace
// cache named in spec §5.
type providerCache struct {
	mu   chan struct{} // binary semaphore used as a cheap write lock
	data map[string]ProviderInfo
}

func newProviderCache() *providerCache {
	c := &providerCache{mu: make(chan struct{}, 1), data: make(map[string]ProviderInfo)}
	c.mu <- struct{}{}
	return c
}

func (c *providerCache) get(namespace string) (ProviderInfo, bool) {
	<-c.mu
	defer func() { c.mu <- struct{}{} }()
	info, ok := c.data[strings.ToLower(namespace)]
	return info, ok
}

func (c *providerCache) put(namespace string, info ProviderInfo) {
	<-c.mu
	defer func() { c.mu <- struct{}{} }()
	c.data[strings.ToLower(namespace)] = info
}

// --- production backends wrapping the Azure SDK ---

type sdkGraphRunner struct {
	creds SubscriptionCredentialProvider
}

func (s *sdkGraphRunner) run(ctx context.Context, subscriptionID, query string, skip int32) (graphPage, error) {
	cred, err := s.creds.CredentialForSubscription(ctx, subscriptionID)
	if err != nil {
		return graphPage{}, clonerr.Wrap(clonerr.AuthFailure, err)
	}
	client, err := armresourcegraph.NewClient(cred, nil)
	if err != nil {
		return graphPage{}, err
	}

	resp, err := client.Resources(ctx, armresourcegraph.QueryRequest{
		Subscriptions: []*string{&subscriptionID},
		Query:         &query,
		Options: &armresourcegraph.QueryRequestOptions{
			Top:  int32Ptr(1000),
			Skip: int32Ptr(skip),
		},
	}, nil)
	if err != nil {
		return graphPage{}, classifyTransportError(err)
	}

	rows, _ := resp.Data.([]any)
	records := make([]ResourceRecord, 0, len(rows))
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, recordFromRow(m))
	}

	var total int64
	if resp.TotalRecords != nil {
		total = *resp.TotalRecords
	}
	return graphPage{Records: records, TotalRecords: total}, nil
}

func recordFromRow(m map[string]any) ResourceRecord {
	str := func(k string) string { v, _ := m[k].(string); return v }
	obj := func(k string) map[string]any { v, _ := m[k].(map[string]any); return v }
	tags := map[string]string{}
	if raw, ok := m["tags"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				tags[k] = s
			}
		}
	}
	return ResourceRecord{
		ID:             str("id"),
		Name:           str("name"),
		Type:           str("type"),
		ResourceGroup:  str("resourceGroup"),
		SubscriptionID: str("subscriptionId"),
		Location:       str("location"),
		Kind:           str("kind"),
		SKU:            obj("sku"),
		Identity:       obj("identity"),
		Plan:           obj("plan"),
		Properties:     obj("properties"),
		Tags:           tags,
	}
}

type sdkProviderLookup struct {
	creds SubscriptionCredentialProvider
}

func (s *sdkProviderLookup) get(ctx context.Context, subscriptionID, namespace string) (ProviderInfo, error) {
	cred, err := s.creds.CredentialForSubscription(ctx, subscriptionID)
	if err != nil {
		return ProviderInfo{}, clonerr.Wrap(clonerr.AuthFailure, err)
	}
	client, err := armresources.NewProvidersClient(subscriptionID, cred, nil)
	if err != nil {
		return ProviderInfo{}, err
	}
	resp, err := client.Get(ctx, namespace, nil)
	if err != nil {
		return ProviderInfo{}, classifyTransportError(err)
	}

	info := ProviderInfo{Namespace: namespace}
	for _, rt := range resp.ResourceTypes {
		if rt == nil {
			continue
		}
		entry := ProviderResourceType{}
		if rt.ResourceType != nil {
			entry.ResourceType = namespace + "/" + *rt.ResourceType
		}
		for _, l := range rt.Locations {
			if l != nil {
				entry.Locations = append(entry.Locations, *l)
			}
		}
		for _, v := range rt.APIVersions {
			if v != nil {
				entry.APIVersions = append(entry.APIVersions, *v)
			}
		}
		info.ResourceTypes = append(info.ResourceTypes, entry)
	}
	return info, nil
}

type sdkDeploymentBackend struct {
	creds SubscriptionCredentialProvider
}

func (s *sdkDeploymentBackend) resourceGroupsClient(ctx context.Context, subscriptionID string) (*armresources.ResourceGroupsClient, error) {
	cred, err := s.creds.CredentialForSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, clonerr.Wrap(clonerr.AuthFailure, err)
	}
	return armresources.NewResourceGroupsClient(subscriptionID, cred, nil)
}

func (s *sdkDeploymentBackend) deploymentsClient(ctx context.Context, subscriptionID string) (*armresources.DeploymentsClient, error) {
	cred, err := s.creds.CredentialForSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, clonerr.Wrap(clonerr.AuthFailure, err)
	}
	return armresources.NewDeploymentsClient(subscriptionID, cred, nil)
}

func (s *sdkDeploymentBackend) ensureResourceGroup(ctx context.Context, subscriptionID, name, location string) error {
	client, err := s.resourceGroupsClient(ctx, subscriptionID)
	if err != nil {
		return err
	}
	_, err = client.CreateOrUpdate(ctx, name, armresources.ResourceGroup{Location: &location}, nil)
	return classifyTransportError(err)
}

func (s *sdkDeploymentBackend) validate(
	ctx context.Context, subscriptionID, rg, name string, template, parameters map[string]any,
) (ValidationOutcome, error) {
	client, err := s.deploymentsClient(ctx, subscriptionID)
	if err != nil {
		return ValidationOutcome{}, err
	}
	mode := armresources.DeploymentModeIncremental
	poller, err := client.BeginValidate(ctx, rg, name, armresources.Deployment{
		Properties: &armresources.DeploymentProperties{
			Template:   template,
			Parameters: parameters,
			Mode:       &mode,
		},
	}, nil)
	if err != nil {
		return ValidationOutcome{}, classifyTransportError(err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return ValidationOutcome{IsValid: false}, classifyTransportError(err)
	}

	outcome := ValidationOutcome{IsValid: true}
	if resp.Properties != nil && resp.Properties.Error != nil {
		outcome.IsValid = false
		for _, d := range clonerr.Flatten(map[string]any{
			"code":    derefStr(resp.Properties.Error.Code),
			"message": derefStr(resp.Properties.Error.Message),
		}) {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %s", d.Code, d.Message))
		}
	}
	return outcome, nil
}

func (s *sdkDeploymentBackend) submit(
	ctx context.Context, subscriptionID, rg, name string, template, parameters map[string]any,
) (DeploymentHandle, error) {
	client, err := s.deploymentsClient(ctx, subscriptionID)
	if err != nil {
		return DeploymentHandle{}, err
	}
	mode := armresources.DeploymentModeIncremental
	poller, err := client.BeginCreateOrUpdate(ctx, rg, name, armresources.Deployment{
		Properties: &armresources.DeploymentProperties{
			Template:   template,
			Parameters: parameters,
			Mode:       &mode,
		},
	}, nil)
	if err != nil {
		return DeploymentHandle{}, classifyTransportError(err)
	}
	// The handle is returned immediately; GetDeployment polls for completion
	// (spec §4.1 separates SubmitDeployment from polling via GetDeployment).
	_ = poller
	return DeploymentHandle{ID: rg + "/" + name, Name: name}, nil
}

func (s *sdkDeploymentBackend) get(ctx context.Context, subscriptionID, rg, name string) (DeploymentSnapshot, error) {
	client, err := s.deploymentsClient(ctx, subscriptionID)
	if err != nil {
		return DeploymentSnapshot{}, err
	}
	resp, err := client.Get(ctx, rg, name, nil)
	if err != nil {
		return DeploymentSnapshot{}, classifyTransportError(err)
	}

	snap := DeploymentSnapshot{State: DeploymentNotStarted}
	if resp.Properties != nil && resp.Properties.ProvisioningState != nil {
		snap.State = DeploymentState(*resp.Properties.ProvisioningState)
	}
	if resp.Properties != nil {
		if outputs, ok := resp.Properties.Outputs.(map[string]any); ok {
			snap.Outputs = outputs
		}
		if resp.Properties.Error != nil {
			snap.Errors = map[string]any{
				"code":    derefStr(resp.Properties.Error.Code),
				"message": derefStr(resp.Properties.Error.Message),
			}
		}
	}
	return snap, nil
}

func (s *sdkDeploymentBackend) cancel(ctx context.Context, subscriptionID, rg, name string) (bool, error) {
	client, err := s.deploymentsClient(ctx, subscriptionID)
	if err != nil {
		return false, err
	}
	_, err = client.Cancel(ctx, rg, name, nil)
	if err != nil {
		return false, classifyTransportError(err)
	}
	return true, nil
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func int32Ptr(v int32) *int32 { return &v }

// classifyTransportError maps an azcore.ResponseError's HTTP status to a
// clonerr.Kind, per spec §4.1/§7.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return clonerr.New(clonerr.ClassifyHTTPStatus(respErr.StatusCode), respErr.ErrorCode, respErr.Error())
	}
	return clonerr.Wrap(clonerr.Unknown, err)
}
