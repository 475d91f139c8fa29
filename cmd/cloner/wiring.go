package main

import (
	"context"
	"fmt"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/broker"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/cloneconfig"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/cloudapi"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/deployengine"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/discovery"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/pipeline"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/store"
)

// env is the set of wired components every subcommand operates against. A
// single in-process MemoryStore backs all of them, so a CLI invocation is
// only useful within one process lifetime; a long-running deployment use
// "serve" instead of separate discover/clone calls (see newServeCmd).
type env struct {
	cfg      cloneconfig.Options
	store    store.Store
	client   *cloudapi.Client
	disc     *discovery.Engine
	deploy   *deployengine.Engine
	broker   *broker.Broker
	pipeline *pipeline.Pipeline
}

func buildEnv(ctx context.Context, global *globalFlags) (*env, error) {
	cfg, err := global.loadOptions()
	if err != nil {
		return nil, err
	}

	creds, err := cloudapi.NewDefaultCredentialProvider(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticating to Azure: %w", err)
	}
	client := cloudapi.NewClient(creds, cfg)
	st := store.NewMemoryStore()

	disc := discovery.New(st, client, cfg)
	deploy := deployengine.New(st, client, cfg)
	b := broker.New(64)
	pl := pipeline.New(b, st, disc, deploy)
	pl.Register(ctx, cfg.MaxConcurrentOperations)

	return &env{cfg: cfg, store: st, client: client, disc: disc, deploy: deploy, broker: b, pipeline: pl}, nil
}
