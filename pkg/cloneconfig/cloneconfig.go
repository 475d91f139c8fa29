// Package cloneconfig holds the configuration surface of spec §6, following
// the small options-struct-with-defaults shape of the teacher's pkg/config
// (config_options_test.go).
package cloneconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/braydonk/yaml"
)

// ServiceRateLimits caps requests/second per downstream service.
type ServiceRateLimits struct {
	ResourceGraph int
	ARM           int
	Storage       int
}

// Options is the full set of tunables named in spec §6.
type Options struct {
	ProcessingBatchSize      int
	ResourceGraphDelayMs     int
	MaxConcurrentOperations  int
	RetryAttempts            int
	RetryDelayMs             int
	ServiceRateLimits        ServiceRateLimits
	DeploymentPollInterval   time.Duration
	DeploymentPollMaxAttempts int
}

// Default returns the spec-mandated defaults.
func Default() Options {
	return Options{
		ProcessingBatchSize:     50,
		ResourceGraphDelayMs:    100,
		MaxConcurrentOperations: 10,
		RetryAttempts:           3,
		RetryDelayMs:            1000,
		ServiceRateLimits: ServiceRateLimits{
			ResourceGraph: 100,
			ARM:           200,
			Storage:       500,
		},
		DeploymentPollInterval:    30 * time.Second,
		DeploymentPollMaxAttempts: 60,
	}
}

// ResourceGraphDelay returns the inter-page sleep as a time.Duration.
func (o Options) ResourceGraphDelay() time.Duration {
	return time.Duration(o.ResourceGraphDelayMs) * time.Millisecond
}

// RetryDelay returns the base backoff between retries and dependency levels.
func (o Options) RetryDelay() time.Duration {
	return time.Duration(o.RetryDelayMs) * time.Millisecond
}

// Option mutates Options; used to override defaults in tests and callers.
type Option func(*Options)

// WithProcessingBatchSize overrides ProcessingBatchSize.
func WithProcessingBatchSize(n int) Option {
	return func(o *Options) { o.ProcessingBatchSize = n }
}

// WithResourceGraphDelayMs overrides ResourceGraphDelayMs.
func WithResourceGraphDelayMs(ms int) Option {
	return func(o *Options) { o.ResourceGraphDelayMs = ms }
}

// WithRetryDelayMs overrides RetryDelayMs.
func WithRetryDelayMs(ms int) Option {
	return func(o *Options) { o.RetryDelayMs = ms }
}

// WithDeploymentPolling overrides the polling interval and attempt budget.
func WithDeploymentPolling(interval time.Duration, maxAttempts int) Option {
	return func(o *Options) {
		o.DeploymentPollInterval = interval
		o.DeploymentPollMaxAttempts = maxAttempts
	}
}

// New builds Options from Default with the given overrides applied.
func New(opts ...Option) Options {
	o := Default()
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// fileOptions is the YAML-shaped overlay LoadFile reads; zero-valued fields
// leave the corresponding Default() value untouched, so an operator's config
// file only needs to name the tunables it wants to change.
type fileOptions struct {
	ProcessingBatchSize       *int            `yaml:"processingBatchSize"`
	ResourceGraphDelayMs      *int            `yaml:"resourceGraphDelayMs"`
	MaxConcurrentOperations   *int            `yaml:"maxConcurrentOperations"`
	RetryAttempts             *int            `yaml:"retryAttempts"`
	RetryDelayMs              *int            `yaml:"retryDelayMs"`
	DeploymentPollIntervalSec *int            `yaml:"deploymentPollIntervalSeconds"`
	DeploymentPollMaxAttempts *int            `yaml:"deploymentPollMaxAttempts"`
	ServiceRateLimits         *fileRateLimits `yaml:"serviceRateLimits"`
}

type fileRateLimits struct {
	ResourceGraph *int `yaml:"resourceGraph"`
	ARM           *int `yaml:"arm"`
	Storage       *int `yaml:"storage"`
}

// LoadFile reads a YAML overlay at path, applying it on top of Default(),
// grounded on the teacher's yaml.Unmarshal-a-struct config-file pattern
// (extensions/azure.foundry.ai.agents/internal/project/agent_config.go).
func LoadFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var overlay fileOptions
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Options{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	o := Default()
	if overlay.ProcessingBatchSize != nil {
		o.ProcessingBatchSize = *overlay.ProcessingBatchSize
	}
	if overlay.ResourceGraphDelayMs != nil {
		o.ResourceGraphDelayMs = *overlay.ResourceGraphDelayMs
	}
	if overlay.MaxConcurrentOperations != nil {
		o.MaxConcurrentOperations = *overlay.MaxConcurrentOperations
	}
	if overlay.RetryAttempts != nil {
		o.RetryAttempts = *overlay.RetryAttempts
	}
	if overlay.RetryDelayMs != nil {
		o.RetryDelayMs = *overlay.RetryDelayMs
	}
	if overlay.DeploymentPollIntervalSec != nil {
		o.DeploymentPollInterval = time.Duration(*overlay.DeploymentPollIntervalSec) * time.Second
	}
	if overlay.DeploymentPollMaxAttempts != nil {
		o.DeploymentPollMaxAttempts = *overlay.DeploymentPollMaxAttempts
	}
	if overlay.ServiceRateLimits != nil {
		if overlay.ServiceRateLimits.ResourceGraph != nil {
			o.ServiceRateLimits.ResourceGraph = *overlay.ServiceRateLimits.ResourceGraph
		}
		if overlay.ServiceRateLimits.ARM != nil {
			o.ServiceRateLimits.ARM = *overlay.ServiceRateLimits.ARM
		}
		if overlay.ServiceRateLimits.Storage != nil {
			o.ServiceRateLimits.Storage = *overlay.ServiceRateLimits.Storage
		}
	}
	return o, nil
}
