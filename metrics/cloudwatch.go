// Package metrics periodically publishes cache statistics to CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/aldehir/cache-service/cache"
)

// PutMetricDataAPI is the subset of the CloudWatch client the publisher uses.
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// NewClient creates a CloudWatch client for the given profile and region.
// Empty values fall back to the default AWS configuration chain.
func NewClient(ctx context.Context, profile, region string) (*cloudwatch.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cloudwatch.NewFromConfig(cfg), nil
}

// Publisher sends hit, miss and eviction deltas plus the current cache size
// on every tick. It only reads counters and never drives eviction.
type Publisher struct {
	client    PutMetricDataAPI
	namespace string
	interval  time.Duration
	source    func() cache.Stats
	logger    *slog.Logger

	mu       sync.Mutex
	last     cache.Stats
	stopChan chan struct{}
	done     chan struct{}
	running  bool
}

func NewPublisher(client PutMetricDataAPI, namespace string, interval time.Duration, source func() cache.Stats, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{
		client:    client,
		namespace: namespace,
		interval:  interval,
		source:    source,
		logger:    logger,
	}
}

func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("metrics publisher is already running")
	}

	p.running = true
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stopChan, p.done)

	return nil
}

// Stop halts the publishing loop and waits for it to exit.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopChan)
	done := p.done
	p.running = false
	p.mu.Unlock()

	<-done
}

func (p *Publisher) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			if err := p.PublishOnce(ctx); err != nil {
				p.logger.Error("Failed to publish cache metrics", "error", err)
			}
			cancel()
		case <-stop:
			return
		}
	}
}

// PublishOnce sends one batch of metrics. Counter deltas are only advanced
// when the call succeeds, so a failed batch is folded into the next one.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.source()
	now := time.Now()

	datum := func(name string, value float64) types.MetricDatum {
		return types.MetricDatum{
			MetricName: aws.String(name),
			Timestamp:  aws.Time(now),
			Unit:       types.StandardUnitCount,
			Value:      aws.Float64(value),
		}
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []types.MetricDatum{
			datum("CacheHits", float64(current.Hits-p.last.Hits)),
			datum("CacheMisses", float64(current.Misses-p.last.Misses)),
			datum("CacheEvictions", float64(current.Evictions-p.last.Evictions)),
			datum("CacheSize", float64(current.Size)),
		},
	}

	if _, err := p.client.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("failed to put metric data: %w", err)
	}

	p.last = current
	p.logger.Debug("Published cache metrics", "namespace", p.namespace, "size", current.Size)
	return nil
}
