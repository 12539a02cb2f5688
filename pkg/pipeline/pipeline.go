// Package pipeline wires the catalog, notification and metadata consumers to
// their queues. Clients are built once and handed to each component.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/in4it/imagepipe/pkg/api"
	"github.com/in4it/imagepipe/pkg/catalog"
	"github.com/in4it/imagepipe/pkg/config"
	"github.com/in4it/imagepipe/pkg/deadletter"
	"github.com/in4it/imagepipe/pkg/metadata"
	"github.com/in4it/imagepipe/pkg/metrics"
	"github.com/in4it/imagepipe/pkg/notify"
	"github.com/in4it/imagepipe/pkg/queue"
	"github.com/in4it/imagepipe/pkg/storage"
	"github.com/in4it/imagepipe/pkg/storage/dynamodb"
	"github.com/in4it/imagepipe/pkg/storage/local"
	"github.com/in4it/imagepipe/pkg/worker"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("imagepipe.pipeline")

// Deps are the external collaborators. DeadLetter may be nil, in which case
// exhausted messages stay with the transport's own redrive policy.
type Deps struct {
	Store         storage.Storage
	Mailer        notify.Mailer
	CatalogQueue  queue.Queue
	MailerQueue   queue.Queue
	MetadataQueue queue.Queue
	DeadLetter    queue.Queue
	Metrics       *metrics.Metrics
}

type Pipeline struct {
	Catalog  *catalog.Writer
	Router   *notify.Router
	Metadata *metadata.Processor

	CatalogPool  *worker.Pool
	MailerPool   *worker.Pool
	MetadataPool *worker.Pool

	// Set for the memory transport only: the topics standing in for the
	// bucket notification topic and the metadata topic.
	UploadTopic   *queue.MemoryTopic
	MetadataTopic *queue.MemoryTopic

	config  config.Config
	metrics *metrics.Metrics
}

func New(cfg config.Config, deps Deps) *Pipeline {
	p := &Pipeline{
		config:  cfg,
		metrics: deps.Metrics,
		Catalog: catalog.NewWriter(deps.Store),
		Router: notify.NewRouter(notify.Config{
			SenderName: cfg.Mail.SenderName,
			From:       cfg.Mail.From,
			To:         cfg.Mail.To,
		}, deps.Mailer, deps.Metrics),
		Metadata: metadata.NewProcessor(deps.Store, metadata.Config{
			Whitelist:  api.NewWhitelist(cfg.Metadata.Whitelist...),
			AutoCreate: cfg.Metadata.AutoCreate,
		}, deps.Metrics),
	}
	policy := deadletter.Policy{MaxReceives: cfg.MaxReceives}
	newPool := func(q queue.Queue, h worker.Handler, pc config.PoolConfig) *worker.Pool {
		pool := &worker.Pool{
			Name:      q.Name(),
			Queue:     q,
			Handler:   h,
			Workers:   pc.Workers,
			BatchSize: pc.BatchSize,
			WaitTime:  pc.WaitTime,
			Timeout:   pc.Timeout,
			Policy:    policy,
			Metrics:   deps.Metrics,
		}
		if deps.DeadLetter != nil {
			pool.Parker = deadletter.QueueParker{Source: q.Name(), DLQ: deps.DeadLetter}
		}
		return pool
	}
	if deps.CatalogQueue != nil {
		p.CatalogPool = newPool(deps.CatalogQueue, p.Catalog, cfg.Pools.Catalog)
	}
	if deps.MailerQueue != nil {
		p.MailerPool = newPool(deps.MailerQueue, p.Router, cfg.Pools.Mailer)
		p.MailerPool.BestEffort = true
	}
	if deps.MetadataQueue != nil {
		p.MetadataPool = newPool(deps.MetadataQueue, p.Metadata, cfg.Pools.Metadata)
	}
	return p
}

func (p *Pipeline) pools() []*worker.Pool {
	var pools []*worker.Pool
	for _, pool := range []*worker.Pool{p.CatalogPool, p.MailerPool, p.MetadataPool} {
		if pool != nil {
			pools = append(pools, pool)
		}
	}
	return pools
}

// Run drains every configured queue until ctx is cancelled. The pools share
// nothing; a failing consumer doesn't hold up the others.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, pool := range p.pools() {
		wg.Add(1)
		go func(pool *worker.Pool) {
			defer wg.Done()
			pool.Run(ctx)
		}(pool)
	}
	wg.Wait()
}

// NewStorage builds the catalog store described by cfg.
func NewStorage(cfg config.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "local":
		return storage.NewStorage("local", local.Config{Path: cfg.Storage.Path})
	case "dynamodb":
		return storage.NewStorage("dynamodb", dynamodb.Config{Table: cfg.Storage.Table, Region: cfg.Region})
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}

func NewMailer(cfg config.Config) (notify.Mailer, error) {
	switch cfg.Mail.Provider {
	case "log":
		return notify.LogMailer{}, nil
	case "ses":
		svc, err := notify.NewSESClient(cfg.MailRegion())
		if err != nil {
			return nil, err
		}
		return notify.NewSESMailer(svc), nil
	default:
		return nil, fmt.Errorf("unknown mail provider: %s", cfg.Mail.Provider)
	}
}

// Build constructs every collaborator from cfg and wires the pipeline.
func Build(ctx context.Context, cfg config.Config, m *metrics.Metrics) (*Pipeline, error) {
	store, err := NewStorage(cfg)
	if err != nil {
		return nil, err
	}
	mailer, err := NewMailer(cfg)
	if err != nil {
		return nil, err
	}
	deps := Deps{Store: store, Mailer: mailer, Metrics: m}

	switch cfg.Transport {
	case "memory":
		catalogQ := queue.NewMemoryQueue(cfg.Queues.Catalog, 0)
		mailerQ := queue.NewMemoryQueue(cfg.Queues.Mailer, 0)
		metadataQ := queue.NewMemoryQueue(cfg.Queues.Metadata, 0)
		deps.CatalogQueue, deps.MailerQueue, deps.MetadataQueue = catalogQ, mailerQ, metadataQ
		deps.DeadLetter = queue.NewMemoryQueue(cfg.Queues.DeadLetter, 0)
		p := New(cfg, deps)
		p.UploadTopic = queue.NewMemoryTopic(catalogQ, mailerQ)
		p.MetadataTopic = queue.NewMemoryTopic(metadataQ)
		return p, nil
	case "sqs":
		svc, err := queue.NewSQSClient(cfg.Region)
		if err != nil {
			return nil, err
		}
		queues := []struct {
			name   string
			target *queue.Queue
		}{
			{cfg.Queues.Catalog, &deps.CatalogQueue},
			{cfg.Queues.Mailer, &deps.MailerQueue},
			{cfg.Queues.Metadata, &deps.MetadataQueue},
			{cfg.Queues.DeadLetter, &deps.DeadLetter},
		}
		for _, q := range queues {
			if q.name == "" {
				continue
			}
			sqsQueue, err := queue.NewSQSQueueByName(ctx, svc, q.name)
			if err != nil {
				return nil, err
			}
			*q.target = sqsQueue
		}
		logger.Infof("Pipeline wired to SQS in %s", cfg.Region)
		return New(cfg, deps), nil
	default:
		return nil, fmt.Errorf("unknown transport: %s", cfg.Transport)
	}
}
