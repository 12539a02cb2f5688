// Package metadata applies caption, date and photographer edits to catalog
// records.
package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/in4it/imagepipe/pkg/api"
	"github.com/in4it/imagepipe/pkg/envelope"
	"github.com/in4it/imagepipe/pkg/metrics"
	"github.com/in4it/imagepipe/pkg/queue"
	"github.com/in4it/imagepipe/pkg/storage"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("imagepipe.metadata")

type Config struct {
	Whitelist api.Whitelist
	// AutoCreate creates the record when an update for a supported image type
	// arrives before the upload was cataloged. Without it, and for any other
	// key, such an update fails with storage.ErrNotExist and is redelivered
	// until the record exists.
	AutoCreate bool
}

type Processor struct {
	store   storage.Storage
	config  Config
	metrics *metrics.Metrics
}

func NewProcessor(store storage.Storage, config Config, m *metrics.Metrics) *Processor {
	return &Processor{store: store, config: config, metrics: m}
}

// HandleMessage reads an update from an SQS message. Envelopes it cannot read
// are skipped.
func (p *Processor) HandleMessage(ctx context.Context, msg queue.Message) error {
	update, err := envelope.DecodeMetadataUpdate(msg.Body, msg.Attributes)
	if err != nil {
		logger.Debugf("skipping message %s: %s", msg.ID, err)
		p.metrics.MetadataUpdate("malformed")
		return nil
	}
	return p.Apply(ctx, update)
}

func (p *Processor) HandleSNS(ctx context.Context, entity events.SNSEntity) error {
	update, err := envelope.DecodeSNSMetadata(entity)
	if err != nil {
		logger.Debugf("skipping notification %s: %s", entity.MessageID, err)
		p.metrics.MetadataUpdate("malformed")
		return nil
	}
	return p.Apply(ctx, update)
}

// Apply validates update and sets the attribute. Updates outside the
// whitelist or missing a key or value are discarded without error.
func (p *Processor) Apply(ctx context.Context, update api.MetadataUpdate) error {
	if !p.config.Whitelist.Allows(update.Attribute) {
		logger.Debugf("discarding update of attribute %q for %q", update.Attribute, update.Key)
		p.metrics.MetadataUpdate("discarded")
		return nil
	}
	if !update.Complete() {
		logger.Debugf("discarding incomplete %s update for %q", update.Attribute, update.Key)
		p.metrics.MetadataUpdate("discarded")
		return nil
	}
	if p.config.AutoCreate && api.ClassifyType(update.Key) == api.Accepted {
		if err := p.store.PutImage(ctx, api.Image{Name: update.Key}); err != nil {
			return fmt.Errorf("create %s: %w", update.Key, err)
		}
	}
	err := p.store.UpdateAttribute(ctx, update.Key, update.Attribute, update.Value)
	if errors.Is(err, storage.ErrNotExist) {
		p.metrics.MetadataUpdate("not_found")
		return fmt.Errorf("update %s of %s: %w", update.Attribute, update.Key, err)
	}
	if err != nil {
		p.metrics.MetadataUpdate("failed")
		return fmt.Errorf("update %s of %s: %w", update.Attribute, update.Key, err)
	}
	logger.Infof("Set %s of %s", update.Attribute, update.Key)
	p.metrics.MetadataUpdate("applied")
	return nil
}
