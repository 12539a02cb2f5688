// Package publish sends metadata edits to the metadata topic.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/in4it/imagepipe/pkg/api"
	"github.com/in4it/imagepipe/pkg/envelope"
	"github.com/in4it/imagepipe/pkg/queue"
)

type Publisher struct {
	topic     queue.Topic
	whitelist api.Whitelist
}

func NewPublisher(topic queue.Topic, whitelist api.Whitelist) *Publisher {
	return &Publisher{topic: topic, whitelist: whitelist}
}

// PublishUpdate refuses requests the processor would discard, so the caller
// learns about them instead of the edit disappearing.
func (p *Publisher) PublishUpdate(ctx context.Context, update api.MetadataUpdate) error {
	if !p.whitelist.Allows(update.Attribute) {
		return fmt.Errorf("attribute %q is not one of %v", update.Attribute, p.whitelist.Names())
	}
	if !update.Complete() {
		return errors.New("update needs both a key and a value")
	}
	payload, err := json.Marshal(struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	}{update.Key, update.Value})
	if err != nil {
		return err
	}
	return p.topic.Publish(ctx, string(payload), map[string]string{
		envelope.MetadataTypeAttribute: update.Attribute,
	})
}
