// Package catalog keeps the image catalog in step with the bucket: accepted
// uploads get a record, removed objects lose theirs.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/in4it/imagepipe/pkg/api"
	"github.com/in4it/imagepipe/pkg/envelope"
	"github.com/in4it/imagepipe/pkg/queue"
	"github.com/in4it/imagepipe/pkg/storage"
	"github.com/juju/loggo"
)

var (
	logger = loggo.GetLogger("imagepipe.catalog")

	// ErrFatalClassification is wrapped by every error that stops an upload
	// from being cataloged because of its type.
	ErrFatalClassification = errors.New("fatal classification failure")
	ErrUndeterminedType    = fmt.Errorf("%w: could not determine the image type", ErrFatalClassification)
	ErrUnsupportedType     = fmt.Errorf("%w: unsupported image type", ErrFatalClassification)
)

type Writer struct {
	store storage.Storage
}

func NewWriter(store storage.Storage) *Writer {
	return &Writer{store: store}
}

// HandleMessage processes an SQS message carrying an SNS-wrapped S3 event. A
// malformed envelope is an error: the message goes back to the queue.
func (w *Writer) HandleMessage(ctx context.Context, msg queue.Message) error {
	uploads, err := envelope.DecodeUploadEvents(msg.Body)
	if err != nil {
		return fmt.Errorf("message %s: %w", msg.ID, err)
	}
	return w.applyAll(ctx, uploads)
}

func (w *Writer) HandleS3Event(ctx context.Context, event events.S3Event) error {
	uploads, err := envelope.DecodeS3Event(event)
	if err != nil {
		return err
	}
	return w.applyAll(ctx, uploads)
}

// applyAll applies every event and returns the first failure. Later events
// are still applied; all operations are idempotent so redelivering the whole
// message is safe.
func (w *Writer) applyAll(ctx context.Context, uploads []api.UploadEvent) error {
	var first error
	for _, upload := range uploads {
		if err := w.Apply(ctx, upload); err != nil {
			logger.Errorf("%s: %s", upload.Key, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (w *Writer) Apply(ctx context.Context, upload api.UploadEvent) error {
	switch upload.Kind {
	case api.EventRemoved:
		if err := w.store.DeleteImage(ctx, upload.Key); err != nil {
			return fmt.Errorf("delete %s: %w", upload.Key, err)
		}
		logger.Infof("Removed %s from catalog", upload.Key)
		return nil
	case api.EventCreated:
		switch api.ClassifyType(upload.Key) {
		case api.Indeterminate:
			return fmt.Errorf("%w: %s", ErrUndeterminedType, upload.Key)
		case api.Rejected:
			return fmt.Errorf("%w: %s", ErrUnsupportedType, api.Suffix(upload.Key))
		}
		if err := w.store.PutImage(ctx, api.Image{Name: upload.Key}); err != nil {
			return fmt.Errorf("put %s: %w", upload.Key, err)
		}
		logger.Infof("Cataloged %s", upload.Locator())
		return nil
	default:
		return fmt.Errorf("unknown event kind %q for %s", upload.Kind, upload.Key)
	}
}
