// Package notify tells the uploader whether an upload was accepted or
// rejected. Notification is best-effort: failures are logged, never retried.
package notify

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/in4it/imagepipe/pkg/api"
	"github.com/in4it/imagepipe/pkg/envelope"
	"github.com/in4it/imagepipe/pkg/metrics"
	"github.com/in4it/imagepipe/pkg/queue"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("imagepipe.notify")

type Router struct {
	config  Config
	mailer  Mailer
	metrics *metrics.Metrics
}

func NewRouter(config Config, mailer Mailer, m *metrics.Metrics) *Router {
	return &Router{config: config, mailer: mailer, metrics: m}
}

// HandleMessage never returns an error: an envelope it cannot read is logged
// and skipped so the message is not redelivered.
func (r *Router) HandleMessage(ctx context.Context, msg queue.Message) error {
	uploads, err := envelope.DecodeUploadEvents(msg.Body)
	if err != nil {
		logger.Errorf("skipping message %s: %s", msg.ID, err)
		r.metrics.Notification("unknown", "malformed")
		return nil
	}
	r.notifyAll(ctx, uploads)
	return nil
}

func (r *Router) HandleS3Event(ctx context.Context, event events.S3Event) error {
	uploads, err := envelope.DecodeS3Event(event)
	if err != nil {
		logger.Errorf("skipping S3 event: %s", err)
		return nil
	}
	r.notifyAll(ctx, uploads)
	return nil
}

func (r *Router) notifyAll(ctx context.Context, uploads []api.UploadEvent) {
	for _, upload := range uploads {
		if upload.Kind != api.EventCreated {
			continue
		}
		r.Notify(ctx, upload)
	}
}

// Notify composes and sends the notification for one created upload. It
// reports whether the send succeeded.
func (r *Router) Notify(ctx context.Context, upload api.UploadEvent) bool {
	n := Compose(r.config, upload)
	html, err := RenderHTML(n)
	if err != nil {
		logger.Errorf("render %s notification for %s: %s", n.Kind, upload.Key, err)
		r.metrics.Notification(string(n.Kind), "failed")
		return false
	}
	err = r.mailer.Send(ctx, Email{
		Subject: n.Subject,
		HTML:    html,
		To:      r.config.To,
		From:    r.config.From,
	})
	if err != nil {
		logger.Errorf("ERROR sending %s notification for %s: %s", n.Kind, upload.Key, err)
		r.metrics.Notification(string(n.Kind), "failed")
		return false
	}
	logger.Infof("Sent %s notification for file: %s", n.Kind, upload.Key)
	r.metrics.Notification(string(n.Kind), "sent")
	return true
}
