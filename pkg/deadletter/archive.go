package deadletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/in4it/imagepipe/pkg/queue"
)

type ArchiveConfig struct {
	Bucket string
	Prefix string
	// WaitTime bounds each receive; the archive run stops at the first empty
	// receive.
	WaitTime time.Duration
}

type archivedMessage struct {
	ID           string            `json:"id"`
	Body         string            `json:"body"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	ReceiveCount int               `json:"receiveCount"`
	ArchivedAt   time.Time         `json:"archivedAt"`
}

// Archiver drains a dead-letter queue into S3 for inspection.
type Archiver struct {
	config   ArchiveConfig
	dlq      queue.Queue
	uploader s3manageriface.UploaderAPI
	now      func() time.Time
}

func NewArchiver(config ArchiveConfig, dlq queue.Queue, uploader s3manageriface.UploaderAPI) *Archiver {
	return &Archiver{config: config, dlq: dlq, uploader: uploader, now: time.Now}
}

func (a *Archiver) key(msg queue.Message, at time.Time) string {
	return path.Join(a.config.Prefix, at.Format("2006/01/02"), msg.ID+".json")
}

// Run archives messages until the queue is empty and returns how many were
// archived. A message is deleted from the queue only after its upload
// succeeded.
func (a *Archiver) Run(ctx context.Context) (int, error) {
	archived := 0
	for {
		msgs, err := a.dlq.Receive(ctx, 10, a.config.WaitTime)
		if err != nil {
			return archived, err
		}
		if len(msgs) == 0 {
			return archived, nil
		}
		for _, msg := range msgs {
			if err := a.archive(ctx, msg); err != nil {
				if releaseErr := a.dlq.Release(ctx, msg); releaseErr != nil {
					logger.Errorf("Release error: %s", releaseErr)
				}
				return archived, err
			}
			if err := a.dlq.Delete(ctx, msg); err != nil {
				return archived, err
			}
			archived++
		}
	}
}

func (a *Archiver) archive(ctx context.Context, msg queue.Message) error {
	at := a.now().UTC()
	contents, err := json.Marshal(archivedMessage{
		ID:           msg.ID,
		Body:         msg.Body,
		Attributes:   msg.Attributes,
		ReceiveCount: msg.ReceiveCount,
		ArchivedAt:   at,
	})
	if err != nil {
		return err
	}
	key := a.key(msg, at)
	logger.Debugf("Uploading %s to S3...", key)
	_, err = a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(contents),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
