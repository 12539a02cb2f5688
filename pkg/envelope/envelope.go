// Package envelope unwraps the transport envelopes the pipeline consumes: SQS
// bodies carrying SNS notifications, which in turn carry either S3 change
// records or metadata edit payloads.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/in4it/imagepipe/pkg/api"
	"github.com/juju/loggo"
)

const (
	MetadataTypeAttribute = "metadata_type"

	eventObjectCreated = "ObjectCreated"
	eventObjectRemoved = "ObjectRemoved"
)

var (
	logger = loggo.GetLogger("imagepipe.envelope")

	ErrMalformed = errors.New("malformed envelope")
)

// DecodeUploadEvents parses an SQS body holding an SNS notification whose
// Message is an S3 event. A notification without Records (the S3 test event)
// decodes to an empty list.
func DecodeUploadEvents(body string) ([]api.UploadEvent, error) {
	var outer events.SNSEntity
	if err := json.Unmarshal([]byte(body), &outer); err != nil {
		return nil, fmt.Errorf("%w: body: %s", ErrMalformed, err)
	}
	if outer.Message == "" {
		return nil, fmt.Errorf("%w: no Message in notification", ErrMalformed)
	}
	var inner events.S3Event
	if err := json.Unmarshal([]byte(outer.Message), &inner); err != nil {
		return nil, fmt.Errorf("%w: message: %s", ErrMalformed, err)
	}
	return DecodeS3Event(inner)
}

func DecodeS3Event(event events.S3Event) ([]api.UploadEvent, error) {
	uploads := make([]api.UploadEvent, 0, len(event.Records))
	for _, record := range event.Records {
		var kind api.EventKind
		switch {
		case strings.Contains(record.EventName, eventObjectCreated):
			kind = api.EventCreated
		case strings.Contains(record.EventName, eventObjectRemoved):
			kind = api.EventRemoved
		default:
			logger.Debugf("skipping record with event name %q", record.EventName)
			continue
		}
		if record.S3.Object.Key == "" {
			return nil, fmt.Errorf("%w: record without object key", ErrMalformed)
		}
		key, err := NormalizeKey(record.S3.Object.Key)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, api.UploadEvent{
			Bucket: record.S3.Bucket.Name,
			Key:    key,
			Kind:   kind,
		})
	}
	return uploads, nil
}

// NormalizeKey decodes an S3 notification key: "+" stands for a space and the
// rest is percent-encoded UTF-8.
func NormalizeKey(raw string) (string, error) {
	key, err := url.PathUnescape(strings.ReplaceAll(raw, "+", " "))
	if err != nil {
		return "", fmt.Errorf("%w: key %q: %s", ErrMalformed, raw, err)
	}
	if !utf8.ValidString(key) {
		return "", fmt.Errorf("%w: key %q is not valid UTF-8", ErrMalformed, raw)
	}
	return key, nil
}

// EncodeKey is the inverse of NormalizeKey.
func EncodeKey(key string) string {
	return url.QueryEscape(key)
}

type metadataPayload struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// DecodeMetadataUpdate reads a metadata edit from an SQS body. The body is
// either an SNS notification (tag in its MessageAttributes) or, with raw
// message delivery, the payload itself (tag in the SQS message attributes).
// Whitelisting is left to the caller.
func DecodeMetadataUpdate(body string, attrs map[string]string) (api.MetadataUpdate, error) {
	var outer events.SNSEntity
	if err := json.Unmarshal([]byte(body), &outer); err != nil {
		return api.MetadataUpdate{}, fmt.Errorf("%w: body: %s", ErrMalformed, err)
	}
	if outer.Message != "" {
		return DecodeSNSMetadata(outer)
	}
	return decodeMetadataPayload(body, attrs[MetadataTypeAttribute])
}

func DecodeSNSMetadata(entity events.SNSEntity) (api.MetadataUpdate, error) {
	if entity.Message == "" {
		return api.MetadataUpdate{}, fmt.Errorf("%w: no Message in notification", ErrMalformed)
	}
	return decodeMetadataPayload(entity.Message, snsAttribute(entity.MessageAttributes, MetadataTypeAttribute))
}

func decodeMetadataPayload(payload, attribute string) (api.MetadataUpdate, error) {
	var p metadataPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return api.MetadataUpdate{}, fmt.Errorf("%w: payload: %s", ErrMalformed, err)
	}
	return api.MetadataUpdate{Key: p.ID, Attribute: attribute, Value: p.Value}, nil
}

// snsAttribute reads a String attribute from SNS MessageAttributes, which
// decode as {"Type": "String", "Value": "..."}.
func snsAttribute(attrs map[string]interface{}, name string) string {
	raw, ok := attrs[name].(map[string]interface{})
	if !ok {
		return ""
	}
	value, _ := raw["Value"].(string)
	return value
}

// WrapSNS builds the JSON body SNS delivers to a subscribed SQS queue.
func WrapSNS(message string, attrs map[string]string) (string, error) {
	entity := events.SNSEntity{
		Type:      "Notification",
		MessageID: uuid.New().String(),
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if len(attrs) > 0 {
		entity.MessageAttributes = make(map[string]interface{}, len(attrs))
		for k, v := range attrs {
			entity.MessageAttributes[k] = map[string]interface{}{"Type": "String", "Value": v}
		}
	}
	out, err := json.Marshal(entity)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewS3Event builds a single-record S3 event as S3 would emit it, with key
// encoded the way S3 encodes it.
func NewS3Event(bucket, key, eventName string) events.S3Event {
	return events.S3Event{
		Records: []events.S3EventRecord{
			{
				EventVersion: "2.1",
				EventSource:  "aws:s3",
				EventTime:    time.Now().UTC(),
				EventName:    eventName,
				S3: events.S3Entity{
					SchemaVersion: "1.0",
					Bucket:        events.S3Bucket{Name: bucket, Arn: "arn:aws:s3:::" + bucket},
					Object:        events.S3Object{Key: EncodeKey(key)},
				},
			},
		},
	}
}

// WrapS3Event serializes event into an SNS notification body.
func WrapS3Event(event events.S3Event) (string, error) {
	message, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return WrapSNS(string(message), nil)
}
