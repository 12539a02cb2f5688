package envelope

import (
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/go-cmp/cmp"
	"github.com/in4it/imagepipe/pkg/api"
)

const createdBody = `{
  "Type": "Notification",
  "MessageId": "6f1b1b9c-2a8c-5a5e-9d7e-2b3c4d5e6f70",
  "TopicArn": "arn:aws:sns:eu-west-1:123456789012:NewImageTopic",
  "Message": "{\"Records\":[{\"eventVersion\":\"2.1\",\"eventSource\":\"aws:s3\",\"awsRegion\":\"eu-west-1\",\"eventTime\":\"2023-05-01T10:00:00.000Z\",\"eventName\":\"ObjectCreated:Put\",\"s3\":{\"s3SchemaVersion\":\"1.0\",\"bucket\":{\"name\":\"images\",\"arn\":\"arn:aws:s3:::images\"},\"object\":{\"key\":\"vacation+photo.png\",\"size\":1024}}}]}",
  "Timestamp": "2023-05-01T10:00:01.000Z"
}`

func TestDecodeUploadEvents(t *testing.T) {
	got, err := DecodeUploadEvents(createdBody)
	if err != nil {
		t.Fatalf("DecodeUploadEvents error: %s", err)
	}
	want := []api.UploadEvent{{Bucket: "images", Key: "vacation photo.png", Kind: api.EventCreated}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded events mismatch (-want +got):\n%s", diff)
	}
	if got[0].Locator() != "s3://images/vacation photo.png" {
		t.Errorf("wrong locator: %s", got[0].Locator())
	}
}

func TestDecodeUploadEventsRoundTrip(t *testing.T) {
	tests := []struct {
		key       string
		eventName string
		kind      api.EventKind
	}{
		{"summer/beach day.jpeg", "ObjectCreated:CompleteMultipartUpload", api.EventCreated},
		{"a+b=c.png", "ObjectRemoved:Delete", api.EventRemoved},
		{"café.PNG", "ObjectCreated:Put", api.EventCreated},
	}
	for _, tt := range tests {
		body, err := WrapS3Event(NewS3Event("bucket", tt.key, tt.eventName))
		if err != nil {
			t.Fatalf("WrapS3Event error: %s", err)
		}
		got, err := DecodeUploadEvents(body)
		if err != nil {
			t.Errorf("DecodeUploadEvents(%q) error: %s", tt.key, err)
			continue
		}
		want := []api.UploadEvent{{Bucket: "bucket", Key: tt.key, Kind: tt.kind}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("key %q mismatch (-want +got):\n%s", tt.key, diff)
		}
	}
}

func TestDecodeUploadEventsMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":          "not json",
		"missing message":   `{"Type":"Notification"}`,
		"message not json":  `{"Type":"Notification","Message":"{oops"}`,
		"bad percent":       `{"Message":"{\"Records\":[{\"eventName\":\"ObjectCreated:Put\",\"s3\":{\"bucket\":{\"name\":\"b\"},\"object\":{\"key\":\"bad%zzkey.png\"}}}]}"}`,
		"missing key":       `{"Message":"{\"Records\":[{\"eventName\":\"ObjectCreated:Put\",\"s3\":{\"bucket\":{\"name\":\"b\"},\"object\":{}}}]}"}`,
		"message is object": `{"Message":{"Records":[]}}`,
	}
	for name, body := range tests {
		_, err := DecodeUploadEvents(body)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got: %v", name, err)
		}
	}
}

func TestDecodeUploadEventsWithoutRecords(t *testing.T) {
	body, err := WrapSNS(`{"Service":"Amazon S3","Event":"s3:TestEvent","Bucket":"images"}`, nil)
	if err != nil {
		t.Fatalf("WrapSNS error: %s", err)
	}
	got, err := DecodeUploadEvents(body)
	if err != nil {
		t.Fatalf("DecodeUploadEvents error: %s", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no events, got %d", len(got))
	}
}

func TestDecodeS3EventSkipsUnknownEvents(t *testing.T) {
	event := NewS3Event("bucket", "photo.png", "ObjectRestore:Completed")
	got, err := DecodeS3Event(event)
	if err != nil {
		t.Fatalf("DecodeS3Event error: %s", err)
	}
	if len(got) != 0 {
		t.Errorf("expected restore event to be skipped, got %+v", got)
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"vacation+photo.png":    "vacation photo.png",
		"a%2Bb.png":             "a+b.png",
		"dir%2Fsub%2Fphoto.png": "dir/sub/photo.png",
		"plain.jpeg":            "plain.jpeg",
	}
	for raw, want := range tests {
		got, err := NormalizeKey(raw)
		if err != nil {
			t.Errorf("NormalizeKey(%q) error: %s", raw, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeKeyMalformed(t *testing.T) {
	for _, raw := range []string{"bad%zz.png", "trunc%2.png", "latin%FF.png", "half%E2%82.png"} {
		if _, err := NormalizeKey(raw); !errors.Is(err, ErrMalformed) {
			t.Errorf("NormalizeKey(%q): expected ErrMalformed, got: %v", raw, err)
		}
	}
	if got, err := NormalizeKey("caf%C3%A9.png"); err != nil || got != "café.png" {
		t.Errorf("NormalizeKey of a multi-byte key = %q (%v)", got, err)
	}
}

func TestDecodeMetadataUpdate(t *testing.T) {
	snsBody, err := WrapSNS(`{"id":"vacation photo.png","value":"2023-05-01"}`, map[string]string{MetadataTypeAttribute: "Date"})
	if err != nil {
		t.Fatalf("WrapSNS error: %s", err)
	}
	tests := []struct {
		name  string
		body  string
		attrs map[string]string
		want  api.MetadataUpdate
	}{
		{
			name: "sns envelope",
			body: snsBody,
			want: api.MetadataUpdate{Key: "vacation photo.png", Attribute: "Date", Value: "2023-05-01"},
		},
		{
			name:  "raw delivery",
			body:  `{"id":"scan.png","value":"Ann"}`,
			attrs: map[string]string{MetadataTypeAttribute: "Photographer"},
			want:  api.MetadataUpdate{Key: "scan.png", Attribute: "Photographer", Value: "Ann"},
		},
		{
			name: "raw delivery without tag",
			body: `{"id":"scan.png","value":"Ann"}`,
			want: api.MetadataUpdate{Key: "scan.png", Value: "Ann"},
		},
	}
	for _, tt := range tests {
		got, err := DecodeMetadataUpdate(tt.body, tt.attrs)
		if err != nil {
			t.Errorf("%s: error: %s", tt.name, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s: mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}

func TestDecodeMetadataUpdateMalformed(t *testing.T) {
	for _, body := range []string{"", "{", `{"Message":"not json"}`, `{"id":1,"value":2}`} {
		if _, err := DecodeMetadataUpdate(body, nil); !errors.Is(err, ErrMalformed) {
			t.Errorf("body %q: expected ErrMalformed, got: %v", body, err)
		}
	}
}

func TestDecodeSNSMetadata(t *testing.T) {
	entity := events.SNSEntity{
		Message: `{"id":"a.png","value":"A caption"}`,
		MessageAttributes: map[string]interface{}{
			MetadataTypeAttribute: map[string]interface{}{"Type": "String", "Value": "Caption"},
		},
	}
	got, err := DecodeSNSMetadata(entity)
	if err != nil {
		t.Fatalf("DecodeSNSMetadata error: %s", err)
	}
	want := api.MetadataUpdate{Key: "a.png", Attribute: "Caption", Value: "A caption"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
