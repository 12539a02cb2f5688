package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/in4it/imagepipe/pkg/api"
)

const (
	DefaultSenderName = "The Photo Album"

	subjectAccepted = "New image Upload"
	subjectRejected = "Rejection Notification"
)

type Config struct {
	SenderName string
	From       string
	To         []string
}

var emailTemplate = template.Must(template.New("email").Parse(`
<html>
  <body>
    <h2>{{ .Heading }}</h2>
    <ul>
      <li style="font-size:18px">👤 <b>{{ .RecipientName }}</b></li>
      <li style="font-size:18px">✉️ <b>{{ .RecipientContext }}</b></li>
    </ul>
    <p style="font-size:18px">{{ .Body }}</p>
  </body>
</html>
`))

// Compose builds the one notification a created upload gets. The kind depends
// only on the key's type classification.
func Compose(config Config, upload api.UploadEvent) api.Notification {
	n := api.Notification{
		RecipientName:    config.SenderName,
		RecipientContext: config.From,
	}
	if n.RecipientName == "" {
		n.RecipientName = DefaultSenderName
	}
	if api.ClassifyType(upload.Key) == api.Accepted {
		n.Kind = api.NotificationAccepted
		n.Subject = subjectAccepted
		n.Body = fmt.Sprintf("We received your Image. Its URL is %s", upload.Locator())
	} else {
		n.Kind = api.NotificationRejected
		n.Subject = subjectRejected
		n.Body = fmt.Sprintf("Image %s has been rejected because of an invalid file type", upload.Key)
	}
	return n
}

func RenderHTML(n api.Notification) (string, error) {
	heading := "Sent from:"
	if n.Kind == api.NotificationRejected {
		heading = "Rejection Details:"
	}
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, struct {
		api.Notification
		Heading string
	}{n, heading})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
