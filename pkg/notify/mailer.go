package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
)

const charset = "UTF-8"

type Email struct {
	Subject string
	HTML    string
	To      []string
	From    string
}

// Mailer sends a single email. No retry contract is assumed.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type SESMailer struct {
	svc sesiface.SESAPI
}

func NewSESMailer(svc sesiface.SESAPI) *SESMailer {
	return &SESMailer{svc: svc}
}

func NewSESClient(region string) (sesiface.SESAPI, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize ses: %s", err)
	}
	return ses.New(sess), nil
}

func (m *SESMailer) Send(ctx context.Context, email Email) error {
	out, err := m.svc.SendEmailWithContext(ctx, &ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: aws.StringSlice(email.To),
		},
		Message: &ses.Message{
			Body: &ses.Body{
				Html: &ses.Content{
					Charset: aws.String(charset),
					Data:    aws.String(email.HTML),
				},
			},
			Subject: &ses.Content{
				Charset: aws.String(charset),
				Data:    aws.String(email.Subject),
			},
		},
		Source: aws.String(email.From),
	})
	if err != nil {
		return fmt.Errorf("SendEmail error: %w", err)
	}
	logger.Debugf("SES accepted message %s", aws.StringValue(out.MessageId))
	return nil
}

// LogMailer only logs what it would send. Used for local runs.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, email Email) error {
	logger.Infof("Email from %s to %s: %s", email.From, strings.Join(email.To, ","), email.Subject)
	logger.Debugf("Email body: %s", email.HTML)
	return nil
}
