// internal/engine/notifier/transport.go
package notifier

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"subtrack-notifier/internal/common/config"
	apperrors "subtrack-notifier/internal/common/errors"
	"subtrack-notifier/internal/common/logger"
)

// EmailTransport sends one rendered email. Configured reports whether the
// transport can actually deliver; the notifier checks it before claiming so
// an unconfigured deployment never burns idempotency claims.
type EmailTransport interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
	Configured() bool
}

// SESAPI is the slice of the SES client the transport uses.
type SESAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESTransport delivers email through AWS SES.
type SESTransport struct {
	client    SESAPI
	fromEmail string
	logger    logger.Logger
}

func NewSESTransport(client SESAPI, fromEmail string, log logger.Logger) *SESTransport {
	return &SESTransport{
		client:    client,
		fromEmail: fromEmail,
		logger:    log,
	}
}

// NewSESTransportFromConfig builds the SES client from the standard AWS
// credential chain and the notification settings. Credential resolution is
// lazy, so a missing from_email still yields an unconfigured transport
// rather than an error.
func NewSESTransportFromConfig(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*SESTransport, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, err
	}
	return NewSESTransport(ses.NewFromConfig(awsCfg), cfg.Email.FromEmail, log), nil
}

func (t *SESTransport) Configured() bool {
	return t.client != nil && t.fromEmail != ""
}

func (t *SESTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !t.Configured() {
		return apperrors.NewTransportUnconfiguredError()
	}

	input := &ses.SendEmailInput{
		Source: aws.String(t.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := t.client.SendEmail(ctx, input)
	if err != nil {
		t.logger.WithError(err).Error("Failed to send email via SES", map[string]interface{}{
			"to":      to,
			"subject": subject,
		})
		return apperrors.NewTransportFailedError(to, err)
	}

	t.logger.Debug("Email sent via SES", map[string]interface{}{
		"to":        to,
		"messageId": aws.ToString(result.MessageId),
	})
	return nil
}

// UnconfiguredTransport is the stand-in when no email provider is set up.
// In-app delivery proceeds normally; email is skipped and logged.
type UnconfiguredTransport struct{}

func (UnconfiguredTransport) Configured() bool { return false }

func (UnconfiguredTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	return apperrors.NewTransportUnconfiguredError()
}
