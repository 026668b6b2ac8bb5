// internal/engine/notifier/transport_test.go
package notifier

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack-notifier/internal/common/config"
	apperrors "subtrack-notifier/internal/common/errors"
	"subtrack-notifier/internal/common/logger"
)

type mockSESClient struct {
	inputs  []*ses.SendEmailInput
	sendErr error
}

func (m *mockSESClient) SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.inputs = append(m.inputs, input)
	return &ses.SendEmailOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSESTransportSend(t *testing.T) {
	client := &mockSESClient{}
	transport := NewSESTransport(client, "noreply@acme.test", logger.NewNoOpLogger())

	require.True(t, transport.Configured())
	err := transport.Send(context.Background(), "carol@acme.test", "Subject", "<p>Body</p>")
	require.NoError(t, err)

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, "noreply@acme.test", aws.ToString(input.Source))
	assert.Equal(t, []string{"carol@acme.test"}, input.Destination.ToAddresses)
	assert.Equal(t, "Subject", aws.ToString(input.Message.Subject.Data))
	assert.Equal(t, "<p>Body</p>", aws.ToString(input.Message.Body.Html.Data))
}

func TestSESTransportSendFailure(t *testing.T) {
	client := &mockSESClient{sendErr: fmt.Errorf("rate exceeded")}
	transport := NewSESTransport(client, "noreply@acme.test", logger.NewNoOpLogger())

	err := transport.Send(context.Background(), "carol@acme.test", "Subject", "<p>Body</p>")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTransportFailed))

	stdErr := err.(*apperrors.StandardError)
	assert.True(t, stdErr.Retryable)
}

func TestNewSESTransportFromConfig(t *testing.T) {
	var cfg config.NotificationConfig
	cfg.AWS.Region = "eu-west-1"

	// No from_email configured: the client builds but the transport reports
	// itself unconfigured, so no sends are attempted.
	transport, err := NewSESTransportFromConfig(context.Background(), cfg, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.False(t, transport.Configured())

	cfg.Email.FromEmail = "noreply@acme.test"
	transport, err = NewSESTransportFromConfig(context.Background(), cfg, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.True(t, transport.Configured())
}

func TestSESTransportUnconfigured(t *testing.T) {
	tests := []struct {
		name      string
		transport *SESTransport
	}{
		{"no client", NewSESTransport(nil, "noreply@acme.test", logger.NewNoOpLogger())},
		{"no from address", NewSESTransport(&mockSESClient{}, "", logger.NewNoOpLogger())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.transport.Configured())
			err := tt.transport.Send(context.Background(), "carol@acme.test", "s", "b")
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTransportUnconfigued))
		})
	}
}
