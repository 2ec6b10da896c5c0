package notifications

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/property-portal/property-portal-backend/internal/config"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

type fakeSNS struct {
	input *sns.PublishInput
}

func (f *fakeSNS) Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	sender := NewSMTPSender(config.EmailConfig{
		SMTPHost:    "mail.example.com",
		SMTPPort:    2525,
		Username:    "portal",
		Password:    "secret",
		FromAddress: "noreply@example.com",
		FromName:    "Property Portal",
	}, nil)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	err := sender.SendEmail(context.Background(), "alice@example.com", "Payment received", "Thank you.")
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:2525", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	msg := string(gotMsg)
	assert.True(t, strings.HasPrefix(msg, "From: Property Portal <noreply@example.com>\r\n"))
	assert.Contains(t, msg, "Subject: Payment received\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nThank you."))
}

func TestSMTPSenderErrors(t *testing.T) {
	sender := NewSMTPSender(config.EmailConfig{SMTPHost: "localhost", SMTPPort: 25}, nil)
	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }

	assert.EqualError(t, sender.SendEmail(context.Background(), "", "s", "b"), "no recipient address")
	err := sender.SendEmail(context.Background(), "bob@example.com", "s", "b")
	assert.ErrorContains(t, err, "connection refused")
}

func TestSESSender(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSender(client, "noreply@example.com", nil)

	require.NoError(t, sender.SendEmail(context.Background(), "alice@example.com", "Subject", "Body"))
	assert.Equal(t, "noreply@example.com", aws.ToString(client.input.FromEmailAddress))
	assert.Equal(t, []string{"alice@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Body", aws.ToString(client.input.Content.Simple.Body.Text.Data))

	client.err = errors.New("throttled")
	assert.Error(t, sender.SendEmail(context.Background(), "alice@example.com", "Subject", "Body"))
}

func TestSNSSender(t *testing.T) {
	client := &fakeSNS{}
	sender := NewSNSSender(client, "RENTFLOW", nil)

	require.NoError(t, sender.SendSMS(context.Background(), "+15550001111", "Your account was suspended"))
	assert.Equal(t, "+15550001111", aws.ToString(client.input.PhoneNumber))
	assert.Equal(t, "RENTFLOW", aws.ToString(client.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))

	assert.Error(t, sender.SendSMS(context.Background(), "", "x"))
}

func TestNewEmailSenderProviders(t *testing.T) {
	ctx := context.Background()

	s, err := NewEmailSender(ctx, config.EmailConfig{Provider: "log"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, s)

	s, err = NewEmailSender(ctx, config.EmailConfig{Provider: "smtp", SMTPHost: "localhost"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)

	_, err = NewEmailSender(ctx, config.EmailConfig{Provider: "pigeon"}, nil)
	assert.Error(t, err)

	sms, err := NewSMSSender(ctx, config.SMSConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, sms)
}
