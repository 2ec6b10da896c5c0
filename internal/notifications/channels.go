package notifications

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/config"
	"rentflow/property-portal/property-portal-backend/internal/notifications/websocket"
)

// EmailSender delivers a plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// Pusher delivers realtime frames to connected users.
type Pusher interface {
	SendToUser(userID string, message websocket.Message) error
}

// NewEmailSender picks the provider named in cfg.
func NewEmailSender(ctx context.Context, cfg config.EmailConfig, logger *zap.Logger) (EmailSender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "smtp":
		return NewSMTPSender(cfg, logger), nil
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.FromAddress, logger), nil
	case "", "log":
		return &LogSender{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// NewSMSSender returns an SNS sender when SMS is enabled and a log-only
// sender otherwise.
func NewSMSSender(ctx context.Context, cfg config.SMSConfig, logger *zap.Logger) (SMSSender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return &LogSender{logger: logger}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSNSSender(sns.NewFromConfig(awsCfg), cfg.SenderID, logger), nil
}

// SMTPSender sends mail through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	cfg      config.EmailConfig
	logger   *zap.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg config.EmailConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{cfg: cfg, logger: logger, sendMail: smtp.SendMail}
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("no recipient address")
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	if err := s.sendMail(addr, auth, s.cfg.FromAddress, []string{to}, s.buildMessage(to, subject, body)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Debug("Email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func (s *SMTPSender) buildMessage(to, subject, body string) []byte {
	var buf bytes.Buffer
	if s.cfg.FromName != "" {
		fmt.Fprintf(&buf, "From: %s <%s>\r\n", s.cfg.FromName, s.cfg.FromAddress)
	} else {
		fmt.Fprintf(&buf, "From: %s\r\n", s.cfg.FromAddress)
	}
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", strings.ReplaceAll(subject, "\n", " "))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends mail through Amazon SES.
type SESSender struct {
	client SESAPI
	from   string
	logger *zap.Logger
}

func NewSESSender(client SESAPI, from string, logger *zap.Logger) *SESSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SESSender{client: client, from: from, logger: logger}
}

func (s *SESSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("no recipient address")
	}
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{to}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}
	s.logger.Debug("Email sent via SES", zap.String("to", to), zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

// SNSAPI is the subset of the SNS client used here.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender sends transactional text messages through Amazon SNS.
type SNSSender struct {
	client   SNSAPI
	senderID string
	logger   *zap.Logger
}

func NewSNSSender(client SNSAPI, senderID string, logger *zap.Logger) *SNSSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SNSSender{client: client, senderID: senderID, logger: logger}
}

func (s *SNSSender) SendSMS(ctx context.Context, phone, message string) error {
	if phone == "" {
		return fmt.Errorf("no phone number")
	}
	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	s.logger.Debug("SMS sent", zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.logger.Info("Email (log only)", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func (s *LogSender) SendSMS(ctx context.Context, phone, message string) error {
	s.logger.Info("SMS (log only)", zap.String("phone", phone), zap.Int("length", len(message)))
	return nil
}
