package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/logger"
)

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
}

// sesAPI is the part of the SES client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESMailer struct {
	client sesAPI
	sender string
	log    *logger.Logger
}

// NewSES builds a mailer on Amazon SES. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewSES(ctx context.Context, cfg SESConfig, log *logger.Logger) (*SESMailer, error) {
	if cfg.Sender == "" {
		return nil, fmt.Errorf("sender email address is not configured")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	return &SESMailer{client: ses.NewFromConfig(awsCfg), sender: cfg.Sender, log: log.WithComponent("mailer")}, nil
}

func (m *SESMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	if to == "" {
		return fmt.Errorf("recipient email address is empty")
	}
	html, text, err := renderReset(link)
	if err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Source: aws.String(m.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(resetSubject)},
			Body: &types.Body{
				Html: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(html)},
				Text: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(text)},
			},
		},
	}
	if _, err := m.client.SendEmail(ctx, input); err != nil {
		m.log.Error("failed to send password reset email", "to", to, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.log.Info("password reset email sent", "to", to)
	return nil
}

// LogMailer writes reset links to the log instead of sending them. Used when
// SES is not configured.
type LogMailer struct {
	Log *logger.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.Log.Info("password reset requested", "to", to, "link", link)
	return nil
}

const resetSubject = "Password reset"

var resetHTML = template.Must(template.New("reset").Parse(`<html>
<body>
<p>We received a request to reset your password.</p>
<p><a href="{{.}}">Choose a new password</a></p>
<p>The link expires in 15 minutes. If you did not ask for this, ignore this email.</p>
</body>
</html>`))

func renderReset(link string) (string, string, error) {
	var buf bytes.Buffer
	if err := resetHTML.Execute(&buf, link); err != nil {
		return "", "", err
	}
	text := fmt.Sprintf("We received a request to reset your password.\n\n"+
		"Open this link to choose a new one: %s\n\n"+
		"The link expires in 15 minutes. If you did not ask for this, ignore this email.", link)
	return buf.String(), text, nil
}

// ResetLink builds the front-end URL that carries the reset token.
func ResetLink(frontendURL, token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", frontendURL, url.QueryEscape(token))
}
