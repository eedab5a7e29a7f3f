// Package mailer sends the welcome email for new signups. It sits at the
// boundary of the subscriber system: rendering uses Liquid templates and
// delivery goes through AWS SES v2. Failures here are logged and never fail
// the calling request.
package mailer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/osteele/liquid"

	appconfig "github.com/meridian-research/audience/internal/config"
	"github.com/meridian-research/audience/internal/domain"
)

const defaultSubject = "Welcome to the Meridian Research newsletter"

const defaultBody = `<p>Hi {{ first_name | default: "there" }},</p>
<p>You're subscribed to the Meridian Research newsletter. We'll send you new
research briefs and case studies{% if segments != "all" %} for: {{ segments }}{% endif %}.</p>
<p>If this wasn't you, you can unsubscribe with one click at any time.</p>`

// Mailer renders and sends welcome emails.
type Mailer struct {
	client   *sesv2.Client
	engine   *liquid.Engine
	body     *liquid.Template
	from     string
	fromName string
}

// New builds a Mailer from configuration. Returns (nil, nil) when the mailer
// is disabled so callers can hold a nil *Mailer safely.
func New(ctx context.Context, cfg appconfig.MailerConfig) (*Mailer, error) {
	if !cfg.Enabled || cfg.FromAddress == "" {
		return nil, nil
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	bodySrc := defaultBody
	if cfg.TemplatePath != "" {
		data, err := os.ReadFile(cfg.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("reading mail template: %w", err)
		}
		bodySrc = string(data)
	}

	engine := liquid.NewEngine()
	body, err := engine.ParseString(bodySrc)
	if err != nil {
		return nil, fmt.Errorf("parsing mail template: %w", err)
	}

	return &Mailer{
		client:   sesv2.NewFromConfig(awsCfg),
		engine:   engine,
		body:     body,
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
	}, nil
}

// SendWelcome renders and sends the welcome email for one subscriber.
// Calling it on a nil Mailer is a no-op.
func (m *Mailer) SendWelcome(ctx context.Context, sub *domain.Subscriber) error {
	if m == nil {
		return nil
	}

	html, err := m.render(sub)
	if err != nil {
		return fmt.Errorf("rendering welcome email: %w", err)
	}

	from := m.from
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.from)
	}

	_, err = m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{sub.Email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(defaultSubject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(html)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sending welcome email: %w", err)
	}
	return nil
}

func (m *Mailer) render(sub *domain.Subscriber) (string, error) {
	segs := make([]string, len(sub.Segments))
	for i, s := range sub.Segments {
		segs[i] = string(s)
	}
	bindings := map[string]any{
		"first_name": sub.FirstName,
		"last_name":  sub.LastName,
		"email":      sub.Email,
		"segments":   strings.Join(segs, ", "),
		"language":   sub.Language,
	}
	out, err := m.body.Render(bindings)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
