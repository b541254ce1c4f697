// Package mail sends account emails through Amazon SES.
package mail

import (
	"context"
	"fmt"
	"html"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

const fromName = "Quiz Classroom"

type sender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type Mailer struct {
	client    sender
	fromEmail string
	enabled   bool
}

// NewMailer returns an SES mailer. Without fromEmail the mailer is disabled
// and only logs what it would have sent.
func NewMailer(ctx context.Context, awsRegion, fromEmail string) (*Mailer, error) {
	if fromEmail == "" {
		log.Println("Email disabled: SES_FROM_EMAIL not configured")
		return &Mailer{}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Printf("Email enabled: from=%s, region=%s", fromEmail, awsRegion)
	return &Mailer{client: sesv2.NewFromConfig(cfg), fromEmail: fromEmail, enabled: true}, nil
}

func (m *Mailer) Enabled() bool { return m.enabled }

// SendWelcome greets a newly registered teacher.
func (m *Mailer) SendWelcome(ctx context.Context, to, name string) error {
	if !m.enabled {
		log.Printf("Skipping email send (disabled): welcome to %s", to)
		return nil
	}

	subject := "Welcome to Quiz Classroom!"
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<h1>Welcome to Quiz Classroom!</h1>
	<p>Hi %s,</p>
	<p>Your teacher account is ready. Here is how to get started:</p>
	<ul>
		<li>Choose a 4-digit teacher PIN</li>
		<li>Add the children in your class</li>
		<li>Create your first quiz activity</li>
	</ul>
	<p>This is an automated email. Please do not reply.</p>
</body>
</html>
`, html.EscapeString(name))

	textBody := fmt.Sprintf(`Hi %s,

Your teacher account is ready. Here is how to get started:
- Choose a 4-digit teacher PIN
- Add the children in your class
- Create your first quiz activity

This is an automated email. Please do not reply.
`, name)

	return m.send(ctx, to, subject, htmlBody, textBody)
}

func (m *Mailer) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", fromName, m.fromEmail)),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	log.Printf("Email sent: to=%s, subject=%s", to, subject)
	return nil
}
