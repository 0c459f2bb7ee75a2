package service

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"starpath/internal/logging"
)

// Notifier tells parents about reward milestones. Implementations must be
// safe to fail: callers log and move on, the completion path never blocks
// on a notification.
type Notifier interface {
	BadgeEarned(parentEmail, childName, badgeName string) error
	StreakMilestone(parentEmail, childName string, days int) error
}

// NoopNotifier discards all notifications; used in tests and when email is
// not configured.
type NoopNotifier struct{}

func (NoopNotifier) BadgeEarned(parentEmail, childName, badgeName string) error { return nil }
func (NoopNotifier) StreakMilestone(parentEmail, childName string, days int) error {
	return nil
}

// EmailNotifier sends parent notifications via Amazon SES
type EmailNotifier struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
	enabled   bool
}

// NewEmailNotifier creates an SES-backed notifier. With no from-address
// configured it comes up disabled and silently skips all sends.
func NewEmailNotifier(awsRegion, fromEmail, fromName string) (*EmailNotifier, error) {
	if fromEmail == "" {
		logging.Sugar.Info("email notifications disabled: SES_FROM_EMAIL not configured")
		return &EmailNotifier{enabled: false}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(awsRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logging.Sugar.Infow("email notifications enabled", "from", fromEmail, "region", awsRegion)
	return &EmailNotifier{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
	}, nil
}

// BadgeEarned emails the parent that their child earned a badge
func (n *EmailNotifier) BadgeEarned(parentEmail, childName, badgeName string) error {
	subject := fmt.Sprintf("%s earned the %s badge!", childName, badgeName)
	body := fmt.Sprintf("Great news! %s just earned the %q badge. Keep up the amazing work!", childName, badgeName)
	return n.send(parentEmail, subject, body)
}

// StreakMilestone emails the parent about a learning streak milestone
func (n *EmailNotifier) StreakMilestone(parentEmail, childName string, days int) error {
	subject := fmt.Sprintf("%s is on a %d-day learning streak!", childName, days)
	body := fmt.Sprintf("%s has been learning for %d days in a row. What a streak!", childName, days)
	return n.send(parentEmail, subject, body)
}

func (n *EmailNotifier) send(toEmail, subject, body string) error {
	if !n.enabled || toEmail == "" {
		return nil
	}

	from := n.fromEmail
	if n.fromName != "" {
		from = fmt.Sprintf("%s <%s>", n.fromName, n.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	}

	_, err := n.client.SendEmail(context.TODO(), input)
	if err != nil {
		return &DependencyError{Op: fmt.Sprintf("send email to %s", toEmail), Err: err}
	}
	return nil
}
