// Package email renders and sends the order emails customers get from the
// store: a confirmation when an order is placed and a receipt when it is
// delivered. Resend is the only delivery backend; with no provider
// configured every send is skipped.
package email

import (
	"context"
	"fmt"
	"sort"

	resend "github.com/resend/resend-go/v3"
)

// ResendProvider delivers order emails through the Resend API.
type ResendProvider struct {
	from   string
	client *resend.Client
}

func NewResendProvider(apiKey, from string) *ResendProvider {
	return &ResendProvider{
		from:   from,
		client: resend.NewClient(apiKey),
	}
}

func (r *ResendProvider) SendEmail(ctx context.Context, email *Email) error {
	if r.client == nil {
		return fmt.Errorf("resend client not configured")
	}
	params, err := resendRequest(r.from, email)
	if err != nil {
		return err
	}
	if _, err := r.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}
	return nil
}

// ValidateAPIKey lists the account's API keys, which fails for a revoked or
// mistyped key.
func (r *ResendProvider) ValidateAPIKey(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("resend client not configured")
	}
	if _, err := r.client.ApiKeys.ListWithContext(ctx); err != nil {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return nil
}

func resendRequest(from string, email *Email) (*resend.SendEmailRequest, error) {
	if email == nil {
		return nil, fmt.Errorf("email is required")
	}
	if email.To == "" {
		return nil, fmt.Errorf("recipient address is required")
	}
	if email.HTML == "" && email.Text == "" {
		return nil, fmt.Errorf("email body is empty")
	}

	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	}
	// Tags are sorted so retries of one email send the same request.
	names := make([]string, 0, len(email.Tags))
	for name := range email.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		params.Tags = append(params.Tags, resend.Tag{Name: name, Value: email.Tags[name]})
	}
	return params, nil
}
