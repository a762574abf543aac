package payment

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/client"
)

// Linker creates payment links for paid consultations. A nil or
// unconfigured Linker, or a creation failure, means "no link available" and
// is never fatal to the requesting tool.
type Linker interface {
	CreateLink(ctx context.Context, metadata map[string]string) (string, error)
}

// StripeLinker creates Stripe payment links against a configured price.
type StripeLinker struct {
	logger  *logrus.Logger
	api     *client.API
	priceID string
}

// NewStripeLinker creates a payment-link service. Returns nil when the API
// key or price is missing, which callers treat as "payments unconfigured".
func NewStripeLinker(logger *logrus.Logger, apiKey, priceID string) *StripeLinker {
	if apiKey == "" || priceID == "" {
		return nil
	}

	api := &client.API{}
	api.Init(apiKey, nil)

	return &StripeLinker{
		logger:  logger,
		api:     api,
		priceID: priceID,
	}
}

// CreateLink implements Linker.
func (l *StripeLinker) CreateLink(ctx context.Context, metadata map[string]string) (string, error) {
	params := &stripe.PaymentLinkParams{
		LineItems: []*stripe.PaymentLinkLineItemParams{
			{
				Price:    stripe.String(l.priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}

	link, err := l.api.PaymentLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create payment link: %w", err)
	}

	l.logger.WithField("payment_link", link.ID).Info("Payment link created")
	return link.URL, nil
}
