package booking

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/stripe/stripe-go/v82"
)

// StripeProcessor implements PaymentProcessor on Stripe Connect
// destination charges. Holds are PaymentIntents with manual capture.
type StripeProcessor struct {
	Client *stripe.Client
}

func NewStripeProcessor(sc *stripe.Client) *StripeProcessor {
	return &StripeProcessor{Client: sc}
}

func (s *StripeProcessor) CreateHold(ctx context.Context, p *HoldParams) (*Hold, error) {
	if p.Amount <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	params := &stripe.PaymentIntentCreateParams{
		Amount:               stripe.Int64(toCents(p.Amount)),
		Currency:             stripe.String(p.Currency),
		CaptureMethod:        stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		ApplicationFeeAmount: stripe.Int64(toCents(p.FeeAmount)),
		TransferData: &stripe.PaymentIntentCreateTransferDataParams{
			Destination: stripe.String(p.Destination),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	pi, err := s.Client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		log.Printf("Error creating PaymentIntent: %s\n", err.Error())
		return nil, &UpstreamPaymentError{Op: "create hold", Err: err}
	}
	log.Printf("[PaymentIntent] created %s\n", pi.ID)
	return &Hold{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *StripeProcessor) CreateCheckout(ctx context.Context, p *CheckoutParams) (*CheckoutSession, error) {
	if p.Amount <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	successUrl := fmt.Sprintf("%s/checkout/callback/success", os.Getenv("APP_HOST"))
	cancelUrl := fmt.Sprintf("%s/checkout/callback/cancel", os.Getenv("APP_HOST"))
	piParams := &stripe.CheckoutSessionCreatePaymentIntentDataParams{
		ApplicationFeeAmount: stripe.Int64(toCents(p.FeeAmount)),
		CaptureMethod:        stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		TransferData: &stripe.CheckoutSessionCreatePaymentIntentDataTransferDataParams{
			Destination: stripe.String(p.Destination),
		},
	}
	for k, v := range p.Metadata {
		piParams.AddMetadata(k, v)
	}
	createParams := stripe.CheckoutSessionCreateParams{
		SuccessURL:        stripe.String(successUrl),
		CancelURL:         stripe.String(cancelUrl),
		UIMode:            stripe.String("hosted"),
		Mode:              stripe.String("payment"),
		PaymentIntentData: piParams,
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(toCents(p.Amount)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(p.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: p.Metadata,
	}
	checkoutSession, err := s.Client.V1CheckoutSessions.Create(ctx, &createParams)
	if err != nil {
		log.Printf("Error creating CheckoutSession: %s\n", err.Error())
		return nil, &UpstreamPaymentError{Op: "create checkout", Err: err}
	}
	log.Printf("[CheckoutSession] created %s\n", checkoutSession.ID)
	return &CheckoutSession{ID: checkoutSession.ID, URL: checkoutSession.URL}, nil
}

func (s *StripeProcessor) CancelHold(ctx context.Context, holdID string) error {
	_, err := s.Client.V1PaymentIntents.Cancel(ctx, holdID, &stripe.PaymentIntentCancelParams{})
	if err != nil {
		log.Printf("Error canceling PaymentIntent %s: %s\n", holdID, err.Error())
		return &UpstreamPaymentError{Op: "cancel hold", Err: err}
	}
	return nil
}

func (s *StripeProcessor) ExpireCheckout(ctx context.Context, sessionID string) error {
	_, err := s.Client.V1CheckoutSessions.Expire(ctx, sessionID, &stripe.CheckoutSessionExpireParams{})
	if err != nil {
		log.Printf("Error expiring CheckoutSession %s: %s\n", sessionID, err.Error())
		return &UpstreamPaymentError{Op: "expire checkout", Err: err}
	}
	return nil
}
