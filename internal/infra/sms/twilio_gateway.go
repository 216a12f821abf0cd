// internal/infra/sms/twilio_gateway.go
package sms

import (
	"context"
	"errors"
	"net/http"
	"time"

	domainsms "shift_reminder_bot/internal/domain/sms"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
)

const (
	defaultSendAttempts   = 3
	defaultBackoffStep    = 2 * time.Second
	defaultAttemptTimeout = 10 * time.Second
)

// messageCreator is the slice of the Twilio REST client this adapter uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioGateway implements the domain sms.Client over Twilio's REST API.
// It owns the sender number, a cross-send rate limiter, per-attempt HTTP
// timeouts, and bounded linear-backoff retries for transient failures.
type TwilioGateway struct {
	api      messageCreator
	from     string
	limiter  *rate.Limiter
	attempts int
	backoff  time.Duration
	logger   *logrus.Entry
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewTwilioGateway(accountSID, authToken, from string, ratePerSecond float64, logger *logrus.Entry) *TwilioGateway {
	base := &twilioclient.Client{Credentials: twilioclient.NewCredentials(accountSID, authToken)}
	base.SetTimeout(defaultAttemptTimeout)
	restClient := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
		Client:   base,
	})
	return &TwilioGateway{
		api:      restClient.Api,
		from:     from,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		attempts: defaultSendAttempts,
		backoff:  defaultBackoffStep,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Send submits one outbound SMS. Transient failures are retried up to the
// attempt budget with linearly increasing delay; permanent failures and
// context cancellation return immediately.
func (g *TwilioGateway) Send(ctx context.Context, to, body string) (*domainsms.SendResult, error) {
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, &domainsms.GatewayError{Kind: domainsms.KindTransient, Op: "send", Err: err}
		}

		params := &openapi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(g.from)
		params.SetBody(body)

		msg, err := g.api.CreateMessage(params)
		if err == nil {
			res := &domainsms.SendResult{}
			if msg.Sid != nil {
				res.MessageID = *msg.Sid
			}
			if msg.Status != nil {
				res.Status = *msg.Status
			}
			return res, nil
		}

		gerr := classifySendError(err)
		lastErr = gerr
		if gerr.Kind == domainsms.KindPermanent {
			return nil, gerr
		}
		if attempt < g.attempts {
			delay := time.Duration(attempt) * g.backoff
			g.logger.Warnf("Transient SMS send failure to %s (attempt %d/%d), retrying in %s: %v", to, attempt, g.attempts, delay, err)
			if serr := g.sleep(ctx, delay); serr != nil {
				return nil, &domainsms.GatewayError{Kind: domainsms.KindTransient, Op: "send", Err: serr}
			}
		}
	}
	return nil, lastErr
}

// classifySendError maps a Twilio REST error to an explicit error kind. HTTP
// 429 and 5xx responses are retryable; every other REST error (invalid
// recipient, auth failure, unsubscribed recipient) is permanent. Transport
// failures without a REST payload are treated as transient.
func classifySendError(err error) *domainsms.GatewayError {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		kind := domainsms.KindPermanent
		if restErr.Status == http.StatusTooManyRequests || restErr.Status >= http.StatusInternalServerError {
			kind = domainsms.KindTransient
		}
		return &domainsms.GatewayError{Kind: kind, Code: restErr.Code, Op: "send", Err: err}
	}
	return &domainsms.GatewayError{Kind: domainsms.KindTransient, Op: "send", Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
