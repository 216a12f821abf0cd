// internal/app/inbound_router.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shift_reminder_bot/internal/domain/assignment"
	"shift_reminder_bot/internal/domain/associate"
	"shift_reminder_bot/internal/domain/confirmation"
	domainsms "shift_reminder_bot/internal/domain/sms"
	idb "shift_reminder_bot/internal/infra/database"
	"shift_reminder_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// Action classifies what an inbound reply resolved to.
type Action string

const (
	ActionConfirmation Action = "CONFIRMATION"
	ActionDecline      Action = "DECLINE"
	ActionHelp         Action = "HELP"
	ActionOptOut       Action = "OPT_OUT"
	ActionOptIn        Action = "OPT_IN"
	ActionUnknown      Action = "UNKNOWN"
)

// InboundResult is the structured outcome of processing one inbound message.
// Applied is true only when a confirmation-state transition was persisted; a
// redundant reply on a terminal placement reports Applied=false with no error.
type InboundResult struct {
	Action      Action `json:"action"`
	AssociateID int64  `json:"associate_id,omitempty"`
	PlacementID int64  `json:"placement_id,omitempty"`
	Applied     bool   `json:"applied"`
	Reply       string `json:"reply,omitempty"`
	Error       string `json:"error,omitempty"`
}

// IncomingMessageRouter classifies inbound replies, resolves the target
// placement and drives the confirmation state machine.
type IncomingMessageRouter interface {
	ProcessIncomingMessage(ctx context.Context, phoneNumber, rawText string) (*InboundResult, error)
}

const (
	helpReply   = "Shift reminders: reply C to confirm your shift, X if you can't make it, STOP to unsubscribe, START to resume."
	optOutReply = "You've been unsubscribed from shift reminders. Reply START to resume."
	optInReply  = "You're resubscribed to shift reminders."
)

// IncomingMessageRouterImpl implements IncomingMessageRouter.
type IncomingMessageRouterImpl struct {
	associateRepo associate.Repository
	placementRepo assignment.Repository
	smsClient     domainsms.Client
	logger        *logrus.Entry
	location      *time.Location
	now           func() time.Time
}

func NewIncomingMessageRouterImpl(
	ar associate.Repository,
	pr assignment.Repository,
	sc domainsms.Client,
	logger *logrus.Entry,
	location *time.Location,
) *IncomingMessageRouterImpl {
	return &IncomingMessageRouterImpl{
		associateRepo: ar,
		placementRepo: pr,
		smsClient:     sc,
		logger:        logger,
		location:      location,
		now:           time.Now,
	}
}

// ProcessIncomingMessage handles one inbound SMS: normalize the sender,
// classify the text, and apply whatever the classification demands. A non-nil
// error is returned only for infrastructure failures; every classification
// problem is reported inside the result.
func (r *IncomingMessageRouterImpl) ProcessIncomingMessage(ctx context.Context, phoneNumber, rawText string) (*InboundResult, error) {
	result, err := r.process(ctx, phoneNumber, rawText)
	if result != nil {
		metrics.InboundMessages.WithLabelValues(string(result.Action)).Inc()
	}
	return result, err
}

func (r *IncomingMessageRouterImpl) process(ctx context.Context, phoneNumber, rawText string) (*InboundResult, error) {
	phone := associate.NormalizePhone(phoneNumber)
	if phone == "" || strings.TrimSpace(rawText) == "" {
		return &InboundResult{Action: ActionUnknown, Error: "missing phone number or message body"}, nil
	}

	assoc, err := r.associateRepo.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, idb.ErrAssociateNotFound) {
			r.logger.Infof("Inbound message from unknown number %s.", phone)
			return &InboundResult{Action: ActionUnknown, Error: "Associate not found."}, nil
		}
		return nil, fmt.Errorf("failed to look up associate by phone: %w", err)
	}

	switch classify(rawText) {
	case ActionHelp:
		res := &InboundResult{Action: ActionHelp, AssociateID: assoc.ID, Reply: helpReply}
		r.acknowledge(ctx, assoc, res)
		return res, nil

	case ActionOptOut:
		if err := r.associateRepo.SetOptOut(ctx, assoc.ID, true); err != nil {
			return nil, fmt.Errorf("failed to set opt-out for associate %d: %w", assoc.ID, err)
		}
		r.logger.Infof("Associate %d opted out.", assoc.ID)
		res := &InboundResult{Action: ActionOptOut, AssociateID: assoc.ID, Applied: true, Reply: optOutReply}
		// The opt-out confirmation is the one message still allowed after the
		// flag flips: carriers require a final STOP acknowledgment.
		r.send(ctx, assoc.Phone, optOutReply)
		return res, nil

	case ActionOptIn:
		if err := r.associateRepo.SetOptOut(ctx, assoc.ID, false); err != nil {
			return nil, fmt.Errorf("failed to clear opt-out for associate %d: %w", assoc.ID, err)
		}
		r.logger.Infof("Associate %d opted back in.", assoc.ID)
		res := &InboundResult{Action: ActionOptIn, AssociateID: assoc.ID, Applied: true, Reply: optInReply}
		r.send(ctx, assoc.Phone, optInReply)
		return res, nil

	case ActionConfirmation:
		return r.applyTransition(ctx, assoc, confirmation.SignalConfirm, ActionConfirmation)

	case ActionDecline:
		return r.applyTransition(ctx, assoc, confirmation.SignalDecline, ActionDecline)

	default:
		r.logger.Debugf("Unrecognized reply from associate %d: %q", assoc.ID, rawText)
		return &InboundResult{Action: ActionUnknown, AssociateID: assoc.ID, Error: "Unrecognized reply."}, nil
	}
}

// applyTransition resolves the associate's single active placement and drives
// the confirmation state machine. Zero or ambiguous candidates yield UNKNOWN
// rather than guessing which placement to mutate.
func (r *IncomingMessageRouterImpl) applyTransition(ctx context.Context, assoc *associate.Associate, sig confirmation.Signal, action Action) (*InboundResult, error) {
	now := r.now()
	today := assignment.DateIn(now, r.location)

	candidates, err := r.placementRepo.ListActiveByAssociate(ctx, assoc.ID, today, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to list active placements for associate %d: %w", assoc.ID, err)
	}
	if len(candidates) == 0 {
		return &InboundResult{Action: ActionUnknown, AssociateID: assoc.ID, Error: "No active placement to apply the reply to."}, nil
	}
	if len(candidates) > 1 && candidates[0].WorkDate.Equal(candidates[1].WorkDate) {
		return &InboundResult{Action: ActionUnknown, AssociateID: assoc.ID, Error: "Multiple active placements match; reply cannot be resolved."}, nil
	}

	p := candidates[0]
	res := &InboundResult{Action: action, AssociateID: assoc.ID, PlacementID: p.ID}

	transition := confirmation.Apply(p.ConfirmationStatus, sig)
	if !transition.Applied {
		// Redundant reply on a terminal placement: no-op, no activity refresh.
		r.logger.Infof("Placement %d already %s; %s reply is a no-op.", p.ID, p.ConfirmationStatus, sig)
		return res, nil
	}

	confirmed := sig == confirmation.SignalConfirm
	err = r.placementRepo.UpdateConfirmation(ctx, p.ID, transition.From, transition.To, confirmed, now)
	if err != nil {
		if errors.Is(err, idb.ErrStaleUpdate) {
			res.Error = "Placement was updated concurrently; reply not applied."
			return res, nil
		}
		return nil, fmt.Errorf("failed to persist confirmation for placement %d: %w", p.ID, err)
	}
	res.Applied = true
	res.Reply = ackFor(transition.To)
	r.logger.Infof("Placement %d moved %s -> %s by inbound %s.", p.ID, transition.From, transition.To, sig)

	r.acknowledge(ctx, assoc, res)
	return res, nil
}

// acknowledge sends res.Reply unless the associate is opted out. Ack failures
// are logged, never propagated: the transition already happened.
func (r *IncomingMessageRouterImpl) acknowledge(ctx context.Context, assoc *associate.Associate, res *InboundResult) {
	if assoc.OptedOut || res.Reply == "" {
		return
	}
	r.send(ctx, assoc.Phone, res.Reply)
}

func (r *IncomingMessageRouterImpl) send(ctx context.Context, phone, body string) {
	if _, err := r.smsClient.Send(ctx, phone, body); err != nil {
		r.logger.Errorf("Failed to send acknowledgment to %s: %v", phone, err)
	}
}

func ackFor(to confirmation.Status) string {
	switch to {
	case confirmation.StatusSoftConfirmed:
		return "Thanks! We've noted your reply. Reply C again closer to your shift to fully confirm."
	case confirmation.StatusLikelyConfirmed:
		return "Great, almost there! Reply C once more to fully confirm your shift."
	case confirmation.StatusConfirmed:
		return "You're confirmed for your shift. See you there!"
	case confirmation.StatusDeclined:
		return "Got it, you've been marked unavailable for this shift. Your branch will follow up."
	default:
		return ""
	}
}

var confirmKeywords = map[string]bool{
	"c": true, "confirm": true, "yes": true, "y": true, "1": true,
}

var declineKeywords = map[string]bool{
	"x": true, "no": true, "n": true, "decline": true, "cancel": true, "2": true,
}

var optOutKeywords = map[string]bool{
	"stop": true, "stopall": true, "unsubscribe": true, "quit": true, "end": true, "cancelall": true,
}

var optInKeywords = map[string]bool{
	"start": true, "unstop": true, "subscribe": true,
}

var helpKeywords = map[string]bool{
	"help": true, "info": true,
}

// classify buckets a raw reply into an action. Matching is on the trimmed,
// case-folded text with trailing punctuation removed.
func classify(rawText string) Action {
	text := strings.ToLower(strings.TrimSpace(rawText))
	text = strings.TrimRight(text, ".!?")
	switch {
	case confirmKeywords[text]:
		return ActionConfirmation
	case declineKeywords[text]:
		return ActionDecline
	case optOutKeywords[text]:
		return ActionOptOut
	case optInKeywords[text]:
		return ActionOptIn
	case helpKeywords[text]:
		return ActionHelp
	default:
		return ActionUnknown
	}
}
