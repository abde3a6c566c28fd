package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brandon/persona-responder/internal/email"
	"github.com/brandon/persona-responder/internal/state"
	"github.com/brandon/persona-responder/internal/textgen"
	"github.com/brandon/persona-responder/pkg/types"
)

// Outcome is what happened to one message.
type Outcome int

const (
	// Replied means a reply was delivered and committed to state.
	Replied Outcome = iota
	// Skipped means the message will never be answered; it is flagged seen.
	Skipped
	// Deferred means the message stays unseen for a later cycle.
	Deferred
)

func (o Outcome) String() string {
	switch o {
	case Replied:
		return "replied"
	case Skipped:
		return "skipped"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// CycleStats counts the outcomes of one cycle.
type CycleStats struct {
	Unseen   int
	Replied  int
	Skipped  int
	Deferred int
}

func (s *CycleStats) add(o Outcome) {
	switch o {
	case Replied:
		s.Replied++
	case Skipped:
		s.Skipped++
	case Deferred:
		s.Deferred++
	}
}

// RunCycle processes every currently unseen message once. State is loaded at
// the start and saved at the end whatever happens in between. Cancelling ctx
// stops the cycle before the next message; the message in hand is finished.
func (r *Responder) RunCycle(ctx context.Context) (stats CycleStats, err error) {
	st := r.deps.Store.Load(ctx)
	persistCtx := context.WithoutCancel(ctx)

	defer func() {
		// A panic anywhere in the cycle becomes its error so Run keeps polling.
		if p := recover(); p != nil {
			r.logger.WithField("panic", p).Error("Cycle panicked")
			err = fmt.Errorf("cycle panicked: %v", p)
		}
		if cerr := r.deps.Mailbox.Close(); cerr != nil {
			r.logger.WithError(cerr).Debug("Failed to close mailbox")
		}
		if serr := r.deps.Store.Save(persistCtx, st); serr != nil {
			r.logger.WithError(serr).Error("Failed to persist state at end of cycle")
			if err == nil {
				err = serr
			}
		}
	}()

	uids, err := r.deps.Mailbox.Unseen(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list unseen messages: %w", err)
	}

	stats.Unseen = len(uids)
	if len(uids) == 0 {
		r.logger.Debug("No unseen messages")
		return stats, nil
	}
	r.logger.WithField("count", len(uids)).Info("Found unseen messages")

	for i, uid := range uids {
		if ctx.Err() != nil {
			r.logger.Info("Shutdown requested, leaving remaining messages for later")
			break
		}

		outcome, attempted := r.processMessage(persistCtx, st, uid)
		stats.add(outcome)

		if attempted && i < len(uids)-1 {
			// A cancelled pause is caught by the check at the top of the loop.
			_ = r.sleep(ctx, r.opts.MessageDelay)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"unseen":   stats.Unseen,
		"replied":  stats.Replied,
		"skipped":  stats.Skipped,
		"deferred": stats.Deferred,
	}).Info("Cycle complete")

	return stats, nil
}

// processMessage carries one message from fetch to commit. attempted reports
// whether a delivery was tried, which is what the inter-message pause paces.
func (r *Responder) processMessage(ctx context.Context, st *state.State, uid uint32) (outcome Outcome, attempted bool) {
	log := r.logger.WithField("uid", uid)

	raw, err := r.deps.Mailbox.Fetch(ctx, uid)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch message")
		return Deferred, false
	}

	msg, err := email.ParseMessage(uid, raw)
	if err != nil {
		log.WithError(err).Info("Skipping: unparseable message")
		return r.skip(ctx, uid), false
	}

	log = log.WithFields(logrus.Fields{
		"from":    msg.From,
		"subject": msg.Subject,
	})
	log.Info("Processing message")

	if verdict := r.deps.Guard.Check(msg, st); !verdict.OK() {
		log.WithFields(logrus.Fields{
			"reason": verdict.Reason,
			"detail": verdict.Detail,
		}).Info("Skipping message")
		return r.skip(ctx, uid), false
	}

	sender := msg.Correspondent()
	if sender == "" {
		log.Info("Skipping: no correspondent address")
		return r.skip(ctx, uid), false
	}

	now := r.now()
	if verdict := r.deps.Limiter.Check(st.SendLog, sender, now); !verdict.OK() {
		log.WithFields(logrus.Fields{
			"reason": verdict.Reason,
			"detail": verdict.Detail,
			"sender": sender,
		}).Warn("Deferring message: rate limit reached")
		return Deferred, false
	}

	p := r.deps.Personas.Resolve(msg.DeliveryTargets()...)
	log = log.WithField("persona", p.Key)
	log.WithField("address", p.Address).Info("Persona selected")

	body := strings.TrimSpace(msg.Text)
	if body == "" {
		log.Info("Skipping: empty message body")
		return r.skip(ctx, uid), false
	}

	history := st.Conversations.History(sender, p.Key, r.opts.HistoryContext)

	var (
		replyText string
		generated bool
	)
	if !r.deps.Checker.Appropriate(body) {
		log.Warn("Message failed content check, sending decline")
		replyText = declineText(p)
	} else {
		genCtx, cancel := context.WithTimeout(ctx, r.opts.GenerateTimeout)
		text, err := r.deps.Generator.Generate(genCtx, textgen.Request{
			Instructions: p.Instructions,
			History:      history,
			Body:         body,
			SignOff:      p.SignOff,
			Temperature:  r.opts.Temperature,
			MaxTokens:    r.opts.MaxReplyTokens,
		})
		cancel()
		if err != nil {
			log.WithError(err).Error("Text generation failed, sending apology")
			replyText = fallbackText(p)
		} else {
			replyText = text
			generated = true
		}
	}

	out := r.buildReply(msg, p, sender, replyText, now)
	sendCtx, cancel := context.WithTimeout(ctx, r.opts.SendTimeout)
	err = r.deps.Transport.Send(sendCtx, out)
	cancel()
	if err != nil {
		log.WithError(err).WithField("to", sender).Error("Failed to send reply")
		return Deferred, true
	}

	sentAt := r.now()
	st.RecordSend(state.SendEvent{Time: sentAt, Sender: sender, MessageID: out.MessageID})
	st.MarkHandled(msg.MessageID)
	if generated {
		st.Conversations.Record(sender, p.Key, body, replyText, sentAt, r.opts.Memory)
	}

	if err := r.deps.Store.Save(ctx, st); err != nil {
		log.WithError(err).Error("Failed to persist state after reply")
	}

	log.WithFields(logrus.Fields{
		"to":         sender,
		"as":         fmt.Sprintf("%s <%s>", p.Name, p.Address),
		"reply_subj": out.Subject,
	}).Info("Reply sent")

	r.markSeen(ctx, uid)
	return Replied, true
}

// skip flags a permanently rejected message as seen.
func (r *Responder) skip(ctx context.Context, uid uint32) Outcome {
	r.markSeen(ctx, uid)
	return Skipped
}

func (r *Responder) markSeen(ctx context.Context, uid uint32) {
	if err := r.deps.Mailbox.MarkSeen(ctx, uid); err != nil {
		r.logger.WithError(err).WithField("uid", uid).Warn("Failed to mark message seen")
	}
}
