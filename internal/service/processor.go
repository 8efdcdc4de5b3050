package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/exhibit-live/exhibit/internal/domain/model"
	"github.com/exhibit-live/exhibit/internal/domain/presentation"
	"github.com/exhibit-live/exhibit/internal/ratelimit"
)

// Processor consumes identified incoming messages off the fabric and applies
// them to presentation state, fanning results out to the right connections.
type Processor interface {
	Handle(ctx context.Context, inc model.IdentifiedIncoming) error
}

var _ Processor = (*MessageProcessor)(nil)

// MessageProcessor is the single router behind the fabric. Policy failures
// (rate limits, invalid emoji, vote rejections) are answered over the wire
// and never returned as errors: an error from Handle means the message could
// not be routed at all.
type MessageProcessor struct {
	logger *slog.Logger
	store  *presentation.Store
}

func NewMessageProcessor(logger *slog.Logger, store *presentation.Store) *MessageProcessor {
	return &MessageProcessor{logger: logger, store: store}
}

func (p *MessageProcessor) Handle(ctx context.Context, inc model.IdentifiedIncoming) error {
	pres, ok := p.store.Get(inc.Presentation)
	if !ok {
		p.logger.Warn("message for unknown presentation dropped",
			"presentation", inc.Presentation, "identity", inc.Identity)
		return nil
	}

	if !inc.Message.Valid() {
		p.logger.Warn("invalid message dropped", "identity", inc.Identity, "msg", inc.Message.String())
		return nil
	}

	switch {
	case inc.Message.Presenter != nil:
		// Wrong-side frames are filtered at the connection; authorization is
		// still enforced here so no registry state can route around it.
		if inc.Identity != pres.PresenterIdentity() {
			p.logger.Warn("presenter message from unauthorized identity dropped",
				"identity", inc.Identity, "presenter", pres.PresenterIdentity())
			return nil
		}
		p.handlePresenter(ctx, pres, inc, *inc.Message.Presenter)
	case inc.Message.User != nil:
		p.handleUser(ctx, pres, inc, *inc.Message.User)
	}
	return nil
}

func (p *MessageProcessor) handlePresenter(ctx context.Context, pres *presentation.Presentation, inc model.IdentifiedIncoming, msg model.IncomingPresenterMessage) {
	switch {
	case msg.NewSlide != nil:
		pres.SetSlideSettings(msg.NewSlide.SlideSettings)
		p.broadcastToUsers(pres, model.UserNewSlide(msg.NewSlide.SlideSettings))
		p.logger.Info("slide changed", "presentation", pres.ID(), "slide", msg.NewSlide.Slide)

	case msg.NewPoll != nil:
		p.handleNewPoll(ctx, pres, inc, *msg.NewPoll)

	case msg.GetPollTotals != nil:
		totals := pres.Polls().Totals(msg.GetPollTotals.Name)
		if totals == nil {
			p.replyToPresenter(pres, inc.Handle,
				model.PresenterError(fmt.Sprintf("No poll with name %s exists", msg.GetPollTotals.Name)))
			return
		}
		p.replyToPresenter(pres, inc.Handle, model.PresenterPollResults(totals))

	case msg.AddRatelimiter != nil:
		limiter, err := ratelimit.FromSpec(msg.AddRatelimiter.Limiter)
		if err != nil {
			p.logger.Warn("ratelimiter rejected", "name", msg.AddRatelimiter.Name, "err", err)
			p.replyToPresenter(pres, inc.Handle,
				model.PresenterError(fmt.Sprintf("could not add ratelimiter %s", msg.AddRatelimiter.Name)))
			return
		}
		pres.Ratelimiter().Add(msg.AddRatelimiter.Name, limiter)
		p.logger.Info("ratelimiter added", "presentation", pres.ID(), "name", msg.AddRatelimiter.Name)

	case msg.RemoveRatelimiter != nil:
		pres.Ratelimiter().Remove(msg.RemoveRatelimiter.Name)
		p.logger.Info("ratelimiter removed", "presentation", pres.ID(), "name", msg.RemoveRatelimiter.Name)
	}
}

// handleNewPoll installs the poll and tells users about it. A name conflict
// is not an error for the audience: they are sent the existing definition,
// while the originating presenter gets an advisory error.
func (p *MessageProcessor) handleNewPoll(ctx context.Context, pres *presentation.Presentation, inc model.IdentifiedIncoming, decl model.NewPollMessage) {
	err := pres.Polls().NewPoll(decl)
	if err == nil {
		p.broadcastToUsers(pres, model.UserNewPoll(decl))
		p.logger.Info("poll created", "presentation", pres.ID(), "poll", decl.Name)
		return
	}

	existsErr, ok := err.(*presentation.PollExistsError)
	if !ok {
		p.logger.Error("poll creation failed", "presentation", pres.ID(), "poll", decl.Name, "err", err)
		return
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.replyToPresenter(pres, inc.Handle,
			model.PresenterError(fmt.Sprintf("poll %s already exists", decl.Name)))
		return nil
	})
	g.Go(func() error {
		p.broadcastToUsers(pres, model.UserNewPoll(existsErr.Existing))
		return nil
	})
	_ = g.Wait()
}

func (p *MessageProcessor) handleUser(_ context.Context, pres *presentation.Presentation, inc model.IdentifiedIncoming, msg model.IncomingUserMessage) {
	response := pres.Ratelimiter().Check(inc.Identity, msg)

	// The sender always hears the limiter's verdict, allowed or not.
	p.replyToUser(pres, inc.Handle, model.UserRatelimiter(response))

	if response.IsBlocked() {
		p.logger.Warn("message blocked by ratelimiter",
			"identity", inc.Identity, "limiter", response.Blocked)
		return
	}

	switch {
	case msg.Emoji != nil:
		p.handleEmoji(pres, inc, *msg.Emoji)
	case msg.Vote != nil:
		p.handleVote(pres, inc, *msg.Vote)
	}
}

func (p *MessageProcessor) handleEmoji(pres *presentation.Presentation, inc model.IdentifiedIncoming, emoji model.EmojiMessage) {
	settings := pres.SlideSettings()
	if settings == nil {
		p.logger.Error("emoji before the presentation has started", "identity", inc.Identity)
		return
	}
	if !settings.AllowsEmoji(emoji.Emoji) {
		p.logger.Error("invalid emoji for current slide",
			"identity", inc.Identity, "emoji", emoji.Emoji)
		return
	}

	p.logger.Info("emoji sent", "identity", inc.Identity, "presentation", pres.ID(), "emoji", emoji.Emoji)
	p.broadcastToPresenters(pres, model.PresenterEmoji(emoji))
}

func (p *MessageProcessor) handleVote(pres *presentation.Presentation, inc model.IdentifiedIncoming, vote model.Vote) {
	if err := pres.Polls().Vote(inc.Identity, vote); err != nil {
		p.logger.Warn("vote rejected", "identity", inc.Identity, "poll", vote.PollName, "err", err)
		p.replyToUser(pres, inc.Handle, model.UserError(err.Error()))
		return
	}
	p.logger.Info("vote recorded", "identity", inc.Identity, "poll", vote.PollName)
	p.replyToUser(pres, inc.Handle, model.UserSuccess("Vote recorded"))
}

// replyToUser targets the originating connection by handle. A missing or
// unbound slot means the connection is already gone; the reply is dropped.
func (p *MessageProcessor) replyToUser(pres *presentation.Presentation, handle string, msg model.OutgoingUserMessage) {
	slot, ok := pres.Users().ByHandle(handle)
	if !ok {
		p.logger.Warn("reply dropped, user slot gone", "handle", handle)
		return
	}
	if !slot.Push(msg) {
		p.logger.Warn("reply dropped, user connection not open", "handle", handle, "identity", slot.Identity)
	}
}

func (p *MessageProcessor) replyToPresenter(pres *presentation.Presentation, handle string, msg model.OutgoingPresenterMessage) {
	slot, ok := pres.Presenters().ByHandle(handle)
	if !ok {
		p.logger.Warn("reply dropped, presenter slot gone", "handle", handle)
		return
	}
	if !slot.Push(msg) {
		p.logger.Warn("reply dropped, presenter connection not open", "handle", handle)
	}
}

// broadcastToUsers fans a frame out to every user slot. Unbound slots are
// skipped silently.
func (p *MessageProcessor) broadcastToUsers(pres *presentation.Presentation, msg model.OutgoingUserMessage) {
	for _, slot := range pres.Users().Snapshot() {
		slot.Push(msg)
	}
}

func (p *MessageProcessor) broadcastToPresenters(pres *presentation.Presentation, msg model.OutgoingPresenterMessage) {
	for _, slot := range pres.Presenters().Snapshot() {
		slot.Push(msg)
	}
}
