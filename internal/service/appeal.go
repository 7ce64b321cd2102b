package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/set-night/appealrouter/internal/config"
	"github.com/set-night/appealrouter/internal/domain"
	"github.com/set-night/appealrouter/internal/metrics"
)

// AppealPolicy holds the retry and reminder tunables of the lifecycle.
type AppealPolicy struct {
	RepostAttempts    int
	RepostBackoff     time.Duration
	ReminderAttempts  int
	ReminderBackoff   time.Duration
	ReminderIntervals []time.Duration
}

func DefaultAppealPolicy() AppealPolicy {
	return AppealPolicy{
		RepostAttempts:    config.RepostAttempts,
		RepostBackoff:     config.RepostBackoff,
		ReminderAttempts:  config.ReminderAttempts,
		ReminderBackoff:   config.ReminderBackoff,
		ReminderIntervals: config.ReminderIntervals,
	}
}

// Decision is a press on an approve/decline control in a trader group.
type Decision struct {
	ControlID        string
	Data             string
	TraderChatID     int64
	ControlMessageID int
	Responder        string
}

// AppealDeps contains all dependencies required to construct an AppealService.
type AppealDeps struct {
	Messenger Messenger
	Status    StatusProvider
	Registry  *GroupRegistry
	Cache     *AppealCache
	Stash     *MediaStash
	Matcher   *Matcher
	Reporter  Reporter
	Policy    AppealPolicy
}

// AppealService drives an appeal from the merchant message that creates it to
// the trader decision or external resolution that closes it. It is the only
// writer of the appeal cache.
type AppealService struct {
	messenger Messenger
	status    StatusProvider
	registry  *GroupRegistry
	cache     *AppealCache
	stash     *MediaStash
	matcher   *Matcher
	reporter  Reporter
	policy    AppealPolicy
	now       func() time.Time

	inflightMu sync.Mutex
	inflight   map[domain.AppealKey]struct{}
}

func NewAppealService(deps AppealDeps) *AppealService {
	reporter := deps.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &AppealService{
		messenger: deps.Messenger,
		status:    deps.Status,
		registry:  deps.Registry,
		cache:     deps.Cache,
		stash:     deps.Stash,
		matcher:   deps.Matcher,
		reporter:  reporter,
		policy:    deps.Policy,
		now:       time.Now,
		inflight:  make(map[domain.AppealKey]struct{}),
	}
}

// HandleInbound routes a merchant-group message: relays notifications, creates
// appeals for matched candidates and tells the merchant about the rest.
// Messages from chats that are not merchant groups are ignored.
func (s *AppealService) HandleInbound(ctx context.Context, msg InboundMessage) error {
	merchant, ok := s.registry.Merchant(msg.ChatID)
	if !ok {
		slog.Debug("skipping message from non-merchant chat", "chat_id", msg.ChatID)
		return nil
	}

	res := s.matcher.Match(msg, merchant, s.registry.ListTraders())
	switch res.Kind {
	case MatchEmpty:
		s.reply(ctx, msg, "Please include text (e.g., trader name) with your appeal.")
		return nil
	case MatchNotification:
		s.relayNotification(ctx, msg, res.AppealIDs)
		return nil
	}

	var errs []error
	for _, cand := range res.Candidates {
		if cand.Trader == nil {
			slog.Info("no matching trader group", "chat_id", msg.ChatID, "appeal_id", cand.AppealID, "hint", cand.Hint)
			if cand.Hint != "" {
				s.reply(ctx, msg, fmt.Sprintf("No matching trader group found for nickname '%s'.", cand.Hint))
			} else {
				s.reply(ctx, msg, "No matching trader group found.")
			}
			continue
		}
		if err := s.CreateAppeal(ctx, msg, merchant, cand.AppealID, *cand.Trader); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CreateAppeal forwards msg to the trader group with decision controls and
// records the appeal once the forward is delivered.
func (s *AppealService) CreateAppeal(ctx context.Context, msg InboundMessage, merchant domain.MerchantGroup, appealID string, trader domain.TraderGroup) error {
	text := fmt.Sprintf("Payment appeal from %s (Appeal ID: %s): '%s'", merchant.Title, appealID, msg.Text)
	opts := SendOptions{Controls: domain.DecisionControls(msg.ChatID, msg.MessageID)}

	if _, err := s.send(ctx, trader.ID, msg.Media, text, opts); err != nil {
		slog.Error("forward appeal", "error", err, "appeal_id", appealID, "trader_chat_id", trader.ID)
		metrics.ForwardFailures.Inc()
		s.reply(ctx, msg, fmt.Sprintf("Failed to send appeal: %v", err))
		return nil
	}

	if msg.Media != nil {
		s.stash.Put(msg.MessageID, appealID, *msg.Media)
	}

	username, _ := s.registry.LookupTraderUsername(trader.ID)
	rec := &domain.AppealRecord{
		Key:            domain.AppealKey{TraderChatID: trader.ID, MessageID: msg.MessageID},
		AppealID:       appealID,
		CreatedAt:      s.now(),
		TraderUsername: username,
		ChatID:         trader.ID,
	}
	if err := s.cache.Put(ctx, rec); err != nil {
		s.reply(ctx, msg, fmt.Sprintf("Appeal %s was forwarded but could not be recorded.", appealID))
		s.reporter.LogError(err, "record appeal "+appealID)
		return fmt.Errorf("record appeal %s: %w", appealID, err)
	}

	metrics.AppealsCreated.Inc()
	slog.Info("appeal forwarded", "appeal_id", appealID, "trader", trader.Title, "trader_chat_id", trader.ID, "key", rec.Key.String())
	s.reply(ctx, msg, fmt.Sprintf("Appeal %s forwarded to %s.", appealID, trader.Title))
	return nil
}

func (s *AppealService) relayNotification(ctx context.Context, msg InboundMessage, appealIDs []string) {
	for _, id := range appealIDs {
		recs := s.cache.FindByAppealID(id)
		if len(recs) == 0 {
			slog.Info("notification for unknown appeal", "appeal_id", id, "chat_id", msg.ChatID)
			continue
		}
		for _, rec := range recs {
			if _, err := s.send(ctx, rec.ChatID, msg.Media, msg.Text, SendOptions{}); err != nil {
				slog.Error("relay notification", "error", err, "appeal_id", id, "trader_chat_id", rec.ChatID)
				continue
			}
			slog.Info("notification relayed", "appeal_id", id, "trader_chat_id", rec.ChatID)
		}
	}
}

// ResolveByDecision applies a trader's approve/decline press. Validation
// failures are answered on the control and returned; transport failures are
// logged; only persistence failures leave the decision half-applied.
func (s *AppealService) ResolveByDecision(ctx context.Context, d Decision) error {
	payload, err := domain.ParseDecisionPayload(d.Data)
	if err != nil {
		s.answer(ctx, d.ControlID, "Invalid decision.")
		return err
	}
	if !s.registry.IsTrader(d.TraderChatID) || !s.registry.IsMerchant(payload.MerchantChatID) {
		s.answer(ctx, d.ControlID, "This group is not registered for appeals.")
		return fmt.Errorf("decision from chat %d for merchant %d: %w", d.TraderChatID, payload.MerchantChatID, domain.ErrNotRegistered)
	}

	key := domain.AppealKey{TraderChatID: d.TraderChatID, MessageID: payload.MessageID}
	if !s.claim(key) {
		s.answer(ctx, d.ControlID, "Decision already in progress.")
		return nil
	}
	defer s.release(key)

	rec, ok := s.cache.Get(key)
	if !ok {
		slog.Info("decision for closed appeal", "key", key.String(), "by", d.Responder)
		s.answer(ctx, d.ControlID, "Appeal already closed.")
		return nil
	}
	appealID := rec.AppealID

	if status, known := s.status.Status(ctx, appealID); known && status.IsResolved() {
		slog.Info("appeal already resolved externally", "appeal_id", appealID, "status", status)
		s.answer(ctx, d.ControlID, fmt.Sprintf("Appeal already %s", status))
		return nil
	}
	s.answer(ctx, d.ControlID, "")

	result := payload.Action.Result()

	if _, err := s.messenger.SendText(ctx, payload.MerchantChatID, fmt.Sprintf("%s %s", result, appealID),
		SendOptions{ReplyTo: payload.MessageID}); err != nil {
		slog.Error("send decision to merchant", "error", err, "merchant_chat_id", payload.MerchantChatID, "appeal_id", appealID)
	}

	if err := s.messenger.DeleteMessage(ctx, d.TraderChatID, d.ControlMessageID); err != nil {
		slog.Error("delete decided appeal message", "error", err, "trader_chat_id", d.TraderChatID, "message_id", d.ControlMessageID)
	}

	var media *domain.Media
	if m, ok := s.stash.Get(payload.MessageID, appealID); ok {
		media = &m
	}
	statusLine := fmt.Sprintf("%s %s %s", d.Responder, result, appealID)
	err = retry(ctx, s.policy.RepostAttempts, s.policy.RepostBackoff, "repost decided appeal", func() error {
		_, err := s.send(ctx, d.TraderChatID, media, statusLine, SendOptions{})
		return err
	})
	if err != nil {
		slog.Error("repost decided appeal", "error", err, "appeal_id", appealID, "attempts", s.policy.RepostAttempts)
		if _, nerr := s.messenger.SendText(ctx, d.TraderChatID,
			fmt.Sprintf("Failed to repost after %d attempts: %v", s.policy.RepostAttempts, err), SendOptions{}); nerr != nil {
			slog.Error("send repost failure notice", "error", nerr, "trader_chat_id", d.TraderChatID)
		}
		return nil
	}

	removed, err := s.cache.Remove(ctx, key)
	if err != nil {
		s.reporter.LogError(err, "remove decided appeal "+appealID)
		return fmt.Errorf("remove appeal %s: %w", appealID, err)
	}
	s.stash.Evict(payload.MessageID, appealID)
	if removed {
		metrics.AppealsResolved.WithLabelValues(metrics.SourceDecision).Inc()
		s.reporter.LogAppealResolved(appealID, result, d.Responder)
		slog.Info("appeal closed by decision", "appeal_id", appealID, "result", result, "by", d.Responder)
	}
	return nil
}

// SweepAndRemind reconciles every open appeal with the status provider and
// sends the reminders that are due. A failure on one appeal never stops the sweep.
func (s *AppealService) SweepAndRemind(ctx context.Context, now time.Time) {
	if n := s.stash.Prune(); n > 0 {
		slog.Debug("pruned expired media", "count", n)
	}

	recs := s.cache.Snapshot()
	slog.Info("sweeping open appeals", "appeals", len(recs))
	for _, rec := range recs {
		if err := s.sweepOne(ctx, rec, now); err != nil {
			slog.Error("sweep appeal", "error", err, "appeal_id", rec.AppealID, "key", rec.Key.String())
			s.reporter.LogError(err, "sweep appeal "+rec.AppealID)
		}
	}
}

func (s *AppealService) sweepOne(ctx context.Context, rec *domain.AppealRecord, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if status, known := s.status.Status(ctx, rec.AppealID); known && status.IsResolved() {
		removed, err := s.cache.Remove(ctx, rec.Key)
		if err != nil {
			return fmt.Errorf("remove resolved appeal: %w", err)
		}
		s.stash.Evict(rec.Key.MessageID, rec.AppealID)
		if removed {
			metrics.AppealsResolved.WithLabelValues(metrics.SourceExternal).Inc()
			s.reporter.LogAppealResolved(rec.AppealID, string(status), "status API")
			slog.Info("appeal resolved via status API", "appeal_id", rec.AppealID, "status", status)
		}
		return nil
	}

	username := rec.TraderUsername
	if username == "" {
		username, _ = s.registry.LookupTraderUsername(rec.ChatID)
	}

	elapsed := now.Sub(rec.CreatedAt)
	for _, interval := range s.policy.ReminderIntervals {
		if elapsed < interval || rec.WasReminded(interval) {
			continue
		}
		if username == "" {
			slog.Warn("no trader username bound, skipping reminder", "appeal_id", rec.AppealID, "chat_id", rec.ChatID)
			continue
		}

		text := reminderText(username, rec.AppealID, interval)
		err := retry(ctx, s.policy.ReminderAttempts, s.policy.ReminderBackoff, "send reminder", func() error {
			_, err := s.messenger.SendText(ctx, rec.ChatID, text, SendOptions{})
			return err
		})
		if err != nil {
			metrics.ReminderFailures.Inc()
			slog.Error("all reminder attempts failed", "error", err, "appeal_id", rec.AppealID, "interval", interval)
			continue
		}

		metrics.RemindersSent.Inc()
		slog.Info("reminder sent", "appeal_id", rec.AppealID, "username", username, "chat_id", rec.ChatID, "interval", interval)
		marked, err := s.cache.MarkReminded(ctx, rec.Key, interval)
		if err != nil {
			return fmt.Errorf("mark reminder: %w", err)
		}
		if !marked {
			return nil
		}
	}
	return nil
}

func reminderText(username, appealID string, interval time.Duration) string {
	minutes := decimal.NewFromInt(int64(interval)).Div(decimal.NewFromInt(int64(time.Minute))).StringFixed(1)
	return fmt.Sprintf("@%s, reminder: Appeal %s is still unclosed after %s minutes.", username, appealID, minutes)
}

func (s *AppealService) send(ctx context.Context, chatID int64, media *domain.Media, text string, opts SendOptions) (int, error) {
	if media != nil {
		return s.messenger.SendMedia(ctx, chatID, *media, text, opts)
	}
	return s.messenger.SendText(ctx, chatID, text, opts)
}

func (s *AppealService) reply(ctx context.Context, msg InboundMessage, text string) {
	if _, err := s.messenger.SendText(ctx, msg.ChatID, text, SendOptions{ReplyTo: msg.MessageID}); err != nil {
		slog.Error("reply to merchant", "error", err, "chat_id", msg.ChatID)
	}
}

func (s *AppealService) answer(ctx context.Context, controlID, text string) {
	if err := s.messenger.AnswerControl(ctx, controlID, text); err != nil {
		slog.Error("answer control", "error", err)
	}
}

func (s *AppealService) claim(key domain.AppealKey) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *AppealService) release(key domain.AppealKey) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, key)
}

// retry runs op up to attempts times with a constant wait between attempts.
func retry(ctx context.Context, attempts int, wait time.Duration, what string, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	attempt := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(wait), uint64(attempts-1)),
		ctx,
	)
	return backoff.RetryNotify(func() error {
		attempt++
		return op()
	}, policy, func(err error, next time.Duration) {
		slog.Warn("attempt failed, retrying", "op", what, "attempt", attempt, "of", attempts, "error", err, "retry_in", next)
	})
}
