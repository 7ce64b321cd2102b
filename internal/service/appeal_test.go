package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/set-night/appealrouter/internal/domain"
)

const (
	merchantChat int64 = -1
	traderChat   int64 = -21
	otherTrader  int64 = -22
)

type appealSuite struct {
	suite.Suite

	ctx       context.Context
	store     *memStore
	messenger *fakeMessenger
	status    *fakeStatus
	registry  *GroupRegistry
	cache     *AppealCache
	stash     *MediaStash
	svc       *AppealService
	created   time.Time
}

func TestAppealSuite(t *testing.T) {
	suite.Run(t, new(appealSuite))
}

func (s *appealSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = newMemStore()
	s.messenger = newFakeMessenger()
	s.status = newFakeStatus()
	s.registry = NewGroupRegistry(s.store)
	s.cache = NewAppealCache(s.store)
	s.stash = NewMediaStash(time.Hour)
	s.created = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.registry.Load(s.ctx))
	s.Require().NoError(s.cache.Load(s.ctx))
	s.Require().NoError(s.registry.RegisterMerchant(s.ctx, merchantChat, "Shop"))
	s.Require().NoError(s.registry.RegisterTrader(s.ctx, traderChat, "Acme Pay | Trader"))
	s.Require().NoError(s.registry.RegisterTrader(s.ctx, otherTrader, "Bob | Trader"))
	s.Require().NoError(s.registry.BindTraderUsername(s.ctx, traderChat, "alice"))

	s.svc = NewAppealService(AppealDeps{
		Messenger: s.messenger,
		Status:    s.status,
		Registry:  s.registry,
		Cache:     s.cache,
		Stash:     s.stash,
		Matcher:   NewMatcher([]string{"pay"}),
		Policy:    testPolicy(),
	})
	s.svc.now = func() time.Time { return s.created }
}

func (s *appealSuite) inbound(msgID int, text string) InboundMessage {
	return InboundMessage{ChatID: merchantChat, ChatTitle: "Shop", MessageID: msgID, Text: text}
}

// open forwards a structured appeal for idA to the Acme Pay group.
func (s *appealSuite) open(msgID int, media *domain.Media) InboundMessage {
	msg := s.inbound(msgID, idA+" acme pay 500")
	msg.Media = media
	s.Require().NoError(s.svc.HandleInbound(s.ctx, msg))
	s.Require().Equal(1, s.cache.Len())
	return msg
}

func (s *appealSuite) decide(action domain.DecisionAction, msgID int) error {
	return s.svc.ResolveByDecision(s.ctx, Decision{
		ControlID:        "cb-1",
		Data:             domain.DecisionPayload{Action: action, MerchantChatID: merchantChat, MessageID: msgID}.String(),
		TraderChatID:     traderChat,
		ControlMessageID: 5001,
		Responder:        "bob",
	})
}

func (s *appealSuite) TestForwardStructuredAppeal() {
	msg := s.open(10, nil)

	forwarded := s.messenger.sentTo(traderChat)
	s.Require().Len(forwarded, 1)
	s.Equal(fmt.Sprintf("Payment appeal from Shop (Appeal ID: %s): '%s'", idA, msg.Text), forwarded[0].Text)
	s.Equal(domain.DecisionControls(merchantChat, 10), forwarded[0].Opts.Controls)

	s.Equal([]string{fmt.Sprintf("Appeal %s forwarded to Acme Pay | Trader.", idA)}, s.messenger.texts(merchantChat))

	rec, ok := s.cache.Get(domain.AppealKey{TraderChatID: traderChat, MessageID: 10})
	s.Require().True(ok)
	s.Equal(idA, rec.AppealID)
	s.Equal("alice", rec.TraderUsername)
	s.Equal(traderChat, rec.ChatID)
	s.True(rec.CreatedAt.Equal(s.created))
}

func (s *appealSuite) TestMultipleCandidatesInOneMessage() {
	text := idA + " acme pay 1\n" + idB + " bob 2\n" + "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d zed 3"
	s.Require().NoError(s.svc.HandleInbound(s.ctx, s.inbound(11, text)))

	s.Equal(2, s.cache.Len())
	s.Len(s.messenger.sentTo(traderChat), 1)
	s.Len(s.messenger.sentTo(otherTrader), 1)
	s.Contains(s.messenger.texts(merchantChat), "No matching trader group found for nickname 'zed'.")
}

func (s *appealSuite) TestFixedOffsetWithoutTrader() {
	s.Require().NoError(s.svc.HandleInbound(s.ctx, s.inbound(12, "nothing to see")))
	s.Equal([]string{"No matching trader group found."}, s.messenger.texts(merchantChat))
	s.Zero(s.cache.Len())
}

func (s *appealSuite) TestFixedOffsetSynthesizedID() {
	s.Require().NoError(s.svc.HandleInbound(s.ctx, s.inbound(13, "please check bob")))

	_, ok := s.cache.Get(domain.AppealKey{TraderChatID: otherTrader, MessageID: 13})
	s.True(ok)
	s.Equal([]string{"Appeal APPEAL_13 forwarded to Bob | Trader."}, s.messenger.texts(merchantChat))
}

func (s *appealSuite) TestEmptyTextAsksForText() {
	msg := s.inbound(14, "")
	msg.Media = &domain.Media{Kind: domain.MediaPhoto, FileID: "photo-1"}
	s.Require().NoError(s.svc.HandleInbound(s.ctx, msg))

	s.Equal([]string{"Please include text (e.g., trader name) with your appeal."}, s.messenger.texts(merchantChat))
	s.Empty(s.messenger.sentTo(traderChat))
}

func (s *appealSuite) TestIgnoresNonMerchantChats() {
	msg := s.inbound(15, idA+" acme pay")
	msg.ChatID = traderChat
	s.Require().NoError(s.svc.HandleInbound(s.ctx, msg))

	s.Empty(s.messenger.sent)
	s.Zero(s.cache.Len())
}

func (s *appealSuite) TestForwardFailureIsReported() {
	s.messenger.fail(traderChat, -1)
	s.Require().NoError(s.svc.HandleInbound(s.ctx, s.inbound(16, idA+" acme pay")))

	texts := s.messenger.texts(merchantChat)
	s.Require().Len(texts, 1)
	s.True(strings.HasPrefix(texts[0], "Failed to send appeal: "), texts[0])
	s.Zero(s.cache.Len())
}

func (s *appealSuite) TestRecordFailureIsPersistenceError() {
	s.store.failSaves(errDiskFull)
	err := s.svc.HandleInbound(s.ctx, s.inbound(17, idA+" acme pay"))

	s.ErrorIs(err, domain.ErrPersistence)
	s.Contains(s.messenger.texts(merchantChat), fmt.Sprintf("Appeal %s was forwarded but could not be recorded.", idA))
	s.Zero(s.cache.Len())
}

func (s *appealSuite) TestNotificationRelayedToTraderGroup() {
	s.open(18, nil)
	note := "Заявка " + idA + " закрыта мерчантом"
	s.Require().NoError(s.svc.HandleInbound(s.ctx, s.inbound(19, note)))

	texts := s.messenger.texts(traderChat)
	s.Require().Len(texts, 2)
	s.Equal(note, texts[1])
	s.Equal(1, s.cache.Len())
}

func (s *appealSuite) TestApproveDecision() {
	s.open(20, nil)

	s.Require().NoError(s.decide(domain.ActionApprove, 20))

	merchant := s.messenger.sentTo(merchantChat)
	last := merchant[len(merchant)-1]
	s.Equal("approved "+idA, last.Text)
	s.Equal(20, last.Opts.ReplyTo)

	trader := s.messenger.texts(traderChat)
	s.Equal("bob approved "+idA, trader[len(trader)-1])
	s.Equal([]int{5001}, s.messenger.deleted)
	s.Equal([]string{""}, s.messenger.answers)
	s.Zero(s.cache.Len())
}

func (s *appealSuite) TestDeclineRepostsMedia() {
	photo := &domain.Media{Kind: domain.MediaPhoto, FileID: "photo-1"}
	s.open(21, photo)

	s.Require().NoError(s.decide(domain.ActionDecline, 21))

	trader := s.messenger.sentTo(traderChat)
	s.Require().Len(trader, 2)
	s.Equal(photo, trader[0].Media)
	s.Equal(photo, trader[1].Media)
	s.Equal("bob declined "+idA, trader[1].Text)

	_, ok := s.stash.Get(21, idA)
	s.False(ok)
}

func (s *appealSuite) TestDecisionOnExternallyResolvedAppeal() {
	s.open(22, nil)
	s.status.set(idA, "declined")

	s.Require().NoError(s.decide(domain.ActionApprove, 22))

	s.Equal([]string{"Appeal already declined"}, s.messenger.answers)
	s.Len(s.messenger.texts(merchantChat), 1)
	s.Empty(s.messenger.deleted)
}

func (s *appealSuite) TestRepostRetriesThenReports() {
	s.open(23, nil)
	s.messenger.fail(traderChat, 3)

	s.Require().NoError(s.decide(domain.ActionApprove, 23))

	trader := s.messenger.texts(traderChat)
	s.True(strings.HasPrefix(trader[len(trader)-1], "Failed to repost after 3 attempts: "), trader[len(trader)-1])
	s.Equal(1, s.cache.Len())
}

func (s *appealSuite) TestRepostSucceedsOnRetry() {
	s.open(24, nil)
	s.messenger.fail(traderChat, 2)

	s.Require().NoError(s.decide(domain.ActionApprove, 24))

	trader := s.messenger.texts(traderChat)
	s.Equal("bob approved "+idA, trader[len(trader)-1])
	s.Zero(s.cache.Len())
}

func (s *appealSuite) TestInvalidDecision() {
	err := s.svc.ResolveByDecision(s.ctx, Decision{ControlID: "cb", Data: "approve_oops", TraderChatID: traderChat})
	s.ErrorIs(err, domain.ErrInvalidDecision)
	s.Equal([]string{"Invalid decision."}, s.messenger.answers)
}

func (s *appealSuite) TestDecisionFromUnregisteredChat() {
	err := s.svc.ResolveByDecision(s.ctx, Decision{ControlID: "cb", Data: "approve_-1_5", TraderChatID: -999})
	s.ErrorIs(err, domain.ErrNotRegistered)
	s.Empty(s.messenger.sent)
}

func (s *appealSuite) TestDecisionWithoutRecordIsNoop() {
	s.Require().NoError(s.decide(domain.ActionDecline, 77))

	s.Equal([]string{"Appeal already closed."}, s.messenger.answers)
	s.Empty(s.messenger.sent)
	s.Empty(s.messenger.deleted)
}

func (s *appealSuite) TestRepeatedDecisionsCloseOnce() {
	s.open(26, nil)

	for range 8 {
		s.Require().NoError(s.decide(domain.ActionApprove, 26))
	}

	s.Equal([]string{"Appeal " + idA + " forwarded to Acme Pay | Trader.", "approved " + idA}, s.messenger.texts(merchantChat))
	s.Equal([]string{
		fmt.Sprintf("Payment appeal from Shop (Appeal ID: %s): '%s'", idA, idA+" acme pay 500"),
		"bob approved " + idA,
	}, s.messenger.texts(traderChat))
	s.Equal([]int{5001}, s.messenger.deleted)
	s.Zero(s.cache.Len())
}

func (s *appealSuite) TestLegacySynthesizedRecordIsResolved() {
	key := domain.AppealKey{TraderChatID: traderChat, MessageID: 27}
	s.Require().NoError(s.cache.Put(s.ctx, &domain.AppealRecord{
		Key:       key,
		AppealID:  domain.SynthesizedAppealID(27),
		CreatedAt: s.created,
		ChatID:    traderChat,
	}))

	s.Require().NoError(s.decide(domain.ActionDecline, 27))

	s.Equal([]string{"declined APPEAL_27"}, s.messenger.texts(merchantChat))
	s.Equal([]string{"bob declined APPEAL_27"}, s.messenger.texts(traderChat))
	s.Zero(s.cache.Len())
}

func (s *appealSuite) TestDecisionPersistenceFailure() {
	s.open(25, nil)
	s.store.failSaves(errDiskFull)

	err := s.decide(domain.ActionApprove, 25)
	s.ErrorIs(err, domain.ErrPersistence)
	s.Equal(1, s.cache.Len())
}

func (s *appealSuite) TestConcurrentDecisionsCloseOnce() {
	s.open(28, nil)

	gated := newGatedMessenger(s.messenger, merchantChat)
	s.svc.messenger = gated

	first := make(chan error, 1)
	go func() { first <- s.decide(domain.ActionApprove, 28) }()
	<-gated.entered

	// The first decision is parked on the merchant reply; a second press on
	// the same appeal must not run alongside it.
	s.Require().NoError(s.decide(domain.ActionDecline, 28))
	s.Contains(s.messenger.answers, "Decision already in progress.")

	close(gated.release)
	s.Require().NoError(<-first)

	s.Zero(s.cache.Len())
	s.Equal([]string{"bob approved " + idA}, s.messenger.texts(traderChat)[1:])

	removed, err := s.cache.Remove(s.ctx, domain.AppealKey{TraderChatID: traderChat, MessageID: 28})
	s.Require().NoError(err)
	s.False(removed)

	s.Require().NoError(s.decide(domain.ActionDecline, 28))
	s.Equal("Appeal already closed.", s.messenger.answers[len(s.messenger.answers)-1])
	s.Len(s.messenger.texts(traderChat), 2)
}
