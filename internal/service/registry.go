package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/set-night/appealrouter/internal/config"
	"github.com/set-night/appealrouter/internal/domain"
)

// GroupRegistry indexes merchant and trader groups. Every mutation goes through
// update, which persists a modified copy before making it visible.
type GroupRegistry struct {
	store  DocumentStore
	mu     sync.RWMutex
	groups *domain.Groups
}

func NewGroupRegistry(store DocumentStore) *GroupRegistry {
	return &GroupRegistry{store: store, groups: domain.NewGroups()}
}

// Load replaces the in-memory registry with the stored document. A missing or
// unreadable document yields an empty registry.
func (r *GroupRegistry) Load(ctx context.Context) error {
	data, err := r.store.Load(ctx, config.GroupsDocument)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return fmt.Errorf("load groups: %w", err)
	}

	groups := domain.NewGroups()
	if err == nil {
		if uerr := json.Unmarshal(data, groups); uerr != nil {
			slog.Warn("groups document is corrupt, starting empty", "error", uerr)
			groups = domain.NewGroups()
		}
	} else {
		slog.Info("no groups document found, starting empty")
	}
	groups.Normalize()

	r.mu.Lock()
	r.groups = groups
	r.mu.Unlock()

	slog.Info("groups loaded", "merchants", len(groups.Merchant), "traders", len(groups.Trader))
	return nil
}

func (r *GroupRegistry) update(ctx context.Context, fn func(g *domain.Groups) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.groups.Clone()
	if err := fn(next); err != nil {
		return err
	}

	data, err := json.MarshalIndent(next, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encode groups: %w", domain.ErrPersistence, err)
	}
	if err := r.store.Save(ctx, config.GroupsDocument, data); err != nil {
		return fmt.Errorf("%w: save groups: %w", domain.ErrPersistence, err)
	}

	r.groups = next
	return nil
}

func checkUnregistered(g *domain.Groups, chatID int64, want domain.GroupRole) error {
	role, ok := g.RoleOf(chatID)
	if !ok {
		return nil
	}
	if role == want {
		return domain.ErrAlreadyRegistered
	}
	return fmt.Errorf("%w: %s", domain.ErrRegisteredAsOtherRole, role)
}

func (r *GroupRegistry) RegisterMerchant(ctx context.Context, chatID int64, title string) error {
	return r.update(ctx, func(g *domain.Groups) error {
		if err := checkUnregistered(g, chatID, domain.RoleMerchant); err != nil {
			return err
		}
		g.Merchant = append(g.Merchant, domain.MerchantGroup{ID: chatID, Title: title})
		return nil
	})
}

func (r *GroupRegistry) RegisterTrader(ctx context.Context, chatID int64, title string) error {
	return r.update(ctx, func(g *domain.Groups) error {
		if err := checkUnregistered(g, chatID, domain.RoleTrader); err != nil {
			return err
		}
		g.Trader = append(g.Trader, domain.TraderGroup{ID: chatID, Title: title})
		return nil
	})
}

// BindTraderUsername sets the account tagged in reminders for a trader group.
func (r *GroupRegistry) BindTraderUsername(ctx context.Context, chatID int64, username string) error {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return domain.ErrEmptyUsername
	}
	return r.update(ctx, func(g *domain.Groups) error {
		if g.TraderIndex(chatID) < 0 {
			return domain.ErrNotTraderGroup
		}
		g.TraderAccounts[domain.AccountKey(chatID)] = username
		return nil
	})
}

func (r *GroupRegistry) SetAppealIDRule(ctx context.Context, chatID int64, start, length int) error {
	if start < 0 || length <= 0 {
		return fmt.Errorf("%w: start=%d length=%d", domain.ErrInvalidAppealIDRule, start, length)
	}
	return r.update(ctx, func(g *domain.Groups) error {
		i := g.MerchantIndex(chatID)
		if i < 0 {
			return domain.ErrNotMerchantGroup
		}
		g.Merchant[i].AppealIDStartPos = start
		g.Merchant[i].AppealIDLength = length
		return nil
	})
}

// LearnAppealIDRule derives the fixed-offset rule from a sample message that
// contains appealID, and stores it. It returns the learned start and length.
func (r *GroupRegistry) LearnAppealIDRule(ctx context.Context, chatID int64, sample, appealID string) (int, int, error) {
	appealID = strings.TrimSpace(appealID)
	idx := strings.Index(sample, appealID)
	if appealID == "" || idx < 0 {
		return 0, 0, fmt.Errorf("%w: %q not found in sample", domain.ErrInvalidAppealIDRule, appealID)
	}
	start := utf8.RuneCountInString(sample[:idx])
	length := utf8.RuneCountInString(appealID)
	if err := r.SetAppealIDRule(ctx, chatID, start, length); err != nil {
		return 0, 0, err
	}
	return start, length, nil
}

// Unregister removes chatID from whichever set holds it, along with any bound username.
func (r *GroupRegistry) Unregister(ctx context.Context, chatID int64) error {
	return r.update(ctx, func(g *domain.Groups) error {
		if i := g.MerchantIndex(chatID); i >= 0 {
			g.Merchant = append(g.Merchant[:i], g.Merchant[i+1:]...)
			return nil
		}
		if i := g.TraderIndex(chatID); i >= 0 {
			g.Trader = append(g.Trader[:i], g.Trader[i+1:]...)
			delete(g.TraderAccounts, domain.AccountKey(chatID))
			return nil
		}
		return domain.ErrNotRegistered
	})
}

func (r *GroupRegistry) ListMerchants() []domain.MerchantGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.MerchantGroup, len(r.groups.Merchant))
	copy(out, r.groups.Merchant)
	return out
}

// ListTraders returns trader groups in registration order.
func (r *GroupRegistry) ListTraders() []domain.TraderGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.TraderGroup, len(r.groups.Trader))
	copy(out, r.groups.Trader)
	return out
}

func (r *GroupRegistry) Merchant(chatID int64) (domain.MerchantGroup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groups.FindMerchant(chatID)
}

func (r *GroupRegistry) IsMerchant(chatID int64) bool {
	_, ok := r.Merchant(chatID)
	return ok
}

func (r *GroupRegistry) IsTrader(chatID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groups.TraderIndex(chatID) >= 0
}

// LookupTraderUsername returns the username bound to a trader group, if any.
func (r *GroupRegistry) LookupTraderUsername(chatID int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u := r.groups.TraderUsername(chatID)
	return u, u != ""
}
