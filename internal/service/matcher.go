package service

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/set-night/appealrouter/internal/config"
	"github.com/set-night/appealrouter/internal/domain"
)

// InboundMessage is a merchant-group message as seen by the lifecycle engine.
type InboundMessage struct {
	ChatID    int64
	ChatTitle string
	MessageID int
	Text      string
	Media     *domain.Media
}

type MatchKind int

const (
	// MatchEmpty means the message carries no text to match on.
	MatchEmpty MatchKind = iota
	// MatchNotification means the message refers to already-open appeals.
	MatchNotification
	// MatchStructured means candidates came from "<uuid> <nickname> ..." lines.
	MatchStructured
	// MatchFixedOffset means the single candidate came from the merchant's offset rule.
	MatchFixedOffset
)

// Candidate is one appeal extracted from a message. Trader is nil when no
// trader group matched.
type Candidate struct {
	AppealID string
	Hint     string
	Trader   *domain.TraderGroup
}

type MatchResult struct {
	Kind       MatchKind
	AppealIDs  []string
	Candidates []Candidate
}

const uuidExpr = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

var (
	uuidToken = regexp.MustCompile(`\b` + uuidExpr + `\b`)
	uuidLine  = regexp.MustCompile(`^\s*(` + uuidExpr + `)\s+(\S.*)$`)
)

// Matcher turns message text into appeal candidates.
type Matcher struct {
	multiWord map[string]bool
}

// NewMatcher takes the words that, when they follow a nickname, belong to it
// ("acme pay" rather than "acme").
func NewMatcher(multiWordNicknames []string) *Matcher {
	m := &Matcher{multiWord: make(map[string]bool, len(multiWordNicknames))}
	for _, w := range multiWordNicknames {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			m.multiWord[w] = true
		}
	}
	return m
}

// Match applies, in order: notification detection, structured lines, then the
// merchant's fixed-offset rule. Traders are tried in registry order and the
// first match wins.
func (m *Matcher) Match(msg InboundMessage, merchant domain.MerchantGroup, traders []domain.TraderGroup) MatchResult {
	if strings.TrimSpace(msg.Text) == "" {
		return MatchResult{Kind: MatchEmpty}
	}

	if ids := notificationIDs(msg.Text); len(ids) > 0 {
		return MatchResult{Kind: MatchNotification, AppealIDs: ids}
	}

	if cands := m.structured(msg.Text, traders); len(cands) > 0 {
		return MatchResult{Kind: MatchStructured, Candidates: cands}
	}

	appealID := FixedOffsetAppealID(msg.Text, merchant, msg.MessageID)
	return MatchResult{
		Kind: MatchFixedOffset,
		Candidates: []Candidate{{
			AppealID: appealID,
			Trader:   matchByNameWords(msg.Text, traders),
		}},
	}
}

func notificationIDs(text string) []string {
	if !hasCyrillic(text) {
		return nil
	}
	var ids []string
	seen := map[string]bool{}
	for _, tok := range uuidToken.FindAllString(text, -1) {
		id, ok := canonicalUUID(tok)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func hasCyrillic(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

func canonicalUUID(s string) (string, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func (m *Matcher) structured(text string, traders []domain.TraderGroup) []Candidate {
	var cands []Candidate
	for _, line := range strings.Split(text, "\n") {
		sub := uuidLine.FindStringSubmatch(line)
		if sub == nil {
			continue
		}
		id, ok := canonicalUUID(sub[1])
		if !ok {
			continue
		}
		words := strings.Fields(strings.ToLower(sub[2]))
		hint := words[0]
		if len(words) > 1 && m.multiWord[words[1]] {
			hint += " " + words[1]
		}
		cands = append(cands, Candidate{
			AppealID: id,
			Hint:     hint,
			Trader:   matchByTitle(hint, traders),
		})
	}
	return cands
}

func matchByTitle(hint string, traders []domain.TraderGroup) *domain.TraderGroup {
	for i := range traders {
		if strings.Contains(strings.ToLower(traders[i].Title), hint) {
			t := traders[i]
			return &t
		}
	}
	return nil
}

// TraderName is the part of a trader group title before the " | Trader" suffix, lower-cased.
func TraderName(title string) string {
	name, _, _ := strings.Cut(strings.ToLower(title), config.TraderTitleDelimiter)
	return name
}

func matchByNameWords(text string, traders []domain.TraderGroup) *domain.TraderGroup {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[w] = true
	}
	for i := range traders {
		for _, w := range strings.Fields(TraderName(traders[i].Title)) {
			if words[w] {
				t := traders[i]
				return &t
			}
		}
	}
	return nil
}

// FixedOffsetAppealID slices the merchant's learned rule out of text, counting
// runes. Without a usable rule the id is synthesized from the message id.
func FixedOffsetAppealID(text string, merchant domain.MerchantGroup, messageID int) string {
	if !merchant.HasAppealIDRule() {
		return domain.SynthesizedAppealID(messageID)
	}
	runes := []rune(text)
	end := merchant.AppealIDStartPos + merchant.AppealIDLength
	if end > len(runes) {
		return domain.SynthesizedAppealID(messageID)
	}
	id := strings.TrimSpace(string(runes[merchant.AppealIDStartPos:end]))
	if id == "" {
		return domain.SynthesizedAppealID(messageID)
	}
	return id
}
