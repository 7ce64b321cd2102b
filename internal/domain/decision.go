package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionDecline DecisionAction = "decline"
)

// Result is the past-tense wording shown to both sides.
func (a DecisionAction) Result() string {
	if a == ActionApprove {
		return "approved"
	}
	return "declined"
}

// DecisionPayload is the data carried by an approve/decline control.
type DecisionPayload struct {
	Action         DecisionAction
	MerchantChatID int64
	MessageID      int
}

func (p DecisionPayload) String() string {
	return fmt.Sprintf("%s_%d_%d", p.Action, p.MerchantChatID, p.MessageID)
}

func ParseDecisionPayload(data string) (DecisionPayload, error) {
	parts := strings.Split(data, "_")
	if len(parts) != 3 {
		return DecisionPayload{}, fmt.Errorf("%w: %q", ErrInvalidDecision, data)
	}
	action := DecisionAction(parts[0])
	if action != ActionApprove && action != ActionDecline {
		return DecisionPayload{}, fmt.Errorf("%w: unknown action %q", ErrInvalidDecision, parts[0])
	}
	chatID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return DecisionPayload{}, fmt.Errorf("%w: chat id %q", ErrInvalidDecision, parts[1])
	}
	msgID, err := strconv.Atoi(parts[2])
	if err != nil {
		return DecisionPayload{}, fmt.Errorf("%w: message id %q", ErrInvalidDecision, parts[2])
	}
	return DecisionPayload{Action: action, MerchantChatID: chatID, MessageID: msgID}, nil
}

// Control is an interactive button attached to an outgoing message.
type Control struct {
	Text string
	Data string
}

// DecisionControls builds the approve/decline pair for a merchant message.
func DecisionControls(merchantChatID int64, messageID int) []Control {
	return []Control{
		{Text: "Approve", Data: DecisionPayload{ActionApprove, merchantChatID, messageID}.String()},
		{Text: "Decline", Data: DecisionPayload{ActionDecline, merchantChatID, messageID}.String()},
	}
}
