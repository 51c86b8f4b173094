package agent

import (
	"fmt"
	"strings"

	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/utils"
)

// SessionIdentity names the customer conversation a message belongs to.
// The chat id is the session key; the contact key is the store key.
type SessionIdentity struct {
	ChatID      string
	DisplayName string
}

func IdentityOf(msg bus.InboundMessage) SessionIdentity {
	name := strings.TrimSpace(msg.SenderName)
	return SessionIdentity{
		ChatID:      strings.TrimSpace(msg.ChatID),
		DisplayName: name,
	}
}

func (id SessionIdentity) Validate() error {
	if id.ChatID == "" {
		return fmt.Errorf("missing chat id")
	}
	if utils.ChatNumber(id.ChatID) == "" {
		return fmt.Errorf("chat id %q has no number", id.ChatID)
	}
	return nil
}

func (id SessionIdentity) ContactKey() string {
	return utils.ContactKey(id.ChatID)
}

// Number is the bare digits of the chat, as listed in exclusion config.
func (id SessionIdentity) Number() string {
	return utils.NormalizeNumber(utils.ChatNumber(id.ChatID))
}

func (id SessionIdentity) IsGroup(suffix string) bool {
	return suffix != "" && strings.HasSuffix(id.ChatID, suffix)
}
