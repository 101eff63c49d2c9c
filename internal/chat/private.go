package chat

import (
	"sort"

	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/text"
)

// PrivateMessage sends message from one player to another by name
func (r *Router) PrivateMessage(sender domain.Sender, recipientName, message string) error {
	if sender.Console {
		return ErrIngameOnly
	}
	target, ok := r.host.ByName(recipientName)
	if !ok {
		return ErrPlayerNotFound
	}
	return r.privateMessage(sender, target, message)
}

// Reply answers the last player the sender talked to
func (r *Router) Reply(sender domain.Sender, message string) error {
	if sender.Console {
		return ErrIngameOnly
	}
	r.mu.Lock()
	partner, ok := r.lastPartner[sender.UUID]
	r.mu.Unlock()
	if !ok {
		return ErrNoReplyTarget
	}

	target, online := r.host.Player(partner)
	if !online {
		r.mu.Lock()
		delete(r.lastPartner, sender.UUID)
		r.mu.Unlock()
		return ErrNoReplyTarget
	}
	return r.privateMessage(sender, target, message)
}

// LastPartner returns the UUID of the sender's last conversation partner
func (r *Router) LastPartner(uuid string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.lastPartner[uuid]
	return p, ok
}

func (r *Router) privateMessage(sender domain.Sender, target domain.Player, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.pm.IsEnabled() {
		return ErrPMDisabled
	}
	if target.UUID == sender.UUID {
		return ErrSelfMessage
	}

	message = text.SanitizeMessage(message, r.host.HasPermission(sender.UUID, PermChatColor))
	senderName := sender.Name
	if p, ok := r.host.Player(sender.UUID); ok {
		senderName = p.Display()
	}
	vars := text.Vars{
		"sender":    senderName,
		"recipient": target.Display(),
		"message":   message,
	}

	r.host.Send([]string{sender.UUID}, text.Render(r.pm.SenderFormat, vars))
	r.host.Send([]string{target.UUID}, text.Render(r.pm.RecipientFormat, vars))

	r.lastPartner[sender.UUID] = target.UUID
	r.lastPartner[target.UUID] = sender.UUID

	var spies []string
	for uuid := range r.spies {
		if uuid == sender.UUID || uuid == target.UUID {
			continue
		}
		if _, online := r.host.Player(uuid); online {
			spies = append(spies, uuid)
		}
	}
	if len(spies) > 0 {
		sort.Strings(spies)
		r.host.Send(spies, text.Render(r.pm.SpyFormat, vars))
	}
	return nil
}
