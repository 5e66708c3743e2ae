package client

import (
	"sort"

	"chatwire/internal/models"
)

// Reducers for the two entity lists the store owns. They are pure: callers
// pass the current list and get back the next one, which keeps the merge
// logic testable without any transport or store wiring.

// mergeMessage folds a new message into the open chat's list: replace in
// place when the id is already present (an optimistic sender-side insert can
// race with the push for the same id), append otherwise. Applying the same
// event twice yields the same list.
func mergeMessage(list []models.Message, msg models.Message) []models.Message {
	for i := range list {
		if list[i].ID == msg.ID {
			next := append([]models.Message{}, list...)
			next[i] = msg
			return next
		}
	}
	next := append([]models.Message{}, list...)
	return append(next, msg)
}

// mergeUpdate folds an edit or delete into the list: replace in place by id.
// A missing id means the message was never loaded (pagination gap); insert
// it and re-sort ascending by updatedAt so chronology survives out-of-order
// delivery.
func mergeUpdate(list []models.Message, msg models.Message) []models.Message {
	for i := range list {
		if list[i].ID == msg.ID {
			next := append([]models.Message{}, list...)
			next[i] = msg
			return next
		}
	}
	next := append([]models.Message{}, list...)
	next = append(next, msg)
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].UpdatedAt.Before(next[j].UpdatedAt)
	})
	return next
}

// promoteChat is the single normalization point for the chat-summary list:
// REST fetch results and every push event funnel through it. It points the
// chat's latest-message at msg, bumps the chat's updatedAt and re-sorts the
// whole list descending, so the ordering invariant holds regardless of the
// event source. An unknown chat is admitted from the message's embedded
// chat.
func promoteChat(chats []models.Chat, msg models.Message) []models.Chat {
	if msg.Chat == nil {
		return chats
	}

	latest := msg
	latest.Chat = nil // no chat-in-message-in-chat cycles

	next := append([]models.Chat{}, chats...)
	found := false
	for i := range next {
		if next[i].ID == msg.Chat.ID {
			next[i].LatestMessage = &latest
			next[i].UpdatedAt = msg.UpdatedAt
			found = true
			break
		}
	}
	if !found {
		chat := *msg.Chat
		chat.LatestMessage = &latest
		chat.UpdatedAt = msg.UpdatedAt
		next = append(next, chat)
	}

	return sortChats(next)
}

// sortChats orders summaries most-recently-active first.
func sortChats(chats []models.Chat) []models.Chat {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats
}
