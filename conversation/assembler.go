// Package conversation turns a session's stored messages into the strictly
// alternating user/assistant sequence sent to a provider.
package conversation

import (
	"sort"

	"seekchat/model"
)

type turn struct {
	role    string
	content string
}

// Assemble selects, orders and windows stored messages.
//
// Only the text of each message's content block is used. A user message is
// paired with the next assistant message; pairs whose assistant reply ended
// in error are dropped so failed generations never reach the model. The
// result alternates roles, starts with a user turn and ends with the most
// recent user turn. An empty result means there is nothing to send.
func Assemble(messages []model.StoredMessage, window model.ContextWindow) []model.Message {
	turns := pairTurns(validMessages(messages))
	if len(turns) == 0 {
		return []model.Message{}
	}

	turns = userFirst(turns)
	turns = userLast(turns)

	if !window.NoLimit && window.MaxMessages > 0 && len(turns) > window.MaxMessages {
		turns = truncate(turns, window.MaxMessages)
	}

	if !window.NoLimit && window.MaxMessages == 1 {
		if last, ok := lastUser(turns); ok {
			return []model.Message{{Role: model.RoleUser, Content: last.content}}
		}
	}

	return toMessages(alternate(turns))
}

type validMessage struct {
	model.StoredMessage
	text string
}

func validMessages(messages []model.StoredMessage) []validMessage {
	sorted := make([]model.StoredMessage, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	valid := make([]validMessage, 0, len(sorted))
	for _, m := range sorted {
		if m.Content == "" {
			continue
		}
		block, ok := m.Blocks().Get(model.BlockContent)
		if !ok || block.Text == "" {
			continue
		}
		valid = append(valid, validMessage{StoredMessage: m, text: block.Text})
	}
	return valid
}

func pairTurns(valid []validMessage) []turn {
	var turns []turn
	for i := 0; i < len(valid); {
		if valid[i].Role != model.RoleUser {
			i++
			continue
		}

		next := -1
		for j := i + 1; j < len(valid); j++ {
			if valid[j].Role == model.RoleAssistant {
				next = j
				break
			}
		}
		if next == -1 {
			turns = append(turns, turn{role: model.RoleUser, content: valid[i].text})
			i++
			continue
		}

		if valid[next].Status != model.StatusError {
			turns = append(turns,
				turn{role: model.RoleUser, content: valid[i].text},
				turn{role: model.RoleAssistant, content: valid[next].text},
			)
		}
		i = next + 1
	}
	return turns
}

// userFirst moves the first user turn to the front.
func userFirst(turns []turn) []turn {
	if turns[0].role == model.RoleUser {
		return turns
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].role == model.RoleUser {
			return moveTo(turns, i, 0)
		}
	}
	return turns
}

// userLast moves the last user turn to the end.
func userLast(turns []turn) []turn {
	n := len(turns)
	if turns[n-1].role == model.RoleUser {
		return turns
	}
	for i := n - 2; i >= 0; i-- {
		if turns[i].role == model.RoleUser {
			return moveTo(turns, i, n-1)
		}
	}
	return turns
}

// truncate keeps the most recent max turns and restores a leading user
// turn, dropping the second entry when that overflows the limit.
func truncate(turns []turn, max int) []turn {
	kept := append([]turn(nil), turns[len(turns)-max:]...)
	if kept[0].role == model.RoleUser {
		return kept
	}
	for i := 1; i < len(kept); i++ {
		if kept[i].role == model.RoleUser {
			kept = moveTo(kept, i, 0)
			if len(kept) > max {
				kept = append(kept[:1], kept[2:]...)
			}
			break
		}
	}
	return kept
}

// alternate drops every turn that breaks user/assistant alternation and
// re-appends the latest user turn if the result ends on an assistant.
func alternate(turns []turn) []turn {
	out := make([]turn, 0, len(turns))
	expected := model.RoleUser
	for _, t := range turns {
		if t.role != expected {
			continue
		}
		out = append(out, t)
		if expected == model.RoleUser {
			expected = model.RoleAssistant
		} else {
			expected = model.RoleUser
		}
	}
	if len(out) > 0 && out[len(out)-1].role != model.RoleUser {
		if last, ok := lastUser(turns); ok {
			out = append(out, last)
		}
	}
	return out
}

func lastUser(turns []turn) (turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].role == model.RoleUser {
			return turns[i], true
		}
	}
	return turn{}, false
}

func moveTo(turns []turn, from, to int) []turn {
	t := turns[from]
	rest := make([]turn, 0, len(turns))
	rest = append(rest, turns[:from]...)
	rest = append(rest, turns[from+1:]...)

	out := make([]turn, 0, len(turns))
	out = append(out, rest[:to]...)
	out = append(out, t)
	return append(out, rest[to:]...)
}

func toMessages(turns []turn) []model.Message {
	out := make([]model.Message, len(turns))
	for i, t := range turns {
		out[i] = model.Message{Role: t.role, Content: t.content}
	}
	return out
}
