package reply

import (
	"context"
	"fmt"
)

// Apply runs r against m and returns the state the next turn starts from.
// requestID identifies the inbound message that triggered the turn.
func (r Response) Apply(ctx context.Context, m Messenger, chatID int64, latest State, requestID int) (State, error) {
	switch r.kind {
	case KindNothing:
		if !latest.HasKeyboard {
			return latest, nil
		}
		st, err := m.EditKeyboard(ctx, latest, nil)
		if err != nil {
			return latest, fmt.Errorf("strip keyboard: %w", err)
		}
		return st, nil

	case KindText:
		if latest.HasKeyboard {
			// A failed strip must not block the new message.
			_, _ = m.EditKeyboard(ctx, latest, nil)
		}
		st, err := m.SendText(ctx, chatID, r.text, r.keyboard, r.silent)
		if err != nil {
			return latest, fmt.Errorf("send text: %w", err)
		}
		return st, nil

	case KindEdit:
		var (
			st  State
			err error
		)
		if r.editText {
			st, err = m.EditText(ctx, latest, r.text, r.keyboard)
		} else {
			st, err = m.EditKeyboard(ctx, latest, r.keyboard)
		}
		if err != nil {
			return latest, fmt.Errorf("edit latest: %w", err)
		}
		return st, nil

	case KindDeleteRequest:
		if err := m.Delete(ctx, chatID, requestID); err != nil {
			return latest, fmt.Errorf("delete request: %w", err)
		}
		return latest, nil

	case KindDeleteLatest:
		if !latest.HasMessage() {
			return latest, nil
		}
		if err := m.Delete(ctx, latest.ChatID, latest.MessageID); err != nil {
			return latest, fmt.Errorf("delete latest: %w", err)
		}
		return Initial(latest.ChatID), nil

	case KindCombine:
		st := latest
		for i, part := range r.parts {
			next, err := part.Apply(ctx, m, chatID, st, requestID)
			if err != nil {
				return st, fmt.Errorf("combine step %d: %w", i, err)
			}
			st = next
		}
		return st, nil

	default:
		return latest, fmt.Errorf("unknown response kind %s", r.kind)
	}
}
