package reply

import (
	"fmt"

	"dialog-bot/internal/keyboard"
)

// Kind tags the variant held by a Response.
type Kind uint8

const (
	KindNothing Kind = iota
	KindText
	KindEdit
	KindDeleteRequest
	KindDeleteLatest
	KindCombine
)

func (k Kind) String() string {
	switch k {
	case KindNothing:
		return "nothing"
	case KindText:
		return "text"
	case KindEdit:
		return "edit"
	case KindDeleteRequest:
		return "delete_request"
	case KindDeleteLatest:
		return "delete_latest"
	case KindCombine:
		return "combine"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Response describes how one turn mutates the chat. The zero value is
// Nothing.
type Response struct {
	kind     Kind
	text     string
	editText bool
	keyboard *keyboard.Keyboard
	silent   bool
	parts    []Response
}

// Text sends a new message.
func Text(text string) Response {
	return Response{kind: KindText, text: text}
}

// TextWithKeyboard sends a new message carrying kb.
func TextWithKeyboard(text string, kb *keyboard.Keyboard) Response {
	return Response{kind: KindText, text: text, keyboard: kb}
}

// EditLatest rewrites the latest bot message in place. A nil kb removes its
// keyboard.
func EditLatest(text string, kb *keyboard.Keyboard) Response {
	return Response{kind: KindEdit, text: text, editText: true, keyboard: kb}
}

// EditLatestKeyboard swaps only the keyboard of the latest bot message.
func EditLatestKeyboard(kb *keyboard.Keyboard) Response {
	return Response{kind: KindEdit, keyboard: kb}
}

// Nothing produces no chat text but disarms a stale keyboard.
func Nothing() Response {
	return Response{}
}

// DeleteLastRequest deletes the inbound message that triggered the turn.
func DeleteLastRequest() Response {
	return Response{kind: KindDeleteRequest}
}

// DeleteLatest deletes the bot's own latest message.
func DeleteLatest() Response {
	return Response{kind: KindDeleteLatest}
}

// Combine applies responses left to right, each one seeing the state the
// previous one produced.
func Combine(responses ...Response) Response {
	return Response{kind: KindCombine, parts: append([]Response(nil), responses...)}
}

// Silent returns a copy of a Text response that is delivered without a
// notification. Other variants are returned unchanged.
func (r Response) Silent() Response {
	if r.kind == KindText {
		r.silent = true
	}
	return r
}

// Kind reports the variant.
func (r Response) Kind() Kind {
	return r.kind
}

// Text returns the text carried by a Text or Edit response.
func (r Response) Text() string {
	return r.text
}

// Keyboard returns the keyboard carried by a Text or Edit response.
func (r Response) Keyboard() *keyboard.Keyboard {
	return r.keyboard
}

// Parts returns the responses of a Combine.
func (r Response) Parts() []Response {
	return append([]Response(nil), r.parts...)
}

func (r Response) String() string {
	switch r.kind {
	case KindText, KindEdit:
		return r.kind.String() + ": " + r.text
	case KindCombine:
		return fmt.Sprintf("combine(%d)", len(r.parts))
	default:
		return r.kind.String()
	}
}
