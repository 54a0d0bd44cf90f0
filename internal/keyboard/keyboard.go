// Package keyboard builds inline button grids and encodes the payloads that
// bind a button press back to a callback handler.
package keyboard

import (
	"fmt"

	"dialog-bot/internal/naming"
)

// Button is a single inline button. Payload is what the messenger hands back
// when the button is pressed.
type Button struct {
	Label   string
	Payload string
}

// Keyboard is an immutable, possibly ragged grid of buttons.
type Keyboard struct {
	rows [][]Button
}

// Rows returns a copy of the grid.
func (k *Keyboard) Rows() [][]Button {
	if k == nil {
		return nil
	}
	rows := make([][]Button, len(k.rows))
	for i, row := range k.rows {
		rows[i] = append([]Button(nil), row...)
	}
	return rows
}

// Len returns the number of rows.
func (k *Keyboard) Len() int {
	if k == nil {
		return 0
	}
	return len(k.rows)
}

// Builder accumulates buttons row by row.
type Builder struct {
	row  []Button
	grid [][]Button
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// New starts a builder with one button per label on the first row. Each
// button's payload equals its label.
func New(labels ...string) *Builder {
	b := NewBuilder()
	for _, label := range labels {
		b.Add(label)
	}
	return b
}

// Add appends a button whose payload is its label.
func (b *Builder) Add(label string) *Builder {
	return b.AddData(label, label)
}

// AddData appends a button with an explicit payload.
func (b *Builder) AddData(label, payload string) *Builder {
	b.row = append(b.row, Button{Label: label, Payload: payload})
	return b
}

// AddCallback appends a button that invokes the callback handler named by
// handler with args. handler may be the Go identifier ("PickItemCallback")
// or the normalized name ("pick_item").
func (b *Builder) AddCallback(label, handler string, args ...any) *Builder {
	name, _ := naming.Classify(handler)
	return b.AddData(label, EncodePayload(name, stringify(args)...))
}

// Newline closes the current row, even when it is empty.
func (b *Builder) Newline() *Builder {
	b.grid = append(b.grid, b.row)
	b.row = nil
	return b
}

// Build closes the row in progress and returns the finished grid. The
// builder is left untouched and may keep growing.
func (b *Builder) Build() *Keyboard {
	rows := make([][]Button, 0, len(b.grid)+1)
	for _, row := range b.grid {
		rows = append(rows, append([]Button(nil), row...))
	}
	rows = append(rows, append([]Button(nil), b.row...))
	return &Keyboard{rows: rows}
}

func stringify(args []any) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			out[i] = v
		case fmt.Stringer:
			out[i] = v.String()
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
