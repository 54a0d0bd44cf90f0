package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "single word", input: "Start", want: "start"},
		{name: "two words", input: "PickItem", want: "pick_item"},
		{name: "lower camel", input: "pickItem", want: "pick_item"},
		{name: "async suffix", input: "StartAsync", want: "start"},
		{name: "async suffix with words", input: "ShowProfileAsync", want: "show_profile"},
		{name: "normalized async suffix", input: "show_profile_async", want: "show_profile"},
		{name: "async glued to word is kept", input: "Bypassasync", want: "bypassasync"},
		{name: "only async", input: "Async", want: "async"},
		{name: "acronym", input: "GetURL", want: "get_url"},
		{name: "digit ends a word", input: "Roll2Dice", want: "roll2_dice"},
		{name: "async after digit", input: "Roll2Async", want: "roll2"},
		{name: "digit then lowercase", input: "roll2dice", want: "roll2dice"},
		{name: "already normalized", input: "pick_item", want: "pick_item"},
		{name: "callback kept", input: "PickItemCallback", want: "pick_item_callback"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"Start", "PickItem", "PickItemCallbackAsync", "fooASYNC", "x_ASYNC",
		"fetchAsync_async", "GetURL", "Roll2Dice", "Roll2Async", "a", "", "_async", "already_done",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeWithSpace(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "item id", NormalizeWith("itemID", " "))
	assert.Equal(t, "color", NormalizeWith("color", " "))
	assert.Equal(t, "max dice sides", NormalizeWith("maxDiceSides", " "))
}

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		name     string
		callback bool
	}{
		{input: "Start", name: "start"},
		{input: "PickItemCallback", name: "pick_item", callback: true},
		{input: "PickItemCallbackAsync", name: "pick_item", callback: true},
		{input: "pick_item_callback", name: "pick_item", callback: true},
		{input: "pick_item", name: "pick_item"},
		{input: "Callback", name: "", callback: true},
		{input: "Playcallback", name: "playcallback"},
		{input: "Pick2Async", name: "pick2"},
		{input: "Pick2Callback", name: "pick2", callback: true},
	}
	for _, tt := range tests {
		name, callback := Classify(tt.input)
		assert.Equal(t, tt.name, name, "input %q", tt.input)
		assert.Equal(t, tt.callback, callback, "input %q", tt.input)
	}
}
