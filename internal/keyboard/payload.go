package keyboard

import "strings"

// PayloadSeparator splits a callback payload into handler name and
// positional arguments. Arguments cannot contain it; there is no escaping.
const PayloadSeparator = ";"

// EncodePayload joins a callback name and its arguments.
func EncodePayload(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + PayloadSeparator + strings.Join(args, PayloadSeparator)
}

// DecodePayload is the inverse of EncodePayload. args is never nil.
func DecodePayload(payload string) (name string, args []string) {
	name, rest, found := strings.Cut(payload, PayloadSeparator)
	if !found {
		return name, []string{}
	}
	return name, strings.Split(rest, PayloadSeparator)
}
