package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mode is the editor's high level application mode.
type Mode int

const (
	ModeStartPage Mode = iota
	ModeEdit
	ModeSubmit
	ModeCancel
	ModeDeleteRecord
)

var modeNames = map[Mode]string{
	ModeStartPage:    "StartPage",
	ModeEdit:         "Edit",
	ModeSubmit:       "Submit",
	ModeCancel:       "Cancel",
	ModeDeleteRecord: "DeleteRecord",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "Unknown"
}

// TokenState is the lower-camel spelling written into navigational tokens.
func (m Mode) TokenState() string {
	s := m.String()
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

// ParseMode maps a token state to a mode. Only the first letter is
// case-insensitive ("edit" and "Edit" match, "deleterecord" does not).
func ParseMode(s string) (Mode, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	r, size := utf8.DecodeRuneInString(s)
	name := string(unicode.ToUpper(r)) + s[size:]
	for m, n := range modeNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}
