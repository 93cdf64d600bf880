// Package nav derives the editor's mode from a navigational token such as
// "#state=edit&recid=5" and decides when a token change is a real transition.
package nav

import (
	"sort"
	"strconv"
	"strings"

	"bibedit-cli/internal/model"
)

const (
	KeyState = "state"
	KeyRecID = "recid"
)

// Parse splits a "#k=v&k=v" token into its pairs. Pairs without exactly one
// "=" are dropped.
func Parse(raw string) map[string]string {
	out := map[string]string{}
	raw = strings.TrimPrefix(raw, "#")
	if raw == "" {
		return out
	}
	for _, arg := range strings.Split(raw, "&") {
		kv := strings.Split(arg, "=")
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = kv[1]
	}
	return out
}

// Serialize writes the token for mode, with recid when recID > 0. The start
// page is written as a bare edit state, the form Derive maps back to it.
func Serialize(mode model.Mode, recID int) string {
	if mode == model.ModeStartPage {
		return "#" + KeyState + "=" + model.ModeEdit.TokenState()
	}
	var b strings.Builder
	b.WriteString("#" + KeyState + "=" + mode.TokenState())
	if recID > 0 {
		b.WriteString("&" + KeyRecID + "=" + strconv.Itoa(recID))
	}
	return b.String()
}

// Encode writes arbitrary pairs in key order.
func Encode(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+pairs[k])
	}
	return "#" + strings.Join(parts, "&")
}

// Target is the mode and record a token asks for.
type Target struct {
	Mode     model.Mode
	RecID    int
	HasRecID bool
}

var needsRecID = map[model.Mode]bool{
	model.ModeEdit:         true,
	model.ModeSubmit:       true,
	model.ModeCancel:       true,
	model.ModeDeleteRecord: true,
}

// Derive maps a raw token to a target. ok is false when the token must be
// ignored: an unknown state, a state other than edit without a record id, a
// non-numeric record id, or neither key present.
func Derive(raw string) (Target, bool) {
	var pairs map[string]string
	if strings.TrimPrefix(raw, "#") == "" {
		pairs = map[string]string{KeyState: "edit"}
	} else {
		pairs = Parse(raw)
	}

	stateText, hasState := pairs[KeyState]
	hasState = hasState && stateText != ""
	recText, hasRec := pairs[KeyRecID]
	hasRec = hasRec && recText != ""

	var recID int
	if hasRec {
		n, err := strconv.Atoi(recText)
		if err != nil || n < 0 {
			return Target{}, false
		}
		recID = n
	}

	switch {
	case hasState && hasRec:
		mode, ok := model.ParseMode(stateText)
		if !ok || !needsRecID[mode] {
			return Target{}, false
		}
		return Target{Mode: mode, RecID: recID, HasRecID: true}, true
	case hasRec:
		return Target{Mode: model.ModeEdit, RecID: recID, HasRecID: true}, true
	case hasState:
		mode, ok := model.ParseMode(stateText)
		if !ok || mode != model.ModeEdit {
			return Target{}, false
		}
		return Target{Mode: model.ModeStartPage}, true
	default:
		return Target{}, false
	}
}
