package command

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"bibedit-cli/internal/engine"
	"bibedit-cli/internal/model"
	"bibedit-cli/internal/nav"
	"bibedit-cli/internal/protect"
	"bibedit-cli/internal/record"
	"bibedit-cli/internal/server"
	"bibedit-cli/internal/syncproto"
)

func TestParse(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"", Command{}},
		{"  # comment", Command{}},
		{"go '#state=edit&recid=5'", Command{Kind: KindGo, Token: "#state=edit&recid=5"}},
		{"open 12", Command{Kind: KindOpen, RecID: 12}},
		{"edit 245 2 0 'New title'", Command{Kind: KindEdit, Tag: "245", FieldNumber: 2, Index: 0, Value: "New title"}},
		{"edit 005 1 - 2024 01", Command{Kind: KindEdit, Tag: "005", FieldNumber: 1, Index: record.NoSubfield, Value: "2024 01"}},
		{"add 245 2 b=sub 'c=by me'", Command{Kind: KindAdd, Tag: "245", FieldNumber: 2, Subfields: []model.Subfield{{Code: "b", Value: "sub"}, {Code: "c", Value: "by me"}}}},
		{"add --partial 245 2 junk", Command{Kind: KindAdd, Tag: "245", FieldNumber: 2, AcceptPartial: true, Subfields: []model.Subfield{{Value: "junk"}}}},
		{"addfield 650 _0 a=Dune", Command{Kind: KindAddField, Tag: "650", Field: model.DataField(" ", "0", model.Subfield{Code: "a", Value: "Dune"})}},
		{"addfield 005 =2024", Command{Kind: KindAddField, Tag: "005", Field: model.ControlField("2024")}},
		{"move 245 2 0 1", Command{Kind: KindMove, Tag: "245", FieldNumber: 2, From: 0, To: 1}},
		{"del 245 2:1,0 650 3", Command{Kind: KindDelete, Plan: model.DeletionPlan{
			{Tag: "245", FieldNumber: 2, Scope: model.ScopeSubfields, Subfields: []int{0, 1}},
			{Tag: "650", FieldNumber: 3, Scope: model.ScopeWholeField},
		}}},
		{"SUBMIT", Command{Kind: KindSubmit}},
		{"delete-record", Command{Kind: KindDeleteRecord}},
		{"wait", Command{Kind: KindWait}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.line)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.line, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("Parse(%q) (-want +got):\n%s", tc.line, diff)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	for _, line := range []string{
		"frobnicate",
		"open",
		"open x",
		"open 0",
		"edit 245 two 0 v",
		"add 245 2",
		"addfield 650 abc a=x",
		"move 245 2 0",
		"del 245",
		"del 245 2:a",
		"submit now",
		"go 'unterminated",
	} {
		_, err := Parse(line)
		var pe ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Parse(%q): err = %v, want ParseError", line, err)
		}
	}
}

type fakeSender struct {
	next int64
	sent []syncproto.Request
}

func (f *fakeSender) Send(req syncproto.Request) int64 {
	f.next++
	req.ID = f.next
	f.sent = append(f.sent, req)
	return req.ID
}

func loadedSession(t *testing.T) (*engine.Session, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	s := engine.NewSession(engine.NopUI{}, sender, nav.NewLocation(""), engine.Options{
		Policy: protect.NewPolicy(nil),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, Exec(s, Command{Kind: KindOpen, RecID: 4}))
	load := sender.sent[len(sender.sent)-1]
	require.Equal(t, syncproto.TypeGetRecord, load.RequestType)

	title := model.DataField("1", "0", model.Subfield{Code: "a", Value: "Title"})
	title.Number = 1
	s.HandleOutcome(syncproto.Outcome{Request: load, Response: syncproto.Response{
		ID: load.ID, RecID: 4, ResultText: "Record loaded", Record: model.Record{"245": {title}},
	}})
	require.True(t, s.Loaded())
	return s, sender
}

func TestExec_AppliesToSession(t *testing.T) {
	s, sender := loadedSession(t)

	for _, line := range []string{
		"add 245 1 b=sub",
		"move 245 1 0 1",
		"edit 245 1 1 Renamed",
		"addfield 650 _0 a=Topic",
		"del 650 2",
	} {
		cmd, err := Parse(line)
		require.NoError(t, err)
		require.NoError(t, Exec(s, cmd), line)
	}
	require.Equal(t, []model.Subfield{{Code: "b", Value: "sub"}, {Code: "a", Value: "Renamed"}}, s.Record()["245"][0].Subfields)
	require.NotContains(t, s.Record(), "650")
	require.Len(t, sender.sent, 6)

	cmd, _ := Parse("add 245 1 junk")
	var partial engine.PartialInputError
	require.ErrorAs(t, Exec(s, cmd), &partial)

	require.ErrorIs(t, Exec(s, Command{Kind: KindWait}), ErrUnknownKind)

	require.NoError(t, Exec(s, Command{Kind: KindSubmit}))
	require.Equal(t, model.ModeSubmit, s.Mode())
}

func TestRun_AgainstServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv, err := server.NewServer(ctx, server.Config{Dir: t.TempDir(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer srv.Close()
	title := model.DataField("1", "0", model.Subfield{Code: "a", Value: "Dune"})
	title.Number = 1
	require.NoError(t, srv.DB().Put(ctx, 9, model.Record{"245": {title}}))
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	client := syncproto.NewClient(ctx, syncproto.NewHTTPTransport(hs.URL, "", 5*time.Second), zerolog.Nop())
	ui := &engine.TextUI{Out: &strings.Builder{}}
	s := engine.NewSession(ui, client, nav.NewLocation(""), engine.Options{
		Policy: protect.NewPolicy(nil),
		Logger: zerolog.Nop(),
	})
	loop := engine.NewLoop(s, client.Outcomes(), nav.NewPoller(5*time.Millisecond))
	go func() { _ = loop.Run(ctx) }()

	script := strings.Join([]string{
		"open 9",
		"wait",
		"add 245 1 b='a novel'",
		"addfield 100 1_ 'a=Herbert, Frank'",
		"wait",
		"submit",
		"wait",
	}, "\n")
	require.NoError(t, Run(ctx, loop, strings.NewReader(script)))

	rec, err := srv.DB().Get(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, []model.Subfield{{Code: "a", Value: "Dune"}, {Code: "b", Value: "a novel"}}, rec["245"][0].Subfields)
	require.Len(t, rec["100"], 1)
	require.Equal(t, 2, rec["100"][0].Number)
	require.Contains(t, ui.Messages(), engine.MsgSubmitted)

	err = Run(ctx, loop, strings.NewReader("wait\nbogus"))
	require.ErrorContains(t, err, "line 2")
}
