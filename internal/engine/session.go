// Package engine coordinates one editing session: the record being edited,
// the navigation state and the requests sent to the persistence service.
package engine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"bibedit-cli/internal/marc"
	"bibedit-cli/internal/model"
	"bibedit-cli/internal/nav"
	"bibedit-cli/internal/protect"
	"bibedit-cli/internal/record"
	"bibedit-cli/internal/syncproto"
)

const (
	MsgSubmitted = "Confirm: Submitted"
	MsgCancelled = "Confirm: Cancelled"
	MsgDeleted   = "Confirm: Deleted"
)

// Sender dispatches a request without blocking and returns its transaction ID.
type Sender interface {
	Send(req syncproto.Request) int64
}

type Options struct {
	Validator marc.Validator
	Policy    *protect.Policy
	Logger    zerolog.Logger
}

// Session owns the editor state. It is not safe for concurrent use; drive it
// from one goroutine (see Loop).
type Session struct {
	ui        UI
	sender    Sender
	location  *nav.Location
	machine   *nav.Machine
	store     *record.Store
	validator marc.Validator
	policy    *protect.Policy
	log       zerolog.Logger

	recID    int
	loaded   bool
	dirty    bool
	loadTxn  int64
	inflight map[int64]syncproto.RequestType
}

func NewSession(ui UI, sender Sender, location *nav.Location, opts Options) *Session {
	if ui == nil {
		ui = NopUI{}
	}
	s := &Session{
		ui:        ui,
		sender:    sender,
		location:  location,
		store:     record.New(nil, opts.Validator, opts.Policy),
		validator: opts.Validator,
		policy:    opts.Policy,
		log:       opts.Logger,
		inflight:  map[int64]syncproto.RequestType{},
	}
	s.machine = &nav.Machine{
		Handlers: map[model.Mode]nav.Handler{
			model.ModeStartPage:    s.enterStartPage,
			model.ModeEdit:         s.enterEdit,
			model.ModeSubmit:       s.enterConfirmation(MsgSubmitted),
			model.ModeCancel:       s.enterConfirmation(MsgCancelled),
			model.ModeDeleteRecord: s.enterConfirmation(MsgDeleted),
		},
		Busy:   func() { s.ui.SetStatus(StatusUpdating, "") },
		Loaded: func() (int, bool) { return s.recID, s.recID > 0 },
	}
	return s
}

// Record is the record being edited. Callers must not modify it.
func (s *Session) Record() model.Record { return s.store.Record() }

// RecID is the record being edited or loaded, 0 when none.
func (s *Session) RecID() int { return s.recID }

// Loaded reports whether a record has been loaded and is editable.
func (s *Session) Loaded() bool { return s.loaded }

func (s *Session) Dirty() bool { return s.dirty }

func (s *Session) Mode() model.Mode {
	m, _ := s.machine.Mode()
	return m
}

// Idle reports whether every request this session sent has been answered.
func (s *Session) Idle() bool { return len(s.inflight) == 0 }

// Inflight returns the number of unanswered requests.
func (s *Session) Inflight() int { return len(s.inflight) }

func (s *Session) Location() *nav.Location { return s.location }

// Poll runs one navigation check against the current token.
func (s *Session) Poll() bool {
	return s.machine.Check(s.location.Get())
}

// Navigate moves to raw as an external navigation would, then checks it.
func (s *Session) Navigate(raw string) bool {
	s.location.Push(raw)
	return s.Poll()
}

// Open navigates to the edit view of recID.
func (s *Session) Open(recID int) bool {
	return s.Navigate(nav.Serialize(model.ModeEdit, recID))
}

// Back and Forward walk the navigation history.
func (s *Session) Back() bool {
	if !s.location.Back() {
		return false
	}
	return s.Poll()
}

func (s *Session) Forward() bool {
	if !s.location.Forward() {
		return false
	}
	return s.Poll()
}

func (s *Session) clearDisplay() {
	s.store.Clear()
	s.recID = 0
	s.loaded = false
	s.dirty = false
	s.loadTxn = 0
	s.ui.Render(nil)
}

func (s *Session) enterStartPage(nav.Target) {
	s.clearDisplay()
	s.ui.SetSearch("")
	s.ui.ShowMessage("")
	s.ui.SetStatus(StatusReady, "")
}

func (s *Session) enterEdit(t nav.Target) {
	s.ui.SetSearch(strconv.Itoa(t.RecID))
	s.ui.ShowMessage("")
	s.Load(t.RecID)
}

func (s *Session) enterConfirmation(msg string) nav.Handler {
	return func(nav.Target) {
		s.clearDisplay()
		s.ui.SetSearch("")
		s.ui.ShowMessage(msg)
		s.ui.SetStatus(StatusReady, "")
	}
}

// Load requests recID from the service. Only the latest load's answer is
// applied.
func (s *Session) Load(recID int) {
	s.store.Clear()
	s.recID = recID
	s.loaded = false
	s.dirty = false
	s.ui.Render(nil)
	s.loadTxn = s.send(syncproto.Request{RecID: recID, RequestType: syncproto.TypeGetRecord})
	s.ui.SetStatus(StatusUpdating, fmt.Sprintf("Loading record %d", recID))
}

func (s *Session) send(req syncproto.Request) int64 {
	id := s.sender.Send(req)
	s.inflight[id] = req.RequestType
	s.log.Debug().Int64("txn", id).Int("recid", req.RecID).Str("type", string(req.RequestType)).Msg("request")
	return id
}

// HandleOutcome applies the answer to an earlier request.
func (s *Session) HandleOutcome(o syncproto.Outcome) {
	delete(s.inflight, o.Request.ID)
	logger := s.log.With().Int64("txn", o.Request.ID).Int("recid", o.Request.RecID).Str("type", string(o.Request.RequestType)).Logger()

	if o.Rejected() {
		logger.Warn().Msg("session rejected; reloading")
		recID := o.Request.RecID
		if recID == 0 {
			recID = s.recID
		}
		s.forceReload(recID)
		s.ui.SetStatus(StatusError, o.Response.ResultText)
		return
	}

	if o.Request.RequestType == syncproto.TypeGetRecord {
		s.handleLoad(logger, o)
		return
	}

	switch {
	case o.Err != nil:
		logger.Warn().Err(o.Err).Msg("request failed")
		s.ui.SetStatus(StatusError, o.Err.Error())
	case !o.Response.OK():
		logger.Warn().Str("result", o.Response.ResultText).Msg("request refused")
		s.ui.SetStatus(StatusError, o.Response.ResultText)
	default:
		s.ui.SetStatus(StatusReport, o.Response.ResultText)
	}
}

func (s *Session) handleLoad(logger zerolog.Logger, o syncproto.Outcome) {
	if o.Request.ID != s.loadTxn {
		logger.Debug().Int64("latest", s.loadTxn).Msg("dropping stale load")
		return
	}
	s.loadTxn = 0
	if o.Err != nil || !o.Response.OK() {
		text := o.Response.ResultText
		if o.Err != nil {
			text = o.Err.Error()
		}
		logger.Warn().Str("result", text).Msg("load failed")
		s.goStartPage()
		s.ui.SetStatus(StatusError, text)
		return
	}
	s.store.Load(o.Response.Record.Clone())
	s.loaded = true
	s.dirty = false
	s.ui.Render(s.store.Record())
	s.ui.SetStatus(StatusReport, o.Response.ResultText)
}

// goStartPage is the editor's own switch to the start page.
func (s *Session) goStartPage() {
	s.location.Set(s.machine.SetMode(model.ModeStartPage, 0))
	s.enterStartPage(nav.Target{Mode: model.ModeStartPage})
}

// forceReload rebuilds the edit view of recID from scratch, as a full page
// reload would.
func (s *Session) forceReload(recID int) {
	s.dirty = false
	s.machine.Reset()
	s.clearDisplay()
	s.location.Set(nav.Serialize(model.ModeEdit, recID))
	s.Poll()
}

func (s *Session) requireRecord() error {
	if !s.loaded || s.Mode() != model.ModeEdit {
		return ErrNoRecord
	}
	return nil
}

// fail reports a rejected mutation. Desynchronized records are reloaded.
func (s *Session) fail(err error) error {
	var pe record.ProtectedFieldError
	switch {
	case errors.As(err, &pe):
		s.ui.Alert(fmt.Sprintf("Cannot change protected field %s", pe.Ref))
		s.ui.SetStatus(StatusReady, "")
	case record.IsDesync(err):
		s.log.Error().Err(err).Int("recid", s.recID).Msg("local record out of sync; reloading")
		s.ui.SetStatus(StatusError, err.Error())
		s.Load(s.recID)
	default:
		s.ui.SetStatus(StatusError, err.Error())
	}
	return err
}

func (s *Session) mutated(req syncproto.Request) {
	s.dirty = true
	req.RecID = s.recID
	s.send(req)
	s.ui.Render(s.store.Record())
	s.ui.SetStatus(StatusUpdating, "")
}

// EditContent replaces a subfield value, or the control value when index is
// record.NoSubfield.
func (s *Session) EditContent(tag string, number, index int, value string) error {
	if err := s.requireRecord(); err != nil {
		return err
	}
	stored, err := s.store.EditContent(tag, number, index, value)
	if err != nil {
		return s.fail(err)
	}
	req := syncproto.Request{
		RequestType: syncproto.TypeModifyContent,
		Tag:         tag,
		FieldNumber: number,
		Value:       syncproto.String(stored),
	}
	if index != record.NoSubfield {
		f, _ := s.store.GetField(tag, number)
		req.SubfieldIndex = syncproto.Int(index)
		req.SubfieldCode = f.Subfields[index].Code
	}
	s.mutated(req)
	return nil
}

// AddSubfieldRows appends operator-entered rows to a field. Rows with an empty
// code or value, or an invalid code, are invalid. Unless acceptPartial is set,
// any invalid row makes the call return PartialInputError without changes.
// It returns the number of subfields added.
func (s *Session) AddSubfieldRows(tag string, number int, rows []model.Subfield, acceptPartial bool) (int, error) {
	if err := s.requireRecord(); err != nil {
		return 0, err
	}
	f, err := s.store.GetField(tag, number)
	if err != nil {
		return 0, s.fail(err)
	}
	if f.IsControl() {
		return 0, s.fail(record.TypeMismatchError{Tag: tag, FieldNumber: number, Control: true})
	}

	var valid []model.Subfield
	invalid := 0
	for _, row := range rows {
		if row.Code != "" {
			if ref := marc.SubfieldRef(tag, *f, row.Code); s.policy.IsProtected(ref) {
				return 0, s.fail(record.ProtectedFieldError{Ref: ref})
			}
		}
		if row.Code == "" || row.Value == "" || !s.validator.IsValidSubfieldCode(row.Code) {
			invalid++
			continue
		}
		valid = append(valid, model.Subfield{Code: row.Code, Value: record.NormalizeContent(row.Value)})
	}
	if invalid > 0 && !acceptPartial {
		return 0, PartialInputError{Valid: len(valid), Invalid: invalid}
	}
	if len(valid) == 0 {
		s.ui.SetStatus(StatusReady, "")
		return 0, nil
	}
	if err := s.store.AddSubfields(tag, number, valid); err != nil {
		return 0, s.fail(err)
	}
	s.mutated(syncproto.Request{
		RequestType: syncproto.TypeAddSubfields,
		Tag:         tag,
		FieldNumber: number,
		Subfields:   valid,
	})
	return len(valid), nil
}

// AddField adds a new field and returns its field number.
func (s *Session) AddField(tag string, f model.Field) (int, error) {
	if err := s.requireRecord(); err != nil {
		return 0, err
	}
	n, err := s.store.AddField(tag, f)
	if err != nil {
		return 0, s.fail(err)
	}
	added, _ := s.store.GetField(tag, n)
	cp := added.Clone()
	s.mutated(syncproto.Request{
		RequestType: syncproto.TypeAddField,
		Tag:         tag,
		FieldNumber: n,
		Field:       &cp,
	})
	return n, nil
}

// MoveSubfield swaps two subfields of a field.
func (s *Session) MoveSubfield(tag string, number, from, to int) error {
	if err := s.requireRecord(); err != nil {
		return err
	}
	if err := s.store.MoveSubfield(tag, number, from, to); err != nil {
		return s.fail(err)
	}
	s.mutated(syncproto.Request{
		RequestType:      syncproto.TypeMoveSubfield,
		Tag:              tag,
		FieldNumber:      number,
		SubfieldIndex:    syncproto.Int(from),
		NewSubfieldIndex: syncproto.Int(to),
	})
	return nil
}

// DeleteFields applies a deletion plan. A plan touching any protected
// reference is rejected whole.
func (s *Session) DeleteFields(plan model.DeletionPlan) error {
	if err := s.requireRecord(); err != nil {
		return err
	}
	if len(plan) == 0 {
		s.ui.SetStatus(StatusReady, "")
		return nil
	}
	if err := s.store.ApplyDeletion(plan); err != nil {
		return s.fail(err)
	}
	s.mutated(syncproto.Request{
		RequestType: syncproto.TypeDeleteFields,
		ToDelete:    append(model.DeletionPlan(nil), plan...),
	})
	return nil
}

func (s *Session) finish(typ syncproto.RequestType, mode model.Mode) error {
	if err := s.requireRecord(); err != nil {
		return err
	}
	recID := s.recID
	s.send(syncproto.Request{RecID: recID, RequestType: typ})
	s.location.Push(s.machine.SetMode(mode, recID))
	s.machine.Handlers[mode](nav.Target{Mode: mode, RecID: recID, HasRecID: true})
	return nil
}

// Submit commits the edited record.
func (s *Session) Submit() error { return s.finish(syncproto.TypeSubmit, model.ModeSubmit) }

// CancelEdit discards the pending changes.
func (s *Session) CancelEdit() error { return s.finish(syncproto.TypeCancel, model.ModeCancel) }

// DeleteRecord deletes the record.
func (s *Session) DeleteRecord() error {
	return s.finish(syncproto.TypeDeleteRecord, model.ModeDeleteRecord)
}
