package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"bibedit-cli/internal/format"
	"bibedit-cli/internal/model"
	"bibedit-cli/internal/perm"
	"bibedit-cli/internal/record"
	"bibedit-cli/internal/store"
	"bibedit-cli/internal/syncproto"
)

const (
	resultOK          = 0
	resultError       = 1
	resultNotLoggedIn = 100
)

var resultTexts = map[syncproto.RequestType]string{
	syncproto.TypeGetRecord:     "Record loaded",
	syncproto.TypeModifyContent: "Content modified",
	syncproto.TypeAddSubfields:  "Subfields added",
	syncproto.TypeAddField:      "Field added",
	syncproto.TypeDeleteFields:  "Fields deleted",
	syncproto.TypeMoveSubfield:  "Subfield moved",
	syncproto.TypeSubmit:        "Record submitted",
	syncproto.TypeCancel:        "Editing cancelled",
	syncproto.TypeDeleteRecord:  "Record deleted",
}

func decodeEditRequest(r *http.Request) (syncproto.Request, error) {
	var req syncproto.Request
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(io.LimitReader(r.Body, 32<<20)).Decode(&req); err != nil {
			return req, fmt.Errorf("decode request: %w", err)
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("parse form: %w", err)
	}
	raw := r.FormValue("jsondata")
	if raw == "" {
		return req, errors.New("missing jsondata")
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return req, fmt.Errorf("decode jsondata: %w", err)
	}
	return req, nil
}

func writeResponse(w http.ResponseWriter, status int, resp syncproto.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = format.WriteJSON(w, resp, false)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEditRequest(r)
	if err != nil {
		writeResponse(w, http.StatusBadRequest, syncproto.Response{ResultCode: resultError, ResultText: "Error: " + err.Error()})
		return
	}
	owner, ok := s.owner(r)
	if !ok {
		RecordSync(string(req.RequestType), false, 0)
		writeResponse(w, http.StatusOK, syncproto.Response{
			ID: req.ID, RecID: req.RecID, ResultCode: resultNotLoggedIn, ResultText: syncproto.SessionExpired,
		})
		return
	}

	start := time.Now()
	resp := s.Apply(r.Context(), owner, req)
	RecordSync(string(req.RequestType), resp.OK(), time.Since(start))
	writeResponse(w, http.StatusOK, resp)
}

// Apply runs one transaction against the record's draft and answers with the
// transaction's result. Mutations that succeed are appended to the change log.
func (s *Server) Apply(ctx context.Context, owner string, req syncproto.Request) syncproto.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := syncproto.Response{ID: req.ID, RecID: req.RecID}
	l := s.log.With().Int64("txn", req.ID).Int("recid", req.RecID).Str("type", string(req.RequestType)).Logger()

	text, ok := resultTexts[req.RequestType]
	if !ok {
		resp.ResultCode, resp.ResultText = resultError, fmt.Sprintf("Error: unknown request type %q", req.RequestType)
		return resp
	}
	if req.RecID <= 0 {
		resp.ResultCode, resp.ResultText = resultError, "Error: missing record id"
		return resp
	}

	rec, err := s.apply(ctx, owner, req)
	if err != nil {
		l.Warn().Err(err).Msg("transaction failed")
		resp.ResultCode, resp.ResultText = resultError, "Error: "+describe(req.RecID, err)
		return resp
	}
	if req.RequestType != syncproto.TypeGetRecord {
		if _, err := s.db.AppendChange(ctx, req.RecID, req.ID, string(req.RequestType), owner, req); err != nil {
			l.Error().Err(err).Msg("append change")
		}
	}
	l.Debug().Msg("transaction applied")
	resp.ResultCode, resp.ResultText = resultOK, text
	resp.Record = rec
	return resp
}

func describe(recID int, err error) string {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("Record %d does not exist", recID)
	}
	return err.Error()
}

// checkLock refuses records whose draft another user holds. An idle draft is
// taken over by owner.
func (s *Server) checkLock(ctx context.Context, recID int, owner string) error {
	holder, at, ok, err := s.db.DraftOwner(ctx, recID)
	if err != nil || !ok {
		return err
	}
	if !perm.CanEditDraft(&perm.Lock{Owner: holder, UpdatedAt: at}, owner, s.now(), s.cfg.LockGrace) {
		return perm.LockedError{RecID: recID, Owner: holder}
	}
	if holder == owner {
		return nil
	}
	s.log.Info().Int("recid", recID).Str("from", holder).Str("to", owner).Msg("taking over idle draft")
	draft, err := s.db.Draft(ctx, recID, owner)
	if err != nil {
		return err
	}
	return s.db.SaveDraft(ctx, recID, owner, draft)
}

func (s *Server) apply(ctx context.Context, owner string, req syncproto.Request) (model.Record, error) {
	if err := s.checkLock(ctx, req.RecID, owner); err != nil {
		return nil, err
	}
	switch req.RequestType {
	case syncproto.TypeGetRecord:
		return s.db.Draft(ctx, req.RecID, owner)
	case syncproto.TypeSubmit:
		if _, err := s.db.Draft(ctx, req.RecID, owner); err != nil {
			return nil, err
		}
		return nil, s.db.Commit(ctx, req.RecID)
	case syncproto.TypeCancel:
		return nil, s.db.DiscardDraft(ctx, req.RecID)
	case syncproto.TypeDeleteRecord:
		return nil, s.db.Delete(ctx, req.RecID)
	}

	draft, err := s.db.Draft(ctx, req.RecID, owner)
	if err != nil {
		return nil, err
	}
	st := record.New(draft, s.validator, s.policy)
	if err := s.mutate(st, req); err != nil {
		return nil, err
	}
	return nil, s.db.SaveDraft(ctx, req.RecID, owner, st.Record())
}

func (s *Server) mutate(st *record.Store, req syncproto.Request) error {
	switch req.RequestType {
	case syncproto.TypeModifyContent:
		if req.Value == nil {
			return errors.New("missing value")
		}
		index := record.NoSubfield
		if req.SubfieldIndex != nil {
			index = *req.SubfieldIndex
		}
		_, err := st.EditContent(req.Tag, req.FieldNumber, index, *req.Value)
		return err
	case syncproto.TypeAddSubfields:
		if len(req.Subfields) == 0 {
			return errors.New("no subfields")
		}
		return st.AddSubfields(req.Tag, req.FieldNumber, req.Subfields)
	case syncproto.TypeAddField:
		if req.Field == nil {
			return errors.New("missing field")
		}
		return st.AddFieldAt(req.Tag, *req.Field)
	case syncproto.TypeDeleteFields:
		return st.ApplyDeletion(req.ToDelete)
	case syncproto.TypeMoveSubfield:
		if req.SubfieldIndex == nil || req.NewSubfieldIndex == nil {
			return errors.New("missing subfield index")
		}
		return st.MoveSubfield(req.Tag, req.FieldNumber, *req.SubfieldIndex, *req.NewSubfieldIndex)
	default:
		return fmt.Errorf("unsupported request type %q", req.RequestType)
	}
}
