// Package syncproto carries local edits to the persistence service. Requests are
// fire-and-forget: the caller has already applied the change and only learns
// the outcome later, in completion order.
package syncproto

import (
	"fmt"

	"bibedit-cli/internal/model"
)

type RequestType string

const (
	TypeGetRecord     RequestType = "getRecord"
	TypeModifyContent RequestType = "modifyContent"
	TypeAddSubfields  RequestType = "addSubfields"
	TypeAddField      RequestType = "addField"
	TypeDeleteFields  RequestType = "deleteFields"
	TypeMoveSubfield  RequestType = "moveSubfield"
	TypeSubmit        RequestType = "submit"
	TypeCancel        RequestType = "cancel"
	TypeDeleteRecord  RequestType = "deleteRecord"
)

// Mutating reports whether the request type changes persisted state.
func (t RequestType) Mutating() bool {
	switch t {
	case TypeGetRecord, TypeCancel:
		return false
	default:
		return true
	}
}

// SessionExpired is the result text the service answers with when the caller's
// session is missing or no longer valid.
const SessionExpired = "Error: Not logged in"

// Request is one transaction sent to the service. ID is assigned by Client.Send.
type Request struct {
	ID               int64              `json:"ID"`
	RecID            int                `json:"recID"`
	RequestType      RequestType        `json:"requestType"`
	Tag              string             `json:"tag,omitempty"`
	FieldNumber      int                `json:"fieldNumber,omitempty"`
	SubfieldIndex    *int               `json:"subfieldIndex,omitempty"`
	NewSubfieldIndex *int               `json:"newSubfieldIndex,omitempty"`
	SubfieldCode     string             `json:"subfieldCode,omitempty"`
	Value            *string            `json:"value,omitempty"`
	Subfields        []model.Subfield   `json:"subfields,omitempty"`
	Field            *model.Field       `json:"field,omitempty"`
	ToDelete         model.DeletionPlan `json:"toDelete,omitempty"`
}

// Response echoes the transaction ID. ResultCode 0 means success.
type Response struct {
	ID         int64        `json:"ID"`
	ResultCode int          `json:"resultCode"`
	ResultText string       `json:"resultText"`
	RecID      int          `json:"recID"`
	Record     model.Record `json:"record,omitempty"`
}

// OK reports a successful result.
func (r Response) OK() bool { return r.ResultCode == 0 }

// RejectionError reports that the service refused the session.
type RejectionError struct {
	RecID int
	Text  string
}

func (e RejectionError) Error() string {
	return fmt.Sprintf("record %d: %s", e.RecID, e.Text)
}

// Int returns a pointer to v, for optional request fields.
func Int(v int) *int { return &v }

// String returns a pointer to v, for optional request fields.
func String(v string) *string { return &v }
