package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DBState is the tri-state add_to_db flag of a link record. On the wire the
// upstream stages emit it as false, true, or the string "waiting_for_confirm".
type DBState string

const (
	DBStateFalse   DBState = "false"
	DBStateTrue    DBState = "true"
	DBStatePending DBState = "waiting_for_confirm"
)

// Added reports whether the record has been committed to the knowledge base.
func (s DBState) Added() bool { return s == DBStateTrue }

func (s DBState) MarshalJSON() ([]byte, error) {
	switch s {
	case DBStateTrue:
		return []byte("true"), nil
	case DBStateFalse, "":
		return []byte("false"), nil
	default:
		return json.Marshal(string(s))
	}
}

func (s *DBState) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty add_to_db value")
	}
	switch {
	case bytes.Equal(b, []byte("true")):
		*s = DBStateTrue
		return nil
	case bytes.Equal(b, []byte("false")):
		*s = DBStateFalse
		return nil
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = DBState(v)
		return nil
	default:
		return fmt.Errorf("add_to_db must be a bool or string, got %s", b)
	}
}

// LinkRecord is one observed URL and everything the pipeline stages have said
// about it so far. Pointer fields distinguish "absent from this batch" from a
// deliberate false/zero, which is what makes the field-wise merge possible.
type LinkRecord struct {
	URL         string   `json:"link"`
	Platform    string   `json:"platform,omitempty"`
	IsConfirmed *bool    `json:"is_confirmed,omitempty"`
	AddToDB     *DBState `json:"add_to_db,omitempty"`
	Confidence  *int     `json:"confidence,omitempty"`
	SearchInfo  string   `json:"search_info,omitempty"`
	AgentNotes  string   `json:"agent_notes,omitempty"`
	LinkSummary string   `json:"link_summary,omitempty"`
}

// Confirmed reports whether the user validated the link.
func (r LinkRecord) Confirmed() bool { return r.IsConfirmed != nil && *r.IsConfirmed }

// Added reports whether the record reached the knowledge base.
func (r LinkRecord) Added() bool { return r.AddToDB != nil && r.AddToDB.Added() }

// clone returns a deep copy so snapshots never alias workspace state.
func (r LinkRecord) clone() LinkRecord {
	out := r
	if r.IsConfirmed != nil {
		v := *r.IsConfirmed
		out.IsConfirmed = &v
	}
	if r.AddToDB != nil {
		v := *r.AddToDB
		out.AddToDB = &v
	}
	if r.Confidence != nil {
		v := *r.Confidence
		out.Confidence = &v
	}
	return out
}

// apply overwrites only the fields present in src, leaving everything else
// untouched (field-wise last-writer-wins).
func (r *LinkRecord) apply(src LinkRecord) {
	if src.Platform != "" {
		r.Platform = src.Platform
	}
	if src.IsConfirmed != nil {
		v := *src.IsConfirmed
		r.IsConfirmed = &v
	}
	if src.AddToDB != nil {
		v := *src.AddToDB
		r.AddToDB = &v
	}
	if src.Confidence != nil {
		v := *src.Confidence
		r.Confidence = &v
	}
	if src.SearchInfo != "" {
		r.SearchInfo = src.SearchInfo
	}
	if src.AgentNotes != "" {
		r.AgentNotes = src.AgentNotes
	}
	if src.LinkSummary != "" {
		r.LinkSummary = src.LinkSummary
	}
}
