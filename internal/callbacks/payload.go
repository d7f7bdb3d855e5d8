package callbacks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload is the body the workflow engine posts back when a job finishes.
// Identifiers may arrive at the top level or inside the echoed metadata, as
// strings or numbers. Success is read loosely: 1, "true" and "yes" count.
type Payload struct {
	Type      string          `json:"type"`
	Success   *bool           `json:"success,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	ResumeID  string          `json:"resume_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Metadata  *Metadata       `json:"metadata,omitempty"`
}

// Metadata is the request metadata echoed back by the engine.
type Metadata struct {
	Type      string `json:"type,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ResumeID  string `json:"resume_id,omitempty"`
}

// UnmarshalJSON decodes a callback body written by any engine version.
func (p *Payload) UnmarshalJSON(raw []byte) error {
	var w struct {
		Type      flexString      `json:"type"`
		Success   json.RawMessage `json:"success"`
		Error     json.RawMessage `json:"error"`
		RequestID flexString      `json:"request_id"`
		UserID    flexString      `json:"user_id"`
		ResumeID  flexString      `json:"resume_id"`
		Content   json.RawMessage `json:"content"`
		Metadata  *Metadata       `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	*p = Payload{
		Type:      string(w.Type),
		Success:   truthy(w.Success),
		Error:     w.Error,
		RequestID: string(w.RequestID),
		UserID:    string(w.UserID),
		ResumeID:  string(w.ResumeID),
		Content:   w.Content,
		Metadata:  w.Metadata,
	}
	return nil
}

// UnmarshalJSON accepts string or numeric identifiers.
func (m *Metadata) UnmarshalJSON(raw []byte) error {
	var w struct {
		Type      flexString `json:"type"`
		RequestID flexString `json:"request_id"`
		UserID    flexString `json:"user_id"`
		ResumeID  flexString `json:"resume_id"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	*m = Metadata{
		Type:      string(w.Type),
		RequestID: string(w.RequestID),
		UserID:    string(w.UserID),
		ResumeID:  string(w.ResumeID),
	}
	return nil
}

// flexString holds a JSON string or number as text.
type flexString string

func (s *flexString) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*s = ""
		return nil
	}
	if raw[0] == '"' {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", raw)
	}
	*s = flexString(n.String())
	return nil
}

// truthy reads success the way loosely typed engines write it. Absent or
// null yields nil.
func truthy(raw json.RawMessage) *bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var v bool
	switch raw[0] {
	case 't', 'f':
		v = bytes.Equal(raw, []byte("true"))
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "", "false", "0", "no", "off":
			default:
				v = true
			}
		}
	case '{', '[':
		v = !bytes.Equal(raw, []byte("{}")) && !bytes.Equal(raw, []byte("[]"))
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		v = err == nil && f != 0
	}
	return &v
}

// ParsePayload decodes a callback body and fills blank fields from metadata.
func ParsePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("decode callback: %w", err)
	}
	if m := p.Metadata; m != nil {
		p.Type = firstNonEmpty(p.Type, m.Type)
		p.RequestID = firstNonEmpty(p.RequestID, m.RequestID)
		p.UserID = firstNonEmpty(p.UserID, m.UserID)
		p.ResumeID = firstNonEmpty(p.ResumeID, m.ResumeID)
	}
	p.Type = strings.TrimSpace(p.Type)
	p.UserID = strings.TrimSpace(p.UserID)
	p.ResumeID = strings.TrimSpace(p.ResumeID)
	return p, nil
}

// Succeeded reports whether the engine marked the job successful.
func (p Payload) Succeeded() bool {
	return p.Success != nil && *p.Success
}

// ErrorMessage renders the engine's error field as text.
func (p Payload) ErrorMessage() string {
	raw := bytes.TrimSpace(p.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ContentObject decodes content as a JSON object. A JSON string holding an
// object is accepted, with or without markdown code fences around it.
func (p Payload) ContentObject() (map[string]any, error) {
	raw := bytes.TrimSpace(p.Content)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: content", ErrMissingField)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		raw = []byte(stripFences(s))
		if len(raw) == 0 {
			return nil, fmt.Errorf("%w: content", ErrMissingField)
		}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: content is not an object", ErrInvalidContent)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: content", ErrMissingField)
	}
	return out, nil
}

// ContentText decodes content as a non-empty string.
func (p Payload) ContentText() (string, error) {
	raw := bytes.TrimSpace(p.Content)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: content", ErrMissingField)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: content is not a string", ErrInvalidContent)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: content", ErrMissingField)
	}
	return s, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
