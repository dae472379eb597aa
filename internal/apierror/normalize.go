package apierror

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MsgNetwork      = "Network error. Please check your connection and try again."
	MsgInvalidData  = "Invalid data provided. Please check your input and try again."
	MsgUnauthorized = "Authentication failed. Please log in again."
	MsgForbidden    = "You do not have permission to perform this action."
	MsgNotFound     = "The requested resource was not found."
	MsgServer       = "Server error. Please try again later."
	msgGeneric      = "Something went wrong. Please try again."
)

// Normalize turns err into the message shown to the user.
func Normalize(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotFound) {
		return MsgNotFound
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Kind == KindNetwork {
			return MsgNetwork
		}
		return messageFor(apiErr.Status, apiErr.Body)
	}
	var pre *PreconditionError
	if errors.As(err, &pre) {
		return pre.Message
	}
	return err.Error()
}

// Rule is one step of the normalisation ladder. Rules are tried in order and
// the first match wins.
type Rule struct {
	Name  string
	Apply func(p Payload) (string, bool)
}

// Payload is a response as seen by the rules. Fields keeps the key order of
// the JSON object body, empty when the body is not an object. List holds a
// top-level array body.
type Payload struct {
	Status int
	Fields []Field
	List   json.RawMessage
}

type Field struct {
	Name  string
	Value json.RawMessage
}

func (p Payload) lookup(name string) (json.RawMessage, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

var Rules = []Rule{
	{Name: "HasDetail", Apply: hasDetail},
	{Name: "HasEmail", Apply: hasEmail},
	{Name: "HasFieldMap", Apply: hasFieldMap},
	{Name: "HasMessageList", Apply: hasMessageList},
	{Name: "StatusOnly", Apply: statusOnly},
}

func messageFor(status int, body []byte) string {
	p := Payload{Status: status, Fields: decodeFields(body), List: decodeList(body)}
	for _, r := range Rules {
		if msg, ok := r.Apply(p); ok {
			return msg
		}
	}
	return statusMessage(status)
}

func hasDetail(p Payload) (string, bool) {
	raw, ok := p.lookup("detail")
	if !ok {
		return "", false
	}
	var detail string
	if err := json.Unmarshal(raw, &detail); err != nil || detail == "" {
		return "", false
	}
	return detail, true
}

func hasEmail(p Payload) (string, bool) {
	if !fieldStatus(p.Status) {
		return "", false
	}
	raw, ok := p.lookup("email")
	if !ok {
		return "", false
	}
	msgs, ok := messages(raw)
	if !ok {
		return "", false
	}
	return "Email error: " + strings.Join(msgs, ", "), true
}

func hasFieldMap(p Payload) (string, bool) {
	if !fieldStatus(p.Status) {
		return "", false
	}
	return fieldMapMessage(p.Fields)
}

func hasMessageList(p Payload) (string, bool) {
	if !fieldStatus(p.Status) || p.List == nil {
		return "", false
	}
	msgs, ok := messages(p.List)
	if !ok {
		return "", false
	}
	return strings.Join(msgs, ", "), true
}

func fieldMapMessage(fields []Field) (string, bool) {
	segments := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs, ok := messages(f.Value)
		if !ok {
			continue
		}
		segments = append(segments, HumanizeField(f.Name)+": "+strings.Join(msgs, ", "))
	}
	if len(segments) == 0 {
		return "", false
	}
	return strings.Join(segments, "; "), true
}

// fieldStatus reports whether field-level payloads are read for status.
// Auth failures always use the status message.
func fieldStatus(status int) bool {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return false
	}
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}

func statusOnly(p Payload) (string, bool) {
	return statusMessage(p.Status), true
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return MsgInvalidData
	case http.StatusUnauthorized:
		return MsgUnauthorized
	case http.StatusForbidden:
		return MsgForbidden
	case http.StatusNotFound:
		return MsgNotFound
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return MsgServer
	default:
		return fmt.Sprintf("Error: %d - %s", status, msgGeneric)
	}
}

// HumanizeField turns snake_case into capitalised words: first_name becomes
// "First Name".
func HumanizeField(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// messages reads a string or a list of messages. Objects and empty values do
// not count as field messages.
func messages(raw json.RawMessage) ([]string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return nil, false
		}
		return []string{s}, true
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, false
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				out = append(out, s)
				continue
			}
			out = append(out, string(bytes.TrimSpace(item)))
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}

// decodeFields returns the top-level members of a JSON object in document
// order, or nil when body is not an object.
func decodeFields(body []byte) []Field {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		name, ok := tok.(string)
		if !ok {
			return nil
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	return fields
}

// decodeList returns body when it is a top-level JSON array.
func decodeList(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' || !json.Valid(trimmed) {
		return nil
	}
	return json.RawMessage(trimmed)
}

func hasFieldMessages(body []byte) bool {
	if _, ok := fieldMapMessage(decodeFields(body)); ok {
		return true
	}
	_, ok := messages(decodeList(body))
	return ok
}
