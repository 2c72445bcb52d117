package jsonrpcid

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind tags which JSON-RPC id variant a value holds.
type Kind uint8

const (
	// Invalid marks the zero value of ID: no id was present on the message.
	Invalid Kind = iota
	Integer
	Float
	String
)

// ID is a JSON-RPC 2.0 request id. The wire format allows a string, a
// number with no fractional part, or a number with one; two ids are equal
// only if both their Kind and value agree, so 7 and "7" are distinct ids.
type ID struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
}

// Equal reports whether id and other name the same JSON-RPC id.
func (id ID) Equal(other ID) bool {
	if id.Kind != other.Kind {
		return false
	}
	switch id.Kind {
	case Integer:
		return id.Int == other.Int
	case Float:
		return id.Float == other.Float
	case String:
		return id.Str == other.Str
	default:
		return false
	}
}

// Valid reports whether id carries an actual id value.
func (id ID) Valid() bool {
	return id.Kind != Invalid
}

// String renders the id the way it would appear inside a JSON-RPC message,
// useful for log lines.
func (id ID) String() string {
	switch id.Kind {
	case Integer:
		return strconv.FormatInt(id.Int, 10)
	case Float:
		return strconv.FormatFloat(id.Float, 'g', -1, 64)
	case String:
		return strconv.Quote(id.Str)
	default:
		return "<none>"
	}
}

// MarshalJSON renders the id back into its original JSON shape.
func (id ID) MarshalJSON() ([]byte, error) {
	switch id.Kind {
	case Integer:
		return []byte(strconv.FormatInt(id.Int, 10)), nil
	case Float:
		return []byte(strconv.FormatFloat(id.Float, 'g', -1, 64)), nil
	case String:
		return json.Marshal(id.Str)
	default:
		return []byte("null"), nil
	}
}

// FromRaw parses a raw JSON id token (the bytes of the "id" member as they
// appear on the wire) into an ID. ok is false for a JSON null or empty
// input, matching the "id absent" case.
func FromRaw(raw json.RawMessage) (id ID, ok bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ID{}, false
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return ID{}, false
		}
		return ID{Kind: String, Str: str}, true
	}
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ID{}, false
		}
		return ID{Kind: Float, Float: f}, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return ID{}, false
		}
		return ID{Kind: Float, Float: f}, true
	}
	return ID{Kind: Integer, Int: n}, true
}

// FromInt builds a reserved integer id, used by the discovery handshake.
func FromInt(n int64) ID {
	return ID{Kind: Integer, Int: n}
}

// envelope mirrors only the fields needed to pull the id and method off a
// JSON-RPC message without committing to the full shape of its params or
// result.
type envelope struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// ExtractFromMessage parses line as a JSON object and returns its id (if
// any) and method name (empty for responses). ok is false if line is not a
// JSON object at all.
func ExtractFromMessage(line []byte) (id ID, method string, ok bool) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return ID{}, "", false
	}
	parsedID, hasID := FromRaw(env.ID)
	if hasID {
		id = parsedID
	}
	return id, env.Method, true
}
