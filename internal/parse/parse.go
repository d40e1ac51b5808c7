// Package parse converts one JSON envelope received over the wire into
// a normalized payload. Parsing is deliberately forgiving: once the
// mandatory id and url are present, every other field degrades to its
// zero value instead of failing the frame.
package parse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/FormidableLabs/envy-tui/internal/trace"
)

var (
	ErrUnknownType = errors.New("unrecognized envelope type")
	ErrMissingID   = errors.New("trace envelope missing data.id")
	ErrMissingURL  = errors.New("trace envelope missing data.http.url")
)

// Payload is what one well-formed frame normalizes to: either a trace
// or a connection-status notification.
type Payload interface{ payload() }

// TracePayload wraps a normalized trace record.
type TracePayload struct {
	Trace *trace.Trace
}

// ConnectionsPayload reports how many producer clients are connected.
type ConnectionsPayload struct {
	Clients int
}

func (TracePayload) payload()       {}
func (ConnectionsPayload) payload() {}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type rawTrace struct {
	ID          string          `json:"id"`
	Timestamp   json.RawMessage `json:"timestamp"`
	ServiceName string          `json:"serviceName"`
	HTTP        *rawHTTP        `json:"http"`
}

type rawHTTP struct {
	State         string          `json:"state"`
	Method        string          `json:"method"`
	HTTPVersion   json.RawMessage `json:"httpVersion"`
	Host          string          `json:"host"`
	Port          json.RawMessage `json:"port"`
	Path          string          `json:"path"`
	URL           string          `json:"url"`
	StatusCode    json.RawMessage `json:"statusCode"`
	StatusMessage string          `json:"statusMessage"`
	Duration      json.RawMessage `json:"duration"`
	Timings       json.RawMessage `json:"timings"`
	ReqHeaders    json.RawMessage `json:"requestHeaders"`
	RespHeaders   json.RawMessage `json:"responseHeaders"`
	RequestBody   *string         `json:"requestBody"`
	ResponseBody  *string         `json:"responseBody"`
}

// Frame parses one raw text frame. Frames with an unknown type, or
// trace frames missing id or url, are rejected; the caller drops the
// frame and keeps going.
func Frame(raw string) (Payload, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case "trace":
		return parseTrace(raw, env.Data)
	case "connections":
		return parseConnections(env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func parseTrace(raw string, data json.RawMessage) (Payload, error) {
	var rt rawTrace
	if err := json.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("decode trace data: %w", err)
	}
	if rt.ID == "" {
		return nil, ErrMissingID
	}
	if rt.HTTP == nil || rt.HTTP.URL == "" {
		return nil, ErrMissingURL
	}
	h := rt.HTTP

	t := &trace.Trace{
		ID:          rt.ID,
		ServiceName: rt.ServiceName,
		Method:      strings.ToUpper(h.Method),
		State:       trace.ParseState(h.State),
		URI:         h.URL,
		Host:        h.Host,
		Path:        h.Path,
		Raw:         raw,
	}

	// Unparsable timestamps fall back to 0 instead of dropping the frame.
	if ts, ok := asInt64(rt.Timestamp); ok {
		t.Timestamp = ts
	}
	if v, ok := asInt64(h.Duration); ok {
		t.Duration = &v
	}
	if v, ok := asInt64(h.StatusCode); ok {
		code := int(v)
		t.Status = &code
	}
	if v, ok := asInt64(h.Port); ok {
		port := int(v)
		t.Port = &port
	}
	if v, ok := asVersion(h.HTTPVersion); ok {
		t.HTTPVersion = v
	}
	if len(h.Timings) > 0 {
		var tm struct {
			Blocked float64 `json:"blocked"`
			DNS     float64 `json:"dns"`
			Connect float64 `json:"connect"`
			Send    float64 `json:"send"`
			Wait    float64 `json:"wait"`
			Receive float64 `json:"receive"`
			SSL     float64 `json:"ssl"`
		}
		if err := json.Unmarshal(h.Timings, &tm); err == nil {
			t.Timings = &trace.Timings{
				Blocked: tm.Blocked,
				DNS:     tm.DNS,
				Connect: tm.Connect,
				Send:    tm.Send,
				Wait:    tm.Wait,
				Receive: tm.Receive,
				SSL:     tm.SSL,
			}
		}
	}

	t.RequestHeaders = parseHeaders(h.ReqHeaders)
	t.ResponseHeaders = parseHeaders(h.RespHeaders)

	if h.RequestBody != nil {
		t.RequestBody = *h.RequestBody
		t.PrettyRequestBody, t.PrettyRequestBodyLines = PrettyBody(*h.RequestBody)
	}
	if h.ResponseBody != nil {
		t.ResponseBody = *h.ResponseBody
		t.PrettyResponseBody, t.PrettyResponseBodyLines = PrettyBody(*h.ResponseBody)
	}

	return TracePayload{Trace: t}, nil
}

// parseConnections accepts either a bare count or an object carrying
// one. A malformed data section counts as zero clients.
func parseConnections(data json.RawMessage) (Payload, error) {
	if n, ok := asInt64(data); ok {
		return ConnectionsPayload{Clients: int(n)}, nil
	}
	var obj struct {
		Connections int `json:"connections"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return ConnectionsPayload{}, nil
	}
	return ConnectionsPayload{Clients: obj.Connections}, nil
}

// parseHeaders walks a JSON object token-by-token so the multimap
// preserves the order names appear in on the wire. An array value
// yields one entry per string element; a scalar string yields one
// entry; any other value type for a header is skipped.
func parseHeaders(raw json.RawMessage) trace.Headers {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	var headers trace.Headers
	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return headers
		}
		name, ok := nameTok.(string)
		if !ok {
			return headers
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return headers
		}

		var single string
		if json.Unmarshal(value, &single) == nil {
			headers.Add(name, single)
			continue
		}
		var many []json.RawMessage
		if json.Unmarshal(value, &many) == nil {
			for _, el := range many {
				var s string
				if json.Unmarshal(el, &s) == nil {
					headers.Add(name, s)
				}
			}
		}
	}
	return headers
}

// PrettyBody reindents a JSON body and counts its lines. Bodies that
// are not valid JSON come back empty with a zero count; the raw body
// remains available on the trace.
func PrettyBody(body string) (string, int) {
	if body == "" {
		return "", 0
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(body), "", "  "); err != nil {
		return "", 0
	}
	pretty := buf.String()
	return pretty, strings.Count(pretty, "\n") + 1
}

// asInt64 accepts a JSON number or a numeric string. Floats truncate.
func asInt64(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

// asVersion normalizes the httpVersion field. Producers send either
// the full "HTTP/1.1" form or the bare "1.1"; anything that is not a
// string is treated as absent.
func asVersion(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	if s == "" {
		return "", false
	}
	if strings.HasPrefix(s, "HTTP/") {
		return s, true
	}
	return "HTTP/" + s, true
}
