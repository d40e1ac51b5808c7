// Package export renders captured traces back into runnable commands.
package export

import (
	"strings"

	"github.com/FormidableLabs/envy-tui/internal/trace"
)

// Curl renders the request half of a trace as a curl invocation that
// replays it. Content-Length is dropped since curl recomputes it, and
// --compressed is appended when the client advertised Accept-Encoding
// so the replay negotiates the same response encoding.
func Curl(t *trace.Trace) string {
	var b strings.Builder
	b.WriteString("curl '")
	b.WriteString(t.URI)
	b.WriteString("' -X ")
	b.WriteString(t.Method)

	compressed := false
	for _, h := range t.RequestHeaders {
		if strings.EqualFold(h.Name, "Content-Length") {
			continue
		}
		if strings.EqualFold(h.Name, "Accept-Encoding") {
			compressed = true
		}
		b.WriteString(" -H \"")
		b.WriteString(escape(h.Name))
		b.WriteString(": ")
		b.WriteString(escape(h.Value))
		b.WriteString("\"")
	}

	if t.RequestBody != "" {
		b.WriteString(" --data-binary '")
		b.WriteString(t.RequestBody)
		b.WriteString("'")
	}
	if compressed {
		b.WriteString(" --compressed")
	}
	return b.String()
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escape(s string) string { return escaper.Replace(s) }
