// Package fixture feeds canned trace envelopes into the inspector so
// the UI can be exercised without instrumenting a real application.
package fixture

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

var (
	demoMethods = []string{"GET", "GET", "GET", "POST", "PUT", "PATCH", "DELETE"}
	demoPaths   = []string{
		"/api/v1/users",
		"/api/v1/users/42",
		"/api/v1/orders?status=open&page=2",
		"/api/v1/search?q=widgets",
		"/health",
		"/graphql",
	}
	demoStatuses = []int{200, 200, 200, 201, 204, 301, 400, 401, 404, 500}
)

// Demo emits a synthetic envelope roughly every interval until stop is
// closed. Each trace arrives twice the way real instrumentation sends
// it: once as a sent request, then again completed a moment later.
func Demo(interval time.Duration, emit func(string), stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		id := uuid.NewString()
		method := demoMethods[rand.IntN(len(demoMethods))]
		url := "http://localhost:3000" + demoPaths[rand.IntN(len(demoPaths))]
		now := time.Now().UnixMilli()

		emit(sentEnvelope(id, method, url, now))

		status := demoStatuses[rand.IntN(len(demoStatuses))]
		duration := int64(20 + rand.IntN(900))
		done := receivedEnvelope(id, method, url, now, status, duration)

		go func() {
			t := time.NewTimer(time.Duration(duration) * time.Millisecond)
			defer t.Stop()
			select {
			case <-stop:
			case <-t.C:
				emit(done)
			}
		}()
	}
}

func sentEnvelope(id, method, url string, ts int64) string {
	return fmt.Sprintf(`{"type":"trace","data":{"id":%q,"timestamp":%d,`+
		`"serviceName":"demo","http":{"state":"sent","method":%q,"url":%q,`+
		`"requestHeaders":{"Accept":"application/json","Accept-Encoding":"gzip"},`+
		`"httpVersion":"1.1"}}}`,
		id, ts, method, url)
}

func receivedEnvelope(id, method, url string, ts int64, status int, duration int64) string {
	return fmt.Sprintf(`{"type":"trace","data":{"id":%q,"timestamp":%d,`+
		`"serviceName":"demo","http":{"state":"received","method":%q,"url":%q,`+
		`"statusCode":%d,"duration":%d,`+
		`"requestHeaders":{"Accept":"application/json","Accept-Encoding":"gzip"},`+
		`"responseHeaders":{"Content-Type":"application/json"},`+
		`"responseBody":"{\"ok\":true,\"id\":\"%s\"}",`+
		`"httpVersion":"1.1"}}}`,
		id, ts, method, url, status, duration, id)
}
