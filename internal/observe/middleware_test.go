package observe

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/google/go-cmp/cmp"
)

// speechMux mimics the routes of the speech server.
func speechMux(seen *string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/speech", func(w http.ResponseWriter, r *http.Request) {
		*seen = CorrelationID(r.Context())
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("DELETE /v1/voices/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {})
	return mux
}

func spanAttr(s tracetest.SpanStub, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range s.Attributes {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestMiddleware_CorrelationID(t *testing.T) {
	const parent = "4bf92f3577b34da6a3ce929d0e0e4736"
	tests := []struct {
		name        string
		traceparent string
		want        string // empty: any freshly generated id
	}{
		{name: "new trace"},
		{name: "continued trace", traceparent: "00-" + parent + "-00f067aa0ba902b7-01", want: parent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := newTestMetrics(t)
			useTestTracer(t)
			var seen string
			h := Middleware(m)(speechMux(&seen))

			req := httptest.NewRequest(http.MethodPost, "/v1/speech", nil)
			if tc.traceparent != "" {
				req.Header.Set("traceparent", tc.traceparent)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if len(seen) != 32 {
				t.Fatalf("correlation id %q is not a trace id", seen)
			}
			if tc.want != "" && seen != tc.want {
				t.Errorf("correlation id = %q, want %q", seen, tc.want)
			}
			if got := rec.Header().Get("X-Correlation-ID"); got != seen {
				t.Errorf("X-Correlation-ID = %q, handler saw %q", got, seen)
			}
		})
	}
}

func TestMiddleware_RecordsRouteAndStatus(t *testing.T) {
	m, reader := newTestMetrics(t)
	exp := useTestTracer(t)
	var seen string
	h := Middleware(m)(speechMux(&seen))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/speech", nil))
	for _, id := range []string{"host", "narrator", "guest"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/v1/voices/"+id, nil))
	}

	met := findMetric(collect(t, reader), "routetts.http.request.duration")
	if met == nil {
		t.Fatal("request duration histogram not recorded")
	}
	counts := map[string]uint64{}
	for _, dp := range met.Data.(metricdata.Histogram[float64]).DataPoints {
		method, _ := dp.Attributes.Value("method")
		path, _ := dp.Attributes.Value("path")
		counts[method.AsString()+" "+path.AsString()] += dp.Count
	}
	want := map[string]uint64{"POST /v1/speech": 1, "DELETE /v1/voices/{id}": 3}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("series (-want +got):\n%s", diff)
	}

	spans := exp.GetSpans()
	if len(spans) != 4 {
		t.Fatalf("spans = %d, want 4", len(spans))
	}
	speech := spans[0]
	if speech.Name != "HTTP POST /v1/speech" {
		t.Errorf("span name = %q", speech.Name)
	}
	if v, _ := spanAttr(speech, "http.response.status_code"); v.AsInt64() != http.StatusBadGateway {
		t.Errorf("status attribute = %d, want 502", v.AsInt64())
	}
	if v, _ := spanAttr(spans[3], "http.route"); v.AsString() != "/v1/voices/{id}" {
		t.Errorf("route attribute = %q, want /v1/voices/{id}", v.AsString())
	}
}

func TestMiddleware_ProbesLogAtDebug(t *testing.T) {
	m, _ := newTestMetrics(t)
	useTestTracer(t)
	logs := captureLogs(t)
	var seen string
	h := Middleware(m)(speechMux(&seen))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/speech", nil))

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %d, want 2:\n%s", len(lines), logs.String())
	}
	if !strings.Contains(lines[0], "level=DEBUG") || !strings.Contains(lines[0], "route=/readyz") {
		t.Errorf("probe line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "level=INFO") || !strings.Contains(lines[1], "status=502") {
		t.Errorf("speech line = %q", lines[1])
	}
}

func TestRouteOf(t *testing.T) {
	tests := []struct {
		pattern, path, want string
	}{
		{"", "/raw", "/raw"},
		{"GET /v1/voices", "/v1/voices", "/v1/voices"},
		{"/healthz", "/healthz", "/healthz"},
	}
	for _, tc := range tests {
		r := httptest.NewRequest(http.MethodGet, tc.path, nil)
		r.Pattern = tc.pattern
		if got := routeOf(r); got != tc.want {
			t.Errorf("routeOf(pattern=%q) = %q, want %q", tc.pattern, got, tc.want)
		}
	}
}
