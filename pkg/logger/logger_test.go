package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_JSONOutputCarriesServiceAndComponent(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var buf bytes.Buffer
	Init(Options{Level: "debug", Output: &buf, Service: "structo-api"})

	log := Component("auth")
	log.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["service"] != "structo-api" {
		t.Fatalf("service = %v", entry["service"])
	}
	if entry["component"] != "auth" {
		t.Fatalf("component = %v", entry["component"])
	}
	if entry["message"] != "hello" {
		t.Fatalf("message = %v", entry["message"])
	}
}

func TestInit_OnlyFirstCallApplies(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var first, second bytes.Buffer
	Init(Options{Output: &first})
	Init(Options{Output: &second})

	l := Get()
	l.Info().Msg("x")
	if first.Len() == 0 || second.Len() != 0 {
		t.Fatalf("expected output only on the first writer")
	}
}

func TestGet_PanicsBeforeInit(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	_ = Get()
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext_CarriesRequestID(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("bare context must not yield a logger")
	}

	var buf bytes.Buffer
	ctx := WithRequest(context.Background(), zerolog.New(&buf), "req-42")

	l, ok := FromContext(ctx)
	if !ok {
		t.Fatalf("expected a request logger")
	}
	l.Warn().Msg("slow")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "req-42" {
		t.Fatalf("request_id = %v", entry["request_id"])
	}
}

func TestInit_PrettyOmitsCaller(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var buf bytes.Buffer
	Init(Options{Output: &buf, Pretty: true})
	l := Get()
	l.Info().Msg("hi")

	if bytes.Contains(buf.Bytes(), []byte("logger_test.go")) {
		t.Fatalf("console output should not carry the caller: %q", buf.String())
	}
}
