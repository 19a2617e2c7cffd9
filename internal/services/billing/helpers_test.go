package billing

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	principalA = "2b0c6e1a-3f4d-4e55-8a66-7b8c9d0e1f2a"
	principalB = "9a8b7c6d-5e4f-4a3b-9c2d-1e0f2a3b4c5d"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func fixedClock() time.Time { return testNow }

func envelopeBody(t *testing.T, id string, kind Kind, created time.Time, object map[string]any) []byte {
	t.Helper()
	env := map[string]any{
		"event_id": id,
		"type":     string(kind),
		"data":     map[string]any{"object": object},
	}
	if !created.IsZero() {
		env["created"] = created.Unix()
	}
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return body
}

func subscriptionPayload(ref, status string, periodEnd time.Time, principalID string) map[string]any {
	obj := map[string]any{
		"id":                   ref,
		"customer":             "cus_" + ref,
		"status":               status,
		"current_period_start": testNow.Add(-time.Hour).Unix(),
		"current_period_end":   periodEnd.Unix(),
		"cancel_at_period_end": false,
	}
	if principalID != "" {
		obj["metadata"] = map[string]any{"principal_id": principalID}
	}
	return obj
}
