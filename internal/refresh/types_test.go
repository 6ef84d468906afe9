package refresh

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEntry_RoundTripPreservesUnknownFields(t *testing.T) {
	t.Parallel()
	doc := []byte(`{
		"id": "cam-7",
		"url": "https://cams.example.com/snap?id=cam-7&ts=1",
		"verificationStatus": "verified",
		"attempts": 2,
		"lastRefreshedAt": "2026-01-02T03:04:05Z",
		"location": {"lat": 59.33, "lon": 18.07},
		"operator": "metro",
		"tags": ["north", "gate"]
	}`)

	var e Entry
	require.NoError(t, json.Unmarshal(doc, &e))
	require.Equal(t, "cam-7", e.ID)
	require.Equal(t, StatusVerified, e.Status)
	require.Equal(t, 2, e.Attempts)
	require.Len(t, e.Extra, 3)

	out, err := json.Marshal(e)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	require.Equal(t, "metro", got["operator"])
	require.Equal(t, []any{"north", "gate"}, got["tags"])
	loc, ok := got["location"].(map[string]any)
	require.True(t, ok)
	require.InEpsilon(t, 59.33, loc["lat"], 1e-9)
}

func TestEntry_DefaultsToUnverified(t *testing.T) {
	t.Parallel()
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","url":"https://a.test/?ts=1"}`), &e))
	require.Equal(t, StatusUnverified, e.Status)

	out, err := json.Marshal(e)
	require.NoError(t, err)
	require.Contains(t, string(out), `"verificationStatus":"unverified"`)
	// Zero refresh time is omitted, not serialized as a bogus date.
	require.NotContains(t, string(out), "lastRefreshedAt")
}

func TestEntry_CloneIsDeep(t *testing.T) {
	t.Parallel()
	e := Entry{
		ID:    "cam-1",
		URL:   "https://a.test/?ts=1",
		Extra: map[string]json.RawMessage{"note": json.RawMessage(`"original"`)},
	}
	c := e.Clone()
	c.Extra["note"] = json.RawMessage(`"changed"`)
	require.JSONEq(t, `"original"`, string(e.Extra["note"]))
}

func TestCycleReport_Outcome(t *testing.T) {
	t.Parallel()
	require.Equal(t, "ok", CycleReport{Succeeded: 3}.Outcome())
	require.Equal(t, "partial", CycleReport{Succeeded: 1, FailedRetries: 2}.Outcome())
	require.Equal(t, "persist_failed", CycleReport{PersistError: "boom"}.Outcome())
}

func TestDomainConfig_Durations(t *testing.T) {
	t.Parallel()
	cfg := DomainConfig{RefreshIntervalSeconds: 90, RequestTimeoutSeconds: 7}
	require.Equal(t, 90*time.Second, cfg.RefreshInterval())
	require.Equal(t, 7*time.Second, cfg.RequestTimeout())
}
