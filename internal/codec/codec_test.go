package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicefit/voicefit/internal/record"
)

func TestISOMillis(t *testing.T) {
	assert.Equal(t, "1970-01-01T00:00:01.500Z", ISOMillis(1500))
	assert.Equal(t, "1970-01-01T00:00:00.000Z", ISOMillis(0))
}

// unmarshalMap parses wire bytes into a generic map for field assertions.
func unmarshalMap(t *testing.T, b []byte) map[string]any {
	t.Helper()

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))

	return m
}

func TestWorkoutLogRoundTrip(t *testing.T) {
	end := record.Int64Ptr(2500)
	w := &record.WorkoutLog{
		Envelope: record.Envelope{
			ID: "w1", UserID: "u1", CreatedAt: 1000, UpdatedAt: 1500, Synced: true,
		},
		WorkoutName: "Push",
		StartTime:   1000,
		EndTime:     end,
	}

	b, err := Encode(w)
	require.NoError(t, err)

	m := unmarshalMap(t, b)
	assert.Equal(t, "w1", m["id"])
	assert.Equal(t, "u1", m["user_id"])
	assert.Equal(t, "1970-01-01T00:00:01.000Z", m["created_at"])
	assert.Equal(t, "1970-01-01T00:00:01.500Z", m["updated_at"])
	assert.Equal(t, "1970-01-01T00:00:02.500Z", m["end_time"])

	// The local-only synced flag never crosses the wire.
	_, present := m["synced"]
	assert.False(t, present)

	got, err := Decode(record.TableWorkoutLogs, b)
	require.NoError(t, err)

	gw := got.(*record.WorkoutLog)
	assert.Equal(t, "w1", gw.ID)
	assert.Equal(t, int64(1000), gw.CreatedAt)
	assert.Equal(t, int64(1500), gw.UpdatedAt)
	assert.Equal(t, "Push", gw.WorkoutName)
	require.NotNil(t, gw.EndTime)
	assert.Equal(t, int64(2500), *gw.EndTime)
	assert.False(t, gw.Synced)
}

func TestOptionalFieldsNull(t *testing.T) {
	s := &record.Set{
		Envelope:     record.Envelope{ID: "s1", UserID: "u1", CreatedAt: 1, UpdatedAt: 1},
		WorkoutLogID: "w1",
		ExerciseID:   "ex1",
		ExerciseName: "Bench Press",
		Weight:       100,
		Reps:         5,
	}

	b, err := Encode(s)
	require.NoError(t, err)

	// Absent optionals serialize as explicit nulls.
	m := unmarshalMap(t, b)
	rpe, present := m["rpe"]
	assert.True(t, present)
	assert.Nil(t, rpe)

	got, err := Decode(record.TableSets, b)
	require.NoError(t, err)

	gs := got.(*record.Set)
	assert.Nil(t, gs.RPE)
	assert.Nil(t, gs.VoiceCommandID)
}

func TestRunRouteJSON(t *testing.T) {
	run := &record.Run{
		Envelope: record.Envelope{ID: "r1", UserID: "u1", CreatedAt: 2000, UpdatedAt: 2000},
		Route:    `{"points":[{"lat":60.17,"lng":24.94}]}`,
	}

	b, err := Encode(run)
	require.NoError(t, err)

	// Locally a string, on the wire a native JSON object.
	m := unmarshalMap(t, b)
	route, ok := m["route"].(map[string]any)
	require.True(t, ok, "route should be an object on the wire")
	assert.Contains(t, route, "points")

	got, err := Decode(record.TableRuns, b)
	require.NoError(t, err)

	gr := got.(*record.Run)
	assert.JSONEq(t, run.Route, gr.Route)
}

func TestRunRouteAbsent(t *testing.T) {
	run := &record.Run{
		Envelope: record.Envelope{ID: "r1", UserID: "u1", CreatedAt: 1, UpdatedAt: 1},
	}

	b, err := Encode(run)
	require.NoError(t, err)

	m := unmarshalMap(t, b)
	route, present := m["route"]
	assert.True(t, present)
	assert.Nil(t, route)

	got, err := Decode(record.TableRuns, b)
	require.NoError(t, err)
	assert.Empty(t, got.(*record.Run).Route)
}

func TestRunRouteInvalidJSONIsPoison(t *testing.T) {
	run := &record.Run{
		Envelope: record.Envelope{ID: "r1", UserID: "u1", CreatedAt: 1, UpdatedAt: 1},
		Route:    "{not json",
	}

	_, err := Encode(run)
	require.Error(t, err)
}

func TestMessageDataRoundTrip(t *testing.T) {
	msg := &record.Message{
		Envelope:    record.Envelope{ID: "m1", UserID: "u1", CreatedAt: 1, UpdatedAt: 1},
		Text:        "logged 5x100kg bench",
		Sender:      record.SenderCoach,
		MessageType: "set_confirmation",
		Data:        `{"set_id":"s1"}`,
	}

	b, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(record.TableMessages, b)
	require.NoError(t, err)

	gm := got.(*record.Message)
	assert.Equal(t, record.SenderCoach, gm.Sender)
	assert.JSONEq(t, msg.Data, gm.Data)
}

func TestReadinessScoreRoundTrip(t *testing.T) {
	rs := &record.ReadinessScore{
		Envelope:     record.Envelope{ID: "rs1", UserID: "u1", CreatedAt: 1, UpdatedAt: 1},
		Date:         86400000,
		Score:        73,
		Type:         "daily",
		Emoji:        record.StringPtr("💪"),
		SleepQuality: record.Int64Ptr(4),
	}

	b, err := Encode(rs)
	require.NoError(t, err)

	got, err := Decode(record.TableReadinessScores, b)
	require.NoError(t, err)

	g := got.(*record.ReadinessScore)
	assert.Equal(t, int64(73), g.Score)
	require.NotNil(t, g.Emoji)
	assert.Equal(t, "💪", *g.Emoji)
	require.NotNil(t, g.SleepQuality)
	assert.Equal(t, int64(4), *g.SleepQuality)
	assert.Nil(t, g.Soreness)
}

func TestPRRecordRoundTrip(t *testing.T) {
	pr := &record.PRRecord{
		Envelope:     record.Envelope{ID: "p1", UserID: "u1", CreatedAt: 1, UpdatedAt: 1},
		ExerciseID:   "ex1",
		ExerciseName: "Deadlift",
		OneRM:        300,
		Weight:       280,
		Reps:         2,
		WorkoutLogID: "w1",
		AchievedAt:   5000,
	}

	b, err := Encode(pr)
	require.NoError(t, err)

	m := unmarshalMap(t, b)
	assert.Equal(t, "1970-01-01T00:00:05.000Z", m["achieved_at"])

	got, err := Decode(record.TablePRHistory, b)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.(*record.PRRecord).AchievedAt)
}

func TestDecodeTimezoneOffset(t *testing.T) {
	// The remote may return offsets instead of Z; both parse to the same ms.
	raw := []byte(`{
		"id": "w1", "user_id": "u1",
		"created_at": "1970-01-01T02:00:01.000+02:00",
		"updated_at": "1970-01-01T02:00:01.000+02:00",
		"workout_name": "Pull", "start_time": "1970-01-01T00:00:00.000Z",
		"end_time": null
	}`)

	got, err := Decode(record.TableWorkoutLogs, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.(*record.WorkoutLog).CreatedAt)
}

func TestDecodeMalformedRow(t *testing.T) {
	_, err := Decode(record.TableWorkoutLogs, []byte(`{"created_at": 12345}`))
	require.Error(t, err)
}

func TestUnknownTable(t *testing.T) {
	_, err := For("bogus")
	require.Error(t, err)
}
