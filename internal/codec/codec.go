package codec

import (
	"encoding/json"
	"fmt"

	"github.com/voicefit/voicefit/internal/record"
)

// Codec is an encode/decode pair for one table.
type Codec struct {
	// Encode serializes a local row to the remote JSON shape.
	Encode func(record.Row) ([]byte, error)
	// Decode parses one remote JSON row into a local row. The returned row's
	// Synced flag is false; the downloader decides what to set it to.
	Decode func([]byte) (record.Row, error)
}

// registry maps table names to their codecs.
var registry = map[string]Codec{
	record.TableWorkoutLogs:     {Encode: encodeWorkoutLog, Decode: decodeWorkoutLog},
	record.TableSets:            {Encode: encodeSet, Decode: decodeSet},
	record.TableRuns:            {Encode: encodeRun, Decode: decodeRun},
	record.TableMessages:        {Encode: encodeMessage, Decode: decodeMessage},
	record.TableReadinessScores: {Encode: encodeReadinessScore, Decode: decodeReadinessScore},
	record.TablePRHistory:       {Encode: encodePRRecord, Decode: decodePRRecord},
}

// For returns the codec for a table name.
func For(table string) (Codec, error) {
	c, ok := registry[table]
	if !ok {
		return Codec{}, fmt.Errorf("codec: no codec registered for table %q", table)
	}

	return c, nil
}

// Encode serializes row for the wire using its table's codec.
func Encode(row record.Row) ([]byte, error) {
	c, err := For(row.Table())
	if err != nil {
		return nil, err
	}

	return c.Encode(row)
}

// Decode parses one remote row for the given table.
func Decode(table string, raw []byte) (record.Row, error) {
	c, err := For(table)
	if err != nil {
		return nil, err
	}

	return c.Decode(raw)
}

// envelopeWire carries the common header columns. Embedded by every table's
// wire struct. The local-only synced flag never appears here.
type envelopeWire struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	CreatedAt isoTime `json:"created_at"`
	UpdatedAt isoTime `json:"updated_at"`
}

func envToWire(e *record.Envelope) envelopeWire {
	return envelopeWire{
		ID:        e.ID,
		UserID:    e.UserID,
		CreatedAt: isoTime(e.CreatedAt),
		UpdatedAt: isoTime(e.UpdatedAt),
	}
}

func (w envelopeWire) toEnv() record.Envelope {
	return record.Envelope{
		ID:        w.ID,
		UserID:    w.UserID,
		CreatedAt: int64(w.CreatedAt),
		UpdatedAt: int64(w.UpdatedAt),
	}
}

// --- workout_logs ---

type workoutLogWire struct {
	envelopeWire
	WorkoutName string   `json:"workout_name"`
	StartTime   isoTime  `json:"start_time"`
	EndTime     *isoTime `json:"end_time"`
}

func encodeWorkoutLog(row record.Row) ([]byte, error) {
	r, ok := row.(*record.WorkoutLog)
	if !ok {
		return nil, fmt.Errorf("codec: workout_logs: unexpected row type %T", row)
	}

	return json.Marshal(workoutLogWire{
		envelopeWire: envToWire(&r.Envelope),
		WorkoutName:  r.WorkoutName,
		StartTime:    isoTime(r.StartTime),
		EndTime:      isoPtr(r.EndTime),
	})
}

func decodeWorkoutLog(raw []byte) (record.Row, error) {
	var w workoutLogWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("codec: workout_logs: %w", err)
	}

	return &record.WorkoutLog{
		Envelope:    w.toEnv(),
		WorkoutName: w.WorkoutName,
		StartTime:   int64(w.StartTime),
		EndTime:     msPtr(w.EndTime),
	}, nil
}

// --- sets ---

type setWire struct {
	envelopeWire
	WorkoutLogID   string   `json:"workout_log_id"`
	ExerciseID     string   `json:"exercise_id"`
	ExerciseName   string   `json:"exercise_name"`
	Weight         float64  `json:"weight"`
	Reps           int64    `json:"reps"`
	RPE            *float64 `json:"rpe"`
	VoiceCommandID *string  `json:"voice_command_id"`
}

func encodeSet(row record.Row) ([]byte, error) {
	r, ok := row.(*record.Set)
	if !ok {
		return nil, fmt.Errorf("codec: sets: unexpected row type %T", row)
	}

	return json.Marshal(setWire{
		envelopeWire:   envToWire(&r.Envelope),
		WorkoutLogID:   r.WorkoutLogID,
		ExerciseID:     r.ExerciseID,
		ExerciseName:   r.ExerciseName,
		Weight:         r.Weight,
		Reps:           r.Reps,
		RPE:            r.RPE,
		VoiceCommandID: r.VoiceCommandID,
	})
}

func decodeSet(raw []byte) (record.Row, error) {
	var w setWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("codec: sets: %w", err)
	}

	return &record.Set{
		Envelope:       w.toEnv(),
		WorkoutLogID:   w.WorkoutLogID,
		ExerciseID:     w.ExerciseID,
		ExerciseName:   w.ExerciseName,
		Weight:         w.Weight,
		Reps:           w.Reps,
		RPE:            w.RPE,
		VoiceCommandID: w.VoiceCommandID,
	}, nil
}

// --- runs ---

type runWire struct {
	envelopeWire
	StartTime         isoTime  `json:"start_time"`
	EndTime           isoTime  `json:"end_time"`
	Distance          float64  `json:"distance"`
	Duration          float64  `json:"duration"`
	Pace              float64  `json:"pace"`
	AvgSpeed          float64  `json:"avg_speed"`
	Calories          float64  `json:"calories"`
	ElevationGain     float64  `json:"elevation_gain"`
	ElevationLoss     float64  `json:"elevation_loss"`
	GradeAdjustedPace *float64 `json:"grade_adjusted_pace"`
	GradePercent      float64  `json:"grade_percent"`
	TerrainDifficulty string   `json:"terrain_difficulty"`
	Route             jsonText `json:"route"`
	WorkoutType       *string  `json:"workout_type"`
	WorkoutName       *string  `json:"workout_name"`
}

func encodeRun(row record.Row) ([]byte, error) {
	r, ok := row.(*record.Run)
	if !ok {
		return nil, fmt.Errorf("codec: runs: unexpected row type %T", row)
	}

	return json.Marshal(runWire{
		envelopeWire:      envToWire(&r.Envelope),
		StartTime:         isoTime(r.StartTime),
		EndTime:           isoTime(r.EndTime),
		Distance:          r.Distance,
		Duration:          r.Duration,
		Pace:              r.Pace,
		AvgSpeed:          r.AvgSpeed,
		Calories:          r.Calories,
		ElevationGain:     r.ElevationGain,
		ElevationLoss:     r.ElevationLoss,
		GradeAdjustedPace: r.GradeAdjustedPace,
		GradePercent:      r.GradePercent,
		TerrainDifficulty: r.TerrainDifficulty,
		Route:             jsonText(r.Route),
		WorkoutType:       r.WorkoutType,
		WorkoutName:       r.WorkoutName,
	})
}

func decodeRun(raw []byte) (record.Row, error) {
	var w runWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("codec: runs: %w", err)
	}

	return &record.Run{
		Envelope:          w.toEnv(),
		StartTime:         int64(w.StartTime),
		EndTime:           int64(w.EndTime),
		Distance:          w.Distance,
		Duration:          w.Duration,
		Pace:              w.Pace,
		AvgSpeed:          w.AvgSpeed,
		Calories:          w.Calories,
		ElevationGain:     w.ElevationGain,
		ElevationLoss:     w.ElevationLoss,
		GradeAdjustedPace: w.GradeAdjustedPace,
		GradePercent:      w.GradePercent,
		TerrainDifficulty: w.TerrainDifficulty,
		Route:             string(w.Route),
		WorkoutType:       w.WorkoutType,
		WorkoutName:       w.WorkoutName,
	}, nil
}

// --- messages ---

type messageWire struct {
	envelopeWire
	Text        string   `json:"text"`
	Sender      string   `json:"sender"`
	MessageType string   `json:"message_type"`
	Data        jsonText `json:"data"`
}

func encodeMessage(row record.Row) ([]byte, error) {
	r, ok := row.(*record.Message)
	if !ok {
		return nil, fmt.Errorf("codec: messages: unexpected row type %T", row)
	}

	return json.Marshal(messageWire{
		envelopeWire: envToWire(&r.Envelope),
		Text:         r.Text,
		Sender:       string(r.Sender),
		MessageType:  r.MessageType,
		Data:         jsonText(r.Data),
	})
}

func decodeMessage(raw []byte) (record.Row, error) {
	var w messageWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("codec: messages: %w", err)
	}

	return &record.Message{
		Envelope:    w.toEnv(),
		Text:        w.Text,
		Sender:      record.MessageSender(w.Sender),
		MessageType: w.MessageType,
		Data:        string(w.Data),
	}, nil
}

// --- readiness_scores ---

type readinessScoreWire struct {
	envelopeWire
	Date         isoTime `json:"date"`
	Score        int64   `json:"score"`
	Type         string  `json:"type"`
	Emoji        *string `json:"emoji"`
	SleepQuality *int64  `json:"sleep_quality"`
	Soreness     *int64  `json:"soreness"`
	Stress       *int64  `json:"stress"`
	Energy       *int64  `json:"energy"`
	Notes        *string `json:"notes"`
}

func encodeReadinessScore(row record.Row) ([]byte, error) {
	r, ok := row.(*record.ReadinessScore)
	if !ok {
		return nil, fmt.Errorf("codec: readiness_scores: unexpected row type %T", row)
	}

	return json.Marshal(readinessScoreWire{
		envelopeWire: envToWire(&r.Envelope),
		Date:         isoTime(r.Date),
		Score:        r.Score,
		Type:         r.Type,
		Emoji:        r.Emoji,
		SleepQuality: r.SleepQuality,
		Soreness:     r.Soreness,
		Stress:       r.Stress,
		Energy:       r.Energy,
		Notes:        r.Notes,
	})
}

func decodeReadinessScore(raw []byte) (record.Row, error) {
	var w readinessScoreWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("codec: readiness_scores: %w", err)
	}

	return &record.ReadinessScore{
		Envelope:     w.toEnv(),
		Date:         int64(w.Date),
		Score:        w.Score,
		Type:         w.Type,
		Emoji:        w.Emoji,
		SleepQuality: w.SleepQuality,
		Soreness:     w.Soreness,
		Stress:       w.Stress,
		Energy:       w.Energy,
		Notes:        w.Notes,
	}, nil
}

// --- pr_history ---

type prRecordWire struct {
	envelopeWire
	ExerciseID   string  `json:"exercise_id"`
	ExerciseName string  `json:"exercise_name"`
	OneRM        float64 `json:"one_rm"`
	Weight       float64 `json:"weight"`
	Reps         int64   `json:"reps"`
	WorkoutLogID string  `json:"workout_log_id"`
	AchievedAt   isoTime `json:"achieved_at"`
}

func encodePRRecord(row record.Row) ([]byte, error) {
	r, ok := row.(*record.PRRecord)
	if !ok {
		return nil, fmt.Errorf("codec: pr_history: unexpected row type %T", row)
	}

	return json.Marshal(prRecordWire{
		envelopeWire: envToWire(&r.Envelope),
		ExerciseID:   r.ExerciseID,
		ExerciseName: r.ExerciseName,
		OneRM:        r.OneRM,
		Weight:       r.Weight,
		Reps:         r.Reps,
		WorkoutLogID: r.WorkoutLogID,
		AchievedAt:   isoTime(r.AchievedAt),
	})
}

func decodePRRecord(raw []byte) (record.Row, error) {
	var w prRecordWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("codec: pr_history: %w", err)
	}

	return &record.PRRecord{
		Envelope:     w.toEnv(),
		ExerciseID:   w.ExerciseID,
		ExerciseName: w.ExerciseName,
		OneRM:        w.OneRM,
		Weight:       w.Weight,
		Reps:         w.Reps,
		WorkoutLogID: w.WorkoutLogID,
		AchievedAt:   int64(w.AchievedAt),
	}, nil
}
