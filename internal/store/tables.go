package store

import (
	"fmt"
	"strings"

	"github.com/voicefit/voicefit/internal/record"
)

// envelopeCols are the header columns every table starts with. Column order
// here is the scan/args contract for all tableDefs.
var envelopeCols = []string{"id", "user_id", "created_at", "updated_at", "synced"}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// tableDef binds one table's payload columns to typed scan/args functions.
// The envelope is handled generically; only the payload differs per table.
type tableDef struct {
	name string
	cols []string // payload columns, in scan/args order

	// scan reads one full row (envelope then payload) from s.
	scan func(s rowScanner) (record.Row, error)
	// args returns the full argument list (envelope then payload) for writes.
	args func(r record.Row) ([]any, error)
}

// tableDefs lists all syncable tables. Order is not significant here — the
// sync engine owns table ordering; the store just needs the set.
var tableDefs = []tableDef{
	{
		name: record.TableWorkoutLogs,
		cols: []string{"workout_name", "start_time", "end_time"},
		scan: scanWorkoutLog,
		args: argsWorkoutLog,
	},
	{
		name: record.TableSets,
		cols: []string{"workout_log_id", "exercise_id", "exercise_name", "weight", "reps", "rpe", "voice_command_id"},
		scan: scanSet,
		args: argsSet,
	},
	{
		name: record.TableRuns,
		cols: []string{
			"start_time", "end_time", "distance", "duration", "pace", "avg_speed",
			"calories", "elevation_gain", "elevation_loss", "grade_adjusted_pace",
			"grade_percent", "terrain_difficulty", "route", "workout_type", "workout_name",
		},
		scan: scanRun,
		args: argsRun,
	},
	{
		name: record.TableMessages,
		cols: []string{"text", "sender", "message_type", "data"},
		scan: scanMessage,
		args: argsMessage,
	},
	{
		name: record.TableReadinessScores,
		cols: []string{"date", "score", "type", "emoji", "sleep_quality", "soreness", "stress", "energy", "notes"},
		scan: scanReadinessScore,
		args: argsReadinessScore,
	},
	{
		name: record.TablePRHistory,
		cols: []string{"exercise_id", "exercise_name", "one_rm", "weight", "reps", "workout_log_id", "achieved_at"},
		scan: scanPRRecord,
		args: argsPRRecord,
	},
}

// allCols returns the comma-joined column list for SELECT and INSERT.
func (d *tableDef) allCols() string {
	return strings.Join(append(append([]string{}, envelopeCols...), d.cols...), ", ")
}

// placeholders returns "?, ?, ..." matching the full column count.
func (d *tableDef) placeholders() string {
	n := len(envelopeCols) + len(d.cols)
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// upsertAssignments returns the DO UPDATE SET clause. The id is the conflict
// key and is never reassigned.
func (d *tableDef) upsertAssignments() string {
	var b strings.Builder

	for _, c := range append(envelopeCols[1:], d.cols...) {
		if b.Len() > 0 {
			b.WriteString(", ")
		}

		fmt.Fprintf(&b, "%s = excluded.%s", c, c)
	}

	return b.String()
}

func (d *tableDef) getSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", d.allCols(), d.name)
}

func (d *tableDef) insertSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.name, d.allCols(), d.placeholders())
}

func (d *tableDef) upsertSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		d.name, d.allCols(), d.placeholders(), d.upsertAssignments())
}

func (d *tableDef) unsyncedSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE synced = 0", d.allCols(), d.name)
}

func (d *tableDef) countUnsyncedSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE synced = 0", d.name)
}

func (d *tableDef) markSyncedSQL() string {
	return fmt.Sprintf("UPDATE %s SET synced = 1 WHERE id = ?", d.name)
}

func (d *tableDef) maxUpdatedSQL() string {
	return fmt.Sprintf("SELECT COALESCE(MAX(updated_at), 0) FROM %s WHERE user_id = ?", d.name)
}

func (d *tableDef) maxCreatedSQL() string {
	return fmt.Sprintf("SELECT COALESCE(MAX(created_at), 0) FROM %s WHERE user_id = ?", d.name)
}

// envArgs returns the envelope argument prefix for writes.
func envArgs(e *record.Envelope) []any {
	return []any{e.ID, e.UserID, e.CreatedAt, e.UpdatedAt, e.Synced}
}

// --- per-table scan/args pairs ---

func scanWorkoutLog(s rowScanner) (record.Row, error) {
	r := &record.WorkoutLog{}

	err := s.Scan(
		&r.ID, &r.UserID, &r.CreatedAt, &r.UpdatedAt, &r.Synced,
		&r.WorkoutName, &r.StartTime, &r.EndTime,
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func argsWorkoutLog(row record.Row) ([]any, error) {
	r, ok := row.(*record.WorkoutLog)
	if !ok {
		return nil, fmt.Errorf("store: workout_logs: unexpected row type %T", row)
	}

	return append(envArgs(&r.Envelope), r.WorkoutName, r.StartTime, r.EndTime), nil
}

func scanSet(s rowScanner) (record.Row, error) {
	r := &record.Set{}

	err := s.Scan(
		&r.ID, &r.UserID, &r.CreatedAt, &r.UpdatedAt, &r.Synced,
		&r.WorkoutLogID, &r.ExerciseID, &r.ExerciseName,
		&r.Weight, &r.Reps, &r.RPE, &r.VoiceCommandID,
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func argsSet(row record.Row) ([]any, error) {
	r, ok := row.(*record.Set)
	if !ok {
		return nil, fmt.Errorf("store: sets: unexpected row type %T", row)
	}

	return append(envArgs(&r.Envelope),
		r.WorkoutLogID, r.ExerciseID, r.ExerciseName,
		r.Weight, r.Reps, r.RPE, r.VoiceCommandID,
	), nil
}

func scanRun(s rowScanner) (record.Row, error) {
	r := &record.Run{}

	err := s.Scan(
		&r.ID, &r.UserID, &r.CreatedAt, &r.UpdatedAt, &r.Synced,
		&r.StartTime, &r.EndTime, &r.Distance, &r.Duration, &r.Pace, &r.AvgSpeed,
		&r.Calories, &r.ElevationGain, &r.ElevationLoss, &r.GradeAdjustedPace,
		&r.GradePercent, &r.TerrainDifficulty, &r.Route, &r.WorkoutType, &r.WorkoutName,
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func argsRun(row record.Row) ([]any, error) {
	r, ok := row.(*record.Run)
	if !ok {
		return nil, fmt.Errorf("store: runs: unexpected row type %T", row)
	}

	return append(envArgs(&r.Envelope),
		r.StartTime, r.EndTime, r.Distance, r.Duration, r.Pace, r.AvgSpeed,
		r.Calories, r.ElevationGain, r.ElevationLoss, r.GradeAdjustedPace,
		r.GradePercent, r.TerrainDifficulty, r.Route, r.WorkoutType, r.WorkoutName,
	), nil
}

func scanMessage(s rowScanner) (record.Row, error) {
	r := &record.Message{}

	err := s.Scan(
		&r.ID, &r.UserID, &r.CreatedAt, &r.UpdatedAt, &r.Synced,
		&r.Text, &r.Sender, &r.MessageType, &r.Data,
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func argsMessage(row record.Row) ([]any, error) {
	r, ok := row.(*record.Message)
	if !ok {
		return nil, fmt.Errorf("store: messages: unexpected row type %T", row)
	}

	return append(envArgs(&r.Envelope), r.Text, string(r.Sender), r.MessageType, r.Data), nil
}

func scanReadinessScore(s rowScanner) (record.Row, error) {
	r := &record.ReadinessScore{}

	err := s.Scan(
		&r.ID, &r.UserID, &r.CreatedAt, &r.UpdatedAt, &r.Synced,
		&r.Date, &r.Score, &r.Type, &r.Emoji,
		&r.SleepQuality, &r.Soreness, &r.Stress, &r.Energy, &r.Notes,
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func argsReadinessScore(row record.Row) ([]any, error) {
	r, ok := row.(*record.ReadinessScore)
	if !ok {
		return nil, fmt.Errorf("store: readiness_scores: unexpected row type %T", row)
	}

	return append(envArgs(&r.Envelope),
		r.Date, r.Score, r.Type, r.Emoji,
		r.SleepQuality, r.Soreness, r.Stress, r.Energy, r.Notes,
	), nil
}

func scanPRRecord(s rowScanner) (record.Row, error) {
	r := &record.PRRecord{}

	err := s.Scan(
		&r.ID, &r.UserID, &r.CreatedAt, &r.UpdatedAt, &r.Synced,
		&r.ExerciseID, &r.ExerciseName, &r.OneRM, &r.Weight, &r.Reps,
		&r.WorkoutLogID, &r.AchievedAt,
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func argsPRRecord(row record.Row) ([]any, error) {
	r, ok := row.(*record.PRRecord)
	if !ok {
		return nil, fmt.Errorf("store: pr_history: unexpected row type %T", row)
	}

	return append(envArgs(&r.Envelope),
		r.ExerciseID, r.ExerciseName, r.OneRM, r.Weight, r.Reps,
		r.WorkoutLogID, r.AchievedAt,
	), nil
}
