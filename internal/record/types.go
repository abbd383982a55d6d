// Package record defines the syncable fitness entities and their shared
// envelope. All timestamps are Unix milliseconds; conversion to wire formats
// happens at the codec boundary only. Child rows reference parent ids by
// plain string foreign key — referential integrity is not enforced here
// because parents are always created before children within one session.
package record

import (
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Table names in declared sync order: parents before children.
const (
	TableWorkoutLogs     = "workout_logs"
	TableSets            = "sets"
	TableRuns            = "runs"
	TableMessages        = "messages"
	TableReadinessScores = "readiness_scores"
	TablePRHistory       = "pr_history"
)

// Tables returns the registered tables in sync order. The slice is freshly
// allocated on each call so callers may not mutate shared state.
func Tables() []string {
	return []string{
		TableWorkoutLogs,
		TableSets,
		TableRuns,
		TableMessages,
		TableReadinessScores,
		TablePRHistory,
	}
}

// Envelope is the common header every syncable row carries.
// ID is generated locally and accepted verbatim by the remote store.
// Synced is local-only bookkeeping and never crosses the wire.
type Envelope struct {
	ID        string
	UserID    string
	CreatedAt int64 // Unix ms, set once at creation
	UpdatedAt int64 // Unix ms, bumped on every mutation and accepted remote apply
	Synced    bool
}

// Row is implemented by all six entity types.
type Row interface {
	Env() *Envelope
	Table() string
}

// Touch bumps updated_at and marks the row dirty. Call after any field
// mutation so the uploader picks the row up on the next cycle.
func (e *Envelope) Touch(c Clock) {
	e.UpdatedAt = c.Now()
	e.Synced = false
}

// newEnvelope stamps a fresh envelope: new UUID, created_at = updated_at = now,
// unsynced.
func newEnvelope(c Clock, userID string) Envelope {
	now := c.Now()

	return Envelope{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Synced:    false,
	}
}

// NormalizeName NFC-normalizes user- and voice-derived display names so
// comparisons behave identically across platforms that decompose differently.
func NormalizeName(s string) string {
	return norm.NFC.String(s)
}

// MessageSender identifies who authored a chat message.
type MessageSender string

const (
	SenderUser  MessageSender = "user"
	SenderCoach MessageSender = "coach"
)

// WorkoutLog is one strength-training session.
type WorkoutLog struct {
	Envelope
	WorkoutName string
	StartTime   int64
	EndTime     *int64
}

func (r *WorkoutLog) Env() *Envelope { return &r.Envelope }
func (r *WorkoutLog) Table() string  { return TableWorkoutLogs }

// NewWorkoutLog creates an unsynced workout log starting at startTime.
func NewWorkoutLog(c Clock, userID, name string, startTime int64) *WorkoutLog {
	return &WorkoutLog{
		Envelope:    newEnvelope(c, userID),
		WorkoutName: NormalizeName(name),
		StartTime:   startTime,
	}
}

// Set is a single exercise set inside a workout.
type Set struct {
	Envelope
	WorkoutLogID   string
	ExerciseID     string
	ExerciseName   string
	Weight         float64
	Reps           int64
	RPE            *float64
	VoiceCommandID *string
}

func (r *Set) Env() *Envelope { return &r.Envelope }
func (r *Set) Table() string  { return TableSets }

// NewSet creates an unsynced set belonging to the given workout log.
func NewSet(c Clock, userID, workoutLogID, exerciseID, exerciseName string, weight float64, reps int64) *Set {
	return &Set{
		Envelope:     newEnvelope(c, userID),
		WorkoutLogID: workoutLogID,
		ExerciseID:   exerciseID,
		ExerciseName: NormalizeName(exerciseName),
		Weight:       weight,
		Reps:         reps,
	}
}

// Run is one recorded outdoor or treadmill run. Route holds the GPS trace as
// a compact JSON string locally; the codec converts it to a native JSON value
// on the wire.
type Run struct {
	Envelope
	StartTime         int64
	EndTime           int64
	Distance          float64
	Duration          float64
	Pace              float64
	AvgSpeed          float64
	Calories          float64
	ElevationGain     float64
	ElevationLoss     float64
	GradeAdjustedPace *float64
	GradePercent      float64
	TerrainDifficulty string
	Route             string // JSON text; empty means absent
	WorkoutType       *string
	WorkoutName       *string
}

func (r *Run) Env() *Envelope { return &r.Envelope }
func (r *Run) Table() string  { return TableRuns }

// NewRun creates an unsynced run covering [startTime, endTime].
func NewRun(c Clock, userID string, startTime, endTime int64) *Run {
	return &Run{
		Envelope:  newEnvelope(c, userID),
		StartTime: startTime,
		EndTime:   endTime,
	}
}

// Message is one entry in the coaching conversation. Data carries
// message-type-specific payload as JSON text, same convention as Run.Route.
type Message struct {
	Envelope
	Text        string
	Sender      MessageSender
	MessageType string
	Data        string // JSON text; empty means absent
}

func (r *Message) Env() *Envelope { return &r.Envelope }
func (r *Message) Table() string  { return TableMessages }

// NewMessage creates an unsynced conversation message.
func NewMessage(c Clock, userID, text string, sender MessageSender, messageType string) *Message {
	return &Message{
		Envelope:    newEnvelope(c, userID),
		Text:        text,
		Sender:      sender,
		MessageType: messageType,
	}
}

// ReadinessScore is a daily self-reported readiness check-in (0..100).
type ReadinessScore struct {
	Envelope
	Date         int64
	Score        int64
	Type         string
	Emoji        *string
	SleepQuality *int64
	Soreness     *int64
	Stress       *int64
	Energy       *int64
	Notes        *string
}

func (r *ReadinessScore) Env() *Envelope { return &r.Envelope }
func (r *ReadinessScore) Table() string  { return TableReadinessScores }

// NewReadinessScore creates an unsynced readiness entry for the given day.
func NewReadinessScore(c Clock, userID string, date, score int64, scoreType string) *ReadinessScore {
	return &ReadinessScore{
		Envelope: newEnvelope(c, userID),
		Date:     date,
		Score:    score,
		Type:     scoreType,
	}
}

// PRRecord is one personal-record achievement for an exercise.
type PRRecord struct {
	Envelope
	ExerciseID   string
	ExerciseName string
	OneRM        float64
	Weight       float64
	Reps         int64
	WorkoutLogID string
	AchievedAt   int64
}

func (r *PRRecord) Env() *Envelope { return &r.Envelope }
func (r *PRRecord) Table() string  { return TablePRHistory }

// NewPRRecord creates an unsynced personal-record entry achieved now.
func NewPRRecord(c Clock, userID, exerciseID, exerciseName string, oneRM, weight float64, reps int64, workoutLogID string) *PRRecord {
	env := newEnvelope(c, userID)

	return &PRRecord{
		Envelope:     env,
		ExerciseID:   exerciseID,
		ExerciseName: NormalizeName(exerciseName),
		OneRM:        oneRM,
		Weight:       weight,
		Reps:         reps,
		WorkoutLogID: workoutLogID,
		AchievedAt:   env.CreatedAt,
	}
}

// Int64Ptr returns a pointer to v. Used for nullable columns.
func Int64Ptr(v int64) *int64 { return &v }

// Float64Ptr returns a pointer to v. Used for nullable columns.
func Float64Ptr(v float64) *float64 { return &v }

// StringPtr returns a pointer to v. Used for nullable columns.
func StringPtr(v string) *string { return &v }
