// Package archive stores finished runs and their unit events in SQL
// through gorm: SQLite by default, Postgres for postgres:// DSNs.
package archive

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run is one archived simulation.
type Run struct {
	ID                string `gorm:"primaryKey;size:36"`
	Name              string `gorm:"size:127"`
	StartedAt         time.Time
	FinishedAt        time.Time
	Frames            int
	Reason            string `gorm:"size:32;index"`
	Arena             bool
	Waves             int
	FriendlySurvivors int
	EnemySurvivors    int
	Result            string `gorm:"size:32"`
	FriendlyCrowns    int
	EnemyCrowns       int
	Settings          datatypes.JSON
	FinalSnapshot     datatypes.JSON
	Events            []Event `gorm:"constraint:OnDelete:CASCADE"`
}

// Event is one unit event of a run.
type Event struct {
	ID     uint   `gorm:"primaryKey"`
	RunID  string `gorm:"size:36;index"`
	Frame  int    `gorm:"index"`
	Type   string `gorm:"size:24;index"`
	Unit   string `gorm:"size:16"`
	Target string `gorm:"size:24"`
	Amount int
}

// Models lists every table, in migration order.
var Models = []interface{}{&Run{}, &Event{}}

// Settings is the subset of engine options kept with a run.
type Settings struct {
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	MaxFrames        int     `json:"maxFrames"`
	Structures       bool    `json:"structures"`
	DynamicObstacles bool    `json:"dynamicObstacles"`
	PathSmoothing    bool    `json:"pathSmoothing"`
	FriendlyDoctrine string  `json:"friendlyDoctrine"`
	EnemyDoctrine    string  `json:"enemyDoctrine"`
	Units            int     `json:"units"`
	Waves            int     `json:"waves"`
}

// Store is an open archive database.
type Store struct {
	DB  *gorm.DB
	log zerolog.Logger
}

// Open connects to dsn and migrates the schema. An empty dsn opens a
// private in-memory SQLite database.
func Open(dsn string, log zerolog.Logger) (*Store, error) {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
	var (
		db  *gorm.DB
		err error
	)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err = gorm.Open(postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), cfg)
	case dsn == "":
		db, err = gorm.Open(sqlite.Open("file::memory:"), cfg)
	default:
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	if db.Dialector.Name() == "sqlite" {
		if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
			return nil, fmt.Errorf("archive: pragma: %w", err)
		}
		// one connection keeps an in-memory database alive and shared
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	log.Info().Str("driver", db.Dialector.Name()).Msg("archive ready")
	return &Store{DB: db, log: log}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SettingsOf extracts the archived settings from engine options.
func SettingsOf(o sim.Options) Settings {
	return Settings{
		Width:            o.Width,
		Height:           o.Height,
		MaxFrames:        o.MaxFrames,
		Structures:       o.Structures,
		DynamicObstacles: o.DynamicObstacles,
		PathSmoothing:    o.PathSmoothing,
		FriendlyDoctrine: o.FriendlyDoctrine.String(),
		EnemyDoctrine:    o.EnemyDoctrine.String(),
		Units:            len(o.Units),
		Waves:            len(o.Waves),
	}
}

// Save writes run and its events in one transaction.
func (s *Store) Save(run *Run) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		events := run.Events
		run.Events = nil
		defer func() { run.Events = events }()
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		for i := range events {
			events[i].RunID = run.ID
		}
		return tx.CreateInBatches(&events, 500).Error
	})
	if err != nil {
		return fmt.Errorf("archive: save run %s: %w", run.ID, err)
	}
	s.log.Info().Str("run", run.ID).Int("frames", run.Frames).Str("reason", run.Reason).Int("events", len(run.Events)).Msg("run archived")
	return nil
}

// Get loads a run without its events.
func (s *Store) Get(id uuid.UUID) (*Run, error) {
	var run Run
	if err := s.DB.First(&run, "id = ?", id.String()).Error; err != nil {
		return nil, fmt.Errorf("archive: get %s: %w", id, err)
	}
	return &run, nil
}

// Recent lists the latest runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	var runs []Run
	if err := s.DB.Order("finished_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("archive: recent: %w", err)
	}
	return runs, nil
}

// Events returns a run's events in frame order, optionally of one type.
func (s *Store) Events(id uuid.UUID, typ string) ([]Event, error) {
	q := s.DB.Where("run_id = ?", id.String())
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	var events []Event
	if err := q.Order("frame, id").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("archive: events %s: %w", id, err)
	}
	return events, nil
}

// ReasonCount is one row of Outcomes.
type ReasonCount struct {
	Reason string
	Runs   int64
}

// Outcomes counts runs per completion reason.
func (s *Store) Outcomes() ([]ReasonCount, error) {
	var out []ReasonCount
	err := s.DB.Model(&Run{}).Select("reason, count(*) AS runs").Group("reason").Order("reason").Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("archive: outcomes: %w", err)
	}
	return out, nil
}

// Delete removes a run and its events.
func (s *Store) Delete(id uuid.UUID) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id.String()).Delete(&Event{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Run{ID: id.String()}).Error
	})
	if err != nil {
		return fmt.Errorf("archive: delete %s: %w", id, err)
	}
	return nil
}

// Snapshot decodes the stored final frame.
func (r *Run) Snapshot() (*sim.FrameSnapshot, error) {
	if len(r.FinalSnapshot) == 0 {
		return nil, nil
	}
	var snap sim.FrameSnapshot
	if err := json.Unmarshal(r.FinalSnapshot, &snap); err != nil {
		return nil, fmt.Errorf("archive: decode snapshot of %s: %w", r.ID, err)
	}
	return &snap, nil
}

// Recorder is a sim.Callbacks sink that collects a run for the archive.
// It keeps only the latest frame and the unit events.
type Recorder struct {
	sim.NopCallbacks

	run    Run
	last   *sim.FrameSnapshot
	reason sim.CompletionReason
}

// NewRecorder starts collecting a run for e.
func NewRecorder(e *sim.Engine, name string) *Recorder {
	o := e.Options()
	settings, _ := json.Marshal(SettingsOf(o))
	return &Recorder{run: Run{
		ID:        e.RunID().String(),
		Name:      name,
		StartedAt: time.Now().UTC(),
		Arena:     o.Structures,
		Settings:  datatypes.JSON(settings),
	}}
}

// OnFrameGenerated implements sim.Callbacks.
func (r *Recorder) OnFrameGenerated(f *sim.FrameSnapshot) { r.last = f }

// OnUnitEvent implements sim.Callbacks.
func (r *Recorder) OnUnitEvent(e sim.UnitEvent) {
	ev := Event{
		Frame:  e.Frame,
		Type:   e.Type.String(),
		Unit:   unitLabel(e.Unit.Faction, e.Unit.ID),
		Amount: e.Amount,
	}
	switch e.Target.Kind {
	case sim.TargetUnit:
		ev.Target = unitLabel(e.Target.Faction, e.Target.ID)
	case sim.TargetStructure:
		ev.Target = fmt.Sprintf("%s#%d", e.Target.Faction, e.Target.ID)
	}
	r.run.Events = append(r.run.Events, ev)
}

// OnSimulationComplete implements sim.Callbacks.
func (r *Recorder) OnSimulationComplete(_ int, reason sim.CompletionReason) {
	r.reason = reason
}

// Run finalizes and returns the collected run. It may be called before
// completion; the reason is then "none".
func (r *Recorder) Run() (*Run, error) {
	run := r.run
	run.FinishedAt = time.Now().UTC()
	run.Reason = r.reason.String()
	if r.last != nil {
		snap := r.last
		run.Frames = snap.Frame + 1
		run.Waves = snap.CurrentWave
		run.FriendlySurvivors = snap.LivingFriendlies
		run.EnemySurvivors = snap.LivingEnemies
		if snap.Session != nil {
			run.Result = snap.Session.Result.String()
			run.FriendlyCrowns = snap.Session.FriendlyCrowns
			run.EnemyCrowns = snap.Session.EnemyCrowns
		}
		b, err := json.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("archive: encode snapshot: %w", err)
		}
		run.FinalSnapshot = datatypes.JSON(b)
	}
	return &run, nil
}

func unitLabel(f sim.Faction, id int) string {
	if f == sim.Friendly {
		return fmt.Sprintf("F%d", id)
	}
	return fmt.Sprintf("E%d", id)
}
