package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
)

// Setting keys in the user_settings table.
const (
	keyVolume        = "audio.volume"
	keyBass          = "audio.bass"
	keyMid           = "audio.mid"
	keyTreble        = "audio.treble"
	keyBalance       = "audio.balance"
	keyFader         = "audio.fader"
	keyTargetTemp    = "climate.target_temp"
	keyFanSpeed      = "climate.fan_speed"
	keyAC            = "climate.ac"
	keyAuto          = "climate.auto"
	keyRecirc        = "climate.recirc"
	keyAirDirection  = "climate.air_direction"
	keyDRLMode       = "lights.drl_mode"
	keyTimeBase      = "display.time_base"
	keyVFDBrightness = "satellites.vfd_brightness"
)

// Repository loads and saves user preferences.
type Repository interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// SQLiteRepository stores preferences in the user_settings table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository over db. The user_settings
// migration must have been applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Load reads the stored preferences. Missing keys keep their default
// value; unknown keys are ignored.
//
// Returns:
//   - Settings: Defaults overlaid with stored values
//   - error: Query failure, or ErrInvalidValue for an unparsable row
func (r *SQLiteRepository) Load(ctx context.Context) (Settings, error) {
	s := Defaults()

	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM user_settings")
	if err != nil {
		return s, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return s, fmt.Errorf("scanning setting: %w", err)
		}
		if err := s.set(key, value); err != nil {
			return s, err
		}
	}
	if err := rows.Err(); err != nil {
		return s, fmt.Errorf("iterating settings: %w", err)
	}
	return s, nil
}

// Save writes every preference in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, s Settings) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		WHERE value != excluded.value
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	updated := r.now().UTC().Format(time.RFC3339)
	for _, kv := range s.pairs() {
		if _, err := stmt.ExecContext(ctx, kv[0], kv[1], updated); err != nil {
			return fmt.Errorf("saving %s: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}
	return nil
}

func (s Settings) pairs() [][2]string {
	itoa := strconv.Itoa
	btoa := strconv.FormatBool
	return [][2]string{
		{keyVolume, itoa(s.Audio.Volume)},
		{keyBass, itoa(s.Audio.Bass)},
		{keyMid, itoa(s.Audio.Mid)},
		{keyTreble, itoa(s.Audio.Treble)},
		{keyBalance, itoa(s.Audio.Balance)},
		{keyFader, itoa(s.Audio.Fader)},
		{keyTargetTemp, strconv.FormatFloat(s.Climate.TargetTemp, 'f', -1, 64)},
		{keyFanSpeed, itoa(s.Climate.FanSpeed)},
		{keyAC, btoa(s.Climate.AC)},
		{keyAuto, btoa(s.Climate.Auto)},
		{keyRecirc, btoa(s.Climate.Recirc)},
		{keyAirDirection, itoa(s.Climate.AirDirection)},
		{keyDRLMode, string(s.DRLMode)},
		{keyTimeBase, itoa(s.TimeBase)},
		{keyVFDBrightness, itoa(s.VFDBrightness)},
	}
}

func (s *Settings) set(key, value string) error {
	var err error
	switch key {
	case keyVolume:
		s.Audio.Volume, err = strconv.Atoi(value)
	case keyBass:
		s.Audio.Bass, err = strconv.Atoi(value)
	case keyMid:
		s.Audio.Mid, err = strconv.Atoi(value)
	case keyTreble:
		s.Audio.Treble, err = strconv.Atoi(value)
	case keyBalance:
		s.Audio.Balance, err = strconv.Atoi(value)
	case keyFader:
		s.Audio.Fader, err = strconv.Atoi(value)
	case keyTargetTemp:
		s.Climate.TargetTemp, err = strconv.ParseFloat(value, 64)
	case keyFanSpeed:
		s.Climate.FanSpeed, err = strconv.Atoi(value)
	case keyAC:
		s.Climate.AC, err = strconv.ParseBool(value)
	case keyAuto:
		s.Climate.Auto, err = strconv.ParseBool(value)
	case keyRecirc:
		s.Climate.Recirc, err = strconv.ParseBool(value)
	case keyAirDirection:
		s.Climate.AirDirection, err = strconv.Atoi(value)
	case keyDRLMode:
		s.DRLMode, err = state.ParseDRLMode(value)
	case keyTimeBase:
		s.TimeBase, err = strconv.Atoi(value)
	case keyVFDBrightness:
		s.VFDBrightness, err = strconv.Atoi(value)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, value, err)
	}
	return nil
}
