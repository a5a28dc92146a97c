/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package beaconprocessor

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Receiver is one physical scanner with its doorway role and the bias offset
// computed by the offline calibration procedure.
type Receiver struct {
	ID     string       `koanf:"id"`
	Role   ReceiverRole `koanf:"role"`
	BiasDb float64      `koanf:"bias_db"`
}

// Thresholds is the tuning set consumed by the preprocessor and the FSM.
// All second-valued fields drive time-window comparisons.
type Thresholds struct {
	FloorDbm  float64 `koanf:"floor_dbm"`
	ActiveDbm float64 `koanf:"active_dbm"`
	EnergyDbm float64 `koanf:"energy_dbm"`

	EnterWindowS    float64 `koanf:"enter_window_s"`
	ExitWindowS     float64 `koanf:"exit_window_s"`
	DominanceEnterS float64 `koanf:"dominance_enter_s"`
	DominanceExitS  float64 `koanf:"dominance_exit_s"`
	IdleEnteredS    float64 `koanf:"idle_entered_s"`
	IdleExitedS     float64 `koanf:"idle_exited_s"`
	WeakTimeoutS    float64 `koanf:"weak_timeout_s"`
	PresenceWindowS float64 `koanf:"presence_window_s"`
}

// CalibrationProfile is the output of the external calibration tool. Loaded
// once at startup and immutable for the process lifetime; re-calibration
// requires a restart.
type CalibrationProfile struct {
	Receivers  []Receiver `koanf:"receivers"`
	Thresholds Thresholds `koanf:"thresholds"`
}

// LoadCalibration reads a calibration profile from a YAML file. Any load or
// validation failure is fatal to the caller: running with undefined
// thresholds would silently degrade direction accuracy.
func LoadCalibration(path string) (*CalibrationProfile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "unable to read calibration file %s", path)
	}

	var profile CalibrationProfile
	if err := k.UnmarshalWithConf("", &profile, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrap(err, "unable to parse calibration profile")
	}

	if err := profile.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid calibration profile")
	}
	return &profile, nil
}

// Validate checks the profile for the failure modes that must refuse startup.
func (p *CalibrationProfile) Validate() error {
	if len(p.Receivers) == 0 {
		return errors.New("no receivers configured")
	}

	seen := make(map[string]bool)
	roles := make(map[ReceiverRole]int)
	for _, r := range p.Receivers {
		if r.ID == "" {
			return errors.New("receiver with empty id")
		}
		if seen[r.ID] {
			return errors.Errorf("duplicate receiver id %q", r.ID)
		}
		seen[r.ID] = true

		switch r.Role {
		case RoleNear, RoleFar, RoleSole:
			roles[r.Role]++
		default:
			return errors.Errorf("receiver %q has unknown role %q", r.ID, r.Role)
		}
	}

	switch {
	case roles[RoleSole] == 1 && roles[RoleNear] == 0 && roles[RoleFar] == 0:
		// single-receiver deployment
	case roles[RoleSole] == 0 && roles[RoleNear] == 1 && roles[RoleFar] == 1:
		// dual-receiver deployment
	default:
		return errors.Errorf("receiver roles must be exactly {near, far} or {sole}, got near=%d far=%d sole=%d",
			roles[RoleNear], roles[RoleFar], roles[RoleSole])
	}

	t := p.Thresholds
	if t.FloorDbm >= 0 || t.ActiveDbm >= 0 || t.EnergyDbm >= 0 {
		return errors.New("dBm thresholds must be negative")
	}
	if !(t.FloorDbm <= t.ActiveDbm && t.ActiveDbm <= t.EnergyDbm) {
		return errors.Errorf("dBm thresholds must be ordered floor <= active <= energy, got %.1f / %.1f / %.1f",
			t.FloorDbm, t.ActiveDbm, t.EnergyDbm)
	}

	windows := map[string]float64{
		"enter_window_s":    t.EnterWindowS,
		"exit_window_s":     t.ExitWindowS,
		"dominance_enter_s": t.DominanceEnterS,
		"dominance_exit_s":  t.DominanceExitS,
		"idle_entered_s":    t.IdleEnteredS,
		"idle_exited_s":     t.IdleExitedS,
		"weak_timeout_s":    t.WeakTimeoutS,
		"presence_window_s": t.PresenceWindowS,
	}
	for name, v := range windows {
		if v <= 0 {
			return errors.Errorf("%s must be positive, got %v", name, v)
		}
	}
	if t.ExitWindowS < t.EnterWindowS {
		return errors.New("exit_window_s must not be smaller than enter_window_s")
	}
	return nil
}

// SoleMode reports whether the profile describes a single-receiver
// deployment.
func (p *CalibrationProfile) SoleMode() bool {
	return len(p.Receivers) == 1 && p.Receivers[0].Role == RoleSole
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (t Thresholds) enterWindow() time.Duration    { return seconds(t.EnterWindowS) }
func (t Thresholds) exitWindow() time.Duration     { return seconds(t.ExitWindowS) }
func (t Thresholds) dominanceEnter() time.Duration { return seconds(t.DominanceEnterS) }
func (t Thresholds) dominanceExit() time.Duration  { return seconds(t.DominanceExitS) }
func (t Thresholds) idleEntered() time.Duration    { return seconds(t.IdleEnteredS) }
func (t Thresholds) idleExited() time.Duration     { return seconds(t.IdleExitedS) }
func (t Thresholds) weakTimeout() time.Duration    { return seconds(t.WeakTimeoutS) }
func (t Thresholds) presenceWindow() time.Duration { return seconds(t.PresenceWindowS) }
