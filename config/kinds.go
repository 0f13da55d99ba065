package config

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ControlKind selects what the controller tracks. Resolved once at
// configuration load; the hot loop never compares strings.
type ControlKind int

// Supported control kinds.
const (
	ControlUnset ControlKind = iota
	ControlSetpoint
	ControlTrajectory
)

// String implements fmt.Stringer.
func (k ControlKind) String() string {
	switch k {
	case ControlSetpoint:
		return "setpoint"
	case ControlTrajectory:
		return "traj_tracking"
	default:
		return "unset"
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *ControlKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "setpoint":
		*k = ControlSetpoint
	case "traj_tracking", "trajectory":
		*k = ControlTrajectory
	default:
		return errors.Errorf("unknown control kind %q", s)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (k ControlKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// ControllerKind selects the safety constraint formulation.
type ControllerKind int

// Supported controller kinds.
const (
	ControllerUnset ControllerKind = iota
	// ControllerUnconstrained runs the tracking problem with no safety constraints.
	ControllerUnconstrained
	// ControllerDistance imposes a hard clearance constraint at every horizon
	// step (MPC-DC).
	ControllerDistance
	// ControllerBarrier imposes a discrete control barrier function decay
	// constraint at every horizon step (MPC-CBF).
	ControllerBarrier
)

// String implements fmt.Stringer.
func (k ControllerKind) String() string {
	switch k {
	case ControllerUnconstrained:
		return "unconstrained"
	case ControllerDistance:
		return "mpc-dc"
	case ControllerBarrier:
		return "mpc-cbf"
	default:
		return "unset"
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *ControllerKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "unconstrained":
		*k = ControllerUnconstrained
	case "mpc-dc", "MPC-DC":
		*k = ControllerDistance
	case "mpc-cbf", "MPC-CBF":
		*k = ControllerBarrier
	default:
		return errors.Errorf("unknown controller kind %q", s)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (k ControllerKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// TrajectoryKind selects the parametric reference family in trajectory mode.
type TrajectoryKind int

// Supported trajectory kinds.
const (
	TrajectoryUnset TrajectoryKind = iota
	TrajectoryCircular
	TrajectoryLemniscate
)

// String implements fmt.Stringer.
func (k TrajectoryKind) String() string {
	switch k {
	case TrajectoryCircular:
		return "circular"
	case TrajectoryLemniscate:
		return "lemniscate"
	default:
		return "unset"
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *TrajectoryKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "circular":
		*k = TrajectoryCircular
	case "lemniscate", "figure-eight":
		*k = TrajectoryLemniscate
	default:
		return errors.Errorf("unknown trajectory kind %q", s)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (k TrajectoryKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}
