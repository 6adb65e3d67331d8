package commands

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/internal/poll"
	"github.com/spf13/cobra"
)

// controlFlags select the board a control command drives and how long the new state is
// held before the boards are made safe on exit.
type controlFlags struct {
	serial string
	hold   time.Duration
}

func (f *controlFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.serial, "serial", "s", "", "serial number of the board, required when several are connected")
	cmd.Flags().DurationVar(&f.hold, "hold", 0, "keep the new state for this long before exiting")
}

// wait holds the state until the hold time passes or ctx is done.
func (f *controlFlags) wait(ctx context.Context) error {
	return poll.Sleep(ctx, f.hold)
}

func newPowerCommand(opts *options) *cobra.Command {
	flags := &controlFlags{}
	cmd := &cobra.Command{
		Use:       "power on|off <output>",
		Short:     "Switch a power board output",
		Example:   "  robohal power on H0\n  robohal power off FIVE_VOLT --serial SRABC1",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runPower(cmd, opts, flags, args[0], args[1])
			if err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}

			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func runPower(cmd *cobra.Command, opts *options, flags *controlFlags, state, output string) error {
	var enabled bool
	switch strings.ToLower(state) {
	case "on":
		enabled = true
	case "off":
	default:
		return errcode.New(errcode.InvalidParams, "power", "state must be on or off, got %q", state)
	}
	pos, err := boards.ParsePowerOutputPosition(strings.ToUpper(output))
	if err != nil {
		return errcode.Wrap(errcode.InvalidParams, "power", err, "unknown output %q", output)
	}

	pb, err := singleBoard[*boards.PowerBoard](cmd.Context(), opts, boards.PowerBoardKind, flags.serial)
	if err != nil {
		return err
	}
	out, err := pb.Outputs().Get(pos)
	if err != nil {
		return err
	}
	if err := out.SetEnabled(enabled); err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "PowerBoard %s: output %s %s", pb.SerialNumber(), pos, strings.ToLower(state))

	return flags.wait(cmd.Context())
}

func newMotorCommand(opts *options) *cobra.Command {
	flags := &controlFlags{}
	cmd := &cobra.Command{
		Use:     "motor <index> <level|brake|coast>",
		Short:   "Set a motor board output",
		Example: "  robohal motor 0 0.5 --hold 2s\n  robohal motor 1 coast",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMotor(cmd, opts, flags, args[0], args[1]); err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}

			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func parseMotorState(s string) (component.MotorState, error) {
	switch strings.ToLower(s) {
	case "brake":
		return component.Special(component.Brake), nil
	case "coast":
		return component.Special(component.Coast), nil
	}

	level, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return component.MotorState{}, errcode.New(errcode.InvalidParams, "motor", "state must be a level in [-1, 1], brake or coast, got %q", s)
	}

	return component.Level(level)
}

func runMotor(cmd *cobra.Command, opts *options, flags *controlFlags, index, state string) error {
	i, err := parseIndex("motor", index)
	if err != nil {
		return err
	}
	st, err := parseMotorState(state)
	if err != nil {
		return err
	}

	mb, err := singleBoard[*boards.MotorBoard](cmd.Context(), opts, boards.MotorBoardKind, flags.serial)
	if err != nil {
		return err
	}
	m, err := mb.Motor(i)
	if err != nil {
		return err
	}
	if err := m.SetPower(st); err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "MotorBoard %s: motor %d set to %s", mb.SerialNumber(), i, st)

	return flags.wait(cmd.Context())
}

func newServoCommand(opts *options) *cobra.Command {
	flags := &controlFlags{}
	cmd := &cobra.Command{
		Use:     "servo <index> <position|unpowered>",
		Short:   "Set a servo board output",
		Example: "  robohal servo 3 0.5 --hold 1s\n  robohal servo 3 -- -0.5",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runServo(cmd, opts, flags, args[0], args[1]); err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}

			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func parseServoPosition(s string) (component.ServoPosition, error) {
	if strings.EqualFold(s, "unpowered") {
		return component.Unpowered, nil
	}

	pos, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return component.Unpowered, errcode.New(errcode.InvalidParams, "servo", "position must be in [-1, 1] or unpowered, got %q", s)
	}

	return component.Position(pos)
}

func runServo(cmd *cobra.Command, opts *options, flags *controlFlags, index, position string) error {
	i, err := parseIndex("servo", index)
	if err != nil {
		return err
	}
	pos, err := parseServoPosition(position)
	if err != nil {
		return err
	}

	sb, err := singleBoard[*boards.ServoBoard](cmd.Context(), opts, boards.ServoBoardKind, flags.serial)
	if err != nil {
		return err
	}
	s, err := sb.Servo(i)
	if err != nil {
		return err
	}
	if err := s.SetPosition(pos); err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "ServoBoard %s: servo %d set to %s", sb.SerialNumber(), i, pos)

	return flags.wait(cmd.Context())
}

func parseIndex(what, s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, errcode.New(errcode.InvalidParams, what, "index must be an integer, got %q", s)
	}

	return i, nil
}
