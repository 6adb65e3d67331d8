package commands

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
	"github.com/spf13/cobra"
)

func newListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Discover every board and print its kind, serial number and firmware",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			groups, err := discoverAll(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}

			out := cmd.OutOrStdout()
			for _, g := range groups {
				for b := range g.All() {
					fw, err := b.FirmwareVersion()
					if err != nil {
						warning(cmd.ErrOrStderr(), "%s %s: cannot read firmware version: %v", g.BoardKind().Name(), b.SerialNumber(), err)
					}
					boardLine(out, g.BoardKind().Name(), b.SerialNumber(), fw)
				}
			}

			return nil
		},
	}
}

func newSafeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "safe",
		Short: "Discover every board and make it safe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			groups, err := discoverAll(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}

			var errs []error
			for _, g := range groups {
				if err := g.MakeSafe(); err != nil {
					errs = append(errs, err)
					continue
				}
				if g.Len() > 0 {
					success(cmd.OutOrStdout(), "%d %s made safe", g.Len(), g.BoardKind().Name())
				}
			}
			if err := errors.Join(errs...); err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}

			return nil
		},
	}
}

// discoverAll discovers every board kind of the environment, in name order. Kinds the
// environment cannot discover are reported and skipped. Configured serial numbers must
// all be found.
func discoverAll(ctx context.Context, opts *options, warnings io.Writer) ([]*hal.BoardGroup[hal.Board], error) {
	kinds := opts.environment.SupportedBoards()
	slices.SortFunc(kinds, func(a, b *hal.BoardKind) int { return strings.Compare(a.Name(), b.Name()) })

	var groups []*hal.BoardGroup[hal.Board]
	for _, kind := range kinds {
		g, err := hal.GroupFor[hal.Board](ctx, opts.environment, kind)
		if errors.Is(err, errcode.Unsupported) {
			warning(warnings, "%s: %v", kind.Name(), err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := opts.cfg.CheckSerials(kind, g.Serials()); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	return groups, nil
}

// singleBoard discovers the boards of kind and picks the one with serial, or the only
// one when serial is empty.
func singleBoard[T hal.Board](ctx context.Context, opts *options, kind *hal.BoardKind, serial string) (T, error) {
	var zero T

	g, err := hal.GroupFor[T](ctx, opts.environment, kind)
	if err != nil {
		return zero, err
	}
	if err := opts.cfg.CheckSerials(kind, g.Serials()); err != nil {
		return zero, err
	}
	if serial != "" {
		return g.Get(serial)
	}

	return g.Singular()
}
