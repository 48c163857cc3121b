package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sssctl/sssnss"
)

const (
	limitFlag = "limit"
	gidFlag   = "gid"

	initialArenaSize = 1024
	maxArenaSize     = 1 << 20
)

// withArena runs fn with an arena, doubling it for as long as fn reports
// ERANGE, the way C callers of getgrnam_r size their buffers.
func withArena(fn func(arena *sssnss.Arena) error) error {
	for size := initialArenaSize; ; size *= 2 {
		err := fn(sssnss.NewArena(make([]byte, size)))
		if !errors.Is(err, syscall.ERANGE) || size >= maxArenaSize {
			return err
		}
	}
}

func newGroupCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "group NAME|GID...",
		Short: "Look up groups by name or id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			defer client.Close()
			return lookupGroups(cmd.Context(), client, cmd.OutOrStdout(), args)
		},
	}
}

// lookupGroups prints every key that resolves and, like getent, fails with
// the last error once all keys were tried.
func lookupGroups(ctx context.Context, client *sssnss.Client, out io.Writer, keys []string) error {
	var lastErr error
	for _, key := range keys {
		err := withArena(func(arena *sssnss.Arena) error {
			var (
				group *sssnss.Group
				err   error
			)
			if gid, perr := strconv.ParseUint(key, 10, 32); perr == nil {
				group, err = client.GetGrGid(ctx, sssnss.Gid(gid), arena)
			} else {
				group, err = client.GetGrNam(ctx, key, arena)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, group)
			return err
		})
		if err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func newGroupsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List every group known to the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			defer client.Close()
			return listGroups(cmd.Context(), client, cmd.OutOrStdout())
		},
	}
}

func listGroups(ctx context.Context, client *sssnss.Client, out io.Writer) error {
	if err := client.SetGrEnt(ctx); err != nil {
		return err
	}
	for {
		err := withArena(func(arena *sssnss.Arena) error {
			group, err := client.GetGrEnt(ctx, arena)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, group)
			return err
		})
		if sssnss.StatusOf(err) == sssnss.StatusNotFound {
			break
		}
		if err != nil {
			_ = client.EndGrEnt(ctx)
			return err
		}
	}
	return client.EndGrEnt(ctx)
}

func newInitGroupsCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "initgroups USER",
		Short: "List the ids of the groups a user is a member of",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			defer client.Close()

			limit, _ := cmd.Flags().GetInt(limitFlag)
			var gids []sssnss.Gid
			if cmd.Flags().Changed(gidFlag) {
				gid, _ := cmd.Flags().GetUint32(gidFlag)
				gids = append(gids, sssnss.Gid(gid))
			}
			return initGroups(cmd.Context(), client, cmd.OutOrStdout(), args[0], gids, limit)
		},
	}

	flags := cmd.Flags()
	flags.Int(limitFlag, 0, "the maximum number of group ids to return (0 for no limit)")
	flags.Uint32(gidFlag, 0, "a group id to put first in the list, usually the user's primary group")
	return cmd
}

func initGroups(ctx context.Context, client *sssnss.Client, out io.Writer, user string, base []sssnss.Gid, limit int) error {
	list := sssnss.NewGidList(len(base))
	list.Start = copy(list.Groups, base)

	if _, err := client.InitGroupsDyn(ctx, user, list, limit); err != nil {
		return err
	}

	ids := make([]string, 0, list.Start)
	for _, gid := range list.Gids() {
		ids = append(ids, strconv.FormatUint(uint64(gid), 10))
	}
	_, err := fmt.Fprintf(out, "%s: %s\n", user, strings.Join(ids, " "))
	return err
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and the protocol it speaks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "sss-getent %s (nss protocol %d)\n", sssnss.Version(), sssnss.ProtocolVersion)
			return err
		},
	}
}
