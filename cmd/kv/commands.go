package kv

import (
	"context"
	"fmt"
	"sort"

	"github.com/ValentinKolb/objectis/cmd/util"
	"github.com/ValentinKolb/objectis/lib/store"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return withConn(func(ctx context.Context, conn store.IConn) error {
				resp, ok, err := conn.Get(ctx, key)
				if err != nil {
					return err
				}
				fmt.Printf("key=%s, found=%v, size=%d, resp=%q\n", key, ok, len(resp), resp)
				return nil
			})
		},
	}
	membersCmd = &cobra.Command{
		Use:   "members [key]",
		Short: "Lists the members of a set (type index or collection)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return withConn(func(ctx context.Context, conn store.IConn) error {
				members, err := conn.SMembers(ctx, key)
				if err != nil {
					return err
				}
				sort.Strings(members)
				fmt.Printf("key=%s, members=%d\n", key, len(members))
				for _, m := range members {
					fmt.Println(m)
				}
				return nil
			})
		},
	}
	isMemberCmd = &cobra.Command{
		Use:   "ismember [key] [member]",
		Short: "Checks if a set contains a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, member := args[0], args[1]
			return withConn(func(ctx context.Context, conn store.IConn) error {
				ok, err := conn.SIsMember(ctx, key, member)
				if err != nil {
					return err
				}
				fmt.Printf("key=%s, member=%s, found=%t\n", key, member, ok)
				return nil
			})
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [keys...]",
		Short: "Deletes keys of any kind",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(func(ctx context.Context, conn store.IConn) error {
				n, err := conn.Del(ctx, args...)
				if err != nil {
					return err
				}
				fmt.Printf("deleted %d of %d keys\n", n, len(args))
				return nil
			})
		},
	}
	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Removes every key of the backend database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(func(ctx context.Context, conn store.IConn) error {
				if err := conn.FlushDB(ctx); err != nil {
					return err
				}
				fmt.Println("flushed successfully")
				return nil
			})
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Shows backend and pool information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := pool.Info(context.Background())
			if err != nil {
				return err
			}
			return util.PrintJSON(map[string]any{
				"backend": info,
				"pool":    pool.Stats(),
			})
		},
	}
)
