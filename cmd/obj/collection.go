package obj

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/objectis/cmd/util"
	"github.com/ValentinKolb/objectis/lib/objectis"
	"github.com/spf13/cobra"
)

var (
	collectionCmd = &cobra.Command{
		Use:   "collection",
		Short: "Manage named collections of Person records",
	}
	collectionAddCmd = &cobra.Command{
		Use:   "add [name] [id...]",
		Short: "Adds record ids to a collection",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCollection(args[0], func(ctx context.Context, col *objectis.CollectionOf[Person]) error {
				people := make([]*Person, len(args)-1)
				for i, id := range args[1:] {
					people[i] = &Person{ID: id}
				}
				if err := col.AddAll(ctx, people); err != nil {
					return err
				}
				fmt.Printf("collection=%s, added=%d\n", col.Name(), len(people))
				return nil
			})
		},
	}
	collectionRemoveCmd = &cobra.Command{
		Use:   "remove [name] [id...]",
		Short: "Removes record ids from a collection (the records are kept)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCollection(args[0], func(ctx context.Context, col *objectis.CollectionOf[Person]) error {
				if err := col.DeleteAllByID(ctx, args[1:]...); err != nil {
					return err
				}
				fmt.Printf("collection=%s, removed=%d\n", col.Name(), len(args)-1)
				return nil
			})
		},
	}
	collectionListCmd = &cobra.Command{
		Use:   "list [name]",
		Short: "Prints the records of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCollection(args[0], func(ctx context.Context, col *objectis.CollectionOf[Person]) error {
				if idsOnly, _ := cmd.Flags().GetBool("ids"); idsOnly {
					ids, err := col.IDs(ctx)
					if err != nil {
						return err
					}
					return util.PrintJSON(ids)
				}
				people, err := col.List(ctx)
				if err != nil {
					return err
				}
				return util.PrintJSON(people)
			})
		},
	}
	collectionContainsCmd = &cobra.Command{
		Use:   "contains [name] [id]",
		Short: "Checks whether a collection contains a record id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCollection(args[0], func(ctx context.Context, col *objectis.CollectionOf[Person]) error {
				ok, err := col.ContainsID(ctx, args[1])
				if err != nil {
					return err
				}
				fmt.Printf("collection=%s, id=%s, member=%v\n", col.Name(), args[1], ok)
				return nil
			})
		},
	}
)

func init() {
	collectionListCmd.Flags().Bool("ids", false, util.WrapString("Print only the member ids"))

	collectionCmd.AddCommand(collectionAddCmd)
	collectionCmd.AddCommand(collectionRemoveCmd)
	collectionCmd.AddCommand(collectionListCmd)
	collectionCmd.AddCommand(collectionContainsCmd)
}

// withCollection opens the named Person collection and runs fn on it
func withCollection(name string, fn func(ctx context.Context, col *objectis.CollectionOf[Person]) error) error {
	col, err := objectis.Collection[Person](client, name)
	if err != nil {
		return err
	}
	return fn(context.Background(), col)
}
