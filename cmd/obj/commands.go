package obj

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/ValentinKolb/objectis/cmd/util"
	"github.com/ValentinKolb/objectis/lib/objectis"
	"github.com/spf13/cobra"
)

var (
	seedCmd = &cobra.Command{
		Use:   "seed [n]",
		Short: "Creates n random Person records and prints their ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid record count '%s'", args[0])
			}
			people := randomPeople(n)
			if err := objectis.CreateAll(context.Background(), client, people); err != nil {
				return err
			}
			for _, p := range people {
				fmt.Println(p.ID)
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [id...]",
		Short: "Reads records by id (missing records are printed as null)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			people, err := objectis.GetMany[Person](context.Background(), client, args...)
			if err != nil {
				return err
			}
			return util.PrintJSON(people)
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all Person records ordered by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			people, err := objectis.List[Person](context.Background(), client)
			if err != nil {
				return err
			}
			return util.PrintJSON(people)
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [id...]",
		Short: "Deletes records by id (missing ids are ignored)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := objectis.DeleteAllByID[Person](context.Background(), client, args...); err != nil {
				return err
			}
			fmt.Printf("deleted=%d\n", len(args))
			return nil
		},
	}
	filterCmd = &cobra.Command{
		Use:   "filter",
		Short: "Queries Person records",
		Long: util.WrapString(`Loads all Person records and applies the given conditions in order, then the ordering and the window.`) + `

Examples:
  objectis obj filter --seed 100 --where 'age>=30' --where 'tags contains ops'
  objectis obj filter --seed 100 --where 'active==true' --order score:desc --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := objectis.Filter[Person](context.Background(), client)

			wheres, _ := cmd.Flags().GetStringArray("where")
			for _, expr := range wheres {
				c, err := parseCondition(expr)
				if err != nil {
					return err
				}
				q = apply(q, c)
			}

			if order, _ := cmd.Flags().GetString("order"); order != "" {
				field, dir, err := parseOrder(order)
				if err != nil {
					return err
				}
				q = q.OrderBy(field, dir)
			}

			offset, _ := cmd.Flags().GetInt("offset")
			limit, _ := cmd.Flags().GetInt("limit")
			res, err := q.Offset(offset).Limit(limit).Fetch()
			if err != nil {
				return err
			}
			return util.PrintJSON(map[string]any{
				"count":  res.Len(),
				"lastId": res.LastID,
				"items":  res.Items,
			})
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints client statistics and the Prometheus metrics of this process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.PrintJSON(client.Stats()); err != nil {
				return err
			}
			if metrics, _ := cmd.Flags().GetBool("metrics"); metrics {
				objectis.WriteMetrics(os.Stdout)
			}
			return nil
		},
	}
)

func init() {
	filterCmd.Flags().StringArray("where", nil, util.WrapString("Condition 'field op value' (ops: == != < <= > >= contains contains-any), repeatable"))
	filterCmd.Flags().String("order", "", util.WrapString("Order by a field, e.g. 'age' or 'name:desc'"))
	filterCmd.Flags().Int("limit", 0, util.WrapString("Maximum number of records (0 = all)"))
	filterCmd.Flags().Int("offset", 0, util.WrapString("Number of records to skip"))

	statsCmd.Flags().Bool("metrics", true, util.WrapString("Also print the operation counters in Prometheus text format"))
}
