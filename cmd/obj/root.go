package obj

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ValentinKolb/objectis/cmd/util"
	"github.com/ValentinKolb/objectis/lib/common"
	"github.com/ValentinKolb/objectis/lib/objectis"
	"github.com/ValentinKolb/objectis/lib/schema"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cmd")

// Person is the demo record type used by all object commands
type Person struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Age     int      `json:"age"`
	Email   string   `json:"email"`
	Score   float64  `json:"score"`
	Active  bool     `json:"active"`
	Tags    []string `json:"tags"`
	Friends []string `json:"friends"`
}

// personType is the key namespace of Person, independent of the Go package name
const personType = "Person"

var (
	client *objectis.Client
	conf   *common.ClientConfig

	// ObjectCommands represents the object command group
	ObjectCommands = &cobra.Command{
		Use:   "obj",
		Short: "Work with objects of the built-in Person type",
		Long: `Create, read, query and benchmark records of a built-in Person type:

  Person{id, name, age, email, score, active, tags[], friends[]}

With the memory backend all data lives only as long as the command runs;
use --seed to fill the store before the command executes.`,
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common client flags
	util.SetupClientFlags(ObjectCommands)

	key := "seed"
	ObjectCommands.PersistentFlags().Int(key, 0, util.WrapString("Create this many random Person records before running the command"))

	// Add subcommands
	ObjectCommands.AddCommand(seedCmd)
	ObjectCommands.AddCommand(getCmd)
	ObjectCommands.AddCommand(listCmd)
	ObjectCommands.AddCommand(deleteCmd)
	ObjectCommands.AddCommand(filterCmd)
	ObjectCommands.AddCommand(collectionCmd)
	ObjectCommands.AddCommand(statsCmd)
	ObjectCommands.AddCommand(perfTestCmd)
}

// setupClient connects, registers Person and seeds demo data if requested
func setupClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf = util.GetClientConfig()

	var err error
	client, err = util.OpenClient(conf)
	if err != nil {
		return err
	}

	if err := objectis.Register[Person](client, schema.WithTypeName(personType)); err != nil {
		return err
	}

	if n := viper.GetInt("seed"); n > 0 {
		start := time.Now()
		if err := objectis.CreateAll(context.Background(), client, randomPeople(n)); err != nil {
			return err
		}
		Logger.Infof("seeded %d records in %s", n, time.Since(start))
	}
	return nil
}

func closeClient(_ *cobra.Command, _ []string) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// --------------------------------------------------------------------------
// Demo Data
// --------------------------------------------------------------------------

var (
	firstNames = []string{"Ada", "Alan", "Barbara", "Claude", "Donald", "Edsger", "Grace", "John", "Ken", "Leslie", "Margaret", "Niklaus", "Rob", "Tony"}
	tagPool    = []string{"admin", "dev", "ops", "qa", "sales", "support"}
)

// randomPeople creates n records with random ids and plausible field values
func randomPeople(n int) []*Person {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	out := make([]*Person, n)
	for i := range out {
		name := firstNames[rng.Intn(len(firstNames))]
		tags := make([]string, 0, 2)
		for _, t := range tagPool {
			if rng.Intn(4) == 0 {
				tags = append(tags, t)
			}
		}
		out[i] = &Person{
			ID:     objectis.NewID(),
			Name:   fmt.Sprintf("%s %03d", name, i),
			Age:    18 + rng.Intn(60),
			Email:  fmt.Sprintf("%s.%d@example.com", name, i),
			Score:  float64(rng.Intn(1000)) / 10,
			Active: rng.Intn(3) > 0,
			Tags:   tags,
		}
	}
	return out
}
