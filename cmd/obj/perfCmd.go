package obj

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/ValentinKolb/objectis/cmd/util"
	"github.com/ValentinKolb/objectis/lib/common"
	"github.com/ValentinKolb/objectis/lib/objectis"
	"github.com/ValentinKolb/objectis/lib/query"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for objectis backends",
		Long:    util.WrapString(`Runs a fixed set of benchmarks (create, get, create-all, list, filter, collection) against the configured backend. All records written by the benchmarks are removed afterwards.`),
		Args:    cobra.NoArgs,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfRecords    = 1000
	perfRate       = 0.0
	perfSkip       = make([]string, 0)
)

// benchmark order, also used for the CSV export
var perfTests = []string{"create", "get", "create-all", "list", "filter", "collection"}

func init() {
	key := "skip"
	perfTestCmd.Flags().StringSlice(key, nil, util.WrapString("Benchmarks to skip (comma separated, e.g. list,filter)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU issuing single record operations"))
	key = "records"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of records used by the bulk, list and filter benchmarks"))
	key = "rate"
	perfTestCmd.Flags().Float64(key, 0, util.WrapString("Maximum single record operations per second (0 = unlimited)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfRecords = viper.GetInt("records")
	perfRate = viper.GetFloat64("rate")
	perfSkip = viper.GetStringSlice("skip")

	if perfRecords <= 0 {
		return fmt.Errorf("records must be positive")
	}
	return nil
}

// perfResult is one finished benchmark plus the latency distribution of its operations
type perfResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Timer
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for objectis")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Threads: %d, Records: %d, Rate: %.0f/s\n", perfNumThreads, perfRecords, perfRate)
	fmt.Println()

	fmt.Println("starting tests...")

	ctx := context.Background()
	limiter := rate.NewLimiter(rate.Inf, 1)
	if perfRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(perfRate), 1)
	}

	// fixture shared by the read benchmarks
	fixture := randomPeople(perfRecords)
	if err := objectis.CreateAll(ctx, client, fixture); err != nil {
		return fmt.Errorf("creating fixture: %w", err)
	}
	defer func() {
		if err := objectis.DeleteAll(ctx, client, fixture); err != nil {
			Logger.Warningf("(perf) - error deleting fixture: %v", err)
		}
	}()

	benchmarks := map[string]func(b *testing.B, latency gometrics.Timer){
		"create": func(b *testing.B, latency gometrics.Timer) {
			created := make(chan string, 1024)
			var ids []string
			done := make(chan struct{})
			go func() {
				for id := range created {
					ids = append(ids, id)
				}
				close(done)
			}()
			b.Cleanup(func() {
				close(created)
				<-done
				if err := objectis.DeleteAllByID[Person](ctx, client, ids...); err != nil {
					Logger.Warningf("(create) - error deleting records: %v", err)
				}
			})

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					p := randomPeople(1)[0]
					timed(ctx, limiter, latency, "create", func() error {
						return objectis.Create(ctx, client, p)
					})
					created <- p.ID
				}
			})
		},
		"get": func(b *testing.B, latency gometrics.Timer) {
			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					id := fixture[counter%len(fixture)].ID
					timed(ctx, limiter, latency, "get", func() error {
						_, err := objectis.Get[Person](ctx, client, id)
						return err
					})
					counter++
				}
			})
		},
		"create-all": func(b *testing.B, latency gometrics.Timer) {
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				batch := randomPeople(perfRecords)
				b.StartTimer()

				timed(ctx, nil, latency, "create-all", func() error {
					return objectis.CreateAll(ctx, client, batch)
				})

				b.StopTimer()
				if err := objectis.DeleteAll(ctx, client, batch); err != nil {
					Logger.Warningf("(create-all) - error deleting records: %v", err)
				}
				b.StartTimer()
			}
		},
		"list": func(b *testing.B, latency gometrics.Timer) {
			for i := 0; i < b.N; i++ {
				timed(ctx, nil, latency, "list", func() error {
					_, err := objectis.List[Person](ctx, client)
					return err
				})
			}
		},
		"filter": func(b *testing.B, latency gometrics.Timer) {
			for i := 0; i < b.N; i++ {
				timed(ctx, nil, latency, "filter", func() error {
					_, err := objectis.Filter[Person](ctx, client).
						WhereGreaterThanOrEqualTo("age", 30).
						WhereEqualTo("active", true).
						OrderBy("score", query.Descending).
						Limit(10).
						Fetch()
					return err
				})
			}
		},
		"collection": func(b *testing.B, latency gometrics.Timer) {
			col, err := objectis.Collection[Person](client, "__perf")
			if err != nil {
				b.Fatal(err)
			}
			if err := col.AddAll(ctx, fixture); err != nil {
				b.Fatal(err)
			}
			b.Cleanup(func() {
				if err := col.DeleteAll(ctx, fixture); err != nil {
					Logger.Warningf("(collection) - error clearing collection: %v", err)
				}
			})

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				timed(ctx, nil, latency, "collection", func() error {
					_, err := col.List(ctx)
					return err
				})
			}
		},
	}

	results := make(map[string]perfResult)
	for _, test := range perfTests {
		latency := gometrics.NewTimer()
		bench := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(test) {
				return
			}
			benchmarks[test](b, latency)
		})
		results[test] = perfResult{bench: bench, latency: latency}
		printResult(test, results[test])
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, conf); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// timed waits for the limiter (if any), runs fn and records its latency
func timed(ctx context.Context, limiter *rate.Limiter, latency gometrics.Timer, test string, fn func() error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			Logger.Warningf("(%s) - rate limiter: %v", test, err)
			return
		}
	}
	start := time.Now()
	if err := fn(); err != nil {
		Logger.Warningf("(%s) - %v", test, err)
	}
	latency.UpdateSince(start)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	ps := result.latency.Percentiles([]float64{0.5, 0.99})

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50 %s\tp99 %s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec, time.Duration(ps[0]), time.Duration(ps[1]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Skipped",
		"Backend", "Codec", "Compression", "Workers", "BatchThreshold", "Parallel",
		"Threads", "Records", "Rate",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, test := range perfTests {
		result, ok := results[test]
		if !ok {
			continue
		}

		var nsPerOp, opsPerSec float64
		skipped := "true"
		ps := []float64{0, 0}
		if result.bench.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
			ps = result.latency.Percentiles([]float64{0.5, 0.99})
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			skipped,
			string(config.Backend),
			config.Codec,
			config.Compression,
			strconv.Itoa(config.EffectiveWorkers()),
			strconv.Itoa(config.BatchThreshold),
			strconv.FormatBool(config.Parallel),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfRecords),
			strconv.FormatFloat(perfRate, 'f', -1, 64),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
