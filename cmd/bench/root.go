package bench

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/itemstore/cmd/util"
	"github.com/ValentinKolb/itemstore/lib/index"
	"github.com/ValentinKolb/itemstore/lib/index/engines"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	BenchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Benchmark the id index implementations",
		Long:    "Runs put, get, remove and mixed workloads against every selected index implementation and prints the results",
		RunE:    run,
		PreRunE: processBenchConfig,
	}
	benchImpls       = index.Implementations
	benchConf        = index.DefaultConfig()
	benchNumThreads  = 10
	benchKeySpread   = 100_000
	benchSkip        = make([]string, 0)
	benchWorkloads   = []string{"put", "get", "get-not", "put-remove", "mixed"}
)

func init() {
	key := "impl"
	BenchCmd.Flags().String(key, "", util.WrapString("Comma separated list of index implementations to benchmark (default: all)"))
	key = "magnitude"
	BenchCmd.Flags().Int(key, 16, util.WrapString("The bucket array of the index has 2<<magnitude buckets"))
	key = "parallelism"
	BenchCmd.Flags().Int(key, 8, util.WrapString("(striped-linked) The index uses 2<<parallelism locks"))
	key = "shards"
	BenchCmd.Flags().Int(key, 0, util.WrapString("(sharded-native) The number of shards, 0 uses the number of CPUs"))
	key = "skip"
	BenchCmd.Flags().String(key, "", util.WrapString(fmt.Sprintf("Workloads to skip (comma separated - any of %s)", strings.Join(benchWorkloads, ","))))
	key = "threads"
	BenchCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU to use for the benchmark"))
	key = "keys"
	BenchCmd.Flags().Int(key, 100_000, util.WrapString("How many different keys to use for the workloads"))
	key = "csv"
	BenchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	benchImpls = index.Implementations
	if impls := viper.GetString("impl"); impls != "" {
		benchImpls = nil
		for _, s := range strings.Split(impls, ",") {
			impl, ok := index.ParseImplementation(strings.TrimSpace(s))
			if !ok {
				return fmt.Errorf("invalid index implementation: %s", s)
			}
			benchImpls = append(benchImpls, impl)
		}
	}

	benchConf.Magnitude = viper.GetInt("magnitude")
	benchConf.Parallelism = viper.GetInt("parallelism")
	benchConf.Shards = viper.GetInt("shards")
	benchNumThreads = viper.GetInt("threads")
	benchKeySpread = viper.GetInt("keys")
	if benchKeySpread <= 0 {
		return fmt.Errorf("keys must be positive")
	}
	benchSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// result is a single benchmark result
type result struct {
	impl     index.Implementation
	workload string
	bench    testing.BenchmarkResult
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Benchmark of the id index implementations")
	fmt.Println()
	fmt.Printf("Capacity: %d, Locks: %d, Shards: %d\n", benchConf.Capacity(), benchConf.LockCount(), benchConf.ShardCount())
	fmt.Printf("Threads: %d, Keys: %d\n", benchNumThreads, benchKeySpread)

	var results []result
	for _, impl := range benchImpls {
		conf := benchConf
		conf.Implementation = impl

		fmt.Println()
		fmt.Println(impl)

		for _, workload := range benchWorkloads {
			var res testing.BenchmarkResult
			if !shouldSkip(workload) {
				res = testing.Benchmark(workloadFunc(workload, conf))
			}
			printResult(workload, res)
			results = append(results, result{impl: impl, workload: workload, bench: res})
		}
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// workloadFunc returns the benchmark of a workload against a fresh index
func workloadFunc(workload string, conf index.Config) func(b *testing.B) {
	return func(b *testing.B) {
		idx := engines.New[uint64](conf)
		keys := uint64(benchKeySpread)

		if workload == "get" || workload == "mixed" {
			for k := uint64(0); k < keys; k++ {
				idx.Put(k, k)
			}
		}

		// every goroutine works on its own slice of the key space
		var worker atomic.Uint64

		b.SetParallelism(benchNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			offset := worker.Add(1) * 7919
			counter := uint64(0)
			for pb.Next() {
				key := (offset + counter) % keys
				switch workload {
				case "put":
					idx.Put(key, key)
				case "get":
					idx.Get(key)
				case "get-not":
					idx.Get(keys + key)
				case "put-remove":
					idx.Put(key, key)
					idx.Remove(key)
				case "mixed":
					switch counter % 4 {
					case 0:
						idx.Put(key, key)
					case 1, 2:
						idx.Get(key)
					case 3:
						idx.Remove(key)
					}
				}
				counter++
			}
		})
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(workload string) bool {
	return slices.Contains(benchSkip, workload)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.N == 0 {
		fmt.Printf("  %-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.T.Nanoseconds())/float64(result.N), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("  %-20s%.1fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []result) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Implementation", "Workload", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Capacity", "Locks", "Shards", "Threads", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, r := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if r.bench.N > 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(r.bench.T.Nanoseconds())/float64(r.bench.N), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			string(r.impl),
			r.workload,
			fmt.Sprintf("%.1f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strconv.Itoa(benchConf.Capacity()),
			strconv.Itoa(benchConf.LockCount()),
			strconv.Itoa(benchConf.ShardCount()),
			strconv.Itoa(benchNumThreads),
			strconv.Itoa(benchKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s/%s: %v", r.impl, r.workload, err)
		}
	}

	return nil
}
