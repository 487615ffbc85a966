package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/itemstore/cmd/util"
	"github.com/ValentinKolb/itemstore/lib/common"
	"github.com/ValentinKolb/itemstore/lib/index"
	"github.com/ValentinKolb/itemstore/lib/store"
	"github.com/ValentinKolb/itemstore/lib/store/persistence"
	"github.com/ValentinKolb/itemstore/lib/store/scanner"
	"github.com/ValentinKolb/itemstore/lib/store/txn"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logger.GetLogger("cli")

var (
	serveCmdConfig = store.DefaultConfig()
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start an item store",
		Long:    `Start an item store with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is ITEMSTORE_<flag> (e.g. ITEMSTORE_INDEX_IMPL=striped-chain)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	defaults := store.DefaultConfig()

	// add flags
	key := "index-impl"
	ServeCmd.PersistentFlags().String(key, string(defaults.Index.Implementation), cmdUtil.WrapString("The id index implementation (striped-linked, striped-chain, sharded-native). Unknown values fall back to striped-linked"))

	key = "index-magnitude"
	ServeCmd.PersistentFlags().Int(key, defaults.Index.Magnitude, cmdUtil.WrapString(fmt.Sprintf("The bucket array of the index has 2<<magnitude buckets (clamped to %d..%d)", index.MinMagnitude, index.MaxMagnitude)))

	key = "index-parallelism"
	ServeCmd.PersistentFlags().Int(key, defaults.Index.Parallelism, cmdUtil.WrapString(fmt.Sprintf("(striped-linked) The index uses 2<<parallelism locks (clamped to %d..%d)", index.MinParallelism, index.MaxParallelism)))

	key = "index-shards"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("(sharded-native) The number of shards, 0 uses the number of CPUs"))

	key = "persistence"
	ServeCmd.PersistentFlags().String(key, string(defaults.Persistence), cmdUtil.WrapString("The persistence backend (memory, sqlite)"))

	key = "data-path"
	ServeCmd.PersistentFlags().String(key, "itemstore.db", cmdUtil.WrapString("(sqlite) The path of the database file"))

	key = "unique-key-range"
	ServeCmd.PersistentFlags().Uint64(key, defaults.UniqueKeyRange, cmdUtil.WrapString("How many unique values a generator reserves per round trip to the backend"))

	key = "max-transaction-size"
	ServeCmd.PersistentFlags().Int(key, defaults.MaxTransactionSize, cmdUtil.WrapString("The maximum number of changes in a single transaction"))

	key = "expiry-interval"
	ServeCmd.PersistentFlags().Duration(key, defaults.ExpiryInterval, cmdUtil.WrapString("The interval of the expiry scanner (0 disables it)"))

	key = "delivery-delay-interval"
	ServeCmd.PersistentFlags().Duration(key, defaults.DeliveryDelayInterval, cmdUtil.WrapString("The interval of the delivery delay scanner (0 disables it)"))

	key = "cache-loader-interval"
	ServeCmd.PersistentFlags().Duration(key, defaults.CacheLoaderInterval, cmdUtil.WrapString("The interval of the cache loader scanner (0 disables it)"))

	key = "rebuild"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to register all persisted items in the index after the start"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the health, metrics and transaction endpoints will listen"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the store configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	impl := viper.GetString("index-impl")
	if _, ok := index.ParseImplementation(impl); !ok {
		fmt.Printf("unknown index implementation %q, the store will fall back to %s\n", impl, index.ImplDefault)
	}
	serveCmdConfig.Index = index.Config{
		Implementation: index.Implementation(impl),
		Magnitude:      viper.GetInt("index-magnitude"),
		Parallelism:    viper.GetInt("index-parallelism"),
		Shards:         viper.GetInt("index-shards"),
	}

	switch p := store.PersistenceType(viper.GetString("persistence")); p {
	case store.PersistenceMemory, store.PersistenceSQLite:
		serveCmdConfig.Persistence = p
	default:
		return fmt.Errorf("invalid persistence backend: %s (expected one of: memory, sqlite)", p)
	}

	serveCmdConfig.DataPath = viper.GetString("data-path")
	serveCmdConfig.UniqueKeyRange = viper.GetUint64("unique-key-range")
	serveCmdConfig.MaxTransactionSize = viper.GetInt("max-transaction-size")
	serveCmdConfig.ExpiryInterval = viper.GetDuration("expiry-interval")
	serveCmdConfig.DeliveryDelayInterval = viper.GetDuration("delivery-delay-interval")
	serveCmdConfig.CacheLoaderInterval = viper.GetDuration("cache-loader-interval")

	return nil
}

// run starts the store and serves its endpoints until the process is signaled
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	fmt.Println("Configuration:")
	fmt.Println(serveCmdConfig.String())

	timings := gometrics.NewRegistry()
	srv := &server{
		expiry:   scanner.NewSchedule(),
		delivery: scanner.NewSchedule(),
	}
	srv.controller = store.NewController(store.Dependencies{
		Persistence: persistence.New,
		Resolver:    txn.Factory,
		Scanners: scanner.Factory(timings, scanner.Passes{
			store.ScannerExpirer:       scanner.ExpiryPass(srv.expiry),
			store.ScannerDeliveryDelay: scanner.DelayPass(srv.delivery, srv.deliver),
		}),
		Timings: timings,
	})

	c := srv.controller
	if err := c.Initialize(serveCmdConfig); err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		for i, failure := range c.StartupFailures() {
			log.Errorf("startup failure %d: %v", i+1, failure)
		}
		_ = c.Destroy()
		return err
	}

	if viper.GetBool("rebuild") {
		n, err := c.RebuildMembership(newItemLink)
		if err != nil {
			log.Errorf("failed to rebuild membership: %v", err)
		} else {
			log.Infof("registered %d persisted items", n)
		}
	}

	if inDoubt := c.ListInDoubtTransactions(); len(inDoubt) > 0 {
		log.Warningf("in-doubt transactions awaiting resolution: %v", inDoubt)
	}

	httpServer := &http.Server{
		Addr:              viper.GetString("endpoint"),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case <-ctx.Done():
		log.Infof("shutting down")
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if stopErr := c.Stop(); stopErr != nil {
		log.Errorf("failed to stop store: %v", stopErr)
	}
	if destroyErr := c.Destroy(); destroyErr != nil {
		log.Errorf("failed to destroy store: %v", destroyErr)
	}
	return err
}
