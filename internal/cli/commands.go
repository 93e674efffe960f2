package cli

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"watttime-api/internal/config"
	"watttime-api/internal/svc"
	"watttime-api/pkg/carbon"
	"watttime-api/pkg/carbon/sources/watttime"
	"watttime-api/pkg/confkit"
)

func init() {
	// Add all subcommands
	rootCmd.AddCommand(atCmd)
	rootCmd.AddCommand(rangeCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(clearCacheCmd)

	// At command flags
	atCmd.Flags().StringP("region", "r", "", "Balancing authority abbreviation (e.g. CAISO_NORTH)")
	atCmd.Flags().StringP("market", "m", carbon.DefaultMarket, "Market to query (RT5M, RTHR, DAHR)")
	_ = atCmd.MarkFlagRequired("region")

	// Range command flags
	rangeCmd.Flags().StringP("region", "r", "", "Balancing authority abbreviation")
	rangeCmd.Flags().StringP("market", "m", carbon.DefaultMarket, "Market to query")
	rangeCmd.Flags().Duration("interval", carbon.DefaultInterval, "Grid spacing between points")
	rangeCmd.Flags().Bool("no-fill", false, "Leave gaps absent instead of forward-filling")
	rangeCmd.Flags().Bool("csv", false, "Write the grid as CSV instead of tab-separated rows")
	_ = rangeCmd.MarkFlagRequired("region")

	// Fetch command flags
	fetchCmd.Flags().StringP("region", "r", "", "Balancing authority abbreviation")
	fetchCmd.Flags().StringP("market", "m", carbon.DefaultMarket, "Market to query")
	_ = fetchCmd.MarkFlagRequired("region")

	// Export command flags
	exportCmd.Flags().StringP("region", "r", "", "Balancing authority abbreviation")
	exportCmd.Flags().StringP("market", "m", carbon.DefaultMarket, "Market to query")
	exportCmd.Flags().StringP("out", "o", ".", "Directory to write the CSV file into")
	_ = exportCmd.MarkFlagRequired("region")
}

// atCmd resolves the value in effect at a single instant
var atCmd = &cobra.Command{
	Use:   "at [timestamp]",
	Short: "Resolve the marginal carbon value in effect at an instant",
	Args:  cobra.ExactArgs(1),
	RunE:  handleAt,
}

// rangeCmd materializes a regular grid of points between two instants
var rangeCmd = &cobra.Command{
	Use:   "range [start] [end]",
	Short: "Materialize a grid of values between two instants",
	Args:  cobra.ExactArgs(2),
	RunE:  handleRange,
}

// fetchCmd pulls a window from the source into the cache
var fetchCmd = &cobra.Command{
	Use:   "fetch [start] [end]",
	Short: "Fetch a window from the source and cache it",
	Args:  cobra.ExactArgs(2),
	RunE:  handleFetch,
}

// exportCmd fetches a window and writes it as CSV
var exportCmd = &cobra.Command{
	Use:   "export [start] [end]",
	Short: "Fetch a window and write it to a CSV file",
	Args:  cobra.ExactArgs(2),
	RunE:  handleExport,
}

// clearCacheCmd drops every cached day bucket
var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop all cached day buckets",
	Args:  cobra.NoArgs,
	RunE:  handleClearCache,
}

func handleAt(cmd *cobra.Command, args []string) error {
	region, _ := cmd.Flags().GetString("region")
	market, _ := cmd.Flags().GetString("market")

	ts, _, err := carbon.ParseInstant(args[0])
	if err != nil {
		return err
	}

	sc, obs, err := newEnv()
	if err != nil {
		return err
	}
	client, err := newClient(sc, obs)
	if err != nil {
		return err
	}

	p, err := client.ValueAt(cmd.Context(), ts, region, market)
	if err != nil {
		return err
	}
	printPoint(p)
	return nil
}

func handleRange(cmd *cobra.Command, args []string) error {
	region, _ := cmd.Flags().GetString("region")
	market, _ := cmd.Flags().GetString("market")
	interval, _ := cmd.Flags().GetDuration("interval")
	noFill, _ := cmd.Flags().GetBool("no-fill")
	asCSV, _ := cmd.Flags().GetBool("csv")

	start, end, err := carbon.UTCRange(args[0], args[1])
	if err != nil {
		return err
	}

	sc, obs, err := newEnv()
	if err != nil {
		return err
	}
	client, err := newClient(sc, obs)
	if err != nil {
		return err
	}

	points, err := client.ValuesBetween(cmd.Context(), start, end, interval, region, market, !noFill)
	if err != nil {
		return err
	}
	if asCSV {
		return carbon.WriteCSV(os.Stdout, points)
	}
	for _, p := range points {
		printPoint(p)
	}
	return nil
}

func handleFetch(cmd *cobra.Command, args []string) error {
	region, _ := cmd.Flags().GetString("region")
	market, _ := cmd.Flags().GetString("market")

	start, end, err := carbon.UTCRange(args[0], args[1])
	if err != nil {
		return err
	}

	sc, obs, err := newEnv()
	if err != nil {
		return err
	}
	client, err := newClient(sc, obs)
	if err != nil {
		return err
	}

	samples, err := client.Fetch(cmd.Context(), start, end, region, market, nil)
	if err != nil {
		return err
	}
	for _, s := range samples {
		fmt.Printf("%s\t%s\n", s.Time.Format(carbon.RecordTimeLayout), formatValue(s.Value))
	}
	fmt.Fprintf(os.Stderr, "fetched %d samples\n", len(samples))
	return nil
}

func handleExport(cmd *cobra.Command, args []string) error {
	region, _ := cmd.Flags().GetString("region")
	market, _ := cmd.Flags().GetString("market")
	outDir, _ := cmd.Flags().GetString("out")

	start, end, err := carbon.UTCRange(args[0], args[1])
	if err != nil {
		return err
	}

	sc, obs, err := newEnv()
	if err != nil {
		return err
	}
	client, err := newClient(sc, obs)
	if err != nil {
		return err
	}

	path, err := client.ExportCSV(cmd.Context(), outDir, start, end, region, market, nil)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func handleClearCache(cmd *cobra.Command, args []string) error {
	sc, _, err := newEnv()
	if err != nil {
		return err
	}
	if err := sc.Store.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "cache cleared")
	return nil
}

// newEnv loads the application config and builds the service context shared
// by every command.
func newEnv() (*svc.ServiceContext, carbon.Observer, error) {
	path := configPath
	if path == "" {
		path = confkit.MustProjectPath("etc/watttime.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	ApplyLogLevel(cfg.LogLevel)
	if verbose {
		LogConfigSummary(cfg)
	}

	var obs carbon.Observer = carbon.NopObserver{}
	if verbose {
		obs = carbon.NewLogObserver(log.New(os.Stderr, "", log.LstdFlags|log.LUTC))
	}
	return svc.NewServiceContext(*cfg), obs, nil
}

// newClient builds a carbon client for the selected source. The observer is
// shared with the fetcher so page events surface alongside cache events.
func newClient(sc *svc.ServiceContext, obs carbon.Observer) (*carbon.Client, error) {
	if f, ok := sc.Fetchers[sc.SourceName(sourceName)]; ok {
		if wt, ok := f.(*watttime.Client); ok {
			wt.SetObserver(obs)
		}
	}
	return sc.ClientFor(sourceName, carbon.WithObserver(obs))
}

// printPoint writes one tab-separated result row to stdout. Absent values
// render as "-".
func printPoint(p carbon.Point) {
	if p.Valid {
		fmt.Printf("%s\t%s\n", p.Time.Format(carbon.RecordTimeLayout), formatValue(p.Value))
	} else {
		fmt.Printf("%s\t-\n", p.Time.Format(carbon.RecordTimeLayout))
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
