package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/spektr-org/weekpi/cache"
	"github.com/spektr-org/weekpi/internal/logging"
)

// newKPICache opens the configured cache backend. The returned func closes
// the backend and logs the cache counters at debug level.
func newKPICache(ctx context.Context, cliCtx *CLIContext) (*cache.KPICache, func(), error) {
	cfg := cliCtx.Config.Cache
	reg := prometheus.NewRegistry()
	metrics := cache.NewMetrics(reg)
	opts := append(cliCtx.Config.CacheOptions(cliCtx.Logger), cache.WithMetrics(metrics))

	var (
		store   cache.Store
		closeFn = func() {}
	)
	switch cfg.Backend {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		store = cache.NewRedisStore(client, cfg.Redis.Prefix)
		closeFn = func() { _ = client.Close() }
	default:
		store = cache.NewMemoryStore()
	}

	done := func() {
		logCacheMetrics(cliCtx.Logger, reg)
		closeFn()
	}
	return cache.New(store, opts...), done, nil
}

func logCacheMetrics(logger logging.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.Debug("cache metrics unavailable", logging.Err(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := []logging.Field{logging.String("metric", mf.GetName())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, logging.String(lp.GetName(), lp.GetValue()))
			}
			if c := m.GetCounter(); c != nil {
				fields = append(fields, logging.Float64("value", c.GetValue()))
			}
			logger.Debug("cache metric", fields...)
		}
	}
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the KPI cache",
	}

	var file string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached KPI computed from a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			data := dataOptions{File: file}
			ds, err := data.load(cliCtx)
			if err != nil {
				return err
			}
			kc, closeFn, err := newKPICache(cmd.Context(), cliCtx)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := kc.Invalidate(cmd.Context(), ds.Version)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached entries for version %s\n", n, ds.Version)
			return err
		},
	}
	clearCmd.Flags().StringVarP(&file, "file", "f", "", "CSV file whose cached results to drop (required)")
	_ = clearCmd.MarkFlagRequired("file")

	cmd.AddCommand(clearCmd)
	return cmd
}
