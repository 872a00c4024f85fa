package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/vyrodovalexey/tlsutil/internal/health"
	"github.com/vyrodovalexey/tlsutil/internal/observability"
	"github.com/vyrodovalexey/tlsutil/internal/tls"
	"github.com/vyrodovalexey/tlsutil/internal/vault"
)

// runMonitor tracks certificate expiration. With -once it runs a single
// check, prints the result and exits non-zero when a certificate has
// expired. Otherwise it serves metrics and the /live and /ready probes
// until the context is cancelled.
func runMonitor(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("monitor", "[-once] [-metrics-address addr] [-watch] [file ...]")
	once := fs.Bool("once", false, "run one check, print the status table and exit")
	metricsAddress := fs.String("metrics-address", getEnvOrDefault("TLSUTIL_METRICS_ADDRESS", ""),
		"override metrics.address")
	watch := fs.Bool("watch", getEnvBool("TLSUTIL_WATCH", a.config.Monitor.Watch), "reload certificate files on change")
	if err := parse(fs, args); err != nil {
		return err
	}

	monitorCfg := a.config.Monitor.Clone()
	monitorCfg.Watch = *watch
	for _, path := range fs.Args() {
		monitorCfg.Certificates = append(monitorCfg.Certificates, tls.CertificateConfig{Name: path, CertFile: path})
	}
	if len(monitorCfg.Certificates) == 0 {
		fmt.Fprintln(a.stderr, "monitor: no certificates configured")
		return errUsage
	}
	if err := monitorCfg.Validate(); err != nil {
		return err
	}

	metrics := tls.NewMetrics(a.config.Metrics.Namespace)
	metrics.Init()

	opts := []tls.MonitorOption{
		tls.WithMonitorLogger(a.logger),
		tls.WithMonitorMetrics(metrics),
		tls.WithMonitorClock(a.clock),
	}
	if monitorCfg.UsesVault() {
		client, err := vault.New(&a.config.Vault, a.logger)
		if err != nil {
			return err
		}
		opts = append(opts, tls.WithCertificateFetcher(client))
	}

	monitor, err := tls.NewExpiryMonitor(monitorCfg, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = monitor.Close() }()

	if *once {
		if err := monitor.Check(); err != nil {
			return err
		}
		statuses := monitor.Snapshot()
		printStatusTable(a.stdout, statuses)
		for _, status := range statuses {
			if status.State == tls.ExpiryStateExpired {
				return &exitError{code: exitFailure, err: fmt.Errorf("certificate %s has expired", status.Name)}
			}
		}
		return nil
	}

	if err := monitor.Start(ctx); err != nil {
		return err
	}

	checker := health.NewChecker(version, a.clock)
	checker.RegisterCheck("certificates", health.CertificateCheck(monitor.Snapshot))

	var server *observability.MetricsServer
	if a.config.Metrics.Enabled {
		address := a.config.Metrics.Address
		if *metricsAddress != "" {
			address = *metricsAddress
		}
		server = observability.NewMetricsServer(observability.MetricsServerConfig{
			Address:              address,
			Path:                 a.config.Metrics.Path,
			ReadHeaderTimeout:    a.config.Metrics.ReadHeaderTimeout.Duration(),
			EnableRuntimeMetrics: true,
		}, metrics.Registry(), a.logger)
		server.Handle("/live", checker.HealthHandler())
		server.Handle("/ready", checker.ReadinessHandler())
		if err := server.Listen(); err != nil {
			return err
		}
	}

	serverErr := make(chan error, 1)
	if server != nil {
		go func() { serverErr <- server.Serve() }()
	}

	a.logger.Info("certificate monitor started",
		observability.Int("certificates", len(monitorCfg.Certificates)),
		observability.Bool("watch", monitorCfg.Watch),
	)

	err = a.consumeEvents(ctx, monitor.Events(), serverErr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	if server != nil {
		if stopErr := server.Stop(shutdownCtx); stopErr != nil {
			a.logger.Error("failed to stop metrics server gracefully", observability.Error(stopErr))
		}
	}
	return err
}

// consumeEvents logs monitor events until ctx is done or the metrics server fails.
func (a *app) consumeEvents(ctx context.Context, events <-chan tls.CertificateEvent, serverErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("certificate monitor stopping")
			return nil
		case err := <-serverErr:
			if err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		case event, ok := <-events:
			if !ok {
				return errors.New("certificate monitor closed")
			}
			a.logEvent(event)
		}
	}
}

func (a *app) logEvent(event tls.CertificateEvent) {
	fields := []observability.Field{
		observability.String("name", event.Name),
		observability.String("event", event.Type.String()),
	}
	switch event.Type {
	case tls.CertificateEventLoaded, tls.CertificateEventReloaded:
		fields = append(fields, observability.String("serial", tls.SerialNumber(event.Certificate)))
		a.logger.Info(event.Message, fields...)
	case tls.CertificateEventError:
		fields = append(fields, observability.Error(event.Error))
		a.logger.Error(event.Message, fields...)
	default:
		// Expiring and Expired are already logged by the monitor with throttling.
		a.logger.Debug(event.Message, append(fields, observability.Int32("days_until_expiration", event.DaysUntilExpiration))...)
	}
}

func printStatusTable(w io.Writer, statuses []tls.CertificateStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tDAYS\tNOT AFTER\tSUBJECT")
	for _, status := range statuses {
		if status.Info == nil {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\n", status.Name, status.State)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			status.Name,
			status.State,
			status.Info.DaysUntilExpiration,
			status.Info.NotAfter.Format("2006-01-02T15:04:05Z"),
			status.Info.Subject,
		)
	}
	_ = tw.Flush()
}
