// Fancontrol runs a network-attached fan controller.
//
// It joins WiFi (opening a captive provisioning portal when it cannot),
// keeps an MQTT session to the configured broker, and maps power, speed and
// oscillation commands onto the fan while republishing the confirmed state.
//
// Usage:
//
//	fancontrol [run]     start the controller
//	fancontrol provision start with the provisioning portal open
//	fancontrol version   print version information
//	fancontrol migrate   manage the state history schema (status, up, down)
//
// Sending SIGUSR1 reopens the provisioning portal on a running controller.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/eb3nezer/mqtt-fan/migrations"

	"github.com/eb3nezer/mqtt-fan/internal/controller"
	"github.com/eb3nezer/mqtt-fan/internal/discovery"
	"github.com/eb3nezer/mqtt-fan/internal/fan"
	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/config"
	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/database"
	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/influxdb"
	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/logging"
	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/mqtt"
	"github.com/eb3nezer/mqtt-fan/internal/portal"
	"github.com/eb3nezer/mqtt-fan/internal/session"
	"github.com/eb3nezer/mqtt-fan/internal/settings"
	"github.com/eb3nezer/mqtt-fan/internal/status"
	"github.com/eb3nezer/mqtt-fan/internal/wifi"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/fancontrol.yaml"

// options are the command line settings shared by run and provision.
type options struct {
	configPath        string
	forceProvisioning bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "fancontrol",
		Short:        "Network-attached fan controller",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", getConfigPath(),
		"Path to the daemon configuration file (env FANCONTROL_CONFIG)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the controller (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), opts)
		},
	}

	provisionCmd := &cobra.Command{
		Use:   "provision",
		Short: "Start the controller with the provisioning portal open",
		Long: `Open the provisioning access point and captive portal at startup even if
stored network credentials work, then keep running as the controller.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.forceProvisioning = true
			return runDaemon(cmd.Context(), opts)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fancontrol %s (commit %s, built %s)\n", version, commit, date)
		},
	}

	root.AddCommand(runCmd, provisionCmd, versionCmd, newMigrateCmd(opts))
	return root
}

// newMigrateCmd manages the state history schema outside the daemon.
func newMigrateCmd(opts *options) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the state history database schema",
	}

	actions := []struct {
		use, short string
		action     migrateAction
	}{
		{"status", "List applied and pending migrations", migrateStatus},
		{"up", "Apply pending migrations", migrateUp},
		{"down", "Roll back the newest applied migration", migrateDown},
	}
	for _, a := range actions {
		action := a.action
		migrateCmd.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd.Context(), cmd.OutOrStdout(), opts, action)
			},
		})
	}
	return migrateCmd
}

type migrateAction int

const (
	migrateStatus migrateAction = iota
	migrateUp
	migrateDown
)

// runMigrate opens the configured history database, applies action and
// prints the resulting migration status.
func runMigrate(ctx context.Context, out io.Writer, opts *options, action migrateAction) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-mostly, nothing to flush

	switch action {
	case migrateUp:
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	case migrateDown:
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	fmt.Fprintf(out, "database: %s\n", db.Path())
	for _, m := range applied {
		fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

// runDaemon installs the shutdown signal handlers and runs the controller.
func runDaemon(parent context.Context, opts *options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return run(ctx, opts)
}

// run is the controller lifecycle, separated from main for testability.
// It returns wifi.ErrRestartRequired when startup provisioning fails.
func run(ctx context.Context, opts *options) error {
	log := logging.Default()
	log.Info("starting fancontrol",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", opts.configPath, "network_backend", cfg.Network.Backend)

	// Settings record: the one copy every component reads.
	store := settings.NewStore(settings.NewFileStorage(cfg.Device.SettingsPath))
	store.SetLogger(log.Component("settings"))
	record := store.Load()

	light := status.NewLight()

	var (
		hub    *status.Hub
		server *status.Server
	)
	if cfg.Status.Enabled {
		hub = status.NewHub(
			time.Duration(cfg.Status.PingInterval)*time.Second,
			time.Duration(cfg.Status.PongTimeout)*time.Second,
		)
		hub.SetLogger(log.Component("status"))
		hub.Follow(light)

		server = status.NewServer(cfg.Status.Listen, light, hub)
		server.SetLogger(log.Component("status"))
	}

	actuator := fan.NewLogActuator(log.Component("actuator"))
	processor := fan.NewProcessor(actuator)
	processor.SetLogger(log.Component("fan"))
	processor.SetDevice(record.Device.String())

	if hub != nil {
		processor.AddRecorder(hubRecorder{hub: hub})
	}

	if cfg.Database.Enabled {
		db, err := openHistory(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		history := fan.NewSQLiteHistory(db.DB)
		processor.AddRecorder(history)
		if server != nil {
			server.AddHealthCheck("database", db)
			server.SetHistory(history)
		}
	}

	var influx *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influx, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			// Continue without telemetry.
			log.Warn("influxdb unavailable, telemetry disabled", "error", err)
		} else {
			defer func() {
				if closeErr := influx.Close(); closeErr != nil {
					log.Error("error closing influxdb", "error", closeErr)
				}
			}()
			influx.SetOnError(func(err error) {
				log.Warn("influxdb write error", "error", err)
			})
			processor.AddRecorder(fan.NewInfluxRecorder(influx))
			if server != nil {
				server.AddHealthCheck("influxdb", influx)
			}
			log.Info("influxdb connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("mqtt disconnected", "error", err)
	})
	defer func() {
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing mqtt", "error", closeErr)
		}
	}()

	if server != nil {
		server.AddHealthCheck("mqtt", mqttClient)
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting status server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
		log.Info("status server started", "addr", server.Addr())
	}

	report := linkReporter{hub: hub, influx: influx, record: &record}

	sess := session.NewManager(&record, mqttClient, processor, light)
	sess.SetLogger(log.Component("session"))
	sess.SetQoS(mqttClient.QoS())
	sess.SetOnStateChange(func(s session.State) {
		report.link(status.EventBusState, "mqtt", s.String(), s == session.Connected)
	})
	processor.SetPublisher(sess)

	p := portal.New(cfg.Portal.Listen)
	p.SetLogger(log.Component("portal"))

	network := wifi.NewManager(newRadio(cfg.Network), store, &record, p, light)
	network.SetLogger(log.Component("wifi"))
	network.SetAccessPointPrefix(cfg.Device.ProductName)
	network.SetOnStateChange(func(s wifi.State) {
		report.link(status.EventNetworkState, "wifi", s.String(), s == wifi.Associated)
	})

	if cfg.Discovery.Enabled {
		adv := discovery.NewAdvertiser(cfg.Discovery)
		adv.SetLogger(log.Component("discovery"))
		defer adv.Close()

		network.OnAssociated(func() {
			instance := record.Device.String()
			if instance == "" {
				instance = cfg.Device.ProductName
			}
			if err := adv.Advertise(instance, discovery.TXTRecords(record, version)); err != nil {
				log.Warn("mdns advertisement failed", "error", err)
			}
		})
	}

	loop := controller.New(network, sess, processor, &record)
	loop.SetLogger(log.Component("controller"))

	stopUSR1 := forwardProvisioningSignal(ctx, loop)
	defer stopUSR1()

	err = loop.Run(ctx, opts.forceProvisioning)
	if errors.Is(err, wifi.ErrRestartRequired) {
		log.Error("no network after provisioning, exiting for restart")
	}
	log.Info("fancontrol stopped")
	return err
}

// openHistory opens the state history database, applies migrations and
// prunes entries past the retention period.
func openHistory(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if cfg.RetentionDays > 0 {
		history := fan.NewSQLiteHistory(db.DB)
		removed, err := history.Prune(ctx, time.Duration(cfg.RetentionDays)*24*time.Hour)
		if err != nil {
			log.Warn("state history prune failed", "error", err)
		} else if removed > 0 {
			log.Info("state history pruned", "removed", removed)
		}
	}

	log.Info("state history database ready", "path", db.Path())
	return db, nil
}

// newRadio selects the radio for the configured backend.
func newRadio(cfg config.NetworkConfig) wifi.Radio {
	if cfg.Backend == config.BackendNone {
		return wifi.NewHostRadio(cfg.Interface)
	}
	return wifi.NewNMCLIRadio(wifi.ExecRunner{}, cfg.NMCLIBinary, cfg.Interface)
}

// forwardProvisioningSignal turns SIGUSR1 into a provisioning request.
func forwardProvisioningSignal(ctx context.Context, loop *controller.Loop) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigs:
				loop.RequestProvisioning()
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// getConfigPath returns the config file path from FANCONTROL_CONFIG or the default.
func getConfigPath() string {
	if path := os.Getenv("FANCONTROL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// linkReporter fans link state changes out to the status hub and telemetry.
// Either sink may be nil.
type linkReporter struct {
	hub    *status.Hub
	influx *influxdb.Client
	record *settings.Record
}

func (r linkReporter) link(event, link, state string, up bool) {
	if r.hub != nil {
		r.hub.Broadcast(event, status.LinkPayload{State: state, Up: up})
	}
	if r.influx != nil {
		r.influx.WriteConnectivity(r.record.Device.String(), link, state)
	}
}

// hubRecorder pushes confirmed fan transitions to status websocket clients.
type hubRecorder struct {
	hub *status.Hub
}

// RecordTransition implements fan.Recorder.
func (h hubRecorder) RecordTransition(_ context.Context, t fan.Transition) error {
	h.hub.Broadcast(status.EventFanState, status.FanStatePayload{
		Device:      t.Device,
		Source:      t.Source,
		Power:       t.State.Power,
		Speed:       t.State.Speed.String(),
		Oscillation: t.State.Oscillation,
	})
	return nil
}
