// Command sievegate runs the ManageSieve server: it authenticates
// clients against the account store, persists their Sieve scripts,
// and compiles/validates scripts through the sieve engine on
// PUTSCRIPT/CHECKSCRIPT/SETACTIVE.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sievegate/sievegate/db"
	"github.com/sievegate/sievegate/helpers"
	"github.com/sievegate/sievegate/server/managesieve"
	"github.com/sievegate/sievegate/server/sieveengine"
	"github.com/sievegate/sievegate/sieve/bincache"
)

func main() {
	cfg := newDefaultConfig()

	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")
	fDebug := flag.Bool("debug", cfg.Debug, "Print all commands and responses (overrides config)")
	fManageSieveAddr := flag.String("managesieveaddr", cfg.ManageSieve.Addr, "ManageSieve server address (overrides config)")
	fDbHost := flag.String("dbhost", cfg.Database.Host, "Database host (overrides config)")
	fDbPort := flag.String("dbport", cfg.Database.Port, "Database port (overrides config)")
	fDbUser := flag.String("dbuser", cfg.Database.User, "Database user (overrides config)")
	fDbPassword := flag.String("dbpassword", cfg.Database.Password, "Database password (overrides config)")
	fDbName := flag.String("dbname", cfg.Database.Name, "Database name (overrides config)")
	fTLSCert := flag.String("tlscert", cfg.TLS.CertFile, "TLS cert for ManageSieve (overrides config)")
	fTLSKey := flag.String("tlskey", cfg.TLS.KeyFile, "TLS key for ManageSieve (overrides config)")
	flag.Parse()

	if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
		if os.IsNotExist(err) {
			if isFlagSet("config") {
				log.Fatalf("Error: Specified configuration file '%s' not found: %v", *configPath, err)
			}
			log.Printf("WARNING: Default configuration file '%s' not found. Using application defaults and command-line flags.", *configPath)
		} else {
			log.Fatalf("Error parsing configuration file '%s': %v", *configPath, err)
		}
	} else {
		log.Printf("Loaded configuration from %s", *configPath)
	}

	if isFlagSet("debug") {
		cfg.Debug = *fDebug
	}
	if isFlagSet("managesieveaddr") {
		cfg.ManageSieve.Addr = *fManageSieveAddr
	}
	if isFlagSet("dbhost") {
		cfg.Database.Host = *fDbHost
	}
	if isFlagSet("dbport") {
		cfg.Database.Port = *fDbPort
	}
	if isFlagSet("dbuser") {
		cfg.Database.User = *fDbUser
	}
	if isFlagSet("dbpassword") {
		cfg.Database.Password = *fDbPassword
	}
	if isFlagSet("dbname") {
		cfg.Database.Name = *fDbName
	}
	if isFlagSet("tlscert") {
		cfg.TLS.CertFile = *fTLSCert
	}
	if isFlagSet("tlskey") {
		cfg.TLS.KeyFile = *fTLSKey
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		log.Printf("Received signal: %s, shutting down...", sig)
		cancel()
	}()

	log.Printf("Connecting to database at %s:%s as user %s, using database %s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Name)
	database, err := db.NewDatabase(ctx, db.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer database.Close()

	cache, err := bincache.New(cfg.Bincache.Dir, cfg.Bincache.MaxSizeMB)
	if err != nil {
		log.Fatalf("Failed to open bincache: %v", err)
	}
	cache.StartPurgeLoop(ctx)
	sieveengine.SetCache(cache)

	resolvedLimits, err := cfg.resolveLimits()
	if err != nil {
		log.Fatalf("Invalid limits configuration: %v", err)
	}
	sieveengine.SetLimits(resolvedLimits)
	maxScriptSize, err := helpers.ParseSize(cfg.Limits.MaxScriptSize)
	if err != nil {
		log.Fatalf("Invalid limits.max_script_size: %v", err)
	}
	managesieve.MaxScriptSize = maxScriptSize

	vacationInterval, err := helpers.ParseDuration(cfg.VacationCleanup.Interval)
	if err != nil {
		log.Fatalf("Invalid vacation_cleanup.interval: %v", err)
	}
	vacationRetention, err := helpers.ParseDuration(cfg.VacationCleanup.Retention)
	if err != nil {
		log.Fatalf("Invalid vacation_cleanup.retention: %v", err)
	}
	startVacationCleanupLoop(ctx, database, vacationInterval, vacationRetention)

	hostname, _ := os.Hostname()
	errChan := make(chan error, 1)

	if cfg.Metrics.Enable {
		startMetricsServer(cfg.Metrics.Addr, errChan)
	}

	startManageSieveServer(ctx, hostname, cfg.ManageSieve.Addr, database, cfg.Debug, errChan,
		cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.InsecureSkipVerify)

	select {
	case <-ctx.Done():
		log.Println("Shutting down sievegate...")
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}

// startVacationCleanupLoop periodically purges vacation_responses rows
// older than retention, the same wake-interval/grace-period ticker
// shape as the teacher's cleaner worker, scaled down to a single
// query since there's no object storage or upload queue behind it.
func startVacationCleanupLoop(ctx context.Context, database *db.Database, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := database.CleanupOldVacationResponses(ctx, retention)
				if err != nil {
					log.Printf("vacation cleanup: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("vacation cleanup: removed %d stale response records", n)
				}
			}
		}
	}()
}

func startMetricsServer(addr string, errChan chan error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Printf("metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()
}

func startManageSieveServer(ctx context.Context, hostname, addr string, database *db.Database, debug bool, errChan chan error, tlsCertFile, tlsKeyFile string, insecureSkipVerify bool) {
	s, err := managesieve.New(ctx, hostname, addr, database, false, debug, tlsCertFile, tlsKeyFile, insecureSkipVerify)
	if err != nil {
		errChan <- err
		return
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down ManageSieve server...")
		s.Close()
	}()

	s.Start(errChan)
}

// isFlagSet reports whether name was set explicitly on the command line.
func isFlagSet(name string) bool {
	isSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			isSet = true
		}
	})
	return isSet
}
