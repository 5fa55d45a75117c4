// main is the quickmail daemon launcher
package main

import (
	"bufio"
	"context"
	"expvar"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quickmail/quickmail/pkg/backend"
	"github.com/quickmail/quickmail/pkg/backend/gen"
	"github.com/quickmail/quickmail/pkg/backend/provider"
	"github.com/quickmail/quickmail/pkg/compose"
	"github.com/quickmail/quickmail/pkg/config"
	"github.com/quickmail/quickmail/pkg/rest"
	"github.com/quickmail/quickmail/pkg/rest/client"
	"github.com/quickmail/quickmail/pkg/server/web"
)

var (
	// version contains the build version number, populated during linking.
	version = "undefined"

	// date contains the build date, populated during linking.
	date = "undefined"
)

func init() {
	// Server uptime for status page.
	startTime := time.Now()
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(startTime) / time.Second
	}))

	// Goroutine count for status page.
	expvar.Publish("goroutines", expvar.Func(func() interface{} {
		return runtime.NumGoroutine()
	}))
}

func main() {
	// Command line flags.
	help := flag.Bool("help", false, "Displays help on flags and env variables.")
	pidfile := flag.String("pidfile", "", "Write our PID into the specified file.")
	logfile := flag.String("logfile", "stderr", "Write out log into the specified file.")
	logjson := flag.Bool("logjson", false, "Logs are written in JSON format.")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: quickmaild [options]")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *help {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "")
		config.Usage()
		return
	}
	// Process configuration.
	config.Version = version
	config.BuildDate = date
	conf, err := config.Process()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	// Logger setup.
	closeLog, err := openLog(conf.LogLevel, *logfile, *logjson)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Log error: %v\n", err)
		os.Exit(1)
	}
	startupLog := log.With().Str("phase", "startup").Logger()
	// Setup signal handler.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	startupLog.Info().Str("version", config.Version).Str("buildDate", config.BuildDate).
		Msg("Quickmail starting")
	// Write pidfile if requested.
	if *pidfile != "" {
		pidf, err := os.Create(*pidfile)
		if err != nil {
			startupLog.Fatal().Err(err).Str("path", *pidfile).Msg("Failed to create pidfile")
		}
		fmt.Fprintf(pidf, "%v\n", os.Getpid())
		if err := pidf.Close(); err != nil {
			startupLog.Fatal().Err(err).Str("path", *pidfile).Msg("Failed to close pidfile")
		}
	}
	// Configure internal services.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	shutdownChan := make(chan bool)
	sender, err := client.New(conf.Compose.BackendURL,
		client.WithTimeout(conf.Compose.Timeout))
	if err != nil {
		removePIDFile(*pidfile)
		startupLog.Fatal().Err(err).Str("module", "compose").Msg("Invalid backend URL")
	}
	manager := compose.NewManager(rootCtx, *conf, sender)
	go manager.ReapLoop(rootCtx, conf.Web.SessionIdle)
	// Start HTTP server.
	web.Initialize(conf, shutdownChan, manager)
	rest.SetupRoutes(web.Router.PathPrefix("/api/").Subrouter())
	go web.Start(rootCtx)
	// Start the embedded backend when requested.
	if conf.Backend.Enabled {
		bs, err := buildBackend(rootCtx, conf.Backend)
		if err != nil {
			removePIDFile(*pidfile)
			startupLog.Fatal().Err(err).Str("module", "backend").Msg("Fatal backend error")
		}
		go bs.Start(rootCtx)
	}
	// Loop forever waiting for signals or shutdown channel.
signalLoop:
	for {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGINT:
				// Shutdown requested
				log.Info().Str("phase", "shutdown").Str("signal", "SIGINT").
					Msg("Received SIGINT, shutting down")
				close(shutdownChan)
			case syscall.SIGTERM:
				// Shutdown requested
				log.Info().Str("phase", "shutdown").Str("signal", "SIGTERM").
					Msg("Received SIGTERM, shutting down")
				close(shutdownChan)
			}
		case <-shutdownChan:
			rootCancel()
			break signalLoop
		}
	}
	go timedExit(*pidfile)
	removePIDFile(*pidfile)
	closeLog()
}

// buildBackend assembles the embedded backend from its configured provider
// and generator.
func buildBackend(ctx context.Context, conf config.Backend) (*backend.Server, error) {
	var p provider.Provider
	switch conf.Provider {
	case "stdout":
		p = provider.NewStdout()
	case "mbox":
		p = provider.NewMbox(conf.MboxPath)
	case "ses":
		sp, err := provider.NewSES(ctx, provider.SESConfig{
			Region:          conf.SES.Region,
			AccessKeyID:     conf.SES.AccessKey,
			SecretAccessKey: conf.SES.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		p = sp
	default:
		return nil, fmt.Errorf("provider %q not one of: stdout, mbox, ses", conf.Provider)
	}

	var g gen.Generator
	switch conf.Generator {
	case "template":
		g = gen.NewTemplate()
	case "anthropic":
		if conf.GenKey == "" {
			return nil, fmt.Errorf("anthropic generator requires an API key")
		}
		g = gen.NewAnthropic(conf.GenKey, conf.GenModel, conf.GenWait)
	default:
		return nil, fmt.Errorf("generator %q not one of: template, anthropic", conf.Generator)
	}

	return backend.NewServer(conf, p, g), nil
}

// openLog configures zerolog output, returns func to close logfile.
func openLog(level string, logfile string, json bool) (close func(), err error) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		return nil, fmt.Errorf("Log level %q not one of: debug, info, warn, error", level)
	}
	close = func() {}
	var w io.Writer
	color := runtime.GOOS != "windows"
	switch logfile {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		logf, err := os.OpenFile(logfile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			return nil, err
		}
		bw := bufio.NewWriter(logf)
		w = bw
		color = false
		close = func() {
			_ = bw.Flush()
			_ = logf.Close()
		}
	}
	w = zerolog.SyncWriter(w)
	if json {
		log.Logger = log.Output(w)
		return close, nil
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:     w,
		NoColor: !color,
	})
	return close, nil
}

// removePIDFile removes the PID file if created.
func removePIDFile(pidfile string) {
	if pidfile != "" {
		if err := os.Remove(pidfile); err != nil {
			log.Error().Str("phase", "shutdown").Err(err).Str("path", pidfile).
				Msg("Failed to remove pidfile")
		}
	}
}

// timedExit is called as a goroutine during shutdown, it will force an exit
// after 15 seconds.
func timedExit(pidfile string) {
	time.Sleep(15 * time.Second)
	removePIDFile(pidfile)
	log.Error().Str("phase", "shutdown").Msg("Clean shutdown took too long, forcing exit")
	os.Exit(0)
}
