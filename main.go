package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/jawher/mow.cli"
	log "github.com/sirupsen/logrus"

	"github.com/crlane/mebo/internal/config"
	"github.com/crlane/mebo/pkg/logger"
	"github.com/crlane/mebo/pkg/rtsp"
)

const (
	appName = "mebo-stream"
	appDesc = "capture elementary streams from a mebo camera over RTSP"
)

func main() {
	app := cli.App(appName, appDesc)
	app.Spec = "URL [OPTIONS]"

	rtspURL := app.String(cli.StringArg{
		Name: "URL",
		Desc: "RTSP stream URL",
	})
	port := app.Int(cli.IntOpt{
		Name:   "port",
		Desc:   "RTSP control port",
		EnvVar: "STREAM_PORT",
		Value:  rtsp.DefaultPort,
	})
	username := app.String(cli.StringOpt{
		Name:   "u username",
		Desc:   "digest authentication username",
		EnvVar: "STREAM_USERNAME",
		Value:  "stream",
	})
	realm := app.String(cli.StringOpt{
		Name:   "realm",
		Desc:   "digest authentication realm",
		EnvVar: "STREAM_REALM",
		Value:  "realm",
	})
	password := app.String(cli.StringOpt{
		Name:   "p password",
		Desc:   "digest authentication password",
		EnvVar: config.PasswordEnvVar,
		Value:  "",
	})
	outputDir := app.String(cli.StringOpt{
		Name:   "o output",
		Desc:   "directory for captured track files",
		EnvVar: "STREAM_OUTPUT_DIR",
		Value:  ".",
	})
	packets := app.Int(cli.IntOpt{
		Name:  "packets",
		Desc:  "packets to capture per stream",
		Value: rtsp.DefaultMaxPackets,
	})
	timeout := app.String(cli.StringOpt{
		Name:  "timeout",
		Desc:  "socket timeout (e.g. 15s)",
		Value: "15s",
	})
	logLevel := app.String(cli.StringOpt{
		Name:   "log-level",
		Desc:   "log level (error, warn, info, debug)",
		EnvVar: "STREAM_LOG_LEVEL",
		Value:  "info",
	})

	app.Action = func() {
		socketTimeout, err := time.ParseDuration(*timeout)
		if err != nil {
			log.WithError(err).Fatal("invalid timeout")
		}

		cfg := &config.Config{
			RTSPURL:    *rtspURL,
			Port:       *port,
			Username:   *username,
			Realm:      *realm,
			Password:   *password,
			OutputDir:  *outputDir,
			Timeout:    socketTimeout,
			MaxPackets: *packets,
			LogLevel:   *logLevel,
		}
		if err := cfg.Validate(); err != nil {
			log.WithError(err).Fatal("invalid configuration")
		}

		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			log.WithError(err).Fatal("invalid log level")
		}
		logger.SetLevel(level)
		log.SetLevel(level)

		session, err := rtsp.NewSession(cfg.RTSPURL, rtsp.Options{
			Port:       cfg.Port,
			Username:   cfg.Username,
			Realm:      cfg.Realm,
			Password:   cfg.Password,
			Timeout:    cfg.Timeout,
			MaxPackets: cfg.MaxPackets,
			OutputDir:  cfg.OutputDir,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to create RTSP session")
		}

		if err := session.Connect(); err != nil {
			log.WithError(err).Fatal("failed to connect")
		}
		defer session.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		results, err := session.StartStreams(ctx)
		if err != nil {
			log.WithError(err).Fatal("streaming failed")
		}
		for _, result := range results {
			log.WithField("file", result.File).
				WithField("packets", result.Packets).
				Infof("captured %s", result.Track)
		}
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("failed to execute application")
	}
}
