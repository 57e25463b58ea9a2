package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"facedetect/internal/app"
	"facedetect/internal/config"
	"facedetect/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	device := flag.Int("device", 0, "Camera device index")
	cascade := flag.String("cascade", "", "Haar cascade model path")
	headless := flag.Bool("headless", false, "Run without a display window")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(2)
	}

	// explicit flags win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.DeviceIndex = *device
		case "cascade":
			cfg.CascadePath = *cascade
		case "headless":
			cfg.Headless = *headless
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(2)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("%v", err)
		var setupErr *app.SetupError
		if errors.As(err, &setupErr) {
			log.Info("Exiting: %s", setupErr.State())
		}
		stop()
		log.Close()
		os.Exit(1)
	}

	fmt.Printf("🚀 Face detection\n")
	fmt.Printf("📷 Device: %d\n", cfg.DeviceIndex)
	fmt.Printf("🤖 Model: %s\n", cfg.CascadePath)
	fmt.Printf("📐 Scale: %g\n", cfg.ScaleFactor)

	state := application.Run(ctx)
	stop()
	log.Info("Exiting: %s", state)
	log.Close()
}
