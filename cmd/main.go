package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"proof_of_heat"
	"proof_of_heat/internal/driver"
	"proof_of_heat/internal/handlers"
	"proof_of_heat/internal/logger"
	"proof_of_heat/internal/registry"
	"proof_of_heat/internal/repository"
	"proof_of_heat/internal/repository/db"
	"proof_of_heat/internal/scheduler"
	"proof_of_heat/internal/server"
	"proof_of_heat/internal/service"
	"proof_of_heat/internal/settings"

	"github.com/spf13/viper"
)

func main() {
	// load config.yml first so the log level is configurable
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(logger.ResolveLevel(viper.GetString("log.level")))

	// open history DB
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// device fleet from settings
	fleet, err := settings.Load(settingsPath())
	if err != nil {
		log.Fatalw("failed to load device settings", "err", err)
	}

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	reg, err := buildRegistry(fleet)
	if err != nil {
		log.Fatalw("failed to register devices", "err", err)
	}
	recorder := service.NewRecorder(repos.History, log, viper.GetInt("history.queue_size"))
	services := service.NewService(reg, repos, recorder, controlBounds(), log)
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bg sync.WaitGroup
	bg.Add(2)
	go func() {
		defer bg.Done()
		recorder.Run(ctx)
	}()
	poller := scheduler.New(reg, recorder, log, scheduler.RealClock(), time.Duration(fleet.RefreshInterval))
	go func() {
		defer bg.Done()
		poller.Run(ctx)
	}()

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
	bg.Wait()
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	viper.SetDefault("control.min_target_c", 10.0)
	viper.SetDefault("control.max_target_c", 30.0)
	viper.SetDefault("control.max_power_w", 3500.0)
	return viper.ReadInConfig()
}

func settingsPath() string {
	if p := viper.GetString("settings.path"); p != "" {
		return p
	}
	return "configs/devices.yml"
}

func controlBounds() service.Bounds {
	return service.Bounds{
		MinTargetTempC: viper.GetFloat64("control.min_target_c"),
		MaxTargetTempC: viper.GetFloat64("control.max_target_c"),
		MaxPowerW:      viper.GetFloat64("control.max_power_w"),
	}
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "history.db")
		dbPath = "history.db"
	}
	return db.InitDB(dbPath)
}

// buildRegistry constructs one driver per configured device and seeds
// the initial state from config defaults.
func buildRegistry(fleet *settings.Settings) (*registry.Registry, error) {
	reg := registry.New()

	initialMode := proof_of_heat.Mode(viper.GetString("control.default_mode"))
	if !initialMode.Valid() {
		initialMode = proof_of_heat.ModeComfort
	}
	initialTarget := viper.GetFloat64("control.default_target_c")
	if initialTarget == 0 {
		initialTarget = 22.0
	}

	for _, dc := range fleet.Devices {
		dev := registry.Device{
			ID:              dc.ID,
			Kind:            proof_of_heat.DeviceKind(dc.Kind),
			RefreshInterval: fleet.Interval(dc),
			CommandTimeout:  dc.IOTimeout(),
			Driver:          buildDriver(dc),
		}
		initial := proof_of_heat.DeviceState{
			Mode:        initialMode,
			TargetTempC: initialTarget,
		}
		if err := reg.Register(dev, initial); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildDriver(dc settings.DeviceConfig) driver.Driver {
	switch proof_of_heat.DeviceKind(dc.Kind) {
	case proof_of_heat.KindWeatherProvider:
		return driver.NewOpenMeteo(driver.OpenMeteoConfig{
			Latitude:  dc.Latitude,
			Longitude: dc.Longitude,
			Timezone:  dc.Timezone,
			Timeout:   dc.IOTimeout(),
		})
	default:
		return driver.NewWhatsMiner(driver.WhatsMinerConfig{
			Host:     dc.Host,
			Port:     dc.Port,
			Login:    dc.Login,
			Password: dc.Password,
			Timeout:  dc.IOTimeout(),
		})
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
