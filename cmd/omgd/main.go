package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	appconfig "github.com/javimaravillas/elixir-omg/internal/app-config"
	"github.com/javimaravillas/elixir-omg/internal/config"
	"github.com/javimaravillas/elixir-omg/internal/core/application"
	postgresdb "github.com/javimaravillas/elixir-omg/internal/infrastructure/storage/db/postgres"
	"github.com/javimaravillas/elixir-omg/internal/interfaces"
	http_interface "github.com/javimaravillas/elixir-omg/internal/interfaces/http"
	"github.com/javimaravillas/elixir-omg/pkg/profiler"
)

var (
	// Build info.
	version string
	commit  string
	date    string

	// Config from env vars.
	dbType             = config.GetString(config.DatabaseTypeKey)
	logLevel           = config.GetInt(config.LogLevelKey)
	datadir            = config.GetDatadir()
	port               = config.GetInt(config.PortKey)
	profilerPort       = config.GetInt(config.ProfilerPortKey)
	noProfiler         = config.GetBool(config.NoProfilerKey)
	dbDir              = filepath.Join(datadir, config.DbLocation)
	profilerDir        = filepath.Join(datadir, config.ProfilerLocation)
	statsInterval      = time.Duration(config.GetInt(config.StatsIntervalKey)) * time.Second
	utxoExpiryDuration = time.Duration(config.GetInt(config.UtxoExpiryDurationKey))
	protocolParams     = config.GetProtocolParams()
)

func main() {
	log.SetLevel(log.Level(logLevel))

	if profilerEnabled := !noProfiler; profilerEnabled {
		profilerSvc, err := profiler.NewService(profiler.ServiceOpts{
			Port:          profilerPort,
			StatsInterval: statsInterval,
			Datadir:       profilerDir,
		})
		if err != nil {
			log.WithError(err).Fatal("profiler: error while starting")
		}

		profilerSvc.Start()
		defer func() {
			profilerSvc.Stop()
		}()
	}

	var repoManagerConfig interface{} = dbDir
	if dbType == "postgres" {
		repoManagerConfig = postgresdb.DbConfig{
			DbUser:             config.GetString(config.DbUserKey),
			DbPassword:         config.GetString(config.DbPassKey),
			DbHost:             config.GetString(config.DbHostKey),
			DbPort:             config.GetInt(config.DbPortKey),
			DbName:             config.GetString(config.DbNameKey),
			MigrationSourceURL: config.GetString(config.DbMigrationPath),
		}
	}

	serviceCfg := http_interface.ServiceConfig{
		Port: port,
	}
	appCfg := &appconfig.AppConfig{
		Version:               version,
		Commit:                commit,
		Date:                  date,
		UtxoExpiryDuration:    utxoExpiryDuration * time.Second,
		Params:                protocolParams,
		FundSelectionStrategy: application.FundSelectionStrategyGreedy,
		RepoManagerType:       dbType,
		RepoManagerConfig:     repoManagerConfig,
	}

	serviceManager, err := interfaces.NewHttpServiceManager(serviceCfg, appCfg)
	if err != nil {
		log.WithError(err).Fatal("service: error while initializing")
	}
	defer func() {
		serviceManager.Service.Stop()
	}()

	if err := serviceManager.Service.Start(); err != nil {
		log.WithError(err).Fatal("service: error while starting")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
}
