package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
)

const (
	// DatadirKey is the key to customize the omgd datadir.
	DatadirKey = "DATADIR"
	// DatabaseTypeKey is the key to customize the type of database to use.
	DatabaseTypeKey = "DATABASE_TYPE"
	// PortKey is the key to customize the port where the daemon will be
	// listening to.
	PortKey = "PORT"
	// ProfilerPortKey is the key to customize the port where the profiler will
	// be listening to.
	ProfilerPortKey = "PROFILER_PORT"
	// LogLevelKey is the key to customize the log level to catch more specific
	// or more high level logs.
	LogLevelKey = "LOG_LEVEL"
	// NoProfilerKey is the key to disable Prometheus profiling.
	NoProfilerKey = "NO_PROFILER"
	// StatsIntervalKey is the key to customize the interval for the profiler
	// to gather profiling stats.
	StatsIntervalKey = "STATS_INTERVAL"
	// UtxoExpiryDurationKey is the key to customize the waiting time for one
	// or more previously locked utxos to be unlocked if not yet spent.
	UtxoExpiryDurationKey = "UTXO_EXPIRY_DURATION_IN_SECONDS"
	// MaxInputsKey is the key to customize the slots available for the inputs
	// of a drafted transaction.
	MaxInputsKey = "MAX_INPUTS"
	// MaxOutputsKey is the key to customize the slots available for the
	// outputs of a drafted transaction.
	MaxOutputsKey = "MAX_OUTPUTS"
	// MergeCapKey is the key to customize how many extra utxos per currency
	// can be folded into a drafted transaction.
	MergeCapKey = "MERGE_CAP"

	// DbLocation is the folder inside the datadir containing db files.
	DbLocation = "db"
	// ProfilerLocation is the folder inside the datadir containing profiler
	// stats files.
	ProfilerLocation = "stats"

	// DbUserKey is user used to connect to db.
	DbUserKey = "DB_USER"
	// DbPassKey is password used to connect to db.
	DbPassKey = "DB_PASS"
	// DbHostKey is host where db is installed.
	DbHostKey = "DB_HOST"
	// DbPortKey is port on which db is listening.
	DbPortKey = "DB_PORT"
	// DbNameKey is name of database.
	DbNameKey = "DB_NAME"
	// DbMigrationPath is the path to migration files.
	DbMigrationPath = "DB_MIGRATION_PATH"
)

var (
	vip *viper.Viper

	defaultDatadir            = btcutil.AppDataDir("omgd", false)
	defaultDbType             = "badger"
	defaultPort               = 9656
	defaultLogLevel           = 4
	defaultProfilerPort       = 9657
	defaultStatsInterval      = 600 // 10 minutes
	defaultUtxoExpiryDuration = 360 // 6 minutes

	SupportedDbs = supportedType{
		"badger":   {},
		"inmemory": {},
		"postgres": {},
	}
)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("OMG")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(DatabaseTypeKey, defaultDbType)
	vip.SetDefault(PortKey, defaultPort)
	vip.SetDefault(LogLevelKey, defaultLogLevel)
	vip.SetDefault(NoProfilerKey, false)
	vip.SetDefault(ProfilerPortKey, defaultProfilerPort)
	vip.SetDefault(StatsIntervalKey, defaultStatsInterval)
	vip.SetDefault(UtxoExpiryDurationKey, defaultUtxoExpiryDuration)
	vip.SetDefault(MaxInputsKey, domain.DefaultMaxInputs)
	vip.SetDefault(MaxOutputsKey, domain.DefaultMaxOutputs)
	vip.SetDefault(MergeCapKey, domain.DefaultMergeCapPerCurrency)
	vip.SetDefault(DbUserKey, "root")
	vip.SetDefault(DbPassKey, "secret")
	vip.SetDefault(DbHostKey, "127.0.0.1")
	vip.SetDefault(DbPortKey, 5432)
	vip.SetDefault(DbNameKey, "omgd-db-pg")
	vip.SetDefault(DbMigrationPath, "file://internal/infrastructure/storage/db/postgres/migration")

	if err := validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	if err := initDatadir(); err != nil {
		log.Fatalf("config: error while creating datadir: %s", err)
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	dbType := GetString(DatabaseTypeKey)
	if _, ok := SupportedDbs[dbType]; !ok {
		return fmt.Errorf("unsupported database type, must be one of %s", SupportedDbs)
	}

	if err := GetProtocolParams().Validate(); err != nil {
		return err
	}

	port := GetInt(PortKey)
	noProfiler := GetBool(NoProfilerKey)
	if !noProfiler {
		profilerPort := GetInt(ProfilerPortKey)
		if port == profilerPort {
			return fmt.Errorf("port and profiler port must not be equal")
		}
	}

	return nil
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetProtocolParams returns the slot limits of drafted transactions.
func GetProtocolParams() domain.Params {
	return domain.Params{
		MaxInputs:           GetInt(MaxInputsKey),
		MaxOutputs:          GetInt(MaxOutputsKey),
		MergeCapPerCurrency: GetInt(MergeCapKey),
	}
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func Set(key string, val interface{}) {
	vip.Set(key, val)
}

func Unset(key string) {
	vip.Set(key, nil)
}

func IsSet(key string) bool {
	return vip.IsSet(key)
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}

	noProfiler := GetBool(NoProfilerKey)
	if !noProfiler {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation)); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}
