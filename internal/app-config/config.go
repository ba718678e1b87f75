package appconfig

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/javimaravillas/elixir-omg/internal/config"
	"github.com/javimaravillas/elixir-omg/internal/core/application"
	"github.com/javimaravillas/elixir-omg/internal/core/domain"
	"github.com/javimaravillas/elixir-omg/internal/core/ports"
	dbbadger "github.com/javimaravillas/elixir-omg/internal/infrastructure/storage/db/badger"
	"github.com/javimaravillas/elixir-omg/internal/infrastructure/storage/db/inmemory"
	postgresdb "github.com/javimaravillas/elixir-omg/internal/infrastructure/storage/db/postgres"
	rlp_serializer "github.com/javimaravillas/elixir-omg/internal/infrastructure/tx-serializer/rlp"
)

// AppConfig is the struct holding all configuration options for the
// transaction application service and the portable services used by it.
// This data structure acts also as a factory of the mentioned services.
// Public config args:
//   - UtxoExpiryDuration - (required) The duration in seconds for the app service to wait until unlocking one or more previously locked utxos.
//   - Params - (required) The protocol constants bounding the shape of drafted transactions.
//   - RepoManagerType - (required) One of the supported repository manager types.
//   - RepoManagerConfig - (optional) Custom config args for the repository manager based on its type.
type AppConfig struct {
	Version string
	Commit  string
	Date    string

	UtxoExpiryDuration    time.Duration
	Params                domain.Params
	FundSelectionStrategy int

	RepoManagerType   string
	RepoManagerConfig interface{}

	rm           ports.RepoManager
	txSerializer ports.TxSerializer
	txSvc        *application.TransactionService
}

func (c *AppConfig) Validate() error {
	if c.UtxoExpiryDuration == 0 {
		return fmt.Errorf("missing utxo expiry duration")
	}
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if len(c.RepoManagerType) == 0 {
		return fmt.Errorf("missing repo manager type")
	}
	if _, ok := config.SupportedDbs[c.RepoManagerType]; !ok {
		return fmt.Errorf(
			"repo manager type not supported, must be one of: %s",
			config.SupportedDbs,
		)
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}

	return nil
}

func (c *AppConfig) RepoManager() ports.RepoManager {
	return c.rm
}

func (c *AppConfig) TransactionService() (*application.TransactionService, error) {
	return c.transactionService()
}

func (c *AppConfig) repoManager() (ports.RepoManager, error) {
	if c.rm != nil {
		return c.rm, nil
	}

	switch c.RepoManagerType {
	case "inmemory":
		c.rm = inmemory.NewRepoManager()
		return c.rm, nil
	case "badger":
		if c.RepoManagerConfig == nil {
			return nil, fmt.Errorf("missing repo manager config args")
		}
		datadir, ok := c.RepoManagerConfig.(string)
		if !ok {
			return nil, fmt.Errorf("invalid repo manager config type, must be string")
		}
		rm, err := dbbadger.NewRepoManager(datadir, log.New())
		if err != nil {
			return nil, err
		}
		c.rm = rm
		return c.rm, nil
	case "postgres":
		dbConfig, ok := c.RepoManagerConfig.(postgresdb.DbConfig)
		if !ok {
			return nil, fmt.Errorf("invalid repo manager config type, must be postgresdb.DbConfig")
		}

		rm, err := postgresdb.NewRepoManager(dbConfig)
		if err != nil {
			return nil, err
		}

		c.rm = rm
		return c.rm, nil
	default:
		return nil, fmt.Errorf("unknown repo manager type")
	}
}

func (c *AppConfig) serializer() ports.TxSerializer {
	if c.txSerializer != nil {
		return c.txSerializer
	}

	c.txSerializer = rlp_serializer.NewRLPTxSerializer()
	return c.txSerializer
}

func (c *AppConfig) transactionService() (*application.TransactionService, error) {
	if c.txSvc != nil {
		return c.txSvc, nil
	}

	rm, err := c.repoManager()
	if err != nil {
		return nil, err
	}

	svc, err := application.NewTransactionService(
		rm, c.serializer(), c.FundSelectionStrategy, c.Params,
		c.UtxoExpiryDuration,
	)
	if err != nil {
		return nil, err
	}

	c.txSvc = svc
	return c.txSvc, nil
}
