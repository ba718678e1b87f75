package postgresdb

import (
	"context"
	"sync"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
)

const (
	utxoFields = `
		blk_num, tx_index, o_index, owner, currency, amount,
		lock_timestamp, lock_expiry_timestamp,
		spent_txid, spent_block_hash, spent_block_height, spent_block_time,
		confirmed_txid, confirmed_block_hash, confirmed_block_height,
		confirmed_block_time`

	insertUtxoQuery = `
		INSERT INTO utxos (` + utxoFields + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	selectUtxosQuery = `SELECT ` + utxoFields + ` FROM utxos`

	updateUtxoQuery = `
		UPDATE utxos SET
			lock_timestamp = $4, lock_expiry_timestamp = $5,
			spent_txid = $6, spent_block_hash = $7, spent_block_height = $8,
			spent_block_time = $9,
			confirmed_txid = $10, confirmed_block_hash = $11,
			confirmed_block_height = $12, confirmed_block_time = $13
		WHERE blk_num = $1 AND tx_index = $2 AND o_index = $3`

	// A utxo is spent when a spending txid is recorded and confirmed when
	// any block info is recorded.
	spentCondition     = `spent_txid <> ''`
	confirmedCondition = `(confirmed_block_height > 0 OR ` +
		`confirmed_block_time > 0 OR confirmed_block_hash <> '')`

	balanceQuery = `
		SELECT currency,
			COALESCE(SUM(CASE
				WHEN lock_timestamp > 0 THEN amount ELSE 0
			END), 0)::TEXT,
			COALESCE(SUM(CASE
				WHEN lock_timestamp = 0 AND ` + confirmedCondition + ` THEN amount
				ELSE 0
			END), 0)::TEXT,
			COALESCE(SUM(CASE
				WHEN lock_timestamp = 0 AND NOT ` + confirmedCondition + ` THEN amount
				ELSE 0
			END), 0)::TEXT
		FROM utxos WHERE owner = $1 AND NOT ` + spentCondition + `
		GROUP BY currency`
)

type utxoRepositoryPg struct {
	pgxPool          *pgxpool.Pool
	chLock           *sync.Mutex
	chEvents         chan domain.UtxoEvent
	externalChEvents chan domain.UtxoEvent
}

func NewUtxoRepositoryPgImpl(pgxPool *pgxpool.Pool) domain.UtxoRepository {
	return newUtxoRepositoryPgImpl(pgxPool)
}

func newUtxoRepositoryPgImpl(pgxPool *pgxpool.Pool) *utxoRepositoryPg {
	return &utxoRepositoryPg{
		pgxPool:          pgxPool,
		chLock:           &sync.Mutex{},
		chEvents:         make(chan domain.UtxoEvent),
		externalChEvents: make(chan domain.UtxoEvent),
	}
}

func (u *utxoRepositoryPg) AddUtxos(
	ctx context.Context, utxos []*domain.Utxo,
) (int, error) {
	count := 0
	added := make([]*domain.Utxo, 0, len(utxos))
	for _, v := range utxos {
		if _, err := u.pgxPool.Exec(
			ctx, insertUtxoQuery,
			int64(v.BlkNum), int32(v.TxIndex), int32(v.OIndex),
			v.Owner, v.Currency, int64(v.Amount),
			v.LockTimestamp, v.LockExpiryTimestamp,
			v.SpentStatus.Txid, v.SpentStatus.BlockHash,
			int64(v.SpentStatus.BlockHeight), v.SpentStatus.BlockTime,
			v.ConfirmedStatus.Txid, v.ConfirmedStatus.BlockHash,
			int64(v.ConfirmedStatus.BlockHeight), v.ConfirmedStatus.BlockTime,
		); err != nil {
			if pqErr, ok := err.(*pgconn.PgError); pqErr != nil && ok &&
				pqErr.Code == uniqueViolation {
				continue
			}
			return 0, err
		}

		added = append(added, v)
		count++
	}

	if count > 0 {
		go u.publishEvent(domain.UtxoEvent{
			EventType: domain.UtxoAdded,
			Utxos:     added,
		})
	}

	return count, nil
}

func (u *utxoRepositoryPg) GetUtxosByKey(
	ctx context.Context, utxoKeys []domain.UtxoKey,
) ([]*domain.Utxo, error) {
	utxos := make([]*domain.Utxo, 0, len(utxoKeys))
	for _, key := range utxoKeys {
		utxo, err := u.getUtxo(ctx, key)
		if err != nil {
			return nil, err
		}
		if utxo != nil {
			utxos = append(utxos, utxo)
		}
	}
	return utxos, nil
}

func (u *utxoRepositoryPg) GetAllUtxos(
	ctx context.Context,
) ([]*domain.Utxo, error) {
	return u.findUtxos(ctx, selectUtxosQuery)
}

func (u *utxoRepositoryPg) GetAllUtxosForOwner(
	ctx context.Context, owner string,
) ([]*domain.Utxo, error) {
	return u.findUtxos(ctx, selectUtxosQuery+` WHERE owner = $1`, owner)
}

func (u *utxoRepositoryPg) GetSpendableUtxosForOwner(
	ctx context.Context, owner string,
) (map[string][]*domain.Utxo, error) {
	utxos, err := u.findUtxos(
		ctx,
		selectUtxosQuery+` WHERE owner = $1 AND NOT `+spentCondition+
			` AND `+confirmedCondition+` AND lock_timestamp = 0`,
		owner,
	)
	if err != nil {
		return nil, err
	}
	return domain.GroupUtxosByCurrency(utxos), nil
}

func (u *utxoRepositoryPg) GetLockedUtxosForOwner(
	ctx context.Context, owner string,
) ([]*domain.Utxo, error) {
	return u.findUtxos(
		ctx,
		selectUtxosQuery+` WHERE owner = $1 AND NOT `+spentCondition+
			` AND lock_timestamp > 0`,
		owner,
	)
}

func (u *utxoRepositoryPg) GetBalanceForOwner(
	ctx context.Context, owner string,
) (map[string]*domain.Balance, error) {
	rows, err := u.pgxPool.Query(ctx, balanceQuery, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balance := make(map[string]*domain.Balance)
	for rows.Next() {
		var currency, locked, confirmed, unconfirmed string
		if err := rows.Scan(
			&currency, &locked, &confirmed, &unconfirmed,
		); err != nil {
			return nil, err
		}

		lockedAmount, err := parseAmount(locked)
		if err != nil {
			return nil, err
		}
		confirmedAmount, err := parseAmount(confirmed)
		if err != nil {
			return nil, err
		}
		unconfirmedAmount, err := parseAmount(unconfirmed)
		if err != nil {
			return nil, err
		}

		balance[currency] = &domain.Balance{
			Locked:      lockedAmount,
			Confirmed:   confirmedAmount,
			Unconfirmed: unconfirmedAmount,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return balance, nil
}

func (u *utxoRepositoryPg) SpendUtxos(
	ctx context.Context, utxoKeys []domain.UtxoKey, status domain.UtxoStatus,
) (int, error) {
	count := 0
	spent := make([]*domain.Utxo, 0, len(utxoKeys))
	for _, key := range utxoKeys {
		utxo, err := u.getUtxo(ctx, key)
		if err != nil {
			return -1, err
		}
		if utxo == nil || utxo.IsSpent() {
			continue
		}

		if err := utxo.Spend(status); err != nil {
			return -1, err
		}
		if err := u.updateUtxo(ctx, utxo); err != nil {
			return -1, err
		}

		count++
		spent = append(spent, utxo)
	}

	if count > 0 {
		go u.publishEvent(domain.UtxoEvent{
			EventType: domain.UtxoSpent,
			Utxos:     spent,
		})
	}

	return count, nil
}

func (u *utxoRepositoryPg) ConfirmUtxos(
	ctx context.Context, utxoKeys []domain.UtxoKey, status domain.UtxoStatus,
) (int, error) {
	count := 0
	confirmed := make([]*domain.Utxo, 0, len(utxoKeys))
	for _, key := range utxoKeys {
		utxo, err := u.getUtxo(ctx, key)
		if err != nil {
			return -1, err
		}
		if utxo == nil || utxo.IsConfirmed() {
			continue
		}

		if err := utxo.Confirm(status); err != nil {
			return -1, err
		}
		if err := u.updateUtxo(ctx, utxo); err != nil {
			return -1, err
		}

		count++
		confirmed = append(confirmed, utxo)
	}

	if count > 0 {
		go u.publishEvent(domain.UtxoEvent{
			EventType: domain.UtxoConfirmed,
			Utxos:     confirmed,
		})
	}

	return count, nil
}

func (u *utxoRepositoryPg) LockUtxos(
	ctx context.Context, utxoKeys []domain.UtxoKey,
	timestamp, expiryTimestamp int64,
) (int, error) {
	count := 0
	locked := make([]*domain.Utxo, 0, len(utxoKeys))
	for _, key := range utxoKeys {
		utxo, err := u.getUtxo(ctx, key)
		if err != nil {
			return -1, err
		}
		if utxo == nil || utxo.IsLocked() {
			continue
		}

		utxo.Lock(timestamp, expiryTimestamp)
		if err := u.updateUtxo(ctx, utxo); err != nil {
			return -1, err
		}

		count++
		locked = append(locked, utxo)
	}

	if count > 0 {
		go u.publishEvent(domain.UtxoEvent{
			EventType: domain.UtxoLocked,
			Utxos:     locked,
		})
	}

	return count, nil
}

func (u *utxoRepositoryPg) UnlockUtxos(
	ctx context.Context, utxoKeys []domain.UtxoKey,
) (int, error) {
	count := 0
	unlocked := make([]*domain.Utxo, 0, len(utxoKeys))
	for _, key := range utxoKeys {
		utxo, err := u.getUtxo(ctx, key)
		if err != nil {
			return -1, err
		}
		if utxo == nil || !utxo.IsLocked() {
			continue
		}

		utxo.Unlock()
		if err := u.updateUtxo(ctx, utxo); err != nil {
			return -1, err
		}

		count++
		unlocked = append(unlocked, utxo)
	}

	if count > 0 {
		go u.publishEvent(domain.UtxoEvent{
			EventType: domain.UtxoUnlocked,
			Utxos:     unlocked,
		})
	}

	return count, nil
}

func (u *utxoRepositoryPg) DeleteUtxosForOwner(
	ctx context.Context, owner string,
) error {
	_, err := u.pgxPool.Exec(ctx, `DELETE FROM utxos WHERE owner = $1`, owner)
	return err
}

func (u *utxoRepositoryPg) GetEventChannel() chan domain.UtxoEvent {
	return u.externalChEvents
}

func (u *utxoRepositoryPg) getUtxo(
	ctx context.Context, key domain.UtxoKey,
) (*domain.Utxo, error) {
	row := u.pgxPool.QueryRow(
		ctx,
		selectUtxosQuery+` WHERE blk_num = $1 AND tx_index = $2 AND o_index = $3`,
		int64(key.BlkNum), int32(key.TxIndex), int32(key.OIndex),
	)

	utxo, err := scanUtxo(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return utxo, nil
}

func (u *utxoRepositoryPg) findUtxos(
	ctx context.Context, query string, args ...interface{},
) ([]*domain.Utxo, error) {
	rows, err := u.pgxPool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	utxos := make([]*domain.Utxo, 0)
	for rows.Next() {
		utxo, err := scanUtxo(rows)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, utxo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return utxos, nil
}

func (u *utxoRepositoryPg) updateUtxo(
	ctx context.Context, utxo *domain.Utxo,
) error {
	_, err := u.pgxPool.Exec(
		ctx, updateUtxoQuery,
		int64(utxo.BlkNum), int32(utxo.TxIndex), int32(utxo.OIndex),
		utxo.LockTimestamp, utxo.LockExpiryTimestamp,
		utxo.SpentStatus.Txid, utxo.SpentStatus.BlockHash,
		int64(utxo.SpentStatus.BlockHeight), utxo.SpentStatus.BlockTime,
		utxo.ConfirmedStatus.Txid, utxo.ConfirmedStatus.BlockHash,
		int64(utxo.ConfirmedStatus.BlockHeight), utxo.ConfirmedStatus.BlockTime,
	)
	return err
}

func (u *utxoRepositoryPg) publishEvent(event domain.UtxoEvent) {
	u.chLock.Lock()
	defer u.chLock.Unlock()

	u.chEvents <- event

	// send over channel without blocking in case nobody is listening.
	select {
	case u.externalChEvents <- event:
	default:
	}
}

func (u *utxoRepositoryPg) reset(ctx context.Context) {
	//nolint
	u.pgxPool.Exec(ctx, `DELETE FROM utxos`)
}

func (u *utxoRepositoryPg) close() {
	close(u.chEvents)
	close(u.externalChEvents)
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanUtxo(row scannable) (*domain.Utxo, error) {
	var blkNum, amount, spentBlockHeight, confirmedBlockHeight int64
	var txIndex, oIndex int32
	utxo := &domain.Utxo{}
	if err := row.Scan(
		&blkNum, &txIndex, &oIndex, &utxo.Owner, &utxo.Currency, &amount,
		&utxo.LockTimestamp, &utxo.LockExpiryTimestamp,
		&utxo.SpentStatus.Txid, &utxo.SpentStatus.BlockHash,
		&spentBlockHeight, &utxo.SpentStatus.BlockTime,
		&utxo.ConfirmedStatus.Txid, &utxo.ConfirmedStatus.BlockHash,
		&confirmedBlockHeight, &utxo.ConfirmedStatus.BlockTime,
	); err != nil {
		return nil, err
	}

	utxo.BlkNum = uint64(blkNum)
	utxo.TxIndex = uint32(txIndex)
	utxo.OIndex = uint32(oIndex)
	utxo.Amount = uint64(amount)
	utxo.SpentStatus.BlockHeight = uint64(spentBlockHeight)
	utxo.ConfirmedStatus.BlockHeight = uint64(confirmedBlockHeight)
	return utxo, nil
}

func parseAmount(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.BigInt().Uint64(), nil
}
