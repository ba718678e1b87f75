package db_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math/big"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
)

var (
	ctx = context.Background()

	owner      = randomAddress()
	wrongOwner = randomAddress()

	currencies = []string{randomAddress(), randomAddress()}
)

func randomUtxosForOwner(
	owner string,
) ([]*domain.Utxo, []domain.UtxoKey, map[string]*domain.Balance) {
	num := randomIntInRange(1, 5)
	utxos := make([]*domain.Utxo, 0, num)
	keys := make([]domain.UtxoKey, 0, num)
	balanceByCurrency := make(map[string]*domain.Balance)
	for i := 0; i < num; i++ {
		key := randomKey()
		utxo := &domain.Utxo{
			UtxoKey:  key,
			Owner:    owner,
			Currency: currencies[randomIntInRange(0, 2)],
			Amount:   randomAmount(),
		}

		if _, ok := balanceByCurrency[utxo.Currency]; !ok {
			balanceByCurrency[utxo.Currency] = &domain.Balance{}
		}
		balanceByCurrency[utxo.Currency].Unconfirmed += utxo.Amount
		keys = append(keys, key)
		utxos = append(utxos, utxo)
	}
	return utxos, keys, balanceByCurrency
}

func randomTx(owner string) *domain.Transaction {
	return &domain.Transaction{
		Txid:  randomHex(32),
		Raw:   randomHex(100),
		Owner: owner,
	}
}

func randomKey() domain.UtxoKey {
	return domain.UtxoKey{
		BlkNum:  uint64(randomIntInRange(1, 1000000)),
		TxIndex: uint32(randomIntInRange(0, 1000)),
		OIndex:  uint32(randomIntInRange(0, 3)),
	}
}

func randomAddress() string {
	return "0x" + randomHex(20)
}

func randomHex(len int) string {
	return hex.EncodeToString(randomBytes(len))
}

func randomAmount() uint64 {
	return uint64(randomIntInRange(1, 1000000))
}

func randomBytes(len int) []byte {
	b := make([]byte, len)
	rand.Read(b)
	return b
}

func randomIntInRange(min, max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	return int(n.Int64()) + min
}
