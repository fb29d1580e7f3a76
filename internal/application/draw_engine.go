package application

import (
	"crypto/rand"
	"math/big"

	"github.com/sanosuguru/go-event-admission/internal/domain/participant"
)

// Random は [0, n) の一様乱数を返す
type Random interface {
	IntN(n int) int
}

// CryptoRandom は crypto/rand を使う Random
type CryptoRandom struct{}

func (CryptoRandom) IntN(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand.Reader は失敗しない
		panic(err)
	}
	return int(v.Int64())
}

// DrawEngine は参加者から当選者を無作為に選ぶ
type DrawEngine struct {
	rnd Random
}

// NewDrawEngine は DrawEngine を作成する。rnd が nil なら CryptoRandom を使う
func NewDrawEngine(rnd Random) *DrawEngine {
	if rnd == nil {
		rnd = CryptoRandom{}
	}
	return &DrawEngine{rnd: rnd}
}

// Select は pool から min(requested, len(pool)) 人を選ぶ。
// 部分 Fisher–Yates により、順序付きの k 人組はすべて等確率になる。pool は変更しない
func (d *DrawEngine) Select(pool []*participant.Participant, requested int) ([]*participant.Participant, error) {
	if len(pool) == 0 {
		return nil, participant.ErrEmptyPool
	}
	k := min(max(requested, 0), len(pool))
	if k == 0 {
		return nil, participant.ErrInvalidWinnerCount
	}

	shuffled := make([]*participant.Participant, len(pool))
	copy(shuffled, pool)
	for i := 0; i < k; i++ {
		j := i + d.rnd.IntN(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:k], nil
}
