package domain

import "errors"

// エラー種別。各ドメインパッケージのエラーはいずれか1つをラップする
var (
	ErrValidation = errors.New("入力値が不正です")
	ErrState      = errors.New("現在の状態では実行できません")
	ErrCapacity   = errors.New("定員に達しています")
	ErrDuplicate  = errors.New("既に登録されています")
	ErrNotFound   = errors.New("見つかりません")
	ErrEmptyPool  = errors.New("抽選対象の参加者がいません")
)

var kinds = []error{ErrValidation, ErrState, ErrCapacity, ErrDuplicate, ErrNotFound, ErrEmptyPool}

// KindOf はエラーの種別を返す。どれにも該当しない場合は nil
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
