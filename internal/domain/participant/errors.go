package participant

import (
	"fmt"

	"github.com/sanosuguru/go-event-admission/internal/domain"
)

// Participant ドメインのエラー定義
var (
	ErrEventFull           = fmt.Errorf("%w: イベントは満員です", domain.ErrCapacity)
	ErrAlreadyJoined       = fmt.Errorf("%w: 既にこのイベントに参加しています", domain.ErrDuplicate)
	ErrParticipantNotFound = fmt.Errorf("%w: 参加者が見つかりません", domain.ErrNotFound)
	ErrEmptyPool           = fmt.Errorf("%w: 参加者がいないため抽選できません", domain.ErrEmptyPool)
	ErrInvalidWinnerCount  = fmt.Errorf("%w: 当選者数は1以上である必要があります", domain.ErrValidation)
	ErrUserIDRequired      = fmt.Errorf("%w: ユーザーIDは必須です", domain.ErrValidation)
)
