package event

import (
	"fmt"

	"github.com/sanosuguru/go-event-admission/internal/domain"
)

// Event ドメインのエラー定義
var (
	ErrEventNotFound          = fmt.Errorf("%w: イベントが見つかりません", domain.ErrNotFound)
	ErrTitleRequired          = fmt.Errorf("%w: イベント名は必須です", domain.ErrValidation)
	ErrInvalidSlots           = fmt.Errorf("%w: 定員は1以上である必要があります", domain.ErrValidation)
	ErrSlotsBelowParticipants = fmt.Errorf("%w: 定員を現在の参加者数より少なくできません", domain.ErrValidation)
	ErrStartNotInFuture       = fmt.Errorf("%w: 開始時刻は未来である必要があります", domain.ErrValidation)
	ErrInvalidAdmissionOffset = fmt.Errorf("%w: 受付オフセットは0〜1440分である必要があります", domain.ErrValidation)
	ErrInvalidReminder        = fmt.Errorf("%w: リマインダーは5〜1440分である必要があります", domain.ErrValidation)
	ErrInvalidTimezone        = fmt.Errorf("%w: タイムゾーンが不正です", domain.ErrValidation)
	ErrInvalidLink            = fmt.Errorf("%w: リンクは http:// または https:// で始まる必要があります", domain.ErrValidation)
	ErrNoChanges              = fmt.Errorf("%w: 変更内容がありません", domain.ErrValidation)
	ErrEventNotActive         = fmt.Errorf("%w: イベントは既に中止されています", domain.ErrState)
	ErrAdmissionClosed        = fmt.Errorf("%w: 受付はまだ開始されていません", domain.ErrState)
	ErrAdmissionAlreadyOpen   = fmt.Errorf("%w: 受付は既に開始されています", domain.ErrState)
	ErrOptimisticLockConflict = fmt.Errorf("%w: 楽観的ロックの競合が発生しました", domain.ErrState)
)
