package participant

import "time"

// Participant はイベント参加者を表す。(EventID, UserID) で一意
type Participant struct {
	EventID  string
	UserID   string
	UserTag  string
	JoinedAt time.Time
	Position int // 1始まり、参加順で詰められる
	Admitted bool
}

// NewParticipant は新しい参加者を作成する。Position はリポジトリが採番する
func NewParticipant(eventID, userID, userTag string, joinedAt time.Time) *Participant {
	return &Participant{
		EventID:  eventID,
		UserID:   userID,
		UserTag:  userTag,
		JoinedAt: joinedAt,
	}
}

// Validate は参加者の検証を行う
func (p *Participant) Validate() error {
	if p.UserID == "" {
		return ErrUserIDRequired
	}
	return nil
}

// UserIDs は参加者のユーザーIDを順に返す
func UserIDs(ps []*Participant) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.UserID
	}
	return ids
}
