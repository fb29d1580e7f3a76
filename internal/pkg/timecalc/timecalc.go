// Package timecalc はイベントの時刻計算を行う純粋関数群
package timecalc

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTimezone = errors.New("タイムゾーンが不正です")
	ErrInvalidInstant  = errors.New("時刻が不正です")
	ErrNotInFuture     = errors.New("時刻は未来である必要があります")
)

// AdmissionOpensAt は受付開始時刻（開始時刻 − max(offset, 0) 分）を返す
func AdmissionOpensAt(startsAt time.Time, offsetMinutes int) time.Time {
	if offsetMinutes < 0 {
		offsetMinutes = 0
	}
	return startsAt.Add(-time.Duration(offsetMinutes) * time.Minute)
}

// ReminderAt はリマインダー送信時刻を返す
func ReminderAt(startsAt time.Time, reminderMinutes int) time.Time {
	return startsAt.Add(-time.Duration(reminderMinutes) * time.Minute)
}

// IsPastOrNow は instant が now 以前かを返す
func IsPastOrNow(now, instant time.Time) bool {
	return !instant.After(now)
}

// EnsureFuture は instant が now より厳密に後であることを確認する
func EnsureFuture(now, instant time.Time) error {
	if instant.IsZero() {
		return ErrInvalidInstant
	}
	if IsPastOrNow(now, instant) {
		return ErrNotInFuture
	}
	return nil
}

// LoadLocation は IANA タイムゾーン名を解決する
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, ErrInvalidTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// InZone は instant を指定タイムゾーンで表した時刻を返す
func InZone(instant time.Time, name string) (time.Time, error) {
	loc, err := LoadLocation(name)
	if err != nil {
		return time.Time{}, err
	}
	return instant.In(loc), nil
}

// ParseLocal はタイムゾーン付きでないローカル日時文字列を指定タイムゾーンで解釈する。
// RFC3339 形式の場合は文字列中のオフセットを優先する
func ParseLocal(value, timezone string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidInstant, value)
}
