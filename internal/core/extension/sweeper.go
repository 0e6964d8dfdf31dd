package extension

import "time"

// Sweep は延長の期限切れ判定を行う純粋関数です。
// PENDING かつ now が ExpiresAt を過ぎていれば EXPIRED にした値と true を返します。
// 同じ (ext, now) に何度適用しても結果は変わりません。
func Sweep(ext Extension, now time.Time) (Extension, bool) {
	if ext.Status != StatusPending || !now.After(ext.ExpiresAt) {
		return ext, false
	}
	ext.Status = StatusExpired
	ext.UpdatedAt = now
	return ext, true
}
