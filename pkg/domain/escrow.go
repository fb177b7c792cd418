package domain

// ReleaseAmount computes the funds unlocked by a verified milestone: the
// release percent applied to currently locked funds, clamped so the escrow
// never goes negative.
func ReleaseAmount(locked, releasePercent int64) int64 {
	if locked <= 0 || releasePercent <= 0 {
		return 0
	}
	amount := locked * releasePercent / 100
	if amount > locked {
		amount = locked
	}
	return amount
}
