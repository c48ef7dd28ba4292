// Package indicator
package indicator

import (
	"github.com/zuoky/nanotrader/internal/tick"
)

// Direction computes a momentum bias from a single tick's level-1 quote.
// It is the difference between the median price and the volume-weighted
// expected execution price anchored at the bid:
//
//	medianPrice = (ask + bid) / 2
//	volumeAdjusted = (ask*askVol - bid*bidVol) / (askVol + bidVol) - bid
//	direction = medianPrice - volumeAdjusted
//
// Positive values bias toward buying above the bid, negative toward selling
// below the ask. A tick with zero total volume carries no signal and yields
// exactly 0 rather than a division error.
func Direction(t tick.Tick) float64 {
	totalVolume := t.AskVolume + t.BidVolume
	if totalVolume == 0 {
		return 0
	}

	medianPrice := (t.AskPrice + t.BidPrice) / 2
	volumeAdjusted := (t.AskPrice*t.AskVolume-t.BidPrice*t.BidVolume)/totalVolume - t.BidPrice

	return medianPrice - volumeAdjusted
}
