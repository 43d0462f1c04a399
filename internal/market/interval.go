package market

import (
	"strconv"
	"strings"
	"time"
)

// ParseInterval parses "15m", "1h", "4h", "1d", "1w" into time.Duration.
// Returns (0, false) on invalid input.
func ParseInterval(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return 0, false
	}
	unit := interval[len(interval)-1]
	numStr := strings.TrimSpace(interval[:len(interval)-1])
	if numStr == "" {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// DropUnclosed 去掉序列尾部尚未收盘的 K 线：回测只认收盘价，
// 半根 K 线混进来会让同一次运行的结果不可复现。
func DropUnclosed(candles []Candle, interval time.Duration, now time.Time) []Candle {
	if interval <= 0 || len(candles) == 0 {
		return candles
	}
	cutoff := now.UnixMilli()
	n := len(candles)
	for n > 0 && candles[n-1].OpenTime+interval.Milliseconds() > cutoff {
		n--
	}
	return candles[:n]
}
