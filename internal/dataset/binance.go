package dataset

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"edgeproof/internal/logger"
	"edgeproof/internal/market"
)

const fetchBatchLimit = 1500

// BinanceFetcher 从 Binance 合约 REST 接口回补历史 K 线。
type BinanceFetcher struct {
	client *futures.Client
}

// NewBinanceFetcher 创建只读的行情客户端。baseURL 为空用官方地址。
func NewBinanceFetcher(baseURL string, timeout time.Duration) *BinanceFetcher {
	client := futures.NewClient("", "")
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		client.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &BinanceFetcher{client: client}
}

// Backfill 按时间窗口分页拉取 [start, end] 的 K 线并写入 store。
// 未收盘的尾部 K 线会被丢弃。返回实际写入的根数。
func (f *BinanceFetcher) Backfill(ctx context.Context, store *Store, symbol, interval string, start, end int64) (int, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("symbol 不能为空")
	}
	// Binance 的 symbol 不带斜杠（ETH/USDT -> ETHUSDT）。
	cleanSymbol := strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))

	interval = strings.ToLower(strings.TrimSpace(interval))
	dur, ok := market.ParseInterval(interval)
	if !ok {
		return 0, fmt.Errorf("无效的 interval: %q", interval)
	}
	if end <= 0 {
		end = time.Now().UnixMilli()
	}
	if start <= 0 || start >= end {
		return 0, fmt.Errorf("start/end 区间无效: %d~%d", start, end)
	}

	total := 0
	cursor := start
	for cursor < end {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		kls, err := f.client.NewKlinesService().
			Symbol(cleanSymbol).
			Interval(interval).
			StartTime(cursor).
			EndTime(end).
			Limit(fetchBatchLimit).
			Do(ctx)
		if err != nil {
			return total, fmt.Errorf("拉取 %s %s K 线失败: %w", cleanSymbol, interval, err)
		}
		if len(kls) == 0 {
			break
		}
		batch := make([]market.Candle, 0, len(kls))
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			batch = append(batch, market.Candle{
				OpenTime:  kl.OpenTime,
				CloseTime: kl.CloseTime,
				Open:      parseFloat(kl.Open),
				High:      parseFloat(kl.High),
				Low:       parseFloat(kl.Low),
				Close:     parseFloat(kl.Close),
				Volume:    parseFloat(kl.Volume),
				Trades:    kl.TradeNum,
			})
		}
		batch = market.DropUnclosed(batch, dur, time.Now())
		if len(batch) == 0 {
			break
		}
		n, err := store.InsertCandles(ctx, symbol, interval, batch)
		if err != nil {
			return total, err
		}
		total += n
		next := batch[len(batch)-1].OpenTime + dur.Milliseconds()
		if next <= cursor {
			break
		}
		cursor = next
		if len(kls) < fetchBatchLimit {
			break
		}
	}
	logger.Infof("[dataset] 回补 %s@%s 共 %d 根 K 线（%d~%d）", symbol, interval, total, start, end)
	return total, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
