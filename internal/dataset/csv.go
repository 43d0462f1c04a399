package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"edgeproof/internal/logger"
	"edgeproof/internal/market"
)

// ImportCSV 从 CSV 文件导入 K 线。
// 第一行必须是表头，至少包含 open_time,open,high,low,close,volume；
// close_time/trades 可选，缺省时 close_time 按下一行推不出来，置为 open_time。
// 任何一行解析失败立即中止，不做部分导入。
func (s *Store) ImportCSV(ctx context.Context, symbol, timeframe, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("打开 CSV 失败: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("读取表头失败: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"open_time", "open", "high", "low", "close", "volume"} {
		if _, ok := idx[required]; !ok {
			return 0, fmt.Errorf("CSV 缺少必需列 %q", required)
		}
	}

	var candles []market.Candle
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("第 %d 行解析失败: %w", line+1, err)
		}
		line++
		c, err := parseRecord(record, idx)
		if err != nil {
			return 0, fmt.Errorf("第 %d 行: %w", line, err)
		}
		candles = append(candles, c)
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("CSV 没有数据行")
	}

	n, err := s.InsertCandles(ctx, symbol, timeframe, candles)
	if err != nil {
		return 0, err
	}
	logger.Infof("[dataset] 从 %s 导入 %s@%s %d 根 K 线", path, symbol, timeframe, n)
	return n, nil
}

func parseRecord(record []string, idx map[string]int) (market.Candle, error) {
	field := func(name string) (string, bool) {
		i, ok := idx[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}
	mustInt := func(name string) (int64, error) {
		v, _ := field(name)
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("列 %s 无效: %q", name, v)
		}
		return n, nil
	}
	mustFloat := func(name string) (float64, error) {
		v, _ := field(name)
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("列 %s 无效: %q", name, v)
		}
		return f, nil
	}

	var c market.Candle
	var err error
	if c.OpenTime, err = mustInt("open_time"); err != nil {
		return c, err
	}
	if c.Open, err = mustFloat("open"); err != nil {
		return c, err
	}
	if c.High, err = mustFloat("high"); err != nil {
		return c, err
	}
	if c.Low, err = mustFloat("low"); err != nil {
		return c, err
	}
	if c.Close, err = mustFloat("close"); err != nil {
		return c, err
	}
	if c.Volume, err = mustFloat("volume"); err != nil {
		return c, err
	}
	c.CloseTime = c.OpenTime
	if v, ok := field("close_time"); ok && v != "" {
		if c.CloseTime, err = mustInt("close_time"); err != nil {
			return c, err
		}
	}
	if v, ok := field("trades"); ok && v != "" {
		if c.Trades, err = mustInt("trades"); err != nil {
			return c, err
		}
	}
	return c, nil
}
