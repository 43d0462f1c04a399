package walkforward

import (
	"sort"

	"edgeproof/internal/logger"
)

// Aggregate 把已排序的单元结果折叠成终态报告。
// 裁决规则：三项检验全部达标才是 validated；informative fold 不足 2 个
// 时为 insufficient_data；其余一律 rejected。
// 推荐生产参数与裁决无关：只要存在 OOS 为正的 fold 就选举并报告，
// 没有则为空。上不上线由裁决说了算，报告只负责给出胜出者。
func Aggregate(runID string, results []FoldResult, warnings []string, cfg ValidatorConfig) *ValidationReport {
	sort.Slice(results, func(i, j int) bool {
		if results[i].FoldID != results[j].FoldID {
			return results[i].FoldID < results[j].FoldID
		}
		return results[i].ScenarioID < results[j].ScenarioID
	})

	stats := Validate(results, cfg)
	report := &ValidationReport{
		RunID:       runID,
		Statistics:  stats,
		FoldResults: results,
		Production:  productionParams(results),
		Warnings:    warnings,
	}

	switch {
	case stats.InformativeFolds < 2:
		report.Verdict = VerdictInsufficientData
	case cfg.Passed(stats):
		report.Verdict = VerdictValidated
	default:
		report.Verdict = VerdictRejected
	}

	logger.Infof("[report] run=%s verdict=%s（informative=%d/%d consistency=%.2f p=%.4f eff=%.2f dsr=%.3f）",
		runID, report.Verdict, stats.InformativeFolds, stats.FoldCount,
		stats.ConsistencyRatio, stats.PValue, stats.Efficiency, stats.DeflatedSharpe)
	return report
}

// productionParams 在 OOS 为正的 informative fold 里选出现次数最多的
// 胜出参数组合，作为推荐生产参数。平票按 OOS 总收益高者优先，
// 再按 hash 字典序，保证同样输入永远选出同一组。
func productionParams(results []FoldResult) ParameterSet {
	type tally struct {
		params ParameterSet
		count  int
		oosSum float64
	}
	byHash := make(map[string]*tally)
	for _, r := range results {
		if !r.Informative() || r.OOSReturn <= 0 || len(r.Params) == 0 {
			continue
		}
		t, ok := byHash[r.ParamsHash]
		if !ok {
			t = &tally{params: r.Params}
			byHash[r.ParamsHash] = t
		}
		t.count++
		t.oosSum += r.OOSReturn
	}
	if len(byHash) == 0 {
		return nil
	}
	hashes := make([]string, 0, len(byHash))
	for h := range byHash {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		a, b := byHash[hashes[i]], byHash[hashes[j]]
		if a.count != b.count {
			return a.count > b.count
		}
		if a.oosSum != b.oosSum {
			return a.oosSum > b.oosSum
		}
		return hashes[i] < hashes[j]
	})
	return byHash[hashes[0]].params.Clone()
}
