// Package strategy 提供内置的参考策略实现。
// 引擎本身不认识任何具体策略，这里只是给验证流程一个开箱可用的基线。
package strategy

import (
	"fmt"
	"sort"

	"edgeproof/internal/walkforward"
)

var registry = map[string]walkforward.Strategy{}

func register(s walkforward.Strategy) {
	registry[s.Name()] = s
}

// ByName 按名称查找内置策略。
func ByName(name string) (walkforward.Strategy, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("未知策略: %q（可选: %v）", name, Names())
	}
	return s, nil
}

// Names 返回全部内置策略名，排序后输出。
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// intParam 取整数型参数，缺省或非正时回退默认值。
func intParam(p walkforward.ParameterSet, key string, def int) int {
	if v, ok := p[key]; ok && v > 0 {
		return int(v)
	}
	return def
}

func floatParam(p walkforward.ParameterSet, key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}
