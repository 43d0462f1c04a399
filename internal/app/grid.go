package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"edgeproof/internal/walkforward"
)

// gridFile 是参数网格文件的结构：
//
//	grid:
//	  fast: [5, 10, 20]
//	  slow: [50, 100, 200]
type gridFile struct {
	Grid map[string][]float64 `yaml:"grid"`
}

// LoadGridFile 从 YAML 文件读取参数网格。
func LoadGridFile(path string) (walkforward.ParameterGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取网格文件失败: %w", err)
	}
	var gf gridFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("解析网格文件失败 (%s): %w", path, err)
	}
	if len(gf.Grid) == 0 {
		return nil, fmt.Errorf("网格文件 %s 没有 grid 段", path)
	}
	return walkforward.ParameterGrid(gf.Grid), nil
}
