package walkforward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertFoldInvariants(t *testing.T, f Fold, span int) {
	t.Helper()
	assert.LessOrEqual(t, f.ISStart, f.PurgeStart, "fold %d: ISStart <= PurgeStart", f.ID)
	assert.LessOrEqual(t, f.PurgeStart, f.ISEnd, "fold %d: PurgeStart <= ISEnd", f.ID)
	assert.Equal(t, f.ISEnd, f.OOSStart, "fold %d: ISEnd == OOSStart", f.ID)
	assert.LessOrEqual(t, f.OOSStart, f.OOSEnd, "fold %d: OOSStart <= OOSEnd", f.ID)
	assert.LessOrEqual(t, f.OOSEnd, f.EmbargoEnd, "fold %d: OOSEnd <= EmbargoEnd", f.ID)
	assert.LessOrEqual(t, f.EmbargoEnd, span, "fold %d: EmbargoEnd <= span", f.ID)
}

func TestGenerateFolds_Basic(t *testing.T) {
	cfg := FoldConfig{ISLength: 600, OOSLength: 200, Step: 200, Lookback: 20}
	folds, warnings, err := GenerateFolds(1000, cfg)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, folds, 2)

	// purge = ceil(20 * 1.5) = 30
	assert.Equal(t, Fold{ID: 0, ISStart: 0, PurgeStart: 570, ISEnd: 600, OOSStart: 600, OOSEnd: 800, EmbargoEnd: 830}, folds[0])
	assert.Equal(t, 200, folds[1].ISStart)
	assert.Equal(t, 800, folds[1].OOSStart)
	assert.Equal(t, 1000, folds[1].OOSEnd)
	assert.Equal(t, 1000, folds[1].EmbargoEnd)

	for _, f := range folds {
		assertFoldInvariants(t, f, 1000)
	}
}

func TestGenerateFolds_InsufficientData(t *testing.T) {
	cfg := FoldConfig{ISLength: 600, OOSLength: 200, Step: 200, Lookback: 20}

	_, _, err := GenerateFolds(799, cfg)
	assert.ErrorIs(t, err, ErrInsufficientData)

	// 正好一个 fold 也不够
	_, _, err = GenerateFolds(800, cfg)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestGenerateFolds_ExplicitPurgeEmbargo(t *testing.T) {
	cfg := FoldConfig{ISLength: 100, OOSLength: 50, Step: 50, Lookback: 20, PurgeBars: 10, EmbargoBars: 5}
	folds, _, err := GenerateFolds(300, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, folds)
	assert.Equal(t, 90, folds[0].PurgeStart)
	assert.Equal(t, 155, folds[0].EmbargoEnd)
}

func TestGenerateFolds_EmbargoShiftsNextIS(t *testing.T) {
	// step 选得刚好让下一个 IS 起点落进上一个 fold 的 embargo 死区。
	cfg := FoldConfig{ISLength: 100, OOSLength: 50, Step: 160, Lookback: 10}
	folds, _, err := GenerateFolds(320, cfg)
	require.NoError(t, err)
	require.Len(t, folds, 2)

	// purge = embargo = ceil(10 * 1.5) = 15
	assert.Equal(t, 150, folds[0].OOSEnd)
	assert.Equal(t, 165, folds[0].EmbargoEnd)
	// 原始起点 160 ∈ [150, 165)，必须推到 165
	assert.Equal(t, 165, folds[1].ISStart)
	for _, f := range folds {
		assertFoldInvariants(t, f, 320)
	}
}

func TestGenerateFolds_Anchored(t *testing.T) {
	cfg := FoldConfig{ISLength: 100, OOSLength: 50, Step: 50, Lookback: 10, Anchored: true}
	folds, _, err := GenerateFolds(400, cfg)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(folds), 2)
	for i, f := range folds {
		assert.Equal(t, 0, f.ISStart, "anchored fold %d 的 IS 起点必须是 0", i)
	}
	// IS 逐步变长
	assert.Greater(t, folds[1].ISEnd, folds[0].ISEnd)
}

func TestGenerateFolds_DegenerateSkipped(t *testing.T) {
	// anchored 下第一个 fold 的 IS 只有 20 根，purge=30 把它整个吃掉。
	cfg := FoldConfig{ISLength: 20, OOSLength: 10, Step: 20, Lookback: 20, Anchored: true}
	folds, warnings, err := GenerateFolds(100, cfg)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "退化")
	// 被跳过的 fold 占用了 ID 0
	assert.Equal(t, 1, folds[0].ID)
}

func TestGenerateFolds_AllDegenerate(t *testing.T) {
	// 非 anchored：每个 IS 都是 20 根，purge=30 永远吃满。
	cfg := FoldConfig{ISLength: 20, OOSLength: 10, Step: 10, Lookback: 20}
	_, warnings, err := GenerateFolds(100, cfg)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.NotEmpty(t, warnings)
}

func TestGenerateFolds_ConfigValidation(t *testing.T) {
	base := FoldConfig{ISLength: 100, OOSLength: 50, Step: 50, Lookback: 10}

	t.Run("empty span", func(t *testing.T) {
		_, _, err := GenerateFolds(0, base)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})
	t.Run("zero lookback", func(t *testing.T) {
		cfg := base
		cfg.Lookback = 0
		_, _, err := GenerateFolds(1000, cfg)
		assert.Error(t, err)
	})
	t.Run("zero step", func(t *testing.T) {
		cfg := base
		cfg.Step = 0
		_, _, err := GenerateFolds(1000, cfg)
		assert.Error(t, err)
	})
}
