package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/backend/internal/domain/priority"
	"github.com/pulseboard/backend/internal/domain/retention"
)

// writeRulesFile 写入规则文件
func writeRulesFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestRulesWatcher_NilWhenNoPath(t *testing.T) {
	w, err := NewRulesWatcher("", priority.NewClassifier(nil), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestRulesWatcher_LoadsOnStart(t *testing.T) {
	tmpDir := t.TempDir()
	rulesPath := filepath.Join(tmpDir, "rules.yaml")
	writeRulesFile(t, rulesPath, `
version: 7
rules:
  - type: CustomAlert
    priority: 1
    reason: custom alert
`)

	classifier := priority.NewClassifier(nil)
	w, err := NewRulesWatcher(rulesPath, classifier, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	assert.Equal(t, 7, classifier.RulesVersion())

	level, _ := classifier.Classify("CustomAlert", nil)
	assert.Equal(t, 1, level)
}

func TestRulesWatcher_ReloadsOnChange(t *testing.T) {
	tmpDir := t.TempDir()
	rulesPath := filepath.Join(tmpDir, "rules.yaml")
	writeRulesFile(t, rulesPath, `
version: 1
rules:
  - type: CustomAlert
    priority: 1
`)

	classifier := priority.NewClassifier(nil)
	w, err := NewRulesWatcher(rulesPath, classifier, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	writeRulesFile(t, rulesPath, `
version: 2
rules:
  - type: CustomAlert
    priority: 2
`)

	assert.Eventually(t, func() bool {
		return classifier.RulesVersion() == 2
	}, 5*time.Second, 50*time.Millisecond, "规则文件变更后应重新加载")
}

func TestRulesWatcher_ReloadsRetentionPolicy(t *testing.T) {
	tmpDir := t.TempDir()
	rulesPath := filepath.Join(tmpDir, "rules.yaml")
	writeRulesFile(t, rulesPath, `
version: 1
rules:
  - type: CustomAlert
    priority: 1
`)

	classifier := priority.NewClassifier(nil)
	engine := retention.NewEngine(nil)
	w, err := NewRulesWatcher(rulesPath, classifier, engine, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.Equal(t, 24*time.Hour, engine.Window(1))

	// 文件声明新的保留窗口后引擎无需重启即生效
	writeRulesFile(t, rulesPath, `
version: 2
retention:
  windows:
    0: 2h
    1: 8h
rules:
  - type: CustomAlert
    priority: 1
`)

	require.Eventually(t, func() bool {
		return engine.Window(1) == 8*time.Hour
	}, 5*time.Second, 50*time.Millisecond, "保留窗口应随文件热加载")
	assert.Equal(t, 2*time.Hour, engine.Window(0))

	// 查询按新窗口，删除在显式迁移前保留旧窗口保底
	now := time.Now()
	assert.WithinDuration(t, now.Add(-8*time.Hour), engine.QueryCutoff(1, now), time.Second)
	assert.WithinDuration(t, now.Add(-24*time.Hour), engine.SweepCutoff(1, now), time.Second)

	// migrate: true 确认迁移，删除窗口切换到新策略
	writeRulesFile(t, rulesPath, `
version: 3
retention:
  windows:
    0: 2h
    1: 8h
  migrate: true
rules:
  - type: CustomAlert
    priority: 1
`)

	require.Eventually(t, func() bool {
		now := time.Now()
		return engine.SweepCutoff(1, now).After(now.Add(-9 * time.Hour))
	}, 5*time.Second, 50*time.Millisecond, "迁移确认后删除窗口应使用新策略")
}

func TestRulesWatcher_KeepsRetentionOnBrokenWindow(t *testing.T) {
	tmpDir := t.TempDir()
	rulesPath := filepath.Join(tmpDir, "rules.yaml")
	writeRulesFile(t, rulesPath, `
version: 1
retention:
  windows:
    0: 2h
rules:
  - type: CustomAlert
    priority: 1
`)

	classifier := priority.NewClassifier(nil)
	engine := retention.NewEngine(nil)
	w, err := NewRulesWatcher(rulesPath, classifier, engine, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.Equal(t, 2*time.Hour, engine.Window(0))

	// 非法时长导致整个文件被拒绝，分类规则和保留策略都保留旧版
	writeRulesFile(t, rulesPath, `
version: 2
retention:
  windows:
    0: not-a-duration
rules:
  - type: CustomAlert
    priority: 2
`)

	time.Sleep(time.Second)
	assert.Equal(t, 1, classifier.RulesVersion())
	assert.Equal(t, 2*time.Hour, engine.Window(0))
}

func TestRulesWatcher_KeepsOldRulesOnBrokenFile(t *testing.T) {
	tmpDir := t.TempDir()
	rulesPath := filepath.Join(tmpDir, "rules.yaml")
	writeRulesFile(t, rulesPath, `
version: 3
rules:
  - type: CustomAlert
    priority: 1
`)

	classifier := priority.NewClassifier(nil)
	w, err := NewRulesWatcher(rulesPath, classifier, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.Equal(t, 3, classifier.RulesVersion())

	// 写入损坏的文件，旧规则应保留
	writeRulesFile(t, rulesPath, `{broken yaml`)

	time.Sleep(time.Second)
	assert.Equal(t, 3, classifier.RulesVersion())
}
