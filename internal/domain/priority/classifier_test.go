package priority

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyKnownTypes(t *testing.T) {
	c := NewClassifier(nil)

	for _, eventType := range []string{"UserPromptSubmit", "Notification", "Stop", "SubagentStop"} {
		level, meta := c.Classify(eventType, nil)
		assert.Equal(t, 1, level, eventType)
		require.NotNil(t, meta, eventType)
		assert.NotEmpty(t, meta.Reason)
		assert.Equal(t, DefaultPolicyName, meta.RetentionPolicy)
		assert.Greater(t, meta.ClassifiedAt, int64(0))
	}
}

func TestClassifyUnknownTypeIsRegular(t *testing.T) {
	c := NewClassifier(nil)

	level, meta := c.Classify("PostToolUse", nil)
	assert.Equal(t, 0, level)
	assert.Nil(t, meta)

	level, meta = c.Classify("", nil)
	assert.Equal(t, 0, level)
	assert.Nil(t, meta)
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier(nil)

	first, _ := c.Classify("Notification", []byte(`{"severity":"info"}`))
	for i := 0; i < 10; i++ {
		level, _ := c.Classify("Notification", []byte(`{"severity":"info"}`))
		assert.Equal(t, first, level)
	}
}

func TestClassifyPayloadRuleOverridesBase(t *testing.T) {
	rs := &RuleSet{
		Version: 1,
		Rules: []TypeRule{
			{
				Type:     "ToolResult",
				Priority: 0,
				PayloadRules: []PayloadRule{
					{Path: "severity", Equals: "error", Priority: 2, Reason: "tool error"},
					{Path: "severity", Priority: 1, Reason: "severity present"},
				},
			},
		},
	}
	rs.buildIndex()
	c := NewClassifier(rs)

	level, meta := c.Classify("ToolResult", []byte(`{"severity":"error"}`))
	assert.Equal(t, 2, level)
	require.NotNil(t, meta)
	assert.Equal(t, "tool error", meta.Reason)

	// 第一条不匹配时按声明顺序落到第二条
	level, meta = c.Classify("ToolResult", []byte(`{"severity":"warn"}`))
	assert.Equal(t, 1, level)
	require.NotNil(t, meta)
	assert.Equal(t, "severity present", meta.Reason)

	// payload 中无该字段时保持基础优先级
	level, meta = c.Classify("ToolResult", []byte(`{"tool":"bash"}`))
	assert.Equal(t, 0, level)
	assert.Nil(t, meta)
}

func TestClassifyNestedPayloadPath(t *testing.T) {
	rs := &RuleSet{
		Version: 1,
		Rules: []TypeRule{
			{
				Type:     "PostToolUse",
				Priority: 0,
				PayloadRules: []PayloadRule{
					{Path: "tool.name", Equals: "deploy", Priority: 1, Reason: "deploy tool"},
				},
			},
		},
	}
	rs.buildIndex()
	c := NewClassifier(rs)

	level, _ := c.Classify("PostToolUse", []byte(`{"tool":{"name":"deploy"}}`))
	assert.Equal(t, 1, level)

	level, _ = c.Classify("PostToolUse", []byte(`{"tool":{"name":"grep"}}`))
	assert.Equal(t, 0, level)
}

func TestClassifierReload(t *testing.T) {
	c := NewClassifier(nil)
	assert.Equal(t, 1, c.RulesVersion())

	level, _ := c.Classify("CustomAlert", nil)
	assert.Equal(t, 0, level)

	rs := &RuleSet{
		Version: 2,
		Rules: []TypeRule{
			{Type: "CustomAlert", Priority: 1, Reason: "custom alert"},
		},
	}
	rs.buildIndex()
	c.Reload(rs)

	assert.Equal(t, 2, c.RulesVersion())
	level, _ = c.Classify("CustomAlert", nil)
	assert.Equal(t, 1, level)

	// 旧规则类型不再命中
	level, _ = c.Classify("Notification", nil)
	assert.Equal(t, 0, level)

	// nil 不覆盖现有规则
	c.Reload(nil)
	assert.Equal(t, 2, c.RulesVersion())
}

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRuleSet(t *testing.T) {
	path := writeRulesFile(t, `
version: 3
policy: ops
rules:
  - type: Notification
    priority: 1
    reason: user notification
  - type: ToolResult
    priority: 0
    payload_rules:
      - path: severity
        equals: error
        priority: 2
`)

	rs, err := LoadRuleSet(path)
	require.NoError(t, err)
	assert.Equal(t, 3, rs.Version)
	assert.Equal(t, "ops", rs.Policy)
	require.Len(t, rs.Rules, 2)

	c := NewClassifier(rs)
	level, meta := c.Classify("ToolResult", []byte(`{"severity":"error"}`))
	assert.Equal(t, 2, level)
	require.NotNil(t, meta)
	assert.Equal(t, "ops", meta.RetentionPolicy)
}

func TestLoadRuleSetDefaultsPolicy(t *testing.T) {
	path := writeRulesFile(t, `
version: 1
rules:
  - type: Stop
    priority: 1
`)

	rs, err := LoadRuleSet(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicyName, rs.Policy)
}

func TestLoadRuleSetValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing type", "rules:\n  - priority: 1\n"},
		{"negative priority", "rules:\n  - type: A\n    priority: -1\n"},
		{"duplicate type", "rules:\n  - type: A\n    priority: 1\n  - type: A\n    priority: 0\n"},
		{"payload rule without path", "rules:\n  - type: A\n    priority: 1\n    payload_rules:\n      - priority: 2\n"},
		{"broken yaml", "rules: [\n"},
		{"unparseable retention window", "retention:\n  windows:\n    0: soon\nrules:\n  - type: A\n    priority: 1\n"},
		{"retention without level 0", "retention:\n  windows:\n    1: 8h\nrules:\n  - type: A\n    priority: 1\n"},
		{"non-positive retention window", "retention:\n  windows:\n    0: -1h\nrules:\n  - type: A\n    priority: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRulesFile(t, tt.content)
			_, err := LoadRuleSet(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadRuleSetRetentionSection(t *testing.T) {
	path := writeRulesFile(t, `
version: 5
policy: ops
retention:
  windows:
    0: 2h
    1: 8h
  migrate: true
rules:
  - type: Stop
    priority: 1
`)

	rs, err := LoadRuleSet(path)
	require.NoError(t, err)
	require.NotNil(t, rs.Retention)
	assert.True(t, rs.Retention.Migrate)

	policy, err := rs.RetentionPolicy()
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.Equal(t, "ops", policy.Name)
	assert.Equal(t, 5, policy.Version)
	assert.Equal(t, 2*time.Hour, policy.Windows[0])
	assert.Equal(t, 8*time.Hour, policy.Windows[1])
}

func TestRetentionPolicyNilWithoutSection(t *testing.T) {
	policy, err := DefaultRuleSet().RetentionPolicy()
	require.NoError(t, err)
	assert.Nil(t, policy)
}

func TestLoadRuleSetMissingFile(t *testing.T) {
	_, err := LoadRuleSet(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
