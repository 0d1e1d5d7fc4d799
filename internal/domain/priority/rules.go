// Package priority 提供数据驱动的事件优先级分类
// 类型到优先级的映射是配置数据而非代码，新增优先级类型不需要改动存储和广播层
package priority

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulseboard/backend/internal/domain/retention"
)

// DefaultPolicyName 默认保留策略名称
const DefaultPolicyName = "default"

// PayloadRule 基于 payload 内容的附加规则
// Path 为 gjson 路径表达式，按顺序求值，第一条命中的规则生效
type PayloadRule struct {
	// Path payload 中的字段路径（gjson 语法，如 "severity" 或 "tool.name"）
	Path string `yaml:"path"`
	// Equals 字段值等于此字符串时命中；为空表示仅要求字段存在
	Equals string `yaml:"equals,omitempty"`
	// Priority 命中后的优先级
	Priority int `yaml:"priority"`
	// Reason 分类原因说明
	Reason string `yaml:"reason,omitempty"`
}

// TypeRule 事件类型规则
type TypeRule struct {
	// Type 事件类型名
	Type string `yaml:"type"`
	// Priority 该类型的基础优先级
	Priority int `yaml:"priority"`
	// Reason 分类原因说明
	Reason string `yaml:"reason,omitempty"`
	// PayloadRules 可选的 payload 细化规则
	PayloadRules []PayloadRule `yaml:"payload_rules,omitempty"`
}

// RetentionSpec 规则文件中可选的保留窗口配置段
// 和分类规则一起热加载，进程不重启即可调整保留窗口
type RetentionSpec struct {
	// Windows 优先级到保留时长的映射（Go duration 语法，如 "24h"）
	Windows map[int]string `yaml:"windows"`
	// Migrate 为 true 时确认迁移：解除上一版策略的删除保底窗口
	Migrate bool `yaml:"migrate,omitempty"`
}

// RuleSet 一组分类规则（不可变快照）
type RuleSet struct {
	// Version 规则版本号，热加载时递增用于排查
	Version int `yaml:"version"`
	// Policy 规则对应的保留策略名称
	Policy string `yaml:"policy,omitempty"`
	// Retention 可选的保留窗口配置段，缺省时保持引擎当前策略
	Retention *RetentionSpec `yaml:"retention,omitempty"`
	// Rules 类型规则列表
	Rules []TypeRule `yaml:"rules"`

	// byType 按类型索引，LoadRuleSet/DefaultRuleSet 构建后只读
	byType map[string]*TypeRule
}

// DefaultRuleSet 返回内置默认规则
// 提示词提交、用户通知、会话结束、子任务完成信号为优先级 1，其余为 0
func DefaultRuleSet() *RuleSet {
	rs := &RuleSet{
		Version: 1,
		Policy:  DefaultPolicyName,
		Rules: []TypeRule{
			{Type: "UserPromptSubmit", Priority: 1, Reason: "user prompt submission"},
			{Type: "Notification", Priority: 1, Reason: "user notification"},
			{Type: "Stop", Priority: 1, Reason: "session stop signal"},
			{Type: "SubagentStop", Priority: 1, Reason: "subtask completion"},
		},
	}
	rs.buildIndex()
	return rs
}

// LoadRuleSet 从 YAML 文件加载规则
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	if err := rs.validate(); err != nil {
		return nil, err
	}

	if rs.Policy == "" {
		rs.Policy = DefaultPolicyName
	}
	rs.buildIndex()
	return &rs, nil
}

// RetentionPolicy 根据 retention 配置段构建保留策略
// 没有配置段时返回 nil（保持引擎当前策略）
func (rs *RuleSet) RetentionPolicy() (*retention.Policy, error) {
	if rs.Retention == nil {
		return nil, nil
	}

	windows := make(map[int]time.Duration, len(rs.Retention.Windows))
	for level, raw := range rs.Retention.Windows {
		window, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("retention window for priority %d: %w", level, err)
		}
		windows[level] = window
	}
	return retention.NewPolicy(rs.Policy, rs.Version, windows)
}

// validate 校验规则合法性
func (rs *RuleSet) validate() error {
	// retention 配置段非法时整个文件加载失败，旧规则和旧策略都保留
	if _, err := rs.RetentionPolicy(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(rs.Rules))
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if rule.Type == "" {
			return fmt.Errorf("rule %d: type is required", i)
		}
		if rule.Priority < 0 {
			return fmt.Errorf("rule %q: priority must be >= 0", rule.Type)
		}
		if seen[rule.Type] {
			return fmt.Errorf("rule %q: duplicate type", rule.Type)
		}
		seen[rule.Type] = true

		for j, pr := range rule.PayloadRules {
			if pr.Path == "" {
				return fmt.Errorf("rule %q payload rule %d: path is required", rule.Type, j)
			}
			if pr.Priority < 0 {
				return fmt.Errorf("rule %q payload rule %d: priority must be >= 0", rule.Type, j)
			}
		}
	}
	return nil
}

// buildIndex 构建类型索引
func (rs *RuleSet) buildIndex() {
	rs.byType = make(map[string]*TypeRule, len(rs.Rules))
	for i := range rs.Rules {
		rs.byType[rs.Rules[i].Type] = &rs.Rules[i]
	}
}

// lookup 查找类型规则
func (rs *RuleSet) lookup(eventType string) *TypeRule {
	return rs.byType[eventType]
}
