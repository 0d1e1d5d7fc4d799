package priority

import (
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/pulseboard/backend/internal/domain/events"
)

// Classifier 事件优先级分类器
// Classify 是纯函数：相同输入总是产生相同输出，不产生副作用
// 规则快照通过原子指针交换热更新，读取方永远看到完整的规则集
type Classifier struct {
	rules atomic.Pointer[RuleSet]
}

// NewClassifier 创建分类器
// rules 为 nil 时使用内置默认规则
func NewClassifier(rules *RuleSet) *Classifier {
	c := &Classifier{}
	if rules == nil {
		rules = DefaultRuleSet()
	}
	c.rules.Store(rules)
	return c
}

// Classify 对事件类型（和可选的 payload）分类
// 全函数：未知类型一律返回优先级 0，永远不报错
// 仅当优先级 > 0 时返回分类注解
func (c *Classifier) Classify(eventType string, payload []byte) (int, *events.PriorityMeta) {
	rs := c.rules.Load()

	rule := rs.lookup(eventType)
	if rule == nil {
		return 0, nil
	}

	level := rule.Priority
	reason := rule.Reason

	// payload 规则按声明顺序求值，第一条命中的覆盖基础优先级
	if len(payload) > 0 && len(rule.PayloadRules) > 0 {
		for i := range rule.PayloadRules {
			pr := &rule.PayloadRules[i]
			value := gjson.GetBytes(payload, pr.Path)
			if !value.Exists() {
				continue
			}
			if pr.Equals != "" && value.String() != pr.Equals {
				continue
			}
			level = pr.Priority
			if pr.Reason != "" {
				reason = pr.Reason
			}
			break
		}
	}

	if level <= 0 {
		return 0, nil
	}

	if reason == "" {
		reason = "matched type rule " + eventType
	}

	return level, &events.PriorityMeta{
		ClassifiedAt:    time.Now().UnixMilli(),
		Reason:          reason,
		RetentionPolicy: rs.Policy,
	}
}

// Reload 原子替换规则快照
func (c *Classifier) Reload(rules *RuleSet) {
	if rules == nil {
		return
	}
	c.rules.Store(rules)
}

// RulesVersion 当前规则版本号
func (c *Classifier) RulesVersion() int {
	return c.rules.Load().Version
}
