package retention

import "fmt"

// QueryLimits 混合查询的数量上限
type QueryLimits struct {
	// PriorityCap 优先级事件上限
	PriorityCap int
	// RegularCap 普通事件上限
	RegularCap int
	// TotalCap 合计上限
	TotalCap int
}

// Validate 校验查询上限
// 各级别上限是先行硬上限，TotalCap 只做截断、不会回填
func (l QueryLimits) Validate() error {
	if l.PriorityCap < 0 {
		return fmt.Errorf("priority cap must be >= 0, got %d", l.PriorityCap)
	}
	if l.RegularCap < 0 {
		return fmt.Errorf("regular cap must be >= 0, got %d", l.RegularCap)
	}
	if l.TotalCap <= 0 {
		return fmt.Errorf("total cap must be positive, got %d", l.TotalCap)
	}
	return nil
}
