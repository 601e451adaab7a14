package engine

import (
	"errors"
	"fmt"

	"Speedtest_Selector_Go/pkg/model"
)

var (
	// ErrNoServers 服务器列表中没有（符合国家过滤条件的）服务器
	ErrNoServers = errors.New("no servers in registry")
	// ErrNoReachableServer 所有候选服务器都未通过可达性探测
	ErrNoReachableServer = errors.New("no reachable server")
	// ErrNoCandidate 排序后的候选列表为空
	ErrNoCandidate = errors.New("no candidate to select")
	// ErrInvalidSelection 指定的序号超出范围
	ErrInvalidSelection = errors.New("invalid selection")
)

// SelectionMode 选择方式
type SelectionMode int

const (
	// ModeAuto 自动选择最近的服务器
	ModeAuto SelectionMode = iota
	// ModeExplicit 由外部按序号（从 1 开始）指定
	ModeExplicit
)

// Selection 描述如何从候选列表中选出一台服务器
type Selection struct {
	Mode  SelectionMode
	Index int
}

// Automatic 返回自动选择
func Automatic() Selection {
	return Selection{Mode: ModeAuto}
}

// Explicit 返回按序号选择，index 从 1 开始
func Explicit(index int) Selection {
	return Selection{Mode: ModeExplicit, Index: index}
}

func (s Selection) String() string {
	if s.Mode == ModeAuto {
		return "auto"
	}
	return fmt.Sprintf("#%d", s.Index)
}

// Select 从按距离排序的候选列表中选出一台服务器
func Select(ranked []model.RankedServer, sel Selection) (model.RankedServer, error) {
	if len(ranked) == 0 {
		return model.RankedServer{}, ErrNoCandidate
	}
	switch sel.Mode {
	case ModeAuto:
		return ranked[0], nil
	case ModeExplicit:
		if sel.Index < 1 || sel.Index > len(ranked) {
			return model.RankedServer{}, fmt.Errorf("%w: index %d not in [1, %d]", ErrInvalidSelection, sel.Index, len(ranked))
		}
		return ranked[sel.Index-1], nil
	default:
		return model.RankedServer{}, fmt.Errorf("%w: unknown mode %d", ErrInvalidSelection, sel.Mode)
	}
}
