// interp/interp.go
//
// 将稀疏、抖动的远端位置报告转换为按渲染帧连续采样的平滑位置。
// 每个远端身份独立维护一段插值区段；区段过期后移除，对端保持
// 最后已知位置直到新的报告到达。
package interp

import (
	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
)

const (
	// DefaultWindow 每次报告到目标位置的插值时长（tick）
	DefaultWindow = 100
	// DefaultCeiling 区段结束后允许继续存活的最长时间（tick），
	// 超过即判定过期并移除，约束静默对端的滑行与内存占用
	DefaultCeiling = 1000
)

// Point 渲染用的连续坐标
type Point struct {
	X float64
	Y float64
}

// Sample 某一 tick 的采样结果
type Sample struct {
	Pos    Point
	Moving bool
}

// segment 一段在途位移：(start, end, startTick, endTick)
type segment struct {
	start     Point
	end       Point
	startTick int64
	endTick   int64
	moving    bool
}

// Tracker 按远端身份维护插值区段。非并发安全：报告注入与渲染采样
// 约定运行在同一事件循环上（多线程客户端需自行加锁）。
type Tracker struct {
	window   int64
	ceiling  int64
	segments map[string]*segment
	rendered map[string]Point // 每个对端最近一次计算出的渲染位置
}

func NewTracker(window, ceiling int64) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Tracker{
		window:   window,
		ceiling:  ceiling,
		segments: make(map[string]*segment),
		rendered: make(map[string]Point),
	}
}

// Observe 记录一条位置报告。新区段以该对端当前渲染位置为起点、
// 报告位置为终点，endTick = now + window；旧区段被整体替换。
// 未知对端视为新建，不是错误。
func (t *Tracker) Observe(peerID string, to models.Position, moving bool, now int64) {
	start := t.currentPosition(peerID, to, now)
	t.segments[peerID] = &segment{
		start:     start,
		end:       Point{X: float64(to.X), Y: float64(to.Y)},
		startTick: now,
		endTick:   now + t.window,
		moving:    moving,
	}
	t.rendered[peerID] = start
}

// currentPosition 返回对端此刻的渲染位置；没有任何历史时直接落在报告点
func (t *Tracker) currentPosition(peerID string, reported models.Position, now int64) Point {
	if seg, ok := t.segments[peerID]; ok {
		return seg.at(now)
	}
	if p, ok := t.rendered[peerID]; ok {
		return p
	}
	return Point{X: float64(reported.X), Y: float64(reported.Y)}
}

// at 对区段做限幅线性插值；到达 endTick 后精确返回终点（吸附而非插值），
// 避免静止对端因浮点残差抖动
func (s *segment) at(tick int64) Point {
	if tick >= s.endTick {
		return s.end
	}
	if tick <= s.startTick {
		return s.start
	}
	progress := float64(tick-s.startTick) / float64(s.endTick-s.startTick)
	return Point{
		X: s.start.X + progress*(s.end.X-s.start.X),
		Y: s.start.Y + progress*(s.end.Y-s.start.Y),
	}
}

// outdated 区段过期判定：静止目标越过 endTick 即过期；
// 无条件地，超过 endTick+ceiling 也过期
func (s *segment) outdated(tick int64, ceiling int64) bool {
	if !s.moving && tick > s.endTick {
		return true
	}
	return tick > s.endTick+ceiling
}

// Positions 计算所有被跟踪对端在 tick 时刻的位置，并顺带清理过期区段。
// 每个渲染帧调用一次。被清理的对端此后保持最后渲染位置，直到新报告到达。
func (t *Tracker) Positions(tick int64) map[string]Sample {
	result := make(map[string]Sample, len(t.segments))
	for peerID, seg := range t.segments {
		pos := seg.at(tick)
		t.rendered[peerID] = pos

		moving := seg.moving && tick < seg.endTick
		if seg.outdated(tick, t.ceiling) {
			delete(t.segments, peerID)
			moving = false
		}
		result[peerID] = Sample{Pos: pos, Moving: moving}
	}
	return result
}

// Position 采样单个对端；对端未被跟踪时报告 false
func (t *Tracker) Position(peerID string, tick int64) (Sample, bool) {
	if seg, ok := t.segments[peerID]; ok {
		return Sample{Pos: seg.at(tick), Moving: seg.moving && tick < seg.endTick}, true
	}
	if p, ok := t.rendered[peerID]; ok {
		return Sample{Pos: p, Moving: false}, true
	}
	return Sample{}, false
}

// Remove 对端离开时删除其全部跟踪状态
func (t *Tracker) Remove(peerID string) {
	delete(t.segments, peerID)
	delete(t.rendered, peerID)
}

// TrackedSegments 当前持有在途区段的对端数量
func (t *Tracker) TrackedSegments() int {
	return len(t.segments)
}
