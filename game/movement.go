// game/movement.go
package game

import (
	"errors"
	"math/rand"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
)

var (
	// ErrIllegalStep 位移超过单格或同时跨两轴
	ErrIllegalStep = errors.New("illegal movement step")
	// ErrOutOfBounds 目标格越界
	ErrOutOfBounds = errors.New("target out of bounds")
	// ErrObstructed 目标格被障碍占据
	ErrObstructed = errors.New("target cell obstructed")
)

// IsLegalStep 当且仅当 from 与 to 恰好在一条轴上相差一格时为真。
// 原地（Δ=0,0）、斜向与跨格都不合法。
func IsLegalStep(from, to models.Position) bool {
	dx := abs(to.X - from.X)
	dy := abs(to.Y - from.Y)
	return (dx == 1 && dy == 0) || (dx == 0 && dy == 1)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Validator 绑定某个空间几何的移动校验器
type Validator struct {
	space models.Space
}

func NewValidator(space models.Space) *Validator {
	return &Validator{space: space}
}

// ValidateMove 校验一次普通移动：单格步进 + 边界 + 障碍
func (v *Validator) ValidateMove(from, to models.Position) error {
	if !IsLegalStep(from, to) {
		return ErrIllegalStep
	}
	return v.validateTarget(to)
}

// ValidateTeleport 瞬移旁路：跳过步长规则，但边界与障碍仍然生效
func (v *Validator) ValidateTeleport(to models.Position) error {
	return v.validateTarget(to)
}

func (v *Validator) validateTarget(to models.Position) error {
	if !v.space.InBounds(to) {
		return ErrOutOfBounds
	}
	if v.space.Obstructed(to) {
		return ErrObstructed
	}
	return nil
}

// spawnRetries 随机出生点避开障碍格的尝试次数上限
const spawnRetries = 32

// SpawnPosition 在空间内均匀随机挑选出生点，尽量避开障碍格；
// 尝试次数用尽后返回最后一个候选（仍保证在边界内）。
func (v *Validator) SpawnPosition(rng *rand.Rand) models.Position {
	var p models.Position
	for i := 0; i < spawnRetries; i++ {
		p = models.Position{
			X: rng.Intn(v.space.Width),
			Y: rng.Intn(v.space.Height),
		}
		if !v.space.Obstructed(p) {
			return p
		}
	}
	return p
}
