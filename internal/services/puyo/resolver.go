package puyo

import (
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/models/puyo"
)

// MinGroupSize は消去に必要な同色連結数です。
const MinGroupSize = 4

// ResolveStep は連鎖解決の1ステップの結果です。
// Done=false のステップでは Cleared のマスが既に盤面から消えており、
// 表示側は次の Step を呼ぶ前に消去演出を見せることができます。
type ResolveStep struct {
	Chain   int          `json:"chain"`   // このステップの連鎖数（1始まり）
	Cleared []puyo.Coord `json:"cleared"` // 消去されたマス
	Score   int          `json:"score"`   // このステップの得点
	Done    bool         `json:"done"`    // 消去対象がなく解決が終わった
}

// Resolver は1回の固定で発生する 重力→検出→消去 のループを1ステップずつ進めます。
// 各消去で盤面上のぷよは必ず減るため、ステップ数は最大でも R×C で終わります。
type Resolver struct {
	grid  *puyo.Grid
	chain int
	done  bool
}

// NewResolver は盤面に対するリゾルバを作成します。盤面は Step のたびに直接変更されます。
func NewResolver(grid *puyo.Grid) *Resolver {
	return &Resolver{grid: grid}
}

// Step は重力を適用してから盤面を走査し、4個以上つながった領域をまとめて消去します。
// 消去対象がなければ Done=true を返し、以降の呼び出しも同じ結果になります。
func (r *Resolver) Step() ResolveStep {
	if r.done {
		return ResolveStep{Chain: r.chain, Done: true}
	}

	r.grid.ApplyGravity()

	groups := r.grid.FindGroups(MinGroupSize)
	if len(groups) == 0 {
		r.done = true
		return ResolveStep{Chain: r.chain, Done: true}
	}

	r.chain++
	var cleared []puyo.Coord
	for _, group := range groups {
		for _, cell := range group {
			// FindGroups が返す座標は常に範囲内
			_ = r.grid.Set(cell.Col, cell.Row, puyo.ColorEmpty)
			cleared = append(cleared, cell)
		}
	}

	return ResolveStep{Chain: r.chain, Cleared: cleared, Score: CalculateChainScore(len(cleared), r.chain)}
}

// CalculateChainScore は1ステップの得点を計算します。
//
//	cleared*10*2^(chain-1) + max(0, cleared-4)*5
//
// Parameters:
//   cleared : このステップで消えたマス数（複数の領域の合計）
//   chain   : 連鎖数（1始まり）
// Returns:
//   int: このステップの得点
func CalculateChainScore(cleared, chain int) int {
	if cleared <= 0 || chain <= 0 {
		return 0
	}
	score := cleared * 10 * (1 << (chain - 1))
	if cleared > MinGroupSize {
		score += (cleared - MinGroupSize) * 5
	}
	return score
}
