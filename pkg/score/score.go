package score

import "slices"

const (
	// FrameCount is the number of frames in a game.
	FrameCount = 10

	// MaxPins is the number of pins standing at the start of a frame.
	MaxPins = 10

	strikeBonusRolls = 2
	spareBonusRolls  = 1
)

// Frame is one scored (or pending) frame.
type Frame struct {
	Number int   `json:"frame" yaml:"frame"`
	Rolls  []int `json:"rolls" yaml:"rolls"`
	Mark   Mark  `json:"mark" yaml:"mark"`
	Score  *int  `json:"score" yaml:"score"`
}

// Resolved reports whether the frame score is final.
func (f Frame) Resolved() bool {
	return f.Mark.Resolved()
}

// GameState is the result of scoring a roll history.
type GameState struct {
	TotalScore int     `json:"total_score" yaml:"totalScore"`
	Frames     []Frame `json:"frames" yaml:"frames"`
	GameOver   bool    `json:"game_over" yaml:"gameOver"`
}

// Score walks the rolls frame by frame and returns every frame that can be
// determined so far. The walk stops at the first Incomplete frame, so the
// returned frames are always a contiguous run starting at frame 1 with at
// most the last one Incomplete. Rolls is never modified or retained.
func Score(rolls []int) GameState {
	frames := make([]Frame, 0, FrameCount)

	p := 0
	for n := 1; n <= FrameCount && p < len(rolls); n++ {
		var f Frame
		if n < FrameCount {
			f, p = standardFrame(n, rolls, p)
		} else {
			f = tenthFrame(rolls, p)
		}

		frames = append(frames, f)
		if !f.Resolved() {
			break
		}
	}

	state := GameState{Frames: frames}
	for _, f := range frames {
		if f.Resolved() {
			state.TotalScore += *f.Score
		}
	}
	state.GameOver = len(frames) == FrameCount && frames[FrameCount-1].Resolved()

	return state
}

// standardFrame scores frames 1-9 starting at roll p and returns the frame
// along with the position of the next frame's first roll.
func standardFrame(n int, rolls []int, p int) (Frame, int) {
	first := rolls[p]
	if first == MaxPins {
		return bonusFrame(n, rolls[p:p+1], Strike, rolls, p+1, strikeBonusRolls), p + 1
	}

	if p+1 >= len(rolls) {
		return pendingFrame(n, rolls[p:p+1]), p + 1
	}

	pair := rolls[p : p+2]
	if first+pair[1] == MaxPins {
		return bonusFrame(n, pair, Spare, rolls, p+2, spareBonusRolls), p + 2
	}

	return resolvedFrame(n, pair, Open, first+pair[1]), p + 2
}

// tenthFrame scores the last frame. Strikes and spares earn a third roll in
// the frame itself; open frames consume exactly two and ignore anything after.
func tenthFrame(rolls []int, p int) Frame {
	if p+1 >= len(rolls) {
		return pendingFrame(FrameCount, rolls[p:])
	}

	first, second := rolls[p], rolls[p+1]

	var mark Mark
	switch {
	case first == MaxPins:
		mark = Strike
	case first+second == MaxPins:
		mark = Spare
	default:
		return resolvedFrame(FrameCount, rolls[p:p+2], Open, first+second)
	}

	if p+2 >= len(rolls) {
		return pendingFrame(FrameCount, rolls[p:p+2])
	}

	own := rolls[p : p+3]
	return resolvedFrame(FrameCount, own, mark, sum(own))
}

// bonusFrame resolves a strike or spare once count rolls after next exist.
func bonusFrame(n int, own []int, mark Mark, rolls []int, next, count int) Frame {
	if next+count > len(rolls) {
		return pendingFrame(n, own)
	}
	return resolvedFrame(n, own, mark, sum(own)+sum(rolls[next:next+count]))
}

func resolvedFrame(n int, rolls []int, mark Mark, score int) Frame {
	return Frame{
		Number: n,
		Rolls:  slices.Clone(rolls),
		Mark:   mark,
		Score:  &score,
	}
}

func pendingFrame(n int, rolls []int) Frame {
	return Frame{
		Number: n,
		Rolls:  slices.Clone(rolls),
		Mark:   Incomplete,
	}
}

func sum(rolls []int) int {
	total := 0
	for _, r := range rolls {
		total += r
	}
	return total
}
