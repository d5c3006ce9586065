package glrender

import (
	"errors"
	"iter"

	"github.com/chewxy/math32"
	"github.com/soypat/gshade"
)

// FrameCount returns the number of frames needed to cover duration seconds at fps.
func FrameCount(fps, duration float32) (int, error) {
	if !(fps > 0) || math32.IsInf(fps, 0) {
		return 0, errors.New("frame rate must be positive and finite")
	} else if duration < 0 || math32.IsNaN(duration) || math32.IsInf(duration, 0) {
		return 0, errors.New("duration must be non-negative and finite")
	}
	// Subtract a small epsilon so 2s at 30fps is 60 frames and not 61.
	return int(math32.Ceil(duration*fps - 1e-4)), nil
}

// Frames yields the frame index and the uniforms of each frame of an animation.
// Frame i has Time = u.Time + i/fps. Invalid fps or duration yield no frames, see [FrameCount].
func Frames(u gshade.Uniforms, fps, duration float32) iter.Seq2[int, gshade.Uniforms] {
	n, err := FrameCount(fps, duration)
	if err != nil {
		n = 0
	}
	start := u.Time
	return func(yield func(int, gshade.Uniforms) bool) {
		for i := 0; i < n; i++ {
			if !yield(i, u.AtTime(start+float32(i)/fps)) {
				return
			}
		}
	}
}
