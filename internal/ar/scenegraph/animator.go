package scenegraph

import "time"

// Animator runs simple property tweens driven by frame timestamps. A tween
// starts on the first Advance after it is added.
type Animator struct {
	tweens []*tween
}

type tween struct {
	material *Material
	from, to float64
	duration time.Duration
	start    time.Duration
	started  bool
	done     func()
}

// NewAnimator returns an idle animator.
func NewAnimator() *Animator {
	return &Animator{}
}

// FadeMaterial animates m.Alpha to the target value over d. A non-positive
// duration applies the target immediately. done, if non-nil, runs once the
// tween completes. Any running fade on the same material is replaced.
func (a *Animator) FadeMaterial(m *Material, to float64, d time.Duration, done func()) {
	a.cancel(m)
	if d <= 0 {
		m.Alpha = to
		if done != nil {
			done()
		}
		return
	}
	a.tweens = append(a.tweens, &tween{material: m, to: to, duration: d, done: done})
}

func (a *Animator) cancel(m *Material) {
	kept := a.tweens[:0]
	for _, tw := range a.tweens {
		if tw.material != m {
			kept = append(kept, tw)
		}
	}
	a.tweens = kept
}

// Advance moves every running tween to the given frame timestamp.
func (a *Animator) Advance(now time.Duration) {
	kept := a.tweens[:0]
	var finished []*tween
	for _, tw := range a.tweens {
		if !tw.started {
			tw.started = true
			tw.start = now
			tw.from = tw.material.Alpha
		}
		p := float64(now-tw.start) / float64(tw.duration)
		if p >= 1 {
			tw.material.Alpha = tw.to
			finished = append(finished, tw)
			continue
		}
		if p < 0 {
			p = 0
		}
		tw.material.Alpha = tw.from + (tw.to-tw.from)*p
		kept = append(kept, tw)
	}
	a.tweens = kept
	for _, tw := range finished {
		if tw.done != nil {
			tw.done()
		}
	}
}

// Pending returns the number of tweens still running.
func (a *Animator) Pending() int {
	return len(a.tweens)
}

// Flush completes every running tween immediately.
func (a *Animator) Flush() {
	pending := a.tweens
	a.tweens = nil
	for _, tw := range pending {
		tw.material.Alpha = tw.to
		if tw.done != nil {
			tw.done()
		}
	}
}
