package playsource

import (
	"sync"

	"github.com/drgolem/playcore/pkg/model"
)

// bus is a small subscribe-with-callback dispatcher, replacing Qt
// signal/slot coupling with plain Go closures. Used for the
// sampleRateMismatch, warning, and playbackEnded notifications.
type bus[T any] struct {
	mu   sync.Mutex
	subs []func(T)
}

func (b *bus[T]) subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
	idx := len(b.subs) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.subs) {
			b.subs[idx] = func(T) {}
		}
	}
}

func (b *bus[T]) emit(v T) {
	b.mu.Lock()
	subs := append([]func(T){}, b.subs...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

// MismatchEvent describes a rejected AddModel call.
type MismatchEvent struct {
	Model    model.Model
	GotRate  int
	WantRate int
}

// Warning describes a non-fatal degraded condition. The only warning
// emitted is a rejected slowdown factor (SetSlowdownFactor failing to build
// its stretchers); plugin overload is not reported, and stretcher underruns
// are only counted in the metrics.
type Warning struct {
	Message string
	Err     error
}
