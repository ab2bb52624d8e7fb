package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jellypod-Inc/route-tts/internal/resilience"
	"github.com/Jellypod-Inc/route-tts/pkg/audio"
)

// BreakerChecker fails while cb is open, so a load balancer drains traffic
// from an instance whose vendor is currently failing fast.
func BreakerChecker(cb *resilience.CircuitBreaker) Checker {
	return Checker{
		Name: "breaker:" + cb.Name(),
		Check: func(context.Context) error {
			if s := cb.State(); s == resilience.StateOpen {
				return fmt.Errorf("circuit %s is %s", cb.Name(), s)
			}
			return nil
		},
	}
}

// VoicesChecker fails when count reports an empty voice registry.
func VoicesChecker(count func() int) Checker {
	return Checker{
		Name: "voices",
		Check: func(context.Context) error {
			if count() == 0 {
				return errors.New("no voices registered")
			}
			return nil
		},
	}
}

// FFmpegChecker fails when needed reports that a live voice requires
// transcoding and the ffmpeg binary is not on PATH. needed is asked on every
// check, so voices added by a reload are covered.
func FFmpegChecker(needed func() bool) Checker {
	return Checker{
		Name: "ffmpeg",
		Check: func(context.Context) error {
			if !needed() {
				return nil
			}
			return audio.FFmpegAvailable()
		},
	}
}
