package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrTimeout    = errors.New("task timed out")
	ErrTaskFailed = errors.New("task failed")
	ErrNoResult   = errors.New("task succeeded without result url")
)

// Phase 异步任务所处阶段
type Phase string

const (
	PhaseSubmitted Phase = "submitted"
	PhasePolling   Phase = "polling"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
	PhaseTimedOut  Phase = "timed_out"
)

// Terminal 是否为终止阶段
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed || p == PhaseTimedOut
}

// Observation 一次查询得到的任务状态。Phase只能是Polling、Succeeded或Failed
type Observation struct {
	Phase  Phase
	Status string // 服务端原始状态
	URL    string
	Detail string
}

// Clock 可替换的时钟，便于测试
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock 系统时钟
var RealClock Clock = realClock{}

// Poller 按固定间隔轮询任务直到成功、失败或超过上限
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    Clock
	// OnPhase 每次阶段变化时回调，可为空
	OnPhase func(from, to Phase)
}

// Wait 从Submitted开始轮询，fetch返回的错误直接终止等待
func (p *Poller) Wait(ctx context.Context, taskID string, fetch func(ctx context.Context) (Observation, error)) (Observation, error) {
	clock := p.Clock
	if clock == nil {
		clock = RealClock
	}
	log := logrus.WithField("task_id", taskID)

	phase := PhaseSubmitted
	move := func(to Phase) {
		if to == phase {
			return
		}
		if p.OnPhase != nil {
			p.OnPhase(phase, to)
		}
		phase = to
	}

	deadline := clock.Now().Add(p.Timeout)
	for {
		if !clock.Now().Before(deadline) {
			move(PhaseTimedOut)
			log.Warn("任务等待超时")
			return Observation{Phase: PhaseTimedOut}, fmt.Errorf("%w after %s", ErrTimeout, p.Timeout)
		}

		obs, err := fetch(ctx)
		if err != nil {
			return Observation{Phase: phase}, err
		}

		switch obs.Phase {
		case PhaseSucceeded:
			move(PhaseSucceeded)
			if obs.URL == "" {
				return obs, ErrNoResult
			}
			return obs, nil
		case PhaseFailed:
			move(PhaseFailed)
			return obs, fmt.Errorf("%w: %s", ErrTaskFailed, obs.Detail)
		default:
			move(PhasePolling)
			log.WithField("status", obs.Status).Infof("任务处理中，%s后重试", p.Interval)
			if err := clock.Sleep(ctx, p.Interval); err != nil {
				return Observation{Phase: phase}, err
			}
		}
	}
}
