package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
	ErrPoolBusy   = errors.New("worker pool is busy")
)

// TaskResult 任务结果
type TaskResult struct {
	Data  interface{}
	Error error
}

// Config Worker Pool 配置
type Config struct {
	Workers          int  `mapstructure:"workers"`            // 并发 worker 上限
	MaxBlockingTasks int  `mapstructure:"max_blocking_tasks"` // 排队等待的任务上限, 0 不限制
	Nonblocking      bool `mapstructure:"nonblocking"`        // 满载时直接返回 ErrPoolBusy
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Workers: 4,
	}
}

// Statistics 统计信息
type Statistics struct {
	Submitted int64
	Completed int64
	Failed    int64
	Running   int64
}

type counters struct {
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	running   atomic.Int64
}

// Pool 基于 ants 的有界 worker pool
type Pool struct {
	pool   *ants.Pool
	config *Config
	stats  counters
	logger *logger.Logger
}

// New 创建 Worker Pool
func New(config *Config, log *logger.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		return nil, fmt.Errorf("workerpool: workers must be > 0")
	}

	antsPool, err := ants.NewPool(config.Workers,
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(func(p interface{}) {
			log.Error("worker panic", zap.Any("error", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	return &Pool{
		pool:   antsPool,
		config: config,
		logger: log,
	}, nil
}

// Submit 提交任务
func (p *Pool) Submit(task func()) error {
	p.stats.submitted.Add(1)
	err := p.pool.Submit(func() {
		p.stats.running.Add(1)
		defer func() {
			p.stats.running.Add(-1)
			p.stats.completed.Add(1)
		}()
		task()
	})
	return p.translate(err)
}

// SubmitWithResult 提交任务并获取结果, panic 会转成错误返回
func (p *Pool) SubmitWithResult(task func() (interface{}, error)) <-chan TaskResult {
	resultCh := make(chan TaskResult, 1)

	err := p.Submit(func() {
		var res TaskResult
		defer func() {
			if r := recover(); r != nil {
				res = TaskResult{Error: fmt.Errorf("task panic: %v", r)}
			}
			if res.Error != nil {
				p.stats.failed.Add(1)
			}
			resultCh <- res
			close(resultCh)
		}()
		res.Data, res.Error = task()
	})
	if err != nil {
		p.stats.failed.Add(1)
		resultCh <- TaskResult{Error: err}
		close(resultCh)
	}

	return resultCh
}

// Wait 等待结果或 ctx 结束
func Wait(ctx context.Context, ch <-chan TaskResult) TaskResult {
	select {
	case res := <-ch:
		return res
	case <-ctx.Done():
		return TaskResult{Error: ctx.Err()}
	}
}

func (p *Pool) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	case errors.Is(err, ants.ErrPoolOverload):
		return ErrPoolBusy
	default:
		return err
	}
}

// Running 运行中的 worker 数
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Free 空闲 worker 数
func (p *Pool) Free() int {
	return p.pool.Free()
}

// Stats 统计快照
func (p *Pool) Stats() Statistics {
	return Statistics{
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Failed:    p.stats.failed.Load(),
		Running:   p.stats.running.Load(),
	}
}

// Shutdown 关闭并等待运行中的任务, 超时后直接返回
func (p *Pool) Shutdown(timeout time.Duration) {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("worker pool release timed out", zap.Error(err))
	}
}
