package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reqreplay/internal/logger"
)

// monitorInterval 工作池状态日志间隔
const monitorInterval = 30 * time.Second

// workerPool 限制拦截事件的并发处理数量
type workerPool struct {
	size        int
	queue       chan func()
	log         logger.Logger
	mu          sync.Mutex
	totalSubmit int64
	totalDrop   int64
}

// newWorkerPool 创建工作池，size 为 0 表示每个事件独立协程处理
func newWorkerPool(size int, l logger.Logger) *workerPool {
	if size <= 0 {
		return &workerPool{log: l}
	}
	// 队列容量为 worker 数量的 8 倍，用于吸收突发请求
	return &workerPool{
		size:  size,
		queue: make(chan func(), size*8),
		log:   l,
	}
}

// start 启动固定数量的 worker，ctx 结束时全部退出
func (p *workerPool) start(ctx context.Context) {
	if p.queue == nil {
		return
	}
	for i := 0; i < p.size; i++ {
		go p.worker(ctx)
	}
	go p.monitor(ctx)
}

func (p *workerPool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-p.queue:
			if fn != nil {
				fn()
			}
		}
	}
}

// monitor 定期输出工作池状态
func (p *workerPool) monitor(ctx context.Context) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			qLen, qCap, submit, drop := p.stats()
			if submit == 0 {
				continue
			}
			p.log.Info("工作池状态监控",
				"queueLen", qLen,
				"queueCap", qCap,
				"usage", fmt.Sprintf("%.1f%%", float64(qLen)/float64(qCap)*100),
				"totalSubmit", submit,
				"totalDrop", drop)
		}
	}
}

// submit 提交任务，队列已满时返回 false
func (p *workerPool) submit(fn func()) bool {
	if p.queue == nil {
		go fn()
		return true
	}
	p.mu.Lock()
	p.totalSubmit++
	p.mu.Unlock()

	select {
	case p.queue <- fn:
		return true
	default:
		p.mu.Lock()
		p.totalDrop++
		drop := p.totalDrop
		p.mu.Unlock()
		p.log.Warn("工作池队列已满，任务被丢弃", "queueCap", cap(p.queue), "totalDrop", drop)
		return false
	}
}

// stats 返回队列长度、容量、提交总数与丢弃总数
func (p *workerPool) stats() (queueLen, queueCap, totalSubmit, totalDrop int64) {
	if p.queue == nil {
		return 0, 0, 0, 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.queue)), int64(cap(p.queue)), p.totalSubmit, p.totalDrop
}
