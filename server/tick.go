package server

import (
	"errors"
	"fmt"
	"time"
)

// ErrRoomClosed 房间协程已退出
var ErrRoomClosed = errors.New("room closed")

// Run 房间协程：单线程处理输入、加入/离开与 Tick，房间状态只在这里被修改
func (r *Room) Run() {
	defer close(r.done)
	defer r.shutdown()

	for {
		var tickC <-chan time.Time
		if r.timer != nil {
			tickC = r.timer.C
		}

		select {
		case <-r.quit:
			return
		case in := <-r.inputChan:
			r.guard(func() { r.onInput(in) })
		case cmd := <-r.ctrlChan:
			r.guard(func() { r.handleCommand(cmd) })
		case <-tickC:
			// 核心循环：结算移动 → 判定胜负 → 广播结果 → 预约下一 Tick
			r.timer = nil
			start := time.Now()
			r.drainInputs()
			r.guard(r.next)
			r.metrics.AddTick(time.Since(start).Nanoseconds())
		}

		if r.broken {
			return
		}
	}
}

// drainInputs 结算前取走本次 Tick 之前已到达的全部输入
func (r *Room) drainInputs() {
	for n := len(r.inputChan); n > 0; n-- {
		in := <-r.inputChan
		r.guard(func() { r.onInput(in) })
	}
}

func (r *Room) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case joinCmd:
		c.reply <- r.join(c.conn, c.team)
	case leaveCmd:
		r.leave(c.connID)
		close(c.reply)
	default:
		Log.Warnf("room=%s: unknown command %T", r.ID, cmd)
	}
}

// guard 处理函数内的 panic 视为房间内部错误
func (r *Room) guard(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(fmt.Errorf("panic: %v", rec))
		}
	}()
	fn()
}

// armTimer 预约下一次 Tick
func (r *Room) armTimer(d time.Duration) {
	r.cancelTimer()
	r.timer = time.NewTimer(d)
}

// cancelTimer 取消尚未触发的 Tick（幂等）
func (r *Room) cancelTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// shutdown 房间被移除时收尾：比赛仍在进行则直接完成录像，不再广播
func (r *Room) shutdown() {
	r.cancelTimer()
	if r.phase == PhaseRunning {
		if err := r.recorder.Close(); err != nil {
			Log.Warnf("close recorder for room=%s: %v", r.ID, err)
		}
		r.recorder = nil
		r.setPhase(PhaseEnded)
		Log.Infof("room=%s stopped during a running match", r.ID)
	}
}

// Stop 请求房间协程退出（可重复调用）
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

// Done 房间协程退出后关闭
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Closed 房间协程是否已退出
func (r *Room) Closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// RequestJoin 在房间协程中处理加入请求并等待结果
func (r *Room) RequestJoin(c Conn, team *string) (JoinResult, error) {
	reply := make(chan JoinResult, 1)
	select {
	case r.ctrlChan <- joinCmd{conn: c, team: team, reply: reply}:
	case <-r.done:
		return JoinResult{}, ErrRoomClosed
	}
	select {
	case res := <-reply:
		return res, nil
	case <-r.done:
		return JoinResult{}, ErrRoomClosed
	}
}

// RequestLeave 请求在房间协程中移除连接，避免并发改动房间状态
func (r *Room) RequestLeave(connID string) error {
	reply := make(chan struct{})
	select {
	case r.ctrlChan <- leaveCmd{connID: connID, reply: reply}:
	case <-r.done:
		return ErrRoomClosed
	}
	select {
	case <-reply:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// OnInput 入站移动意图；不阻塞，通道满时丢弃，保证 Tick 准时
func (r *Room) OnInput(in Input) {
	select {
	case r.inputChan <- in:
	default:
		r.metrics.IncChanFullDiscarded()
	}
}
