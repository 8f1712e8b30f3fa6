package sync

import stdsync "sync"

// keyedMutex 按 symbol 粒度串行化写入：两个并发同步同一标的时
// 后到者排队，不同标的互不干扰。锁条目不回收，watchlist 规模下
// 内存占用可以忽略。
type keyedMutex struct {
	mu    stdsync.Mutex
	locks map[string]*stdsync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*stdsync.Mutex)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &stdsync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
