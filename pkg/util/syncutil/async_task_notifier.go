// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package syncutil

import (
	"context"
	"sync"
)

// AsyncTaskNotifier 用于协调一个后台任务的取消与完成：
// 任务方通过 Context 感知取消信号，并在退出前调用 Finish 上报结果；
// 控制方通过 Cancel 发出取消信号，通过 BlockUntilFinish 等待任务退出。
type AsyncTaskNotifier[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc

	once   sync.Once
	done   chan struct{}
	result T
}

// NewAsyncTaskNotifier 创建一个新的 AsyncTaskNotifier。
func NewAsyncTaskNotifier[T any]() *AsyncTaskNotifier[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncTaskNotifier[T]{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Context 返回任务方用于感知取消信号的 context。
func (n *AsyncTaskNotifier[T]) Context() context.Context {
	return n.ctx
}

// Cancel 通知任务方退出。
// 可以安全地多次调用。
func (n *AsyncTaskNotifier[T]) Cancel() {
	n.cancel()
}

// Finish 由任务方在退出前调用，上报任务结果并标记任务完成。
// 重复调用只有第一次生效。
func (n *AsyncTaskNotifier[T]) Finish(result T) {
	n.once.Do(func() {
		n.result = result
		close(n.done)
	})
}

// FinishChan 返回任务完成时会被关闭的 channel。
func (n *AsyncTaskNotifier[T]) FinishChan() <-chan struct{} {
	return n.done
}

// BlockUntilFinish 阻塞等待任务方调用 Finish，并返回任务结果。
func (n *AsyncTaskNotifier[T]) BlockUntilFinish() T {
	<-n.done
	return n.result
}
