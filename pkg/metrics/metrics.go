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

package metrics

import (
	// #nosec
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// zeusNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	zeusNamespace = "zeus"

	saveSubsystem = "save"

	// 以下为当前使用的通用标签名。
	opLabelName     = "op"
	statusLabelName = "status"

	// op 标签的取值。
	SaveOpLabel = "save"
	LoadOpLabel = "load"

	// status 标签的取值。
	SuccessLabel = "success"
	FailLabel    = "fail"
)

var (
	// buckets 为请求耗时直方图的桶划分，单位为毫秒。
	// 实际桶分布为：
	// [1 2 4 8 16 32 64 128 256 512 1024 2048 4096 8192 16384 32768 65536 1.31072e+05]
	buckets = prometheus.ExponentialBuckets(1, 2, 18)

	// sizeBuckets 为存档文件大小的桶划分，单位为字节。
	sizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 67108864}

	// SaveOps 统计存/读档操作次数，按操作与结果区分。
	SaveOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: zeusNamespace,
			Subsystem: saveSubsystem,
			Name:      "ops_total",
			Help:      "number of save/load operations",
		}, []string{opLabelName, statusLabelName})

	// SaveDuration 统计单次存/读档耗时。
	SaveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: zeusNamespace,
			Subsystem: saveSubsystem,
			Name:      "duration_milliseconds",
			Help:      "latency of save/load operations",
			Buckets:   buckets,
		}, []string{opLabelName})

	// SaveFileBytes 统计写出的存档文件大小。
	SaveFileBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: zeusNamespace,
			Subsystem: saveSubsystem,
			Name:      "file_bytes",
			Help:      "size of written save files in bytes",
			Buckets:   sizeBuckets,
		})

	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标。
// 通常应在 init 函数中调用。
func Register(r prometheus.Registerer) {
	r.MustRegister(SaveOps)
	r.MustRegister(SaveDuration)
	r.MustRegister(SaveFileBytes)
	metricRegisterer = r
}
