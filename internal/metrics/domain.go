// Package metrics 暴露 HTTP、异步任务与业务相关的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cvbuilder"

var (
	aiResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "results_total",
			Help:      "AI 调用结果数，按操作与来源（ai/mock/fallback）区分。",
		},
		[]string{"operation", "source"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "files_total",
			Help:      "简历上传数，按结果区分。",
		},
		[]string{"outcome"},
	)

	analysisScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "overall_score",
			Help:      "简历分析整体得分分布。",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		},
	)
)

// ObserveAIResult 记录一次 AI 操作的结果来源。
func ObserveAIResult(operation, source string) {
	aiResultsTotal.WithLabelValues(operation, source).Inc()
}

// ObserveUpload 记录一次上传结果，如 accepted、rejected、infected。
func ObserveUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAnalysisScore 记录分析得分。
func ObserveAnalysisScore(score int) {
	analysisScore.Observe(float64(score))
}
