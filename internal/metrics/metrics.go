package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LedgerAppendsTotal 成功写入的账本条目数
	LedgerAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltledger_ledger_appends_total",
			Help: "Total number of ledger entries appended.",
		},
		[]string{"type"}, // battery/charging/ownership/alert/oem
	)

	// LedgerAppendRetriesTotal 交易 ID 冲突后的重试次数
	LedgerAppendRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voltledger_ledger_append_retries_total",
			Help: "Total number of ledger appends retried after a transaction id collision.",
		},
	)

	// TransitionRejectionsTotal 被拒绝的状态转换
	TransitionRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltledger_transition_rejections_total",
			Help: "Total number of rejected domain transitions.",
		},
		[]string{"operation", "kind"},
	)
)

func init() {
	prometheus.MustRegister(LedgerAppendsTotal)
	prometheus.MustRegister(LedgerAppendRetriesTotal)
	prometheus.MustRegister(TransitionRejectionsTotal)
}
