package tasks

import "github.com/prometheus/client_golang/prometheus"

var operationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "task_operations_total",
		Help: "Task service operations by outcome",
	},
	[]string{"operation", "result"},
)

func init() {
	prometheus.MustRegister(operationsTotal)
}
