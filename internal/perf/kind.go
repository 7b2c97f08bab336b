package perf

// CounterKind 计数器类型
type CounterKind int

const (
	// MessagesProcessed 已处理的行情消息数
	MessagesProcessed CounterKind = iota
	// OpportunitiesDetected 发现的套利机会数
	OpportunitiesDetected
	// TradesExecuted 已执行的交易数
	TradesExecuted

	numCounters
)

// String 返回计数器名称
func (k CounterKind) String() string {
	switch k {
	case MessagesProcessed:
		return "messages_processed"
	case OpportunitiesDetected:
		return "opportunities_detected"
	case TradesExecuted:
		return "trades_executed"
	default:
		return "unknown"
	}
}

// GaugeKind 瞬时值类型
type GaugeKind int

const (
	// MemoryMB 进程内存占用（MB）
	MemoryMB GaugeKind = iota
	// CPUPercent CPU使用率（%）
	CPUPercent

	numGauges
)

// String 返回瞬时值名称
func (k GaugeKind) String() string {
	switch k {
	case MemoryMB:
		return "memory_usage_mb"
	case CPUPercent:
		return "cpu_usage_percent"
	default:
		return "unknown"
	}
}

// AlertKind 告警类型，每种类型最多一条规则
type AlertKind int

const (
	// LatencyAlert 平均延迟告警
	LatencyAlert AlertKind = iota
	// MemoryAlert 内存告警
	MemoryAlert
	// CPUAlert CPU告警
	CPUAlert

	numAlertKinds
)

// String 返回告警名称
func (k AlertKind) String() string {
	switch k {
	case LatencyAlert:
		return "LATENCY_ALERT"
	case MemoryAlert:
		return "MEMORY_ALERT"
	case CPUAlert:
		return "CPU_ALERT"
	default:
		return "UNKNOWN_ALERT"
	}
}

// AlertKinds 返回全部告警类型，按固定顺序
func AlertKinds() []AlertKind {
	return []AlertKind{LatencyAlert, MemoryAlert, CPUAlert}
}
