package domain

// Trigger names what caused a dispatch.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerCallback Trigger = "scheduler-callback"
	TriggerCron     Trigger = "internal-cron"
)
