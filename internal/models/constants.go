package models

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
	RoleAdmin   = "admin"
)

const (
	NotificationKindBooking      = "booking"
	NotificationKindCancellation = "cancellation"
)

const (
	TaskStatusPending = "pending"
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
)

const (
	ChannelTelegram = "telegram"
	ChannelSheets   = "sheets"
)

const (
	// WorkerQueueSize caps the in-memory delivery queue used when redis
	// is unavailable.
	WorkerQueueSize = 1000

	// RateLimitRequests is the default per-key request budget per window.
	RateLimitRequests = 20

	// RateLimitWindow is the default rate limit window in seconds.
	RateLimitWindow = 60
)
