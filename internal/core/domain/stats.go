package domain

// RoleCount is one bucket of the accounts-per-role breakdown.
type RoleCount struct {
	Role  Role  `json:"role"`
	Count int64 `json:"count"`
}

// AccountStats aggregates account counts for the dashboard. TotalUsers
// counts active accounts only; UsersByRole covers every account.
type AccountStats struct {
	TotalUsers            int64       `json:"totalUsers"`
	InactiveUsers         int64       `json:"inactiveUsers"`
	PendingPasswordChange int64       `json:"pendingPasswordChange"`
	UsersByRole           []RoleCount `json:"usersByRole"`
}
