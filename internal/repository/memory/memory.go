package memory

import (
	"payment_validator/internal/repository"
)

var (
	_ repository.AccountService    = (*AccountRepository)(nil)
	_ repository.ComplianceService = (*ComplianceService)(nil)
	_ repository.HolidayCalendar   = (*HolidayCalendar)(nil)
	_ repository.ReputationStore   = (*ReputationRepository)(nil)
	_ repository.RuleRepository    = (*RuleRepository)(nil)
)
