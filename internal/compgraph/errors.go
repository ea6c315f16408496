package compgraph

import "github.com/ekow-ghana/payroll-core/internal/payrollerr"

var errComponentBonusAndOvertime = payrollerr.Validation("is_bonus/is_overtime",
	"a pay component cannot be marked both is_bonus and is_overtime")
