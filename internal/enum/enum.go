package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusCompleted = "COMPLETED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	AdminRoleAdmin = "ADMIN"
	AdminRoleStaff = "STAFF"
)

const (
	HandednessNone  = ""
	HandednessRight = "右"
	HandednessLeft  = "左"
)

const (
	AgeGroup2 int16 = 2
	AgeGroup3 int16 = 3
	AgeGroup4 int16 = 4
	AgeGroup5 int16 = 5
)

// AgeGroups lists every age group in display order.
var AgeGroups = []int16{AgeGroup2, AgeGroup3, AgeGroup4, AgeGroup5}

// ── Group B: Configurable labels (no DB constraint) ──

var ageGroupLabels = map[int16]string{
	AgeGroup2: "2歳児(ひよこ)",
	AgeGroup3: "3歳児(年少)",
	AgeGroup4: "4歳児(年中)",
	AgeGroup5: "5歳児(年長)",
}

// AgeGroupLabel returns the class label printed on reports and envelopes.
func AgeGroupLabel(ag int16) string {
	if l, ok := ageGroupLabels[ag]; ok {
		return l
	}
	return ""
}

func IsValidAgeGroup(ag int16) bool {
	_, ok := ageGroupLabels[ag]
	return ok
}

func IsValidHandedness(h string) bool {
	return h == HandednessNone || h == HandednessRight || h == HandednessLeft
}

const (
	ReportTypeQuantity = "quantity"
	ReportTypeAmount   = "amount"
)

const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
)
