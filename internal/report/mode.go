package report

import (
	"fmt"
	"time"

	"github.com/kinder-supplies/api/internal/enum"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Mode selects whether cells hold quantities or yen amounts.
type Mode int

const (
	ModeQuantity Mode = iota
	ModeAmount
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case enum.ReportTypeQuantity, "":
		return ModeQuantity, nil
	case enum.ReportTypeAmount:
		return ModeAmount, nil
	}
	return 0, fmt.Errorf("invalid report type %q", s)
}

func (m Mode) String() string {
	if m == ModeAmount {
		return enum.ReportTypeAmount
	}
	return enum.ReportTypeQuantity
}

func (m Mode) totalLabel() string {
	if m == ModeAmount {
		return "合計金額"
	}
	return "合計数量"
}

// Filename builds the download name, e.g. syukei_20250101_20250131.csv.
func Filename(m Mode, start, end time.Time, format string) string {
	prefix := "syukei"
	if m == ModeAmount {
		prefix = "syukeikin"
	}
	return fmt.Sprintf("%s_%s_%s.%s", prefix, start.Format("20060102"), end.Format("20060102"), format)
}

var yen = message.NewPrinter(language.Japanese)
