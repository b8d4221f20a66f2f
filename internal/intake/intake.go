// Package intake turns a guardian's submitted order form into a verified
// PendingOrder for one age group. It performs no I/O: the caller supplies the
// active catalog of the selected age group.
package intake

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kinder-supplies/api/internal/catalog"
	"github.com/kinder-supplies/api/internal/enum"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxNameLength  = 100
	MaxNotesLength = 500
	MinQuantity    = 1
	MaxQuantity    = 99
)

// Field error codes.
const (
	CodeRequired     = "required"
	CodeTooLong      = "too_long"
	CodeInvalid      = "invalid"
	CodeKatakana     = "katakana"
	CodeOutOfRange   = "out_of_range"
	CodeIncompatible = "incompatible_product"
)

const FieldItems = "items"

var katakanaPattern = regexp.MustCompile(`^[ァ-ヶー ]+$`)

// LineInput is one {product_id, quantity} pair as decoded at the HTTP edge.
type LineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Submission struct {
	GuardianName  string      `json:"guardian_name"`
	ChildName     string      `json:"child_name"`
	ChildNameKana string      `json:"child_name_kana"`
	AgeGroup      int16       `json:"age_group"`
	Handedness    string      `json:"handedness"`
	Notes         string      `json:"notes"`
	Lines         []LineInput `json:"items"`
}

// PendingLine carries a frozen copy of the catalog entry at validation time.
type PendingLine struct {
	ProductID     uuid.UUID       `json:"product_id"`
	ProductCode   string          `json:"product_code"`
	ProductName   string          `json:"product_name"`
	Specification string          `json:"specification"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int32           `json:"quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

type PendingOrder struct {
	GuardianName  string        `json:"guardian_name"`
	ChildName     string        `json:"child_name"`
	ChildNameKana string        `json:"child_name_kana"`
	AgeGroup      int16         `json:"age_group"`
	Handedness    string        `json:"handedness"`
	Notes         string        `json:"notes"`
	Lines         []PendingLine `json:"items"`
}

func (p PendingOrder) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

func (p PendingOrder) TotalQuantity() int32 {
	var total int32
	for _, l := range p.Lines {
		total += l.Quantity
	}
	return total
}

// FieldErrors maps a field name to an error code. Empty means valid.
type FieldErrors map[string]string

// Incompatible reports whether the submission named a product outside the
// selected age group's catalog.
func (fe FieldErrors) Incompatible() bool {
	return fe[FieldItems] == CodeIncompatible
}

func (fe FieldErrors) add(field, code string) {
	if _, exists := fe[field]; !exists {
		fe[field] = code
	}
}

// Validate checks the submission against the active products of its age
// group. On any field error the returned PendingOrder is the zero value.
func Validate(sub Submission, products []catalog.Product) (PendingOrder, FieldErrors) {
	errs := FieldErrors{}

	guardian := strings.TrimSpace(sub.GuardianName)
	child := strings.TrimSpace(sub.ChildName)
	kana := NormalizeKana(sub.ChildNameKana)
	notes := strings.TrimSpace(sub.Notes)

	checkName(errs, "guardian_name", guardian)
	checkName(errs, "child_name", child)
	checkName(errs, "child_name_kana", kana)
	if _, bad := errs["child_name_kana"]; !bad && !katakanaPattern.MatchString(kana) {
		errs.add("child_name_kana", CodeKatakana)
	}
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		errs.add("notes", CodeTooLong)
	}
	if !enum.IsValidHandedness(sub.Handedness) {
		errs.add("handedness", CodeInvalid)
	}

	validAgeGroup := enum.IsValidAgeGroup(sub.AgeGroup)
	if !validAgeGroup {
		errs.add("age_group", CodeInvalid)
	}

	var lines []PendingLine
	if validAgeGroup {
		lines = validateLines(errs, sub.Lines, products)
	}

	if len(errs) > 0 {
		return PendingOrder{}, errs
	}
	return PendingOrder{
		GuardianName:  guardian,
		ChildName:     child,
		ChildNameKana: kana,
		AgeGroup:      sub.AgeGroup,
		Handedness:    sub.Handedness,
		Notes:         notes,
		Lines:         lines,
	}, errs
}

func validateLines(errs FieldErrors, inputs []LineInput, products []catalog.Product) []PendingLine {
	byID := make(map[uuid.UUID]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var lines []PendingLine
	index := map[uuid.UUID]int{}
	for i, in := range inputs {
		if in.Quantity == 0 {
			continue
		}
		field := fmt.Sprintf("items[%d].quantity", i)
		if in.Quantity < MinQuantity || in.Quantity > MaxQuantity {
			errs.add(field, CodeOutOfRange)
			continue
		}

		id, err := uuid.Parse(in.ProductID)
		if err != nil {
			errs[FieldItems] = CodeIncompatible
			continue
		}
		product, ok := byID[id]
		if !ok {
			errs[FieldItems] = CodeIncompatible
			continue
		}

		qty := int32(in.Quantity)
		if at, dup := index[id]; dup {
			merged := lines[at].Quantity + qty
			if merged > MaxQuantity {
				errs.add(field, CodeOutOfRange)
				continue
			}
			lines[at].Quantity = merged
			lines[at].Subtotal = lines[at].UnitPrice.Mul(decimal.NewFromInt32(merged))
			continue
		}

		index[id] = len(lines)
		lines = append(lines, PendingLine{
			ProductID:     product.ID,
			ProductCode:   product.Code,
			ProductName:   product.Name,
			Specification: product.Specification,
			UnitPrice:     product.Price,
			Quantity:      qty,
			Subtotal:      product.Price.Mul(decimal.NewFromInt32(qty)),
		})
	}

	if len(lines) == 0 {
		errs.add(FieldItems, CodeRequired)
	}
	return lines
}

func checkName(errs FieldErrors, field, v string) {
	switch {
	case v == "":
		errs.add(field, CodeRequired)
	case utf8.RuneCountInString(v) > MaxNameLength:
		errs.add(field, CodeTooLong)
	}
}

// NormalizeKana folds half-width katakana and ideographic spaces to their
// canonical forms, collapses runs of spaces and trims the result.
func NormalizeKana(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}
