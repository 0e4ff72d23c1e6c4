package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the storage format of record dates. Lexicographic order of
// strings in this layout equals chronological order.
const DateLayout = "2006-01-02"

// MonthLayout keys calendar months in monthly series.
const MonthLayout = "2006-01"

const (
	Coupang Platform = "coupang"
	Baemin  Platform = "baemin"
	Yogiyo  Platform = "yogiyo"
	Other   Platform = "other"

	// AllPlatforms disables platform filtering in queries. It is never a
	// valid record platform.
	AllPlatforms Platform = "all"
)

const (
	// SchemaV1 records carry no delivery count and use the 3-platform set.
	SchemaV1 SchemaVersion = 1
	// SchemaV2 records carry a delivery count and add yogiyo.
	SchemaV2 SchemaVersion = 2
)

type (
	Platform      string
	SchemaVersion int

	// Record is one logged income event. Records are created by RecordStore
	// and never edited afterwards.
	Record struct {
		ID       int64    `json:"id"`
		Date     string   `json:"date"`
		Platform Platform `json:"platform"`
		// DeliveryCount is 0 for legacy records written before the field
		// existed; read it through Deliveries.
		DeliveryCount int    `json:"deliveryCount,omitempty"`
		Amount        int64  `json:"amount"`
		Memo          string `json:"memo"`
	}

	// RecordInput is what a caller supplies to create a record.
	RecordInput struct {
		Date          string
		Platform      Platform
		DeliveryCount int // 0 means the default of 1
		Amount        int64
		Memo          string
	}
)

// Platforms lists the current platform set in display order.
var Platforms = []Platform{Coupang, Baemin, Yogiyo, Other}

var (
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidPlatform      = errors.New("invalid platform")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidDeliveryCount = errors.New("invalid delivery count")
	ErrInvalidPeriod        = errors.New("invalid period")
	ErrMemoTooLong          = errors.New("memo too long")
)

// MaxMemoLength is the memo limit in characters.
const MaxMemoLength = 200

// Valid reports whether p is a record platform of the current schema.
func (p Platform) Valid() bool {
	switch p {
	case Coupang, Baemin, Yogiyo, Other:
		return true
	default:
		return false
	}
}

func (p Platform) String() string {
	return string(p)
}

// ParsePlatformFilter accepts a record platform or "all". An empty string
// means "all".
func ParsePlatformFilter(s string) (Platform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AllPlatforms, nil
	}
	p := Platform(s)
	if p == AllPlatforms || p.Valid() {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, s)
}

// Deliveries returns the delivery count, treating a missing count as 1.
func (r Record) Deliveries() int64 {
	if r.DeliveryCount <= 0 {
		return 1
	}
	return int64(r.DeliveryCount)
}

// SchemaVersion reports which schema the stored record was written with.
func (r Record) SchemaVersion() SchemaVersion {
	if r.DeliveryCount == 0 {
		return SchemaV1
	}
	return SchemaV2
}

// ValidateDate checks that s is a real calendar date in DateLayout.
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return nil
}

// Validate enforces the record invariants before a record is created.
func (in RecordInput) Validate() error {
	if err := ValidateDate(in.Date); err != nil {
		return err
	}
	if !in.Platform.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPlatform, in.Platform)
	}
	if in.Amount < 0 {
		return ErrInvalidAmount
	}
	if in.DeliveryCount < 0 {
		return ErrInvalidDeliveryCount
	}
	if utf8.RuneCountInString(in.Memo) > MaxMemoLength {
		return fmt.Errorf("%w (max %d characters)", ErrMemoTooLong, MaxMemoLength)
	}
	return nil
}

// Normalized returns the input with the default delivery count applied.
func (in RecordInput) Normalized() RecordInput {
	if in.DeliveryCount == 0 {
		in.DeliveryCount = 1
	}
	in.Memo = strings.TrimSpace(in.Memo)
	return in
}

// FormatDate renders t as a record date in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
