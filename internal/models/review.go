package models

import (
	"fmt"
	"strings"
	"time"
)

// ReviewStatus captures the review lifecycle of a merchant record.
type ReviewStatus string

const (
	ReviewStatusUntouched ReviewStatus = "UNTOUCHED"
	ReviewStatusPending   ReviewStatus = "PENDING"
	ReviewStatusApproved  ReviewStatus = "APPROVED"
	ReviewStatusRejected  ReviewStatus = "REJECTED"
)

// ParseReviewStatus maps a stored status value onto a ReviewStatus. NULL or
// blank values mean the record was never submitted.
func ParseReviewStatus(raw string) (ReviewStatus, error) {
	switch ReviewStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", ReviewStatusUntouched:
		return ReviewStatusUntouched, nil
	case ReviewStatusPending:
		return ReviewStatusPending, nil
	case ReviewStatusApproved:
		return ReviewStatusApproved, nil
	case ReviewStatusRejected:
		return ReviewStatusRejected, nil
	default:
		return "", fmt.Errorf("unknown review status %q", raw)
	}
}

// BusinessSize classifies a merchant by size. The zero value means unset.
type BusinessSize string

const (
	BusinessSizeMicro  BusinessSize = "MICRO"
	BusinessSizeSmall  BusinessSize = "SMALL"
	BusinessSizeMedium BusinessSize = "MEDIUM"
	BusinessSizeLarge  BusinessSize = "LARGE"
)

// BusinessSizes lists the selectable sizes in display order.
var BusinessSizes = []BusinessSize{BusinessSizeMicro, BusinessSizeSmall, BusinessSizeMedium, BusinessSizeLarge}

// ParseBusinessSize accepts any casing; blank input yields the unset value.
func ParseBusinessSize(raw string) (BusinessSize, error) {
	value := BusinessSize(strings.ToUpper(strings.TrimSpace(raw)))
	if value == "" {
		return "", nil
	}
	for _, size := range BusinessSizes {
		if value == size {
			return size, nil
		}
	}
	return "", fmt.Errorf("unknown business size %q", raw)
}

// Gender classifies a merchant owner. The zero value means unset.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Genders lists the selectable genders in display order.
var Genders = []Gender{GenderMale, GenderFemale}

// ParseGender accepts any casing; blank input yields the unset value.
func ParseGender(raw string) (Gender, error) {
	value := Gender(strings.ToUpper(strings.TrimSpace(raw)))
	if value == "" {
		return "", nil
	}
	for _, g := range Genders {
		if value == g {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown gender %q", raw)
}

// Classification pairs the two reviewed attributes.
type Classification struct {
	Size   BusinessSize `json:"size,omitempty"`
	Gender Gender       `json:"gender,omitempty"`
}

// Complete reports whether both attributes are set.
func (c Classification) Complete() bool {
	return c.Size != "" && c.Gender != ""
}

// Empty reports whether neither attribute is set.
func (c Classification) Empty() bool {
	return c.Size == "" && c.Gender == ""
}

// ParseClassification parses a raw size/gender pair.
func ParseClassification(size, gender string) (Classification, error) {
	s, err := ParseBusinessSize(size)
	if err != nil {
		return Classification{}, err
	}
	g, err := ParseGender(gender)
	if err != nil {
		return Classification{}, err
	}
	return Classification{Size: s, Gender: g}, nil
}

// ReviewRecord is one reviewable row of the target table.
type ReviewRecord struct {
	IdentityValue string         `json:"identityValue"`
	Pending       Classification `json:"pending"`
	Final         Classification `json:"final"`
	Status        ReviewStatus   `json:"status"`
	SubmittedBy   string         `json:"submittedBy,omitempty"`
	SubmittedAt   string         `json:"submittedAt,omitempty"`
	ReviewedBy    string         `json:"reviewedBy,omitempty"`
	ReviewedAt    string         `json:"reviewedAt,omitempty"`
	Comments      string         `json:"comments,omitempty"`
	Row           Row            `json:"row"`
}

// FieldValue is one column assignment of an update statement. A nil Value
// writes NULL.
type FieldValue struct {
	Column string      `json:"column"`
	Value  interface{} `json:"value"`
}

// RecordUpdate is the persisted effect of a single transition.
type RecordUpdate struct {
	IdentityValue string       `json:"identityValue"`
	From          ReviewStatus `json:"from"`
	To            ReviewStatus `json:"to"`
	Fields        []FieldValue `json:"fields"`
	Result        ReviewRecord `json:"-"`
}

// RecordFilter constrains snapshot reads.
type RecordFilter struct {
	Statuses []ReviewStatus
	Limit    int
}

// ReviewTimestampLayout is the format written to submitted_at and reviewed_at.
const ReviewTimestampLayout = "2006-01-02 15:04:05"

// FormatReviewTimestamp renders t in loc using ReviewTimestampLayout.
func FormatReviewTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(ReviewTimestampLayout)
}

// ReviewEvent names a state machine event.
type ReviewEvent string

const (
	ReviewEventSubmit  ReviewEvent = "SUBMIT"
	ReviewEventApprove ReviewEvent = "APPROVE"
	ReviewEventReject  ReviewEvent = "REJECT"
)
