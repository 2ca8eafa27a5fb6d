package types

import (
	"strings"
	"time"
)

// Category is the topical bucket the oracle assigns to a report.
type Category string

const (
	CategoryPolitics      Category = "politics"
	CategoryHealth        Category = "health"
	CategoryScience       Category = "science"
	CategoryClimate       Category = "climate"
	CategoryTechnology    Category = "technology"
	CategoryFinance       Category = "finance"
	CategoryEntertainment Category = "entertainment"
	CategoryGeneral       Category = "general"
)

var categories = map[Category]struct{}{
	CategoryPolitics: {}, CategoryHealth: {}, CategoryScience: {}, CategoryClimate: {},
	CategoryTechnology: {}, CategoryFinance: {}, CategoryEntertainment: {}, CategoryGeneral: {},
}

// ParseCategory maps free text onto the fixed category set, defaulting to general.
func ParseCategory(raw string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := categories[c]; ok {
		return c
	}
	return CategoryGeneral
}

// Report is a stored misinformation detection. Cluster membership lives on
// the member rows themselves; the head carries the template and count.
type Report struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Text            string    `gorm:"type:text;not null" json:"text"`
	Category        Category  `gorm:"size:32;index;not null;default:general" json:"category"`
	Confidence      float64   `gorm:"not null;default:0" json:"confidence"`
	Explanation     string    `gorm:"type:text" json:"explanation"`
	Timestamp       time.Time `gorm:"index;not null" json:"timestamp"`
	Upvotes         int64     `gorm:"not null;default:0;index" json:"upvotes"`
	ClusterID       *string   `gorm:"size:36;index" json:"clusterId"`
	IsClusterHead   bool      `gorm:"not null;default:false" json:"isClusterHead"`
	MessageTemplate *string   `gorm:"type:text" json:"messageTemplate"`
	Variations      int       `gorm:"not null;default:0" json:"variations"`
}

func (Report) TableName() string { return "misinformation" }

// Verdict is the outcome of classifying a piece of text.
type Verdict struct {
	IsMisinformation bool     `json:"is_misinformation"`
	Confidence       float64  `json:"confidence"`
	Category         Category `json:"category"`
	Explanation      string   `json:"explanation"`
	// Provider names the oracle tier that produced the verdict; empty for
	// the safe default.
	Provider string `json:"-"`
}

// ContentType labels what kind of text was submitted.
type ContentType string

const (
	ContentNews                ContentType = "news"
	ContentFactualClaim        ContentType = "factual_claim"
	ContentHistorical          ContentType = "historical"
	ContentScientific          ContentType = "scientific"
	ContentPolitical           ContentType = "political"
	ContentHealthClaim         ContentType = "health_claim"
	ContentPersonalAttack      ContentType = "personal_attack"
	ContentHateSpeech          ContentType = "hate_speech"
	ContentThreat              ContentType = "threat"
	ContentSpam                ContentType = "spam"
	ContentPromotional         ContentType = "promotional"
	ContentPrivateConversation ContentType = "private_conversation"
	ContentCyberbullying       ContentType = "cyberbullying"
	ContentUnknown             ContentType = "unknown"
)

var allowedContent = map[ContentType]struct{}{
	ContentNews: {}, ContentFactualClaim: {}, ContentHistorical: {},
	ContentScientific: {}, ContentPolitical: {}, ContentHealthClaim: {},
}

var rejectionReasons = map[ContentType]string{
	ContentPersonalAttack:      "Personal attacks are not claims that can be fact-checked.",
	ContentHateSpeech:          "Hate speech is not accepted.",
	ContentThreat:              "Threatening content is not accepted.",
	ContentSpam:                "Spam is not accepted.",
	ContentPromotional:         "Promotional content is not accepted.",
	ContentPrivateConversation: "Private conversations are not accepted.",
	ContentCyberbullying:       "Cyberbullying is not accepted.",
}

// ParseContentType normalises an oracle label; unrecognised labels become unknown.
func ParseContentType(raw string) ContentType {
	ct := ContentType(strings.ToLower(strings.TrimSpace(raw)))
	ct = ContentType(strings.ReplaceAll(string(ct), " ", "_"))
	if _, ok := allowedContent[ct]; ok {
		return ct
	}
	if _, ok := rejectionReasons[ct]; ok {
		return ct
	}
	return ContentUnknown
}

// Allowed reports whether the content type belongs to the fact-checkable allow-list.
func (c ContentType) Allowed() bool {
	_, ok := allowedContent[c]
	return ok
}

// RejectionReason returns a human explanation for rejected types, "" otherwise.
func (c ContentType) RejectionReason() string {
	if reason, ok := rejectionReasons[c]; ok {
		return reason
	}
	if c.Allowed() || c == ContentUnknown {
		return ""
	}
	return "Only news and factual claims can be verified."
}

// ContentDecision is the outcome of moderating a submission.
type ContentDecision struct {
	IsValid         bool        `json:"isValid"`
	ContentType     ContentType `json:"contentType"`
	RejectionReason *string     `json:"rejectionReason"`
}
