package domain

import "time"

type DocumentStatus string

const (
	StatusQueued     DocumentStatus = "queued"
	StatusExtracting DocumentStatus = "extracting"
	StatusEnriching  DocumentStatus = "enriching"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

// IsTerminal reports whether no further pipeline transition is allowed
// without an explicit reprocess.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Stage identifies one step of the enrichment pipeline.
type Stage string

const (
	StageExtraction     Stage = "extraction"
	StageClassification Stage = "classification"
	StageSummarization  Stage = "summarization"
	StageEntities       Stage = "entities"
	StageSentiment      Stage = "sentiment"
)

// EnrichmentStages lists the stages that run after extraction. They are
// independent of each other and may run concurrently.
func EnrichmentStages() []Stage {
	return []Stage{StageClassification, StageSummarization, StageEntities, StageSentiment}
}

type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	StoragePath string         `json:"storage_path"`
	Status      DocumentStatus `json:"status"`
	// FailedStage and FailureReason are set only for status=failed.
	FailedStage     Stage  `json:"failed_stage,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
	CancelRequested bool   `json:"cancel_requested,omitempty"`

	Record EnrichmentRecord `json:"record"`

	UploadedAt time.Time `json:"uploaded_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EnrichmentRecord accumulates per-stage outputs. A field is non-nil iff its
// stage completed successfully for this document.
type EnrichmentRecord struct {
	Extraction     *Extraction     `json:"extraction,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Summary        *string         `json:"summary,omitempty"`
	Entities       Entities        `json:"entities,omitempty"`
	Sentiment      *Sentiment      `json:"sentiment,omitempty"`
}

type Extraction struct {
	Text           string `json:"text"`
	WordCount      int    `json:"word_count"`
	CharacterCount int    `json:"character_count"`
}

type Classification struct {
	Category     string        `json:"category"`
	Confidence   float64       `json:"confidence"`
	Alternatives []Alternative `json:"alternatives"`
}

type Alternative struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Entities maps an entity type (PERSON, ORG, DATE, ...) to its mentions in
// document order.
type Entities map[string][]string

type Sentiment struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// DocumentSummary is the list-view projection of a document.
type DocumentSummary struct {
	ID            string         `json:"id"`
	Filename      string         `json:"filename"`
	ContentType   string         `json:"content_type"`
	Status        DocumentStatus `json:"status"`
	FailedStage   Stage          `json:"failed_stage,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	UploadedAt    time.Time      `json:"uploaded_at"`
}

func NewExtraction(text string) Extraction {
	words := 0
	inWord := false
	for _, r := range text {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				words++
			}
			inWord = true
		}
	}
	return Extraction{
		Text:           text,
		WordCount:      words,
		CharacterCount: len([]rune(text)),
	}
}
