package models

// SummaryReport holds the derived statistics for one extracted document.
type SummaryReport struct {
	HeaderLabel    string `json:"headerLabel"`
	PreviewText    string `json:"previewText"`
	Truncated      bool   `json:"truncated"`
	FileName       string `json:"fileName"`
	FileSizeBytes  int64  `json:"fileSizeBytes"`
	FileSizeKB     string `json:"fileSizeKB"`
	MediaType      string `json:"mediaType"`
	CharacterCount int    `json:"characterCount"`
	WordCount      int    `json:"wordCount"`
}
