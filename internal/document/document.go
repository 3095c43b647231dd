package document

// Document is a raw upload. It lives only for the duration of an ingest.
type Document struct {
	Filename string
	Data     []byte
}

// Page is one unit of extracted text. Pages are ordered as in the source.
type Page struct {
	Number int    // 1-based page (or section ordinal for non-paged formats)
	Title  string // Section heading, empty for PDF pages
	Text   string
}

// Passage is a bounded window of a Page's text, ready for embedding.
type Passage struct {
	Text          string
	Index         int // Sequence number within the document
	Page          int // Source page number
	Offset        int // Rune offset of Text within the page text
	TokenEstimate int
}
