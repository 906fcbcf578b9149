// Package store defines the document/index store shared by the crawler,
// indexer and query engine, together with an in-memory implementation.
// Persistent SQL implementations live in the sqlstore sub-package.
package store

import "context"

// CrawlRecord is a page persisted by the crawler before indexing.
type CrawlRecord struct {
	ID      int64          `json:"id"`
	URL     string         `json:"url"`
	Title   string         `json:"title"`
	TermBag map[string]int `json:"term_bag"`
}

// Document is an indexed page. Length is nil until the indexer has
// computed it.
type Document struct {
	ID      int64          `json:"id"`
	URL     string         `json:"url"`
	Title   string         `json:"title"`
	TermBag map[string]int `json:"term_bag"`
	Length  *float64       `json:"length,omitempty"`
}

// Posting records one document containing a term.
type Posting struct {
	DocumentID       int64  `json:"document_id"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	TermDocFrequency int    `json:"term_doc_frequency"`
}

// PostingEntry is the inverted index record of a single term. DocFrequency
// always equals len(Postings).
type PostingEntry struct {
	Term         string    `json:"term"`
	DocFrequency int       `json:"doc_frequency"`
	Postings     []Posting `json:"postings"`
}

// Store is the document database used by every pipeline stage.
//
// GetDocument returns errors.ErrDocumentNotFound and FindTerm returns
// errors.ErrTermNotFound when the key is absent. UpsertTerm must be atomic
// per term and must ignore a posting for a document already listed.
type Store interface {
	InsertCrawlRecord(ctx context.Context, rec CrawlRecord) (int64, error)
	CrawlRecordExists(ctx context.Context, title, url string) (bool, error)
	ListCrawlRecords(ctx context.Context) ([]CrawlRecord, error)
	CountCrawlRecords(ctx context.Context) (int, error)
	ResetCrawlRecords(ctx context.Context) error

	InsertDocument(ctx context.Context, doc Document) (int64, error)
	GetDocument(ctx context.Context, id int64) (*Document, error)
	ListDocumentIDs(ctx context.Context) ([]int64, error)
	CountDocuments(ctx context.Context) (int, error)
	SetDocumentLength(ctx context.Context, id int64, length float64) error

	FindTerm(ctx context.Context, term string) (*PostingEntry, error)
	UpsertTerm(ctx context.Context, term string, posting Posting) error
	ListTerms(ctx context.Context) ([]PostingEntry, error)

	// ResetIndex clears the index, marks it not ready and advances the
	// generation so readers can tell a rebuild happened underneath them.
	ResetIndex(ctx context.Context) error
	SetIndexReady(ctx context.Context, ready bool) error
	IsIndexReady(ctx context.Context) (bool, error)
	IndexGeneration(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// CopyBag returns an independent copy of a term bag.
func CopyBag(bag map[string]int) map[string]int {
	out := make(map[string]int, len(bag))
	for term, count := range bag {
		out[term] = count
	}
	return out
}
