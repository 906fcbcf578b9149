package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/errors"
)

// Memory is an in-process Store guarded by a single RWMutex.
type Memory struct {
	mu        sync.RWMutex
	records   []CrawlRecord
	recordKey map[string]struct{}
	nextRecID int64

	docs      map[int64]*Document
	docOrder  []int64
	nextDocID int64

	index      map[string]*PostingEntry
	ready      bool
	generation int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		recordKey: make(map[string]struct{}),
		docs:      make(map[int64]*Document),
		index:     make(map[string]*PostingEntry),
	}
}

func recordKey(title, url string) string {
	return title + "\x00" + url
}

func (m *Memory) InsertCrawlRecord(_ context.Context, rec CrawlRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRecID++
	rec.ID = m.nextRecID
	rec.TermBag = CopyBag(rec.TermBag)
	m.records = append(m.records, rec)
	m.recordKey[recordKey(rec.Title, rec.URL)] = struct{}{}
	return rec.ID, nil
}

func (m *Memory) CrawlRecordExists(_ context.Context, title, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.recordKey[recordKey(title, url)]
	return ok, nil
}

func (m *Memory) ListCrawlRecords(_ context.Context) ([]CrawlRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CrawlRecord, 0, len(m.records))
	for _, rec := range m.records {
		rec.TermBag = CopyBag(rec.TermBag)
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) CountCrawlRecords(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Memory) ResetCrawlRecords(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.recordKey = make(map[string]struct{})
	return nil
}

func (m *Memory) InsertDocument(_ context.Context, doc Document) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDocID++
	doc.ID = m.nextDocID
	doc.TermBag = CopyBag(doc.TermBag)
	doc.Length = nil
	m.docs[doc.ID] = &doc
	m.docOrder = append(m.docOrder, doc.ID)
	return doc.ID, nil
}

func (m *Memory) GetDocument(_ context.Context, id int64) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	out := *doc
	out.TermBag = CopyBag(doc.TermBag)
	if doc.Length != nil {
		length := *doc.Length
		out.Length = &length
	}
	return &out, nil
}

func (m *Memory) ListDocumentIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, len(m.docOrder))
	copy(ids, m.docOrder)
	return ids, nil
}

func (m *Memory) CountDocuments(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func (m *Memory) SetDocumentLength(_ context.Context, id int64, length float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	doc.Length = &length
	return nil
}

func (m *Memory) FindTerm(_ context.Context, term string) (*PostingEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.index[term]
	if !ok {
		return nil, fmt.Errorf("term %q: %w", term, apperrors.ErrTermNotFound)
	}
	return copyEntry(entry), nil
}

func (m *Memory) UpsertTerm(_ context.Context, term string, posting Posting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.index[term]
	if !ok {
		m.index[term] = &PostingEntry{
			Term:         term,
			DocFrequency: 1,
			Postings:     []Posting{posting},
		}
		return nil
	}
	for _, p := range entry.Postings {
		if p.DocumentID == posting.DocumentID {
			return nil
		}
	}
	entry.Postings = append(entry.Postings, posting)
	entry.DocFrequency++
	return nil
}

func (m *Memory) ListTerms(_ context.Context) ([]PostingEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PostingEntry, 0, len(m.index))
	for _, entry := range m.index {
		out = append(out, *copyEntry(entry))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Term < out[j].Term
	})
	return out, nil
}

func (m *Memory) ResetIndex(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]*PostingEntry)
	m.docs = make(map[int64]*Document)
	m.docOrder = nil
	m.ready = false
	m.generation++
	return nil
}

func (m *Memory) SetIndexReady(_ context.Context, ready bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
	return nil
}

func (m *Memory) IsIndexReady(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready, nil
}

func (m *Memory) IndexGeneration(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation, nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func copyEntry(entry *PostingEntry) *PostingEntry {
	postings := make([]Posting, len(entry.Postings))
	copy(postings, entry.Postings)
	return &PostingEntry{
		Term:         entry.Term,
		DocFrequency: entry.DocFrequency,
		Postings:     postings,
	}
}
