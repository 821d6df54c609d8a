// Package index builds the lexical index the ranker scores against: per
// document term frequencies and lengths, an inverted posting list per term,
// and corpus-wide BM25 IDF. An Index is immutable once Build returns, so
// any number of searches may read it concurrently without locking.
package index

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/tokenizer"
)

// Posting records how often a term occurs in one document. Doc is the
// document's position in the catalog slice the index was built from.
type Posting struct {
	Doc       int
	Frequency int
}

// PostingList is ordered by ascending Doc.
type PostingList []Posting

type document struct {
	length    int
	terms     map[string]int
	nameTerms map[string]struct{}
}

// Index is the BM25 statistics for one catalog snapshot.
type Index struct {
	docs        []document
	postings    map[string]PostingList
	idf         map[string]float64
	totalTokens int
	avgDocLen   float64
}

// Stats summarises an index for logs and the catalog stats endpoint.
type Stats struct {
	Documents    int     `json:"documents"`
	Terms        int     `json:"terms"`
	TotalTokens  int     `json:"total_tokens"`
	AvgDocLength float64 `json:"avg_doc_length"`
}

// Build indexes name, description and category of every product. Document
// lengths, the average length and IDF are computed in the same pass and
// never updated afterwards; a catalog change means a new Build.
func Build(products []catalog.Product) *Index {
	ix := &Index{
		docs:     make([]document, len(products)),
		postings: make(map[string]PostingList),
	}
	for i, p := range products {
		terms := tokenizer.Terms(p.Name + " " + p.Description + " " + p.Category)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t, n := range tf {
			ix.postings[t] = append(ix.postings[t], Posting{Doc: i, Frequency: n})
		}
		names := make(map[string]struct{})
		for _, t := range tokenizer.Terms(p.Name) {
			names[t] = struct{}{}
		}
		ix.docs[i] = document{length: len(terms), terms: tf, nameTerms: names}
		ix.totalTokens += len(terms)
	}
	n := len(products)
	if n > 0 {
		ix.avgDocLen = float64(ix.totalTokens) / float64(n)
	}
	ix.idf = make(map[string]float64, len(ix.postings))
	for term, list := range ix.postings {
		ix.idf[term] = computeIDF(n, len(list))
	}
	return ix
}

// computeIDF is the BM25 IDF, ln((N - df + 0.5)/(df + 0.5) + 1). The +1
// keeps it positive even for terms present in every document.
func computeIDF(totalDocs, docFreq int) float64 {
	return math.Log((float64(totalDocs)-float64(docFreq)+0.5)/(float64(docFreq)+0.5) + 1)
}

// DocCount returns the number of indexed documents.
func (ix *Index) DocCount() int { return len(ix.docs) }

// AvgDocLength returns the mean document length in tokens, 0 when empty.
func (ix *Index) AvgDocLength() float64 { return ix.avgDocLen }

// DocLength returns the token count of doc.
func (ix *Index) DocLength(doc int) int { return ix.docs[doc].length }

// TermFreq returns how often term occurs in doc.
func (ix *Index) TermFreq(doc int, term string) int { return ix.docs[doc].terms[term] }

// IDF returns the precomputed IDF of term, or 0 for a term no document has.
func (ix *Index) IDF(term string) float64 { return ix.idf[term] }

// DocFreq returns the number of documents containing term.
func (ix *Index) DocFreq(term string) int { return len(ix.postings[term]) }

// Postings returns the documents containing term. The slice is shared and
// must not be modified.
func (ix *Index) Postings(term string) PostingList { return ix.postings[term] }

// NameMatches counts how many of terms occur in the tokenized name of doc.
// terms must already be deduplicated.
func (ix *Index) NameMatches(doc int, terms []string) int {
	names := ix.docs[doc].nameTerms
	n := 0
	for _, t := range terms {
		if _, ok := names[t]; ok {
			n++
		}
	}
	return n
}

func (ix *Index) Stats() Stats {
	return Stats{
		Documents:    len(ix.docs),
		Terms:        len(ix.postings),
		TotalTokens:  ix.totalTokens,
		AvgDocLength: ix.avgDocLen,
	}
}
