// Command benchmark compares chunking policies and match modes on one
// document: it ingests the file once per policy into an in-memory index and
// runs the same question against each.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/memstore"
	"docrag/internal/adapter/retriever"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

type policy struct {
	name    string
	chunker port.Chunker
}

func main() {
	file := flag.String("file", "", "Document to ingest")
	query := flag.String("q", "", "Question to ask")
	topK := flag.Int("k", 5, "Number of fragments")
	expect := flag.String("expect", "", "Phrase a relevant fragment contains (enables quality metrics)")
	flag.Parse()

	if *file == "" || *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -file report.pdf -q \"question\"")
		fmt.Println("\nCompares:")
		fmt.Println("  1. Sentence windows (50 words, 20 overlap)")
		fmt.Println("  2. Word windows (400 words, 50 overlap)")
		fmt.Println("  3. Token windows (200 tokens, 50 overlap)")
		fmt.Println("  each in strict and permissive match mode")
		fmt.Println("\nWith -expect, reports precision, recall and reciprocal rank.")
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	text, format, err := extract.NewRegistry(nil).Extract(filepath.Base(*file), data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting text: %v\n", err)
		os.Exit(1)
	}

	var relevant retriever.Relevance
	if *expect != "" {
		relevant = retriever.ContainsPhrase(*expect)
	}

	tokenizer := analyzer.NewTokenizer(false)
	policies, err := buildPolicies(tokenizer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building chunkers: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("CHUNKING POLICY BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Document: %s (%s, %d words)\n", *file, format, len(strings.Fields(text)))
	fmt.Printf("Query:    \"%s\"\n\n", *query)

	ctx := context.Background()
	logger := log.New(io.Discard)

	for _, p := range policies {
		backend := retriever.NewBM25Backend(memstore.NewMemoryStore(), tokenizer, 1.2, 0.75)
		ingest := usecase.NewIngestUseCase(
			usecase.NewFragmentStore(backend, logger),
			p.chunker,
			nil,
			fs.NewWalker(nil, nil, nil),
			"",
			nil,
			logger,
		)

		start := time.Now()
		res, err := ingest.Ingest(ctx, "", text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error ingesting: %v\n", err)
			os.Exit(1)
		}
		ingestTime := time.Since(start)

		fmt.Println(strings.Repeat("-", 70))
		fmt.Printf("%s: %d chunks, ingested in %s\n", p.name, res.ChunkCount, ingestTime.Round(time.Microsecond))

		totalRelevant := 0
		if relevant != nil {
			totalRelevant = retriever.CountRelevant(p.chunker.Chunk(text), relevant)
		}

		for _, mode := range []domain.MatchMode{domain.MatchStrict, domain.MatchPermissive} {
			retrieve := usecase.NewRetrieveUseCase(backend, *topK, mode, 0, logger)

			start = time.Now()
			resp, err := retrieve.Retrieve(ctx, usecase.RetrieveRequest{DocumentID: res.DocumentID, Query: *query})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error retrieving: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("  %-10s %d fragments in %s\n", mode, len(resp.Fragments), time.Since(start).Round(time.Microsecond))
			if relevant != nil {
				fmt.Printf("             P@%d %.3f  R@%d %.3f  RR %.3f  (%d relevant chunks)\n",
					*topK, retriever.PrecisionAtK(resp.Fragments, relevant),
					*topK, retriever.RecallAtK(resp.Fragments, relevant, totalRelevant),
					retriever.ReciprocalRank(resp.Fragments, relevant),
					totalRelevant)
			}

			for i, f := range resp.Fragments {
				preview := strings.ReplaceAll(f.Chunk, "\n", " ")
				if len(preview) > 100 {
					preview = preview[:100] + "..."
				}
				fmt.Printf("    %d. [%.3f] %s\n", i+1, f.Score, preview)
			}
		}
	}
}

func buildPolicies(tokenizer port.Tokenizer) ([]policy, error) {
	sentences, err := chunker.NewSentenceChunker(50, 20)
	if err != nil {
		return nil, err
	}
	words, err := chunker.NewWindowChunker(400, 50, nil)
	if err != nil {
		return nil, err
	}
	tokens, err := chunker.NewWindowChunker(200, 50, tokenizer)
	if err != nil {
		return nil, err
	}
	return []policy{
		{"sentences", sentences},
		{"words", words},
		{"tokens", tokens},
	}, nil
}
