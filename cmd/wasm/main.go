//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"io"
	"syscall/js"

	"github.com/charmbracelet/log"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/memstore"
	"docrag/internal/adapter/retriever"
	"docrag/internal/domain"
	"docrag/internal/usecase"
)

var (
	ingestUC   *usecase.IngestUseCase
	retrieveUC *usecase.RetrieveUseCase
)

func init() {
	reset()
}

// reset rebuilds the in-memory index from scratch.
func reset() {
	logger := log.New(io.Discard)
	tokenizer := analyzer.NewTokenizer(false)
	backend := retriever.NewBM25Backend(memstore.NewMemoryStore(), tokenizer, 1.2, 0.75)
	chk, _ := chunker.NewSentenceChunker(50, 20)

	ingestUC = usecase.NewIngestUseCase(
		usecase.NewFragmentStore(backend, logger),
		chk,
		extract.NewRegistry(nil),
		fs.NewWalker(nil, nil, nil),
		"",
		nil,
		logger,
	)
	retrieveUC = usecase.NewRetrieveUseCase(backend, 5, domain.MatchStrict, 0, logger)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("docragIngest", js.FuncOf(ingestText))
	js.Global().Set("docragRetrieve", js.FuncOf(retrieveFragments))
	js.Global().Set("docragClear", js.FuncOf(clearIndex))

	<-c
}

// ingestText(text, [documentId])
func ingestText(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return makeError("usage: docragIngest(text, [documentId])")
	}

	var docID string
	if len(args) > 1 && args[1].Type() == js.TypeString {
		docID = args[1].String()
	}

	result, err := ingestUC.Ingest(context.Background(), docID, args[0].String())
	if err != nil {
		return makeError("ingestion failed: " + err.Error())
	}
	return makeResult(result)
}

// retrieveFragments(documentId, question, [topK], [mode])
func retrieveFragments(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return makeError("usage: docragRetrieve(documentId, question, [topK], [mode])")
	}

	req := usecase.RetrieveRequest{
		DocumentID: args[0].String(),
		Query:      args[1].String(),
	}
	if len(args) > 2 && args[2].Type() == js.TypeNumber {
		req.TopK = args[2].Int()
	}
	if len(args) > 3 && args[3].Type() == js.TypeString {
		req.Mode = domain.MatchMode(args[3].String())
	}

	resp, err := retrieveUC.Retrieve(context.Background(), req)
	if err != nil {
		return makeError("retrieval failed: " + err.Error())
	}
	return makeResult(resp)
}

func clearIndex(this js.Value, args []js.Value) any {
	reset()
	return makeResult(map[string]any{"success": true})
}

func makeError(msg string) any {
	result, _ := json.Marshal(map[string]any{"error": msg})
	return string(result)
}

func makeResult(data any) any {
	result, _ := json.Marshal(data)
	return string(result)
}
