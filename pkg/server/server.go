// Package server implements MessagePack IPC for batch log-probability queries.
package server

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/arpalm/arpalm/pkg/config"
	"github.com/arpalm/arpalm/pkg/query"
)

// Server answers batch query requests over msgpack on stdin/stdout.
type Server struct {
	eval   *query.Evaluator
	config *config.Config

	decoder    *msgpack.Decoder
	writeMutex sync.Mutex
}

// NewServer builds a Server around an Evaluator and a live config (read
// for Server.BatchLimit and Query.Cumulative).
func NewServer(eval *query.Evaluator, cfg *config.Config) *Server {
	return &Server{
		eval:    eval,
		config:  cfg,
		decoder: msgpack.NewDecoder(os.Stdin),
	}
}

// Start runs the request loop until stdin closes.
func (s *Server) Start() error {
	log.Debug("starting MessagePack query server")
	for {
		if err := s.processRequest(); err != nil {
			if err == io.EOF {
				log.Debug("client disconnected")
				return nil
			}
			continue
		}
	}
}

func (s *Server) processRequest() error {
	var req QueryRequest
	if err := s.decoder.Decode(&req); err != nil {
		log.Debugf("decode error: %v", err)
		return err
	}

	limit := s.config.Server.BatchLimit
	if limit > 0 && len(req.Lines) > limit {
		return s.sendResponse(&ErrorResponse{
			ID:    req.ID,
			Error: fmt.Sprintf("batch of %d lines exceeds batch_limit %d", len(req.Lines), limit),
		})
	}

	start := time.Now()
	sc := query.NewScratch(256)
	results := make([]QueryResult, len(req.Lines))
	for i, line := range req.Lines {
		results[i] = s.evalLine(line, sc)
	}

	return s.sendResponse(&QueryResponse{
		ID:        req.ID,
		Results:   results,
		TimeTaken: time.Since(start).Microseconds(),
	})
}

func (s *Server) evalLine(line string, sc *query.Scratch) QueryResult {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return QueryResult{Error: "empty query line"}
	}
	words := s.eval.ResolveLine(tokens)

	if s.config.Query.Cumulative {
		minLevel := 1
		if len(words) > 1 {
			minLevel = 2
		}
		sum, perWindow := s.eval.Cumulative(words, minLevel, sc)
		return QueryResult{LogProb: sum, PerWindow: perWindow}
	}
	return QueryResult{LogProb: s.eval.LogP(words, sc)}
}

// sendResponse encodes and writes response atomically to stdout.
func (s *Server) sendResponse(response any) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	var buf bytes.Buffer
	encoder := msgpack.NewEncoder(&buf)
	if err := encoder.Encode(response); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
