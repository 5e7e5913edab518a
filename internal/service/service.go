// Package service wires retrieval and answer assembly into one request.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rolerag/internal/assembler"
	"rolerag/internal/logging"
	"rolerag/internal/retrieval"
)

// ErrEmptyQuery is returned for blank questions.
var ErrEmptyQuery = errors.New("empty query")

// Response is what a caller gets back for one question.
type Response struct {
	RequestID string          `json:"request_id"`
	Answer    string          `json:"answer"`
	Sources   []string        `json:"sources"`
	Kind      string          `json:"kind"`
	Reason    string          `json:"reason,omitempty"`
	Status    string          `json:"status"`
	Hits      []retrieval.Hit `json:"hits,omitempty"`
}

// Retriever is the retrieval step consumed by the service.
type Retriever interface {
	Retrieve(ctx context.Context, query, role string, nResults int) (retrieval.Result, error)
}

// Synthesizer is the answer step consumed by the service.
type Synthesizer interface {
	Synthesize(ctx context.Context, chunks []string, query string) assembler.Answer
}

type Options struct {
	NResults int
	Logger   *zap.Logger
}

type Service struct {
	retriever   Retriever
	synthesizer Synthesizer
	nResults    int
	log         *zap.Logger
}

func New(r Retriever, s Synthesizer, opts Options) *Service {
	if opts.NResults <= 0 {
		opts.NResults = retrieval.DefaultNResults
	}
	return &Service{retriever: r, synthesizer: s, nResults: opts.NResults, log: logging.OrNop(opts.Logger)}
}

// Answer retrieves role-visible chunks for query and turns them into an answer.
// When nothing usable is retrieved the retrieval message is the answer and
// sources are empty. Only oracle failures are returned as errors.
func (s *Service) Answer(ctx context.Context, role, query string) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, ErrEmptyQuery
	}
	id := uuid.NewString()
	log := s.log.With(zap.String("request_id", id), zap.String("role", role))

	res, err := s.retriever.Retrieve(ctx, query, role, s.nResults)
	if err != nil {
		log.Error("retrieval failed", zap.Error(err))
		return Response{}, fmt.Errorf("retrieve: %w", err)
	}
	resp := Response{
		RequestID: id,
		Status:    res.Status.String(),
		Sources:   []string{},
	}
	if res.Status != retrieval.Found {
		resp.Answer = res.Context
		resp.Kind = assembler.Empty.String()
		log.Info("no accessible context", zap.String("status", resp.Status))
		return resp, nil
	}

	ans := s.synthesizer.Synthesize(ctx, res.Chunks, query)
	resp.Answer = ans.Text
	resp.Kind = ans.Kind.String()
	resp.Reason = ans.Reason
	resp.Sources = res.Sources
	resp.Hits = res.Hits
	log.Info("answered",
		zap.String("kind", resp.Kind),
		zap.Int("chunks", len(res.Chunks)),
		zap.Strings("sources", res.Sources))
	return resp, nil
}
