package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"

	jwttoken "skillproof/internal/jwt_token"
	"skillproof/internal/ledger"
	"skillproof/internal/ledger/sequencer"
	"skillproof/internal/ledger/service"
	"skillproof/internal/ledger/store/memory"
	id "skillproof/pkg/domain"
	"skillproof/pkg/platform/audit/publishers/compliance"
)

const (
	platformOwner id.Principal = "platform-owner"
	initialFee    uint64       = 250
)

// harness runs the full stack in process: memory store, sequencer and router.
type harness struct {
	router http.Handler
	store  *memory.Store
	tokens *jwttoken.JWTService
	stop   func()
}

func newHarness(opts ...Option) (*harness, error) {
	store := memory.New()
	svc := service.New(store, service.WithAuditPublisher(compliance.New(store.Audit())))
	if _, err := ledger.Bootstrap(context.Background(), store, svc, platformOwner, initialFee); err != nil {
		return nil, err
	}

	seq := sequencer.New(store, sequencer.WithBlockInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = seq.Run(ctx)
		close(done)
	}()
	<-seq.Ready()

	tokens := jwttoken.NewJWTService("test-signing-key", "test-issuer", "test-audience")
	r := chi.NewRouter()
	New(ledger.New(svc, seq), slog.New(slog.DiscardHandler), jwttoken.NewJWTServiceAdapter(tokens), opts...).Register(r)

	return &harness{
		router: r,
		store:  store,
		tokens: tokens,
		stop: func() {
			cancel()
			<-done
		},
	}, nil
}

// do sends a request as caller; an empty caller sends no token.
func (h *harness) do(method, path string, caller id.Principal, body any) (*httptest.ResponseRecorder, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		token, err := h.tokens.GenerateToken(caller, time.Hour)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr, nil
}
