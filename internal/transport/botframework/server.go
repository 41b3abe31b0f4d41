package botframework

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/saleswire/server/internal/agent/catalog"
	"github.com/saleswire/server/internal/agent/engine"
	"github.com/saleswire/server/internal/agent/model"
	"github.com/saleswire/server/internal/agent/repo"
	logx "github.com/saleswire/server/pkg/logger"
)

// Config holds the webhook transport settings.
type Config struct {
	Addr        string        `envconfig:"SERVE_ADDR" default:":5002"`
	AppID       string        `envconfig:"TEAMS_APP_ID"`
	AppPassword string        `envconfig:"TEAMS_APP_PASSWORD"`
	TenantID    string        `envconfig:"TEAMS_TENANT_ID"`
	TurnTimeout time.Duration `envconfig:"SERVE_TURN_TIMEOUT" default:"2m"`
	DedupeTTL   time.Duration `envconfig:"SERVE_DEDUPE_TTL" default:"10m"`
}

// TurnProcessor is the slice of the dialogue engine the webhook drives.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, conversationID, utterance string) (model.Reply, error)
}

// ServerConfig wires the webhook server's collaborators.
type ServerConfig struct {
	Engine      TurnProcessor
	States      model.StateStore
	Deduper     repo.Deduper
	Connector   *Connector
	CatalogSize int
	TurnTimeout time.Duration
}

// Server accepts channel deliveries, runs turns off the request goroutine
// and posts replies back through the connector. It also serves the admin
// endpoints over the state store.
type Server struct {
	engine      TurnProcessor
	states      model.StateStore
	deduper     repo.Deduper
	connector   *Connector
	catalogSize int
	turnTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	turns sync.WaitGroup
}

// NewServer validates the wiring and returns a ready server.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.Engine == nil:
		return nil, fmt.Errorf("turn processor is nil")
	case cfg.States == nil:
		return nil, fmt.Errorf("state store is nil")
	case cfg.Deduper == nil:
		return nil, fmt.Errorf("deduper is nil")
	case cfg.Connector == nil:
		return nil, fmt.Errorf("connector is nil")
	}

	timeout := cfg.TurnTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Server{
		engine:      cfg.Engine,
		states:      cfg.States,
		deduper:     cfg.Deduper,
		connector:   cfg.Connector,
		catalogSize: cfg.CatalogSize,
		turnTimeout: timeout,
		locks:       make(map[string]*sync.Mutex),
	}, nil
}

// Router mounts the webhook and admin endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/messages", s.handleMessages)
	r.Get("/healthz", s.handleHealth)
	r.Get("/conversations", s.handleConversations)
	r.Get("/conversations/{id}/transcript", s.handleTranscript)
	r.Delete("/conversations/{id}", s.handleClear)
	return r
}

// Drain blocks until in-flight turns have finished. Called on shutdown
// after the listener has stopped accepting deliveries.
func (s *Server) Drain() {
	s.turns.Wait()
}

// handleMessages acknowledges the delivery immediately and runs the turn on
// its own goroutine; the channel receives the answer via the connector, not
// in this response. Non-message activities, the bot's own echoes and
// redelivered message ids are dropped here.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var activity Activity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid activity payload"})
		return
	}

	if activity.Type != activityMessage || activity.Conversation.ID == "" || activity.From.ID == activity.Recipient.ID {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if activity.ID != "" {
		seen, err := s.deduper.Seen(r.Context(), activity.Conversation.ID, activity.ID)
		if err != nil {
			logx.Warn().Err(err).Str("conversation_id", activity.Conversation.ID).Msg("dedupe check failed")
		}
		if seen {
			respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
	}

	s.turns.Add(1)
	go s.processTurn(activity)

	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) processTurn(activity Activity) {
	defer s.turns.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.turnTimeout)
	defer cancel()

	conversationID := activity.Conversation.ID
	lock := s.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if wantsTyping(activity.Text) {
		if err := s.connector.Typing(ctx, activity); err != nil {
			logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("typing indicator failed")
		}
	}

	reply, err := s.engine.ProcessTurn(ctx, conversationID, strings.TrimSpace(activity.Text))
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("turn failed")
	}

	text := reply.Text
	if reply.IsTable {
		text = markdownTable(reply.Columns, reply.Rows)
	}
	if text == "" {
		text = engine.ReplyTurnFailure
	}

	if err := s.connector.ReplyText(ctx, activity, text); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("reply delivery failed")
	}
}

// conversationLock serializes turns per conversation so a rapid second
// message cannot race the first one's state save.
func (s *Server) conversationLock(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}
	return lock
}

// wantsTyping skips the indicator for utterances answered instantly.
func wantsTyping(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "hi", "hello", "hii", "hey", "start over", "reset":
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	infos, err := s.states.List(r.Context())
	if err != nil {
		logx.Warn().Err(err).Msg("conversation listing failed")
	}
	messages := 0
	for _, info := range infos {
		messages += info.Messages
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"service":              "saleswire",
		"catalog_size":         s.catalogSize,
		"active_conversations": len(infos),
		"stored_messages":      messages,
	})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	infos, err := s.states.List(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if infos == nil {
		infos = []model.ConversationInfo{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total":         len(infos),
		"conversations": infos,
	})
}

type transcriptResponse struct {
	ConversationID string             `json:"conversation_id"`
	Turns          []model.Turn       `json:"turns"`
	PendingQueryID catalog.TemplateID `json:"pending_query,omitempty"`
	MissingParams  []string           `json:"missing_params,omitempty"`
	ParamAttempts  int                `json:"param_attempts"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	state, err := s.states.Load(r.Context(), conversationID)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if len(state.History) == 0 {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
		return
	}
	respondJSON(w, http.StatusOK, transcriptResponse{
		ConversationID: conversationID,
		Turns:          state.History,
		PendingQueryID: state.PendingQueryID,
		MissingParams:  state.MissingParams,
		ParamAttempts:  state.ParamAttempts,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := s.states.Clear(r.Context(), conversationID); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":          "cleared",
		"conversation_id": conversationID,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
