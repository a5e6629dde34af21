// Package simulator drives random traffic against a running comment-thread
// server and checks the resulting threads for consistency.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"comment-thread/internal/models"
)

type SimConfig struct {
	NumSessions    int
	SimulationTime time.Duration
	ActionInterval time.Duration // pause between two actions of one session

	// Relative weights of the actions each session performs.
	CommentWeight int
	ReplyWeight   int
	EditWeight    int
	DeleteWeight  int
	VoteWeight    int

	ZipfS     float64 // skew of target selection, must be > 1
	Seed      int64   // 0 seeds from the clock
	EngineURL string
}

// DefaultSimConfig returns a mix dominated by votes and replies.
func DefaultSimConfig(engineURL string) SimConfig {
	return SimConfig{
		NumSessions:    10,
		SimulationTime: time.Minute,
		ActionInterval: 50 * time.Millisecond,
		CommentWeight:  3,
		ReplyWeight:    4,
		EditWeight:     2,
		DeleteWeight:   1,
		VoteWeight:     6,
		ZipfS:          1.07,
		EngineURL:      engineURL,
	}
}

type SimulationStats struct {
	mu              sync.RWMutex
	StartTime       time.Time
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	AverageLatency  time.Duration
	ActiveSessions  int
	TotalComments   int
	TotalReplies    int
	TotalEdits      int
	TotalDeletes    int
	TotalVotes      int
}

// SimulationMetrics is a point-in-time copy of the stats.
type SimulationMetrics struct {
	TotalSessions     int
	ActiveSessions    int
	TotalComments     int
	TotalReplies      int
	TotalEdits        int
	TotalDeletes      int
	TotalVotes        int
	AverageLatency    time.Duration
	ErrorCount        int
	RequestsPerSecond float64
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RequestError is returned for responses with status >= 400.
type RequestError struct {
	Status int
	ErrorResponse
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s %s", e.Status, e.Code, e.Message)
}

type Simulator struct {
	config   SimConfig
	stats    *SimulationStats
	sessions []*simulatedSession
	client   *http.Client
	mu       sync.RWMutex
}

func NewSimulator(config SimConfig) *Simulator {
	if config.Seed == 0 {
		config.Seed = time.Now().UnixNano()
	}
	return &Simulator{
		config: config,
		stats:  &SimulationStats{StartTime: time.Now()},
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Run opens the sessions, drives traffic until ctx is done or the
// simulation time is up, then verifies and closes every session. It returns
// an error if any session failed verification.
func (s *Simulator) Run(ctx context.Context) error {
	log.Infof("[simulator] starting %d sessions against %s", s.config.NumSessions, s.config.EngineURL)

	if err := s.openSessions(ctx); err != nil {
		return errors.Wrap(err, "initialization failed")
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.SimulationTime)
	defer cancel()

	var wg sync.WaitGroup
	for _, session := range s.sessions {
		wg.Add(1)
		go func(session *simulatedSession) {
			defer wg.Done()
			s.simulateSession(runCtx, session)
		}(session)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(runCtx)
	}()
	wg.Wait()

	// Verification and teardown must run even though runCtx is done.
	finalCtx := context.WithoutCancel(ctx)
	var failed []string
	for _, session := range s.sessions {
		if err := s.verifySession(finalCtx, session); err != nil {
			log.Errorf("[simulator] session %s failed verification: %v", session.ID, err)
			failed = append(failed, err.Error())
		}
		if err := s.closeSession(finalCtx, session); err != nil {
			log.Warnf("[simulator] failed to close session %s: %v", session.ID, err)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d sessions failed verification: %v", len(failed), len(s.sessions), failed)
	}
	log.Info("[simulator] all sessions verified")
	return nil
}

func (s *Simulator) openSessions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make([]*simulatedSession, 0, s.config.NumSessions)
	for i := 0; i < s.config.NumSessions; i++ {
		var resp struct {
			Token       string            `json:"token"`
			SessionID   string            `json:"sessionId"`
			CurrentUser models.User       `json:"currentUser"`
			Comments    []*models.Comment `json:"comments"`
		}
		if err := s.makeRequest(ctx, "", http.MethodPost, "/session", nil, &resp); err != nil {
			return errors.Wrapf(err, "failed to open session %d", i)
		}
		s.sessions = append(s.sessions, newSimulatedSession(resp.SessionID, resp.Token, resp.CurrentUser.Username, resp.Comments, s.config.Seed+int64(i)))
	}

	s.stats.mu.Lock()
	s.stats.ActiveSessions = len(s.sessions)
	s.stats.mu.Unlock()
	return nil
}

func (s *Simulator) closeSession(ctx context.Context, session *simulatedSession) error {
	err := s.makeRequest(ctx, session.Token, http.MethodDelete, "/session", nil, nil)
	if err == nil {
		s.stats.mu.Lock()
		s.stats.ActiveSessions--
		s.stats.mu.Unlock()
	}
	return err
}

// makeRequest sends data as JSON and decodes the response into out.
func (s *Simulator) makeRequest(ctx context.Context, token, method, endpoint string, data, out interface{}) error {
	var body io.Reader
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.EngineURL+endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.recordRequestMetrics(start, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		reqErr := &RequestError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(&reqErr.ErrorResponse)
		s.recordRequestMetrics(start, reqErr)
		return reqErr
	}
	s.recordRequestMetrics(start, nil)

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(out), "decoding %s %s", method, endpoint)
}

func (s *Simulator) recordRequestMetrics(start time.Time, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	latency := time.Since(start)
	s.stats.TotalRequests++

	if err != nil {
		s.stats.FailedRequests++
	} else {
		s.stats.SuccessRequests++
	}

	totalLatency := s.stats.AverageLatency * time.Duration(s.stats.TotalRequests-1)
	s.stats.AverageLatency = (totalLatency + latency) / time.Duration(s.stats.TotalRequests)
}

func (s *Simulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := s.GetMetrics()
			log.WithFields(log.Fields{
				"sessions": m.ActiveSessions,
				"comments": m.TotalComments,
				"replies":  m.TotalReplies,
				"edits":    m.TotalEdits,
				"deletes":  m.TotalDeletes,
				"votes":    m.TotalVotes,
				"errors":   m.ErrorCount,
				"rps":      fmt.Sprintf("%.1f", m.RequestsPerSecond),
				"latency":  m.AverageLatency.String(),
			}).Info("[simulator] progress")
		}
	}
}

func (s *Simulator) GetMetrics() SimulationMetrics {
	s.mu.RLock()
	totalSessions := len(s.sessions)
	s.mu.RUnlock()

	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	elapsed := time.Since(s.stats.StartTime)
	requestRate := float64(s.stats.TotalRequests) / elapsed.Seconds()

	return SimulationMetrics{
		TotalSessions:     totalSessions,
		ActiveSessions:    s.stats.ActiveSessions,
		TotalComments:     s.stats.TotalComments,
		TotalReplies:      s.stats.TotalReplies,
		TotalEdits:        s.stats.TotalEdits,
		TotalDeletes:      s.stats.TotalDeletes,
		TotalVotes:        s.stats.TotalVotes,
		AverageLatency:    s.stats.AverageLatency,
		ErrorCount:        int(s.stats.FailedRequests),
		RequestsPerSecond: requestRate,
	}
}
