package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// tokenResponse is the standard OAuth 2.0 token response
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// Spec is a declarative provider entry resolved at startup. Providers are
// added and removed through configuration, never through control flow.
type Spec struct {
	Name         string
	Enabled      bool
	TokenFile    string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Store owns the credential record for a single OAuth provider. It loads the
// record at construction, hands out the current access token without I/O, and
// exchanges the refresh token for a new pair on demand.
type Store struct {
	spec       Spec
	record     *Record
	httpClient *http.Client
	logger     zerolog.Logger
	mu         sync.RWMutex // guards record
	refreshMu  sync.Mutex   // serializes refresh exchanges
}

// New creates a credential store for one provider. A missing or unparsable
// token file is not fatal: the store starts with an empty access token and the
// integration is simply omitted until tokens are obtained externally.
func New(spec Spec, logger zerolog.Logger) *Store {
	s := &Store{
		spec:       spec,
		record:     &Record{},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("provider", spec.Name).Logger(),
	}

	rec, err := loadRecord(spec.TokenFile)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", spec.TokenFile).
			Msg("No usable token record, provider starts unconfigured")
		return s
	}

	s.record = rec
	if rec.AccessToken == "" {
		s.logger.Warn().Msg("Token record has no access token")
	} else {
		s.logger.Info().Bool("refreshable", rec.RefreshToken != "").Msg("Token record loaded")
	}

	return s
}

// BuildStores resolves the enabled provider specs into stores
func BuildStores(specs []Spec, logger zerolog.Logger) []*Store {
	var stores []*Store
	for _, spec := range specs {
		if !spec.Enabled {
			logger.Debug().Str("provider", spec.Name).Msg("Provider disabled, skipping")
			continue
		}
		stores = append(stores, New(spec, logger))
	}
	return stores
}

// Name returns the provider name
func (s *Store) Name() string {
	return s.spec.Name
}

// AccessToken returns the current access token without network I/O. An empty
// result means the provider is not configured and callers must omit the
// integration rather than fail.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.AccessToken
}

// Record returns a copy of the current record
func (s *Store) Record() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.record
}

// Refresh exchanges the stored refresh token for a new access/refresh pair.
// On success the new pair is persisted as a whole-record replace and the
// in-memory state updated. On any transport error or non-2xx response the
// existing state is left untouched and false is returned; the caller decides
// whether to continue without this provider. Concurrent calls serialize on a
// dedicated refresh mutex so a slow refresh can never clobber a newer refresh
// token; the record mutex is taken only for the final swap, so AccessToken
// readers are never stalled behind the HTTP exchange.
func (s *Store) Refresh(ctx context.Context) bool {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	current := s.Record()
	if current.RefreshToken == "" {
		s.logger.Warn().Msg("No refresh token, record is terminal until re-authorized")
		return false
	}

	clientID := current.ClientID
	if clientID == "" {
		clientID = s.spec.ClientID
	}
	clientSecret := current.ClientSecret
	if clientSecret == "" {
		clientSecret = s.spec.ClientSecret
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", current.RefreshToken)
	if clientSecret == "" && clientID != "" {
		// Public client: identify in the body, no Basic auth
		data.Set("client_id", clientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.spec.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create refresh request")
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if clientSecret != "" {
		req.SetBasicAuth(clientID, clientSecret)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error().Err(err).Msg("Refresh request failed")
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Error().Int("status", resp.StatusCode).Msg("Refresh rejected by provider")
		return false
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		s.logger.Error().Err(err).Msg("Failed to decode refresh response")
		return false
	}
	if tokenResp.AccessToken == "" {
		s.logger.Error().Msg("Refresh response has no access token")
		return false
	}

	updated := current
	updated.AccessToken = tokenResp.AccessToken
	if tokenResp.RefreshToken != "" {
		updated.RefreshToken = tokenResp.RefreshToken
	}
	if tokenResp.TokenType != "" {
		updated.TokenType = tokenResp.TokenType
	}
	if tokenResp.Scope != "" {
		updated.Scope = tokenResp.Scope
	}
	if tokenResp.ExpiresIn > 0 {
		updated.ExpiresIn = tokenResp.ExpiresIn
		updated.ExpiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second).Unix()
	}

	if err := saveRecord(s.spec.TokenFile, &updated); err != nil {
		// The new pair is live; losing persistence only costs us on restart
		s.logger.Error().Err(err).Msg("Failed to persist refreshed tokens")
	}

	s.mu.Lock()
	s.record = &updated
	s.mu.Unlock()
	s.logger.Info().Msg("Access token refreshed")
	return true
}

// expiryHint reports how long until the recorded expiry, for diagnostics only
func (s *Store) expiryHint() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record.ExpiresAt == 0 {
		return 0, false
	}
	return time.Until(time.Unix(s.record.ExpiresAt, 0)), true
}

// Describe returns a one-line diagnostic summary without secrets
func (s *Store) Describe() string {
	s.mu.RLock()
	configured := s.record.AccessToken != ""
	refreshable := s.record.RefreshToken != ""
	s.mu.RUnlock()

	desc := fmt.Sprintf("%s: configured=%t refreshable=%t", s.spec.Name, configured, refreshable)
	if d, ok := s.expiryHint(); ok {
		desc += fmt.Sprintf(" expires_in=%s", d.Round(time.Second))
	}
	return desc
}
