package gcpinternal

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// cloudPlatformScope grants read access to every API the walkers touch.
const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// SafeSession provides thread-safe GCP authentication from Application
// Default Credentials, shared by every client in a scan.
type SafeSession struct {
	mu            sync.Mutex
	tokenSource   oauth2.TokenSource
	currentToken  *oauth2.Token
	sessionExpiry time.Time

	email       string
	accountType string // "user" or "serviceAccount"
	projectID   string
}

// GCPCredentialInfo holds information about the current credential
type GCPCredentialInfo struct {
	Email       string `json:"email"`
	AccountType string `json:"account_type"`
	ProjectID   string `json:"project_id"`
}

// NewSafeSession initializes a session using Application Default Credentials.
func NewSafeSession(ctx context.Context) (*SafeSession, error) {
	ts, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("no application default credentials; run 'gcloud auth application-default login': %w", err)
	}

	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get initial token: %w", err)
	}

	ss := &SafeSession{
		tokenSource:   ts,
		currentToken:  token,
		sessionExpiry: token.Expiry,
	}

	if info, err := currentIdentity(ctx); err == nil {
		ss.email = info.Email
		ss.accountType = info.AccountType
		ss.projectID = info.ProjectID
	}

	return ss, nil
}

// GetToken returns a valid access token, refreshing if necessary
func (s *SafeSession) GetToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentToken != nil && s.currentToken.Valid() {
		return s.currentToken.AccessToken, nil
	}

	token, err := s.tokenSource.Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.currentToken = token
	s.sessionExpiry = token.Expiry

	return token.AccessToken, nil
}

// GetTokenSource returns the underlying token source for use with clients
func (s *SafeSession) GetTokenSource() oauth2.TokenSource {
	return s.tokenSource
}

// GetClientOption returns a client option for use with GCP API clients
func (s *SafeSession) GetClientOption() option.ClientOption {
	return option.WithTokenSource(s.tokenSource)
}

// Ensure validates or refreshes the current session
func (s *SafeSession) Ensure(ctx context.Context) error {
	_, err := s.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("GCP session invalid or expired: %w", err)
	}
	return nil
}

// GetEmail returns the email of the authenticated identity
func (s *SafeSession) GetEmail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// GetAccountType returns the type of account (user or serviceAccount)
func (s *SafeSession) GetAccountType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountType
}

// GetProjectID returns the default project ID from gcloud config
func (s *SafeSession) GetProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

// currentIdentity retrieves identity info from the gcloud CLI. Best effort:
// a missing gcloud binary only costs the display of the account email.
func currentIdentity(ctx context.Context) (*GCPCredentialInfo, error) {
	out, err := exec.CommandContext(ctx, "gcloud", "auth", "list", "--filter=status:ACTIVE", "--format=json").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run gcloud auth list: %w", err)
	}

	var accounts []struct {
		Account string `json:"account"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(out, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse gcloud auth list: %w", err)
	}

	info := &GCPCredentialInfo{}
	if len(accounts) > 0 {
		info.Email = accounts[0].Account
		if strings.Contains(info.Email, ".iam.gserviceaccount.com") {
			info.AccountType = "serviceAccount"
		} else {
			info.AccountType = "user"
		}
	}

	if projectOut, err := exec.CommandContext(ctx, "gcloud", "config", "get-value", "project").Output(); err == nil {
		info.ProjectID = strings.TrimSpace(string(projectOut))
	}

	return info, nil
}

// GetDefaultProject returns the default GCP project from gcloud config
func GetDefaultProject() string {
	out, err := exec.Command("gcloud", "config", "get-value", "project").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
