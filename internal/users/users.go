// Package users is the file-backed account store behind the login
// flow. It provides the cashier name the checkout path records on
// every invoice.
package users

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"sportpos/backend/internal/domain"
)

// DefaultMaxUsers caps the account list. Configurable; zero disables
// the cap.
const DefaultMaxUsers = 20

// File format: id;username;passwordHash;role, one account per line.
// Hashes are bcrypt; a legacy plaintext password (anything that does
// not look like a bcrypt hash) is verified by equality once and
// rehashed on the next save.
type Manager struct {
	mu       sync.Mutex
	path     string
	log      zerolog.Logger
	maxUsers int
	accounts []domain.UserAccount
	nextID   int
}

func Open(ctx context.Context, path string, maxUsers int, log zerolog.Logger) (*Manager, error) {
	if maxUsers < 0 {
		maxUsers = DefaultMaxUsers
	}

	m := &Manager{path: path, log: log, maxUsers: maxUsers, nextID: 1}
	if err := m.load(); err != nil {
		return nil, err
	}

	if len(m.accounts) == 0 {
		if err := m.seedAdmin(ctx); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// seedAdmin bootstraps a first admin account so a fresh install is
// usable. The password comes from SEED_ADMIN_PASSWORD; a hardcoded dev
// default is used with a warning when unset.
func (m *Manager) seedAdmin(ctx context.Context) error {
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
		m.log.Warn().Msg("using default admin credentials; set SEED_ADMIN_PASSWORD to override")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	m.accounts = append(m.accounts, domain.UserAccount{
		ID:           m.nextID,
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	})
	m.nextID++
	return m.save(ctx)
}

// Authenticate verifies credentials and returns the actor identity.
// Legacy plaintext entries are upgraded to bcrypt in place.
func (m *Manager) Authenticate(ctx context.Context, username string, password string) (domain.Actor, error) {
	username = strings.TrimSpace(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.accounts {
		acct := &m.accounts[i]
		if acct.Username != username {
			continue
		}
		if isBcryptHash(acct.PasswordHash) {
			if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
				return domain.Actor{}, errors.New("invalid credentials")
			}
		} else {
			// Pre-migration account with the raw password on disk.
			if acct.PasswordHash != password {
				return domain.Actor{}, errors.New("invalid credentials")
			}
			if hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost); err == nil {
				acct.PasswordHash = string(hash)
				if err := m.save(ctx); err != nil {
					m.log.Error().Err(err).Str("username", username).Msg("failed to persist password rehash")
				}
			}
		}
		return domain.Actor{Username: acct.Username, Role: acct.Role}, nil
	}
	return domain.Actor{}, errors.New("invalid credentials")
}

func (m *Manager) List() []domain.UserView {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.UserView, 0, len(m.accounts))
	for _, acct := range m.accounts {
		out = append(out, domain.UserView{ID: acct.ID, Username: acct.Username, Role: acct.Role})
	}
	return out
}

func (m *Manager) Add(ctx context.Context, username string, password string, role string) (domain.UserView, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.UserView{}, errors.New("username and password are required")
	}
	if role != domain.RoleAdmin && role != domain.RoleCashier {
		return domain.UserView{}, fmt.Errorf("unknown role %q", role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxUsers > 0 && len(m.accounts) >= m.maxUsers {
		return domain.UserView{}, errors.New("user limit reached")
	}
	for _, acct := range m.accounts {
		if acct.Username == username {
			return domain.UserView{}, domain.ErrDuplicateUsername
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserView{}, fmt.Errorf("hash password: %w", err)
	}

	acct := domain.UserAccount{
		ID:           m.nextID,
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	m.nextID++
	m.accounts = append(m.accounts, acct)
	if err := m.save(ctx); err != nil {
		m.log.Error().Err(err).Msg("user save failed; in-memory state remains authoritative")
	}
	return domain.UserView{ID: acct.ID, Username: acct.Username, Role: acct.Role}, nil
}

// Update renames an account and optionally resets its password. An
// empty password leaves the stored hash untouched.
func (m *Manager) Update(ctx context.Context, id int, username string, password string, role string) (domain.UserView, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.UserView{}, errors.New("username is required")
	}
	if role != domain.RoleAdmin && role != domain.RoleCashier {
		return domain.UserView{}, fmt.Errorf("unknown role %q", role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.accounts {
		if m.accounts[i].ID != id {
			continue
		}
		for j := range m.accounts {
			if j != i && m.accounts[j].Username == username {
				return domain.UserView{}, domain.ErrDuplicateUsername
			}
		}
		m.accounts[i].Username = username
		m.accounts[i].Role = role
		if password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return domain.UserView{}, fmt.Errorf("hash password: %w", err)
			}
			m.accounts[i].PasswordHash = string(hash)
		}
		if err := m.save(ctx); err != nil {
			m.log.Error().Err(err).Msg("user save failed; in-memory state remains authoritative")
		}
		return domain.UserView{ID: id, Username: username, Role: role}, nil
	}
	return domain.UserView{}, domain.ErrUserNotFound
}

func (m *Manager) Delete(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.accounts {
		if m.accounts[i].ID == id {
			m.accounts = append(m.accounts[:i], m.accounts[i+1:]...)
			if err := m.save(ctx); err != nil {
				m.log.Error().Err(err).Msg("user save failed; in-memory state remains authoritative")
			}
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (m *Manager) load() error {
	f, err := os.Open(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open users file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ";", 4)
		if len(fields) < 4 {
			m.log.Warn().Int("line", lineNo).Msg("skipping unparseable user line")
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			m.log.Warn().Int("line", lineNo).Err(err).Msg("skipping user line with bad id")
			continue
		}
		m.accounts = append(m.accounts, domain.UserAccount{
			ID:           id,
			Username:     fields[1],
			PasswordHash: fields[2],
			Role:         fields[3],
		})
		if id >= m.nextID {
			m.nextID = id + 1
		}
	}
	return scanner.Err()
}

// save assumes the caller holds the lock.
func (m *Manager) save(_ context.Context) error {
	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, ".users-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp users file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := bufio.NewWriter(tmp)
	for _, acct := range m.accounts {
		fmt.Fprintf(w, "%d;%s;%s;%s\n", acct.ID, acct.Username, acct.PasswordHash, acct.Role)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}
	return nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
