package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Tokens - пара токенов, сохраняемая между запусками клиента.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty сообщает, что сохранённой сессии нет.
func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Store - локальное хранилище токенов.
// Load на пустом хранилище возвращает нулевые Tokens без ошибки.
type Store interface {
	Load() (Tokens, error)
	Save(Tokens) error
	Clear() error
}

// FileStore хранит токены в JSON-файле с правами 0600.
type FileStore struct {
	path string
}

// NewFileStore создаёт хранилище по указанному пути.
// Пустой path означает файл по умолчанию (см. DefaultPath).
func NewFileStore(path string) (*FileStore, error) {
	const op = "session.store.NewFileStore"

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		path = p
	}

	return &FileStore{path: path}, nil
}

// DefaultPath - <UserConfigDir>/odyssey-auth/session.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "odyssey-auth", "session.json"), nil
}

// Path возвращает путь к файлу сессии.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (Tokens, error) {
	const op = "session.store.Load"

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Tokens{}, nil
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	var t Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tokens{}, fmt.Errorf("%s: decode %s: %w", op, s.path, err)
	}

	return t, nil
}

func (s *FileStore) Save(t Tokens) error {
	const op = "session.store.Save"

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	raw, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Пишем во временный файл и переименовываем, чтобы не оставить полузаписанную сессию.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *FileStore) Clear() error {
	const op = "session.store.Clear"

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MemoryStore держит токены в памяти процесса. Удобен в тестах.
type MemoryStore struct {
	mu     sync.Mutex
	tokens Tokens
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load() (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, nil
}

func (s *MemoryStore) Save(t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	return nil
}
