package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tododesk/client/internal/state"
)

// Store — долговременное хранилище сессии: один JSON-файл с токеном и
// сериализованным профилем. Это единственное персистентное состояние
// клиента; кеш задач на диск не попадает никогда.
type Store struct {
	path string
}

// fileState повторяет пары ключ/значение браузерного хранилища оригинала.
type fileState struct {
	AuthToken string          `json:"authToken,omitempty"`
	User      json.RawMessage `json:"user,omitempty"`
}

// Snapshot переносит восстановленные данные сессии.
type Snapshot struct {
	Token   string
	Profile *state.UserProfile
}

// New создаёт хранилище для указанного файла.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("state file path is empty")
	}
	return &Store{path: path}, nil
}

// Load читает сохранённую сессию. Отсутствующий файл — пустая сессия.
// Профиль с диска — только кандидат на заглушку: после восстановления он
// перепроверяется запросом к серверу.
func (s *Store) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read state file %s: %w", s.path, err)
	}
	var raw fileState
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	snap := Snapshot{Token: strings.TrimSpace(raw.AuthToken)}
	if len(raw.User) > 0 {
		var profile state.UserProfile
		if err := json.Unmarshal(raw.User, &profile); err == nil && profile.Username != "" {
			snap.Profile = &profile
		}
	}
	return snap, nil
}

// SaveToken сохраняет токен, не трогая профиль.
func (s *Store) SaveToken(token string) error {
	current, err := s.Load()
	if err != nil {
		current = Snapshot{}
	}
	current.Token = token
	return s.write(current)
}

// SaveProfile сохраняет профиль рядом с текущим токеном.
func (s *Store) SaveProfile(profile state.UserProfile) error {
	current, err := s.Load()
	if err != nil {
		current = Snapshot{}
	}
	current.Profile = &profile
	return s.write(current)
}

// Clear стирает сохранённую сессию целиком.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file %s: %w", s.path, err)
	}
	return nil
}

// write атомарно записывает файл состояния: сначала во временный файл,
// затем rename, чтобы падение процесса не оставило обрезанный JSON.
func (s *Store) write(snap Snapshot) error {
	raw := fileState{AuthToken: snap.Token}
	if snap.Profile != nil {
		encoded, err := json.Marshal(snap.Profile)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		raw.User = encoded
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory %s: %w", dir, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
