package identity

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

const idLength = 9

// Store хранит постоянный идентификатор установки: девятизначную
// числовую строку, которая служит именем комнаты хоста. Идентификатор
// генерируется один раз и переживает перезапуски.
type Store struct {
	dir  string
	file string
}

// NewStore создает Store в каталоге конфигурации пользователя.
func NewStore() (*Store, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user config dir: %w", err)
	}

	dir := filepath.Join(base, "farview")
	return NewStoreAt(dir), nil
}

// NewStoreAt создает Store в произвольном каталоге.
func NewStoreAt(dir string) *Store {
	return &Store{
		dir:  dir,
		file: filepath.Join(dir, "host.id"),
	}
}

// LoadOrCreate возвращает сохраненный идентификатор или генерирует и
// сохраняет новый. Пустой, отсутствующий или невалидный файл приводит
// к перегенерации; валидный идентификатор никогда не перезаписывается.
func (s *Store) LoadOrCreate() (string, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}

	raw, err := os.ReadFile(s.file)
	if err == nil {
		id := strings.TrimSpace(string(raw))
		if valid(id) {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read identity file: %w", err)
	}

	id := newID()
	if err := os.WriteFile(s.file, []byte(id), 0o600); err != nil {
		return "", fmt.Errorf("write identity file: %w", err)
	}

	return id, nil
}

func valid(id string) bool {
	if len(id) != idLength {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func newID() string {
	return fmt.Sprintf("%d", 100_000_000+rand.Intn(899_999_999))
}
