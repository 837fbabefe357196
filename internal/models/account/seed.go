package account

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// seedFile - формат файла с начальными аккаунтами
type seedFile struct {
	Accounts []*Account `yaml:"accounts"`
}

// LoadSeed читает аккаунты из YAML. Регистрация живёт во внешнем сервисе,
// поэтому хранилище личностей наполняется отсюда.
func LoadSeed(r io.Reader) ([]*Account, error) {
	var file seedFile
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&file); err != nil {
		if err == io.EOF {
			return []*Account{}, nil
		}
		return nil, fmt.Errorf("ошибка парсинга seed-файла: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(file.Accounts))
	for i, acc := range file.Accounts {
		if acc == nil {
			return nil, fmt.Errorf("аккаунт #%d: пустая запись", i)
		}
		if acc.ID == uuid.Nil {
			return nil, fmt.Errorf("аккаунт #%d: не задан id", i)
		}
		if !acc.Role.Valid() {
			return nil, fmt.Errorf("аккаунт %s: неизвестная роль %q", acc.ID, acc.Role)
		}
		if _, ok := seen[acc.ID]; ok {
			return nil, fmt.Errorf("аккаунт %s: повторяющийся id", acc.ID)
		}
		seen[acc.ID] = struct{}{}
	}
	return file.Accounts, nil
}

func LoadSeedFile(path string) ([]*Account, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
	}
	defer file.Close()

	return LoadSeed(file)
}
