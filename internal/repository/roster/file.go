package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"voip_chat/internal/model"
)

type (
	// FileLoader reads {"clients": [{"id": ..., "username": ...}]}.
	FileLoader struct {
		path string
	}

	rosterFile struct {
		Clients []model.RosterEntry `json:"clients"`
	}
)

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

func (l *FileLoader) Load(context.Context) ([]model.RosterEntry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", l.path, err)
	}
	var f rosterFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode roster %s: %w", l.path, err)
	}
	return f.Clients, nil
}
